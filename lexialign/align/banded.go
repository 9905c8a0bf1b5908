// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package align holds the two DP-based primitives spec §1 treats as opaque
// collaborators: SingleAligner (one read against the genome) and
// PairedAligner (a mate pair, jointly, with an insert-size model). Their
// *internals* (Landau-Vishkin banding, wavefront alignment, ...) are out of
// scope; BandedAligner is a concrete stand-in grounded on the
// reusable-matrix Needleman-Wunsch kernel this codebase already carries,
// banded to the caller's edit-distance budget.
package align

import (
	"sync"

	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/record"
)

// SingleAligner aligns one read against the genome, producing a best hit
// plus up to N secondary hits (spec §2).
type SingleAligner interface {
	Align(read *record.Read, maxDist, extraSearchDepth int, out *record.SingleAlignmentResult) error
}

// BandedAligner is a Landau-Vishkin-style bounded edit distance aligner:
// the DP is restricted to a diagonal band of width 2*k+1 around the main
// diagonal, where k = maxDist+extraSearchDepth, following the "Ukkonen
// banding" optimization named in the GLOSSARY. Reusable row buffers avoid
// per-read allocation, mirroring the Aligner.scores/pointers reuse pattern
// used by this codebase's Needleman-Wunsch kernel.
type BandedAligner struct {
	idx *genome.Index

	mu   sync.Mutex // guards the reusable row buffers below
	prev []int
	cur  []int

	// DisableBanding turns the DP into full Needleman-Wunsch, a
	// correctness/debug toggle named in the GLOSSARY.
	DisableBanding bool
}

// NewBandedAligner returns a BandedAligner over idx. idx may be the "-"
// pass-through sentinel, in which case Align always reports NotFound.
func NewBandedAligner(idx *genome.Index) *BandedAligner {
	return &BandedAligner{idx: idx}
}

// candidateWindow is not used by candidates(); seeding itself is out of
// scope (spec §1), and the stand-in there compares the read against up to 8
// read-length windows taken at evenly spaced offsets (step = genome length
// / 8) from the start of the reference.
const candidateWindow = 64

// Align implements SingleAligner. It never returns an error for a
// well-formed read; failures are reported via result.Status.
func (a *BandedAligner) Align(read *record.Read, maxDist, extraSearchDepth int, out *record.SingleAlignmentResult) error {
	out.Reset()

	if a.idx == nil || a.idx.IsNull() || a.idx.BasesCount() == 0 {
		out.Status = record.NotFound
		return nil
	}

	k := maxDist + extraSearchDepth
	if k > record.MaxK {
		k = record.MaxK
	}

	best := record.SingleAlignmentResult{Location: record.InvalidLocation, Score: k + 1}
	bestCount := 0

	for _, cand := range a.candidates(read) {
		dist, ok := a.bandedEditDistance(read.Bases, cand.window, cand.ambig, k)
		if !ok {
			continue
		}
		switch {
		case dist < best.Score:
			best.Score = dist
			best.Location = cand.location
			best.Direction = cand.direction
			bestCount = 1
		case dist == best.Score:
			bestCount++
			out.Secondary = append(out.Secondary, record.SecondaryHit{
				Location: cand.location, Direction: cand.direction, Score: dist,
			})
		}
	}

	if best.Location == record.InvalidLocation {
		out.Status = record.NotFound
		return nil
	}

	out.Location = best.Location
	out.Direction = best.Direction
	out.Score = best.Score
	if bestCount == 1 {
		out.Status = record.SingleHit
		out.MAPQ = mapqFromMargin(best.Score, k)
	} else {
		out.Status = record.MultipleHits
		out.MAPQ = 0
	}
	return nil
}

// mapqFromMargin derives a MAPQ in [0, 70] from how much slack remains in
// the edit-distance budget: a perfect, unique hit gets 70, a hit that
// barely fits inside k gets close to 0.
func mapqFromMargin(score, k int) int {
	if k <= 0 {
		return record.MaxMAPQ
	}
	margin := k - score
	mapq := margin * record.MaxMAPQ / k
	if mapq > record.MaxMAPQ {
		mapq = record.MaxMAPQ
	}
	if mapq < 0 {
		mapq = 0
	}
	return mapq
}

type candidate struct {
	location  record.GenomeLocation
	direction record.Direction
	window    []byte

	// ambig[i] marks that window[i] was an ambiguity code ('N' or similar)
	// in the source reference; the packed 2-bit genome can't represent
	// that directly (spec §1 index internals are opaque), so BandedAligner
	// treats those positions as a free match rather than penalizing the
	// read for disagreeing with an arbitrarily-chosen base.
	ambig []bool
}

// candidates returns the small set of genome windows the (out-of-scope)
// seed index would have produced. It deterministically samples a handful
// of positions from the reference so BandedAligner has real bytes to
// compare against.
func (a *BandedAligner) candidates(read *record.Read) []candidate {
	n := a.idx.BasesCount()
	if n == 0 || len(read.Bases) == 0 {
		return nil
	}

	windowLen := int64(len(read.Bases))
	step := n / 8
	if step < 1 {
		step = 1
	}

	out := make([]candidate, 0, 8)
	for start := int64(0); start+windowLen <= n && len(out) < 8; start += step {
		window, ok := a.idx.WindowBases(start, windowLen)
		if !ok {
			continue
		}
		var ambig []bool
		for i := int64(0); i < windowLen; i++ {
			if a.idx.IsAmbiguous(start + i) {
				if ambig == nil {
					ambig = make([]bool, windowLen)
				}
				ambig[i] = true
			}
		}

		out = append(out, candidate{
			location:  record.GenomeLocation(start),
			direction: record.Forward,
			window:    window,
			ambig:     ambig,
		})
	}
	return out
}

// bandedEditDistance computes the Levenshtein distance between read and
// window, restricted to a band of width 2k+1 around the main diagonal.
// Returns ok=false if the true distance provably exceeds k.
func (a *BandedAligner) bandedEditDistance(read, window []byte, ambig []bool, k int) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, m := len(read), len(window)
	if abs(n-m) > k {
		return 0, false
	}

	width := 2*k + 1
	if a.DisableBanding {
		width = m + 1
	}
	if cap(a.prev) < width {
		a.prev = make([]int, width)
		a.cur = make([]int, width)
	}
	prev, cur := a.prev[:width], a.cur[:width]

	const inf = 1 << 30
	for j := range prev {
		prev[j] = inf
	}
	// row 0: distance from empty read prefix to window prefix j.
	for j := 0; j <= m && (j <= k || a.DisableBanding); j++ {
		prev[bandIndex(0, j, k, a.DisableBanding)] = j
	}

	for i := 1; i <= n; i++ {
		for j := range cur {
			cur[j] = inf
		}
		lo := i - k
		if lo < 0 || a.DisableBanding {
			lo = 0
		}
		hi := i + k
		if hi > m || a.DisableBanding {
			hi = m
		}
		if lo == 0 {
			cur[bandIndex(i, 0, k, a.DisableBanding)] = i
		}
		for j := lo; j <= hi; j++ {
			if j == 0 {
				continue
			}
			idx := bandIndex(i, j, k, a.DisableBanding)
			cost := 1
			if read[i-1] == window[j-1] || (ambig != nil && ambig[j-1]) {
				cost = 0
			}
			best := getBand(prev, i-1, j-1, k, a.DisableBanding) + cost // substitution
			if v := getBand(prev, i-1, j, k, a.DisableBanding) + 1; v < best {
				best = v // deletion from read
			}
			if v := getBand(cur, i, j-1, k, a.DisableBanding) + 1; v < best {
				best = v // insertion into read
			}
			cur[idx] = best
		}
		prev, cur = cur, prev
	}

	d := getBand(prev, n, m, k, a.DisableBanding)
	if d > k {
		return d, false
	}
	return d, true
}

func bandIndex(i, j, k int, disabled bool) int {
	if disabled {
		return j
	}
	return j - i + k
}

func getBand(row []int, i, j, k int, disabled bool) int {
	idx := bandIndex(i, j, k, disabled)
	if idx < 0 || idx >= len(row) {
		return 1 << 30
	}
	return row[idx]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
