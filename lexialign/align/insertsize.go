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

package align

import (
	"math"
	"sync"

	"github.com/shenwei356/lexialign/lexialign/record"
)

// PairedAligner aligns a pair jointly using an insert-size model (spec
// §2). It reports a confident pair only when both mates locate near each
// other with a plausible orientation and separation.
type PairedAligner interface {
	AlignPair(r0, r1 *record.Read, maxDist, extraSearchDepth int, out *record.PairedAlignmentResult) error
}

// InsertSizeAligner is a concrete PairedAligner: it runs BandedAligner
// independently on each mate to get candidate locations, then accepts a
// joint call only when the mates land on opposite strands within
// [minInsert, maxInsert] of each other (the "insert-size model" spec §2
// treats as an external collaborator's internals).
type InsertSizeAligner struct {
	Single    SingleAligner
	MinInsert int
	MaxInsert int

	// RelearnAfter is the number of confidently-paired observations
	// collected before MinInsert/MaxInsert are re-derived from the
	// observed distribution (0 disables relearning; the caller-supplied
	// bounds are then fixed for the aligner's lifetime).
	RelearnAfter int

	mu       sync.Mutex
	samples  []int
	maxSamples int
}

// NewInsertSizeAligner returns an InsertSizeAligner backed by single, with
// the given starting insert-size bounds.
func NewInsertSizeAligner(single SingleAligner, minInsert, maxInsert int) *InsertSizeAligner {
	return &InsertSizeAligner{Single: single, MinInsert: minInsert, MaxInsert: maxInsert, maxSamples: 2000}
}

// AlignPair implements PairedAligner.
func (p *InsertSizeAligner) AlignPair(r0, r1 *record.Read, maxDist, extraSearchDepth int, out *record.PairedAlignmentResult) error {
	out.Reset()

	if err := p.Single.Align(r0, maxDist, extraSearchDepth, &out.Mate[0]); err != nil {
		return err
	}
	if err := p.Single.Align(r1, maxDist, extraSearchDepth, &out.Mate[1]); err != nil {
		return err
	}

	if out.Mate[0].Status == record.NotFound || out.Mate[1].Status == record.NotFound {
		return nil
	}

	if out.Mate[0].Direction == out.Mate[1].Direction {
		return nil // not a plausible FR/RF pair
	}

	minInsert, maxInsert := p.bounds()
	sep := separation(out.Mate[0].Location, out.Mate[1].Location)
	if sep < minInsert || sep > maxInsert {
		return nil
	}

	out.AlignedAsPair = true
	out.FromAlignTogether = true
	p.observe(sep)
	return nil
}

// bounds returns the current insert-size acceptance window under the read
// lock implied by the mutex (relearning replaces it wholesale, so a torn
// read here is at worst a stale-by-one-observation window).
func (p *InsertSizeAligner) bounds() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MinInsert, p.MaxInsert
}

// observe records one confidently-paired separation and, once RelearnAfter
// samples have accumulated, re-derives MinInsert/MaxInsert from their
// mean/stdev (spec §2's "insert-size model an aligner learns from a subset
// of confidently-paired reads"), matching the empirical-distribution
// approach the teacher's own seq_compare.go uses for score thresholds.
func (p *InsertSizeAligner) observe(sep int) {
	if p.RelearnAfter <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples = append(p.samples, sep)
	if len(p.samples) > p.maxSamples {
		p.samples = p.samples[len(p.samples)-p.maxSamples:]
	}
	if len(p.samples) < p.RelearnAfter {
		return
	}

	mean, stdev := EstimateInsertSize(p.samples)
	// A minimum half-width keeps the window from collapsing to a point when
	// the observed sample happens to have near-zero variance.
	halfWidth := 4 * stdev
	if halfWidth < minRelearnHalfWidth {
		halfWidth = minRelearnHalfWidth
	}
	lo := int(mean - halfWidth)
	if lo < 0 {
		lo = 0
	}
	hi := int(mean + halfWidth)
	p.MinInsert, p.MaxInsert = lo, hi
	p.samples = p.samples[:0]
}

// InsertSizeStats reports the current acceptance window, for the stats
// footer / diagnostics.
func (p *InsertSizeAligner) InsertSizeStats() (min, max int) {
	return p.bounds()
}

// minRelearnHalfWidth is the smallest acceptance half-width a relearned
// insert-size window is allowed to shrink to, so a near-zero-variance
// sample doesn't produce a window that rejects its own future observations.
const minRelearnHalfWidth = 50

func separation(a, b record.GenomeLocation) int {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return int(d)
}

// EstimateInsertSize computes the mean/stdev of an observed insert-size
// sample; InsertSizeAligner.observe calls this once enough confidently-paired
// reads have accumulated to re-derive its acceptance window.
func EstimateInsertSize(samples []int) (mean, stdev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean = sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	stdev = math.Sqrt(sq / float64(len(samples)))
	return mean, stdev
}
