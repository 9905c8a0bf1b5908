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

// Package record defines the data model shared by every stage of the
// alignment pipeline: reads coming off a Reader, and the alignment results
// produced for them by SingleAligner/PairedAligner implementations.
package record

import "sync"

// GenomeLocation is a 0-based offset into the concatenated reference.
// InvalidLocation marks "no location".
type GenomeLocation int64

// InvalidLocation is the sentinel for "no location", mirroring the
// Invalid location constant used throughout the alignment pipeline.
const InvalidLocation GenomeLocation = -1

// Direction is the strand a read aligned to.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "-"
	}
	return "+"
}

// Status is the outcome of aligning one read (or one mate of a pair).
type Status uint8

const (
	NotFound Status = iota
	SingleHit
	MultipleHits
	UnknownAlignment
)

func (s Status) String() string {
	switch s {
	case SingleHit:
		return "SingleHit"
	case MultipleHits:
		return "MultipleHits"
	case UnknownAlignment:
		return "UnknownAlignment"
	default:
		return "NotFound"
	}
}

// MaxMAPQ is the largest legal mapping quality (spec: mapq in [0, 70]).
const MaxMAPQ = 70

// MAPQDiagnosticThreshold is the value above which an observed mapq is a
// programming error rather than a legitimate score (spec §3, §7).
const MAPQDiagnosticThreshold = 1000

// MaxK is the compile-time cap on max_dist + extra_search_depth.
const MaxK = 64

// Read is one sequencing fragment: bases, per-base qualities and an
// identifier. Reads are pooled; call Reset before reuse.
type Read struct {
	ID       []byte
	Bases    []byte
	Quality  []byte
	Original *SingleAlignmentResult // optional original-alignment metadata, e.g. from a simulator
}

// DataLength is the number of bases in the read.
func (r *Read) DataLength() int { return len(r.Bases) }

// Reset clears a Read for reuse from a pool.
func (r *Read) Reset() {
	r.ID = r.ID[:0]
	r.Bases = r.Bases[:0]
	r.Quality = r.Quality[:0]
	r.Original = nil
}

// Pool is the shared sync.Pool for Read values, following the
// poolQuery pattern used for query buffers elsewhere in this codebase.
var Pool = &sync.Pool{New: func() interface{} {
	return &Read{
		ID:      make([]byte, 0, 128),
		Bases:   make([]byte, 0, 512),
		Quality: make([]byte, 0, 512),
	}
}}

// Get returns a Read from the pool, already Reset.
func Get() *Read {
	r := Pool.Get().(*Read)
	r.Reset()
	return r
}

// Put recycles a Read.
func Put(r *Read) {
	if r == nil {
		return
	}
	Pool.Put(r)
}

// SingleAlignmentResult is the outcome of aligning one read against the
// genome (spec §3).
type SingleAlignmentResult struct {
	Location  GenomeLocation
	Direction Direction
	Status    Status
	MAPQ      int
	Score     int // edit distance

	// Secondary holds up to max_secondary_alignments additional hits
	// within max_secondary_additional_edit_distance of Score.
	Secondary []SecondaryHit
}

// SecondaryHit is one suboptimal-but-reported alignment.
type SecondaryHit struct {
	Location  GenomeLocation
	Direction Direction
	Score     int
}

// Reset zeroes a result back to the NotFound invariant (spec §3 invariant 1).
func (s *SingleAlignmentResult) Reset() {
	s.Location = InvalidLocation
	s.Direction = Forward
	s.Status = NotFound
	s.MAPQ = 0
	s.Score = 0
	s.Secondary = s.Secondary[:0]
}

// PairedAlignmentResult is the outcome of aligning a mate pair (spec §3).
type PairedAlignmentResult struct {
	Mate [2]SingleAlignmentResult

	AlignedAsPair    bool
	FromAlignTogether bool
	NanosInAlignTogether int64

	// diagnostic counters
	NLVCalls   int
	NSmallHits int
	Overflowed bool // secondary buffer overflow, spec §4.3 edge case
}

// Reset clears a paired result for reuse.
func (p *PairedAlignmentResult) Reset() {
	p.Mate[0].Reset()
	p.Mate[1].Reset()
	p.AlignedAsPair = false
	p.FromAlignTogether = false
	p.NanosInAlignTogether = 0
	p.NLVCalls = 0
	p.NSmallHits = 0
	p.Overflowed = false
}
