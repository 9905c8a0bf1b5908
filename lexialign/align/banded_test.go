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
	"testing"

	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/record"
)

func TestAlignExactMatchIsSingleHit(t *testing.T) {
	ref := []byte("ACGTTGCAAGCTTCGAGGATCCTTAAGGCCATGCGTACCGATTACAGGTCAATGCCTAGGCATC")
	idx := genome.NewInMemory("chr1", ref, 20)
	a := NewBandedAligner(idx)

	read := record.Get()
	defer record.Put(read)
	read.Bases = append(read.Bases, ref[8:8+20]...)

	var out record.SingleAlignmentResult
	if err := a.Align(read, 2, 1, &out); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if out.Status != record.SingleHit {
		t.Fatalf("status = %v, want SingleHit", out.Status)
	}
	if out.Score != 0 {
		t.Fatalf("score = %d, want 0", out.Score)
	}
	if out.MAPQ != record.MaxMAPQ {
		t.Fatalf("mapq = %d, want %d for an exact unique hit", out.MAPQ, record.MaxMAPQ)
	}
}

func TestAlignTooShortRead(t *testing.T) {
	// Length-gating happens above this layer (spec §3), so BandedAligner
	// itself must not crash on a short read; its candidate windows are as
	// long as the read, so a short read is simply compared against them.
	ref := []byte("ACGTACGTACGTACGTACGTACGT")
	idx := genome.NewInMemory("chr1", ref, 20)
	a := NewBandedAligner(idx)

	read := record.Get()
	defer record.Put(read)
	read.Bases = append(read.Bases, ref[0:4]...)

	var out record.SingleAlignmentResult
	if err := a.Align(read, 2, 1, &out); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if out.Status == record.SingleHit && out.Score != 0 {
		t.Fatalf("unexpected non-zero score for a matched short window: %d", out.Score)
	}
}

func TestAlignScoreNeverExceedsBudget(t *testing.T) {
	ref := make([]byte, 4000)
	bases := []byte("ACGT")
	for i := range ref {
		ref[i] = bases[i%4]
	}
	idx := genome.NewInMemory("chr1", ref, 20)
	a := NewBandedAligner(idx)

	read := record.Get()
	defer record.Put(read)
	read.Bases = append(read.Bases, []byte("TTTTTTTTTTTTTTTTTTTT")...) // unlikely to match well

	maxDist, extra := 3, 2
	var out record.SingleAlignmentResult
	if err := a.Align(read, maxDist, extra, &out); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if out.Status != record.NotFound && out.Score > maxDist+extra {
		t.Fatalf("score %d exceeds budget %d (spec invariant 2)", out.Score, maxDist+extra)
	}
}

func TestNewBandedAlignerOnNullIndexAlwaysNotFound(t *testing.T) {
	a := NewBandedAligner(genome.Null)
	read := record.Get()
	defer record.Put(read)
	read.Bases = append(read.Bases, []byte("ACGTACGTACGTACGTACGT")...)

	var out record.SingleAlignmentResult
	if err := a.Align(read, 2, 1, &out); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if out.Status != record.NotFound {
		t.Fatalf("status = %v, want NotFound for the pass-through sentinel", out.Status)
	}
	if out.Location != record.InvalidLocation {
		t.Fatalf("location = %v, want Invalid (spec invariant 1)", out.Location)
	}
}
