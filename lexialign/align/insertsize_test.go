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

	"github.com/shenwei356/lexialign/lexialign/record"
)

// pairAligner is a SingleAligner stand-in that reports one mate on the
// forward strand at a fixed location and the other on the reverse strand
// separated by a caller-controlled insert size.
type pairAligner struct {
	insert int
	calls  int
}

func (p *pairAligner) Align(read *record.Read, maxDist, extraSearchDepth int, out *record.SingleAlignmentResult) error {
	out.Reset()
	out.Status = record.SingleHit
	if p.calls%2 == 0 {
		out.Location = 1000
		out.Direction = record.Forward
	} else {
		out.Location = record.GenomeLocation(1000 + p.insert)
		out.Direction = record.Reverse
	}
	p.calls++
	return nil
}

func TestInsertSizeAlignerAcceptsPairWithinWindow(t *testing.T) {
	single := &pairAligner{insert: 300}
	p := NewInsertSizeAligner(single, 100, 500)

	var out record.PairedAlignmentResult
	r0, r1 := &record.Read{}, &record.Read{}
	if err := p.AlignPair(r0, r1, 8, 2, &out); err != nil {
		t.Fatalf("AlignPair: %v", err)
	}
	if !out.AlignedAsPair || !out.FromAlignTogether {
		t.Fatalf("expected a confident joint call within [100,500], got %+v", out)
	}
}

func TestInsertSizeAlignerRejectsPairOutsideWindow(t *testing.T) {
	single := &pairAligner{insert: 5000}
	p := NewInsertSizeAligner(single, 100, 500)

	var out record.PairedAlignmentResult
	r0, r1 := &record.Read{}, &record.Read{}
	if err := p.AlignPair(r0, r1, 8, 2, &out); err != nil {
		t.Fatalf("AlignPair: %v", err)
	}
	if out.AlignedAsPair || out.FromAlignTogether {
		t.Fatalf("insert size 5000 is well outside [100,500], must not report a joint call, got %+v", out)
	}
}

func TestInsertSizeAlignerRelearnsWindowFromObservations(t *testing.T) {
	single := &pairAligner{insert: 300}
	p := NewInsertSizeAligner(single, 0, 5000)
	p.RelearnAfter = 10

	var out record.PairedAlignmentResult
	r0, r1 := &record.Read{}, &record.Read{}
	for i := 0; i < 10; i++ {
		if err := p.AlignPair(r0, r1, 8, 2, &out); err != nil {
			t.Fatalf("AlignPair: %v", err)
		}
	}

	min, max := p.InsertSizeStats()
	if min >= 300 || max <= 300 {
		t.Fatalf("expected the relearned window to bracket the observed insert size 300, got [%d,%d]", min, max)
	}
	if max-min >= 5000 {
		t.Fatalf("expected relearning to narrow the initial [0,5000] window, got [%d,%d]", min, max)
	}
}
