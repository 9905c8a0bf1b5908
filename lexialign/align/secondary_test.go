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

func TestSecondaryBufferCapsCount(t *testing.T) {
	b := NewSecondaryBuffer(2, 5)
	for i := 0; i < 10; i++ {
		b.Add(record.SecondaryHit{Location: record.GenomeLocation(i), Score: i})
	}
	if b.Len() > 2 {
		t.Fatalf("Len() = %d, want <= 2 (spec max_secondary_alignments)", b.Len())
	}
	if !b.Overflowed {
		t.Fatalf("expected Overflowed to be set once more than capacity hits arrive")
	}
}

func TestSecondaryBufferKeepsBestScores(t *testing.T) {
	b := NewSecondaryBuffer(2, 5)
	b.Add(record.SecondaryHit{Location: 1, Score: 4})
	b.Add(record.SecondaryHit{Location: 2, Score: 0})
	b.Add(record.SecondaryHit{Location: 3, Score: 1})

	hits := b.Hits()
	for _, h := range hits {
		if h.Score == 4 {
			t.Fatalf("worst hit (score 4) should have been evicted once a better pair arrived")
		}
	}
}

func TestSecondaryBufferEnforcesBand(t *testing.T) {
	b := NewSecondaryBuffer(10, 1)
	b.Add(record.SecondaryHit{Location: 1, Score: 0})
	b.Add(record.SecondaryHit{Location: 2, Score: 5})

	for _, h := range b.Hits() {
		if h.Score > 0+1 {
			t.Fatalf("hit with score %d exceeds best+band (spec §3 secondary invariant)", h.Score)
		}
	}
}

func TestSecondaryBufferCountsSmallHits(t *testing.T) {
	b := NewSecondaryBuffer(10, 1)
	b.Add(record.SecondaryHit{Location: 1, Score: 0})
	b.Add(record.SecondaryHit{Location: 2, Score: 5})
	b.Add(record.SecondaryHit{Location: 3, Score: 9})

	if b.SmallHits != 2 {
		t.Fatalf("SmallHits = %d, want 2 (both out-of-band candidates rejected)", b.SmallHits)
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (only the in-band candidate retained)", b.Len())
	}
}
