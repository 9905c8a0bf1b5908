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
	"sync/atomic"

	"github.com/biogo/store/llrb"
	"github.com/shenwei356/lexialign/lexialign/record"
)

// SecondaryBuffer bounds the secondary alignments reported for a single
// read to at most Capacity hits, each within Band of the best score (spec
// §3 "Secondary alignments written for a read have edit distance <= best +
// max_secondary_additional_edit_distance, and there are at most
// max_secondary_alignments of them"). It is backed by a left-leaning
// red-black tree so the worst-scoring hit can be evicted in O(log n) as
// better hits arrive mid-alignment, rather than re-sorting a slice after
// every insertion.
type SecondaryBuffer struct {
	Capacity int
	Band     int

	best int
	tree llrb.Tree

	// Overflowed is set once a hit had to be dropped because the buffer
	// was already full of better-or-equal hits (spec §4.3 edge case,
	// §7 BudgetOverflow: "clamp and record").
	Overflowed bool

	// SmallHits counts candidates offered to Add that never entered the
	// tree because they fell outside the edit-distance band around the
	// best score seen so far — too weak a signal to be a real secondary
	// hit (spec §3 data model's nSmallHits diagnostic counter).
	SmallHits int
}

// NewSecondaryBuffer returns an empty buffer.
func NewSecondaryBuffer(capacity, band int) *SecondaryBuffer {
	return &SecondaryBuffer{Capacity: capacity, Band: band, best: -1}
}

// secondaryEntry adapts a record.SecondaryHit to llrb.Comparable, ordering
// by ascending score (best first) so the tree's Max, the worst hit, is
// always the eviction candidate.
type secondaryEntry struct {
	record.SecondaryHit
	seq int // insertion sequence, breaks score ties deterministically
}

func (e *secondaryEntry) Compare(b llrb.Comparable) int {
	o := b.(*secondaryEntry)
	if e.Score != o.Score {
		return e.Score - o.Score
	}
	return e.seq - o.seq
}

var insertionSeq int64

// Add offers a hit to the buffer. If the buffer is at capacity and hit is
// no better than the current worst kept hit, it is dropped and Overflowed
// is set.
func (b *SecondaryBuffer) Add(hit record.SecondaryHit) {
	if b.best < 0 || hit.Score < b.best {
		b.best = hit.Score
	}

	if hit.Score > b.best+b.Band {
		b.SmallHits++
		return // outside the edit-distance band, not a real secondary hit
	}

	entry := &secondaryEntry{SecondaryHit: hit, seq: int(atomic.AddInt64(&insertionSeq, 1))}

	if b.tree.Len() < b.Capacity {
		b.tree.Insert(entry)
		return
	}

	worst := b.tree.Max().(*secondaryEntry)
	if entry.Compare(worst) < 0 {
		b.tree.Delete(worst)
		b.tree.Insert(entry)
	}
	b.Overflowed = true
}

// Hits drains the buffer into ascending-score order, re-filtering against
// the final best score in case it improved after some hits were added
// (Add only knows the best-so-far at insertion time).
func (b *SecondaryBuffer) Hits() []record.SecondaryHit {
	out := make([]record.SecondaryHit, 0, b.tree.Len())
	b.tree.Do(func(c llrb.Comparable) (done bool) {
		e := c.(*secondaryEntry)
		if e.Score <= b.best+b.Band {
			out = append(out, e.SecondaryHit)
		}
		return false
	})
	return out
}

// Len reports how many hits are currently retained.
func (b *SecondaryBuffer) Len() int { return b.tree.Len() }
