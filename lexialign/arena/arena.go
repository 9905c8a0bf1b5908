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

// Package arena implements the sized-arena abstraction from spec §9
// Design Notes ("Big-allocator pattern"): a Reservation describes how many
// bytes a worker's aligner state needs before any of it is allocated, and
// an Arena is a single bump region carved up to satisfy that reservation.
// Destroying the Arena releases every byte handed out from it at once,
// instead of tracking each per-worker allocation individually.
package arena

import "github.com/pkg/errors"

// Reservation is the byte budget one worker's aligner state needs, broken
// down by the DP row buffers and the secondary-hit tree so a caller can
// see where the budget goes (spec §9: "reservation(params) -> bytes").
type Reservation struct {
	RowBuffers int // BandedAligner's prev/cur row buffers, sized by max_dist+extra_search_depth
	Secondary  int // SecondaryBuffer backing storage, sized by max_secondary_alignments
}

// Bytes is the total size an Arena built from this Reservation must hold.
func (r Reservation) Bytes() int { return r.RowBuffers + r.Secondary }

// Reserve computes the Reservation for one worker given the run's bounds
// (spec §5: "sized via getBigAllocatorReservation(...) called before
// allocation"). bandWidth is max_dist+extra_search_depth; secondaryCap is
// max_secondary_alignments.
func Reserve(bandWidth, secondaryCap int) Reservation {
	const bytesPerCell = 8 // one int64 edit-distance cell per DP row entry
	const bytesPerHit = 32 // record.SecondaryHit plus tree node overhead, rounded up

	width := 2*bandWidth + 1
	return Reservation{
		RowBuffers: 2 * width * bytesPerCell, // two rows: prev and cur
		Secondary:  secondaryCap * bytesPerHit,
	}
}

// Arena is a single bump-allocated byte region; Alloc carves
// monotonically-increasing slices out of it and never frees individually.
// The whole region is released at once by dropping the Arena, mirroring
// the source's single bump allocator per worker (spec §9).
type Arena struct {
	buf    []byte
	offset int
}

// New allocates an Arena of exactly res.Bytes() bytes; no alignment pad is
// added.
func New(res Reservation) *Arena {
	return &Arena{buf: make([]byte, res.Bytes())}
}

// Alloc returns an n-byte slice carved from the arena, or an error if the
// reservation was undersized. A reservation shortfall here is a
// programming error (the caller mis-sized its own Reserve call), not a
// runtime resource failure.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if a.offset+n > len(a.buf) {
		return nil, errors.Errorf("arena: reservation exhausted: need %d more bytes, have %d", n, len(a.buf)-a.offset)
	}
	b := a.buf[a.offset : a.offset+n]
	a.offset += n
	return b, nil
}

// Remaining reports how many bytes are still available in the arena.
func (a *Arena) Remaining() int { return len(a.buf) - a.offset }

// Reset rewinds the arena to empty without releasing its backing storage,
// so a worker can reuse the same Arena across reads within one iteration.
func (a *Arena) Reset() { a.offset = 0 }
