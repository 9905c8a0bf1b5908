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

// Package worker implements WorkerThread (spec §2/§4.2): the unit of
// concurrency that owns one Reader, one Writer, an Aligner (single or
// paired via pairing.Engine) and a private Stats accumulator for the
// lifetime of one iteration.
package worker

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/lexialign/lexialign/align"
	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/pairing"
	"github.com/shenwei356/lexialign/lexialign/reader"
	"github.com/shenwei356/lexialign/lexialign/record"
	"github.com/shenwei356/lexialign/lexialign/stats"
	"github.com/shenwei356/lexialign/lexialign/writer"
)

// Mode selects whether a thread reads/aligns single-end or paired-end
// records (spec §4.2 initialize_thread: "obtain a Reader/ReaderPair
// appropriate to the run's mode").
type Mode uint8

const (
	ModeSingle Mode = iota
	ModePaired
)

// Thread is one WorkerThread: it owns its Reader, Writer, aligner(s) and
// Stats for the duration of one iteration and is never shared across
// goroutines (spec §5 Ownership).
type Thread struct {
	ID int

	Mode Mode

	ReaderCtx    reader.Context
	ReaderSup    *reader.Supplier
	MateFiles    []string
	WriterSup    *writer.Supplier
	Genome       *genome.Index

	Single SingleRunner
	Paired pairing.Engine

	SecondaryCap  int
	SecondaryBand int

	// StrictInvariants selects strict mode for the mapq > 1000 diagnostic
	// (spec §9 Open Question): after logging and clamping, return an error
	// that stops this thread and fails the iteration.
	StrictInvariants bool

	Stats *stats.Stats

	r *reader.Reader
	w *writer.Writer
}

// SingleRunner is the capability a Thread needs to align one read in
// single-end mode; align.SingleAligner already satisfies it.
type SingleRunner interface {
	Align(read *record.Read, maxDist, extraSearchDepth int, out *record.SingleAlignmentResult) error
}

// NewThread constructs a Thread; callers still must call InitializeThread
// before RunThread (spec §4.2's two-phase lifecycle).
func NewThread(id int, mode Mode, ctx reader.Context, stats *stats.Stats) *Thread {
	return &Thread{ID: id, Mode: mode, ReaderCtx: ctx, Stats: stats, SecondaryCap: 1, SecondaryBand: 0}
}

// InitializeThread obtains this thread's exclusively-owned Reader and
// Writer from their suppliers (spec §4.2 initialize_thread).
func (t *Thread) InitializeThread() error {
	r, err := t.ReaderSup.Partition(t.ID, t.MateFiles)
	if err != nil {
		return errors.Wrapf(err, "worker %d: obtaining reader partition", t.ID)
	}
	t.r = r
	t.w = t.WriterSup.GetWriter()
	return nil
}

// RunThread drains reads from the Reader until exhausted, aligning and
// writing each one, and updating Stats as it goes (spec §4.2 run_thread:
// "loop: read -> align -> write -> record stats, until EOF").
func (t *Thread) RunThread(maxDist, extraSearchDepth int) error {
	switch t.Mode {
	case ModePaired:
		return t.runPaired(maxDist, extraSearchDepth)
	default:
		return t.runSingle(maxDist, extraSearchDepth)
	}
}

func (t *Thread) runSingle(maxDist, extraSearchDepth int) error {
	read := record.Get()
	defer record.Put(read)
	var res record.SingleAlignmentResult

	for {
		if err := t.r.Next(t.ReaderCtx, read); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "worker %d: reading", t.ID)
		}

		start := time.Now()
		res.Reset()
		if t.ReaderCtx.IsUnalignable(read) {
			res.Status = record.NotFound
		} else if err := t.Single.Align(read, maxDist, extraSearchDepth, &res); err != nil {
			return errors.Wrapf(err, "worker %d: aligning %s", t.ID, read.ID)
		} else {
			t.Stats.RecordLVCall()
		}

		if err := align.ValidateMAPQ(&res, t.StrictInvariants, t.Stats); err != nil {
			return errors.Wrapf(err, "worker %d: read %s", t.ID, read.ID)
		}

		if len(res.Secondary) > 0 {
			buf := align.NewSecondaryBuffer(t.SecondaryCap, t.SecondaryBand)
			for _, hit := range res.Secondary {
				if hit.Score > res.Score+t.SecondaryBand {
					continue
				}
				buf.Add(hit)
			}
			res.Secondary = buf.Hits()
			if buf.Overflowed {
				t.Stats.RecordSecondaryOverflow()
			}
		}

		if err := t.w.WriteSingle(read, &res, t.Genome); err != nil {
			return errors.Wrapf(err, "worker %d: writing %s", t.ID, read.ID)
		}

		t.Stats.RecordMAPQ(res.MAPQ)
		t.Stats.RecordEditDistance(res.Score)
		t.Stats.RecordRead(res.Status != record.NotFound,
			res.Status == record.SingleHit, res.Status == record.MultipleHits, res.Status == record.NotFound,
			time.Since(start).Nanoseconds())
	}
}

func (t *Thread) runPaired(maxDist, extraSearchDepth int) error {
	pair := reader.GetPair()
	defer reader.PutPair(pair)
	r0, r1 := pair[0], pair[1]

	var out record.PairedAlignmentResult

	for {
		if err := t.r.NextPair(t.ReaderCtx, r0, r1); err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrapf(err, "worker %d: reading pair", t.ID)
		}

		start := time.Now()
		sec0 := align.NewSecondaryBuffer(t.SecondaryCap, t.SecondaryBand)
		sec1 := align.NewSecondaryBuffer(t.SecondaryCap, t.SecondaryBand)

		if err := t.Paired.Align(r0, r1, &out, sec0, sec1, t.Stats); err != nil {
			return errors.Wrapf(err, "worker %d: aligning pair %s/%s", t.ID, r0.ID, r1.ID)
		}

		if err := t.w.WritePair(r0, r1, &out, t.Genome); err != nil {
			return errors.Wrapf(err, "worker %d: writing pair %s/%s", t.ID, r0.ID, r1.ID)
		}

		if out.AlignedAsPair {
			t.Stats.RecordPair()
		}
		elapsed := time.Since(start).Nanoseconds()
		for i := range out.Mate {
			m := &out.Mate[i]
			t.Stats.RecordMAPQ(m.MAPQ)
			t.Stats.RecordEditDistance(m.Score)
			t.Stats.RecordRead(m.Status != record.NotFound,
				m.Status == record.SingleHit, m.Status == record.MultipleHits, m.Status == record.NotFound,
				elapsed/2)
		}
	}
}

// FinishThread closes this thread's Reader and Writer handles (spec §4.2
// finish_thread: "close reader; close writer; the supplier's own Close
// performs any final merge/sort once every thread has finished").
func (t *Thread) FinishThread() error {
	var err error
	if t.r != nil {
		if cerr := t.r.Close(); cerr != nil {
			err = cerr
		}
	}
	if t.w != nil {
		if cerr := t.w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
