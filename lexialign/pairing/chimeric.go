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

// Package pairing implements the two-layer paired-alignment strategy of
// spec §2/§4.3-4.4: ChimericEngine (paired-first with single-end fallback)
// and SeparateEngine (always independent, for mate-pair libraries).
package pairing

import (
	"time"

	"github.com/shenwei356/lexialign/lexialign/align"
	"github.com/shenwei356/lexialign/lexialign/record"
	"github.com/shenwei356/lexialign/lexialign/stats"
)

// Config carries the alignment-semantics options ChimericEngine and
// SeparateEngine both need (spec §4.3/§4.4).
type Config struct {
	MinReadLength                       int
	MaxDist                             int
	ExtraSearchDepth                    int
	MaxSecondaryAlignments              int
	MaxSecondaryAdditionalEditDistance  int
	StrictInvariants                    bool // spec §9 Open Question: strict aborts, permissive logs+continues
}

// Engine is the capability both ChimericEngine and SeparateEngine
// implement (spec §2 "align(r0, r1, result, secondary_budgets...)").
type Engine interface {
	Align(r0, r1 *record.Read, out *record.PairedAlignmentResult, sec0, sec1 *align.SecondaryBuffer, st *stats.Stats) error
}

// ChimericEngine runs the paired aligner first; on failure to find a
// confident pair it falls back to independent single-end alignment of
// each mate (spec §4.3).
type ChimericEngine struct {
	Paired align.PairedAligner
	Single align.SingleAligner
	cfg    Config
}

// NewChimericEngine returns a ChimericEngine.
func NewChimericEngine(paired align.PairedAligner, single align.SingleAligner, cfg Config) *ChimericEngine {
	return &ChimericEngine{Paired: paired, Single: single, cfg: cfg}
}

// Align implements Engine.
func (e *ChimericEngine) Align(r0, r1 *record.Read, out *record.PairedAlignmentResult, sec0, sec1 *align.SecondaryBuffer, st *stats.Stats) error {
	out.Reset()

	tooShort0 := r0.DataLength() < e.cfg.MinReadLength
	tooShort1 := r1.DataLength() < e.cfg.MinReadLength
	if tooShort0 {
		out.Mate[0].Status = record.NotFound
	}
	if tooShort1 {
		out.Mate[1].Status = record.NotFound
	}
	if tooShort0 && tooShort1 {
		return nil // spec §4.3 step 1: both too short, zeroed result
	}

	if !tooShort0 && !tooShort1 {
		jointStart := time.Now()
		if err := e.Paired.AlignPair(r0, r1, e.cfg.MaxDist, e.cfg.ExtraSearchDepth, out); err != nil {
			return err
		}
		out.NanosInAlignTogether = time.Since(jointStart).Nanoseconds()
		out.NLVCalls++
		st.RecordLVCall()
		if out.FromAlignTogether && out.AlignedAsPair {
			if err := align.ValidateMAPQ(&out.Mate[0], e.cfg.StrictInvariants, st); err != nil {
				return err
			}
			if err := align.ValidateMAPQ(&out.Mate[1], e.cfg.StrictInvariants, st); err != nil {
				return err
			}
			if out.Mate[0].Status == record.NotFound || out.Mate[1].Status == record.NotFound {
				// spec §3 invariant: from_align_together implies neither
				// mate is NotFound. A collaborator that violates this is
				// an InternalInvariantViolated (spec §7); repair rather
				// than propagate a contradictory record.
				out.FromAlignTogether = false
				out.AlignedAsPair = false
			} else {
				return nil
			}
		}
	}

	// Fallback: align mates independently (spec §4.3 step 4).
	out.FromAlignTogether = false
	out.AlignedAsPair = false

	if !tooShort0 {
		if err := e.Single.Align(r0, e.cfg.MaxDist, e.cfg.ExtraSearchDepth, &out.Mate[0]); err != nil {
			return err
		}
		out.NLVCalls++
		st.RecordLVCall()
	}
	if !tooShort1 {
		if err := e.Single.Align(r1, e.cfg.MaxDist, e.cfg.ExtraSearchDepth, &out.Mate[1]); err != nil {
			return err
		}
		out.NLVCalls++
		st.RecordLVCall()
	}

	drainSecondary(&out.Mate[0], sec0, e.cfg, st)
	drainSecondary(&out.Mate[1], sec1, e.cfg, st)
	out.Overflowed = (sec0 != nil && sec0.Overflowed) || (sec1 != nil && sec1.Overflowed)
	out.NSmallHits = smallHitsOf(sec0) + smallHitsOf(sec1)

	if err := align.ValidateMAPQ(&out.Mate[0], e.cfg.StrictInvariants, st); err != nil {
		return err
	}
	if err := align.ValidateMAPQ(&out.Mate[1], e.cfg.StrictInvariants, st); err != nil {
		return err
	}

	return nil
}

// drainSecondary packs a mate's raw secondary hits through the bounded
// buffer (spec §4.3 "Secondary alignments from single-end fallback are
// written into the caller-supplied buffer") and writes the survivors back.
func drainSecondary(res *record.SingleAlignmentResult, buf *align.SecondaryBuffer, cfg Config, st *stats.Stats) {
	if buf == nil {
		return
	}
	for _, hit := range res.Secondary {
		if hit.Score > res.Score+cfg.MaxSecondaryAdditionalEditDistance {
			buf.SmallHits++
			continue
		}
		buf.Add(hit)
	}
	res.Secondary = buf.Hits()
	if len(res.Secondary) > cfg.MaxSecondaryAlignments {
		res.Secondary = res.Secondary[:cfg.MaxSecondaryAlignments]
	}
	if buf.Overflowed {
		st.RecordSecondaryOverflow()
	}
}

// smallHitsOf reports how many candidates buf rejected as outside the
// edit-distance band (spec §3 nSmallHits), or 0 if buf is nil.
func smallHitsOf(buf *align.SecondaryBuffer) int {
	if buf == nil {
		return 0
	}
	return buf.SmallHits
}

