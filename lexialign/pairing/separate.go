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

package pairing

import (
	"github.com/shenwei356/lexialign/lexialign/align"
	"github.com/shenwei356/lexialign/lexialign/record"
	"github.com/shenwei356/lexialign/lexialign/stats"
)

// SeparateEngine always aligns mates independently (spec §4.4, for
// mate-pair/long-jump libraries where paired seeding does not help). It
// never sets FromAlignTogether, but still marks AlignedAsPair true when
// both mates are found so downstream orientation/insert-size reporting
// still has something to report.
type SeparateEngine struct {
	Single align.SingleAligner
	cfg    Config
}

// NewSeparateEngine returns a SeparateEngine.
func NewSeparateEngine(single align.SingleAligner, cfg Config) *SeparateEngine {
	return &SeparateEngine{Single: single, cfg: cfg}
}

// Align implements Engine.
func (e *SeparateEngine) Align(r0, r1 *record.Read, out *record.PairedAlignmentResult, sec0, sec1 *align.SecondaryBuffer, st *stats.Stats) error {
	out.Reset()
	out.FromAlignTogether = false

	tooShort0 := r0.DataLength() < e.cfg.MinReadLength
	tooShort1 := r1.DataLength() < e.cfg.MinReadLength

	if !tooShort0 {
		if err := e.Single.Align(r0, e.cfg.MaxDist, e.cfg.ExtraSearchDepth, &out.Mate[0]); err != nil {
			return err
		}
		out.NLVCalls++
		st.RecordLVCall()
	} else {
		out.Mate[0].Status = record.NotFound
	}

	if !tooShort1 {
		if err := e.Single.Align(r1, e.cfg.MaxDist, e.cfg.ExtraSearchDepth, &out.Mate[1]); err != nil {
			return err
		}
		out.NLVCalls++
		st.RecordLVCall()
	} else {
		out.Mate[1].Status = record.NotFound
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

	// spec §4.4: aligned_as_pair reflects "both mates placed", regardless
	// of whether they were aligned together. No chimeric MAPQ penalty is
	// applied here since the two searches never shared seeding context.
	out.AlignedAsPair = out.Mate[0].Status != record.NotFound && out.Mate[1].Status != record.NotFound

	return nil
}
