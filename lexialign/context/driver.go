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

package context

import (
	"github.com/shenwei356/lexialign/lexialign/align"
	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/pairing"
	"github.com/shenwei356/lexialign/lexialign/worker"
)

// Driver is the capability interface standing in for the source's
// single/paired driver subtypes (spec §9 Subtype polymorphism): exactly the
// three operations the base driver used to leave abstract, with no
// inheritance hierarchy behind them.
type Driver interface {
	// typeSpecificBeginIteration builds whatever per-mode aligner state
	// runIterationThread will hand each worker thread.
	typeSpecificBeginIteration(idx *genome.Index, cfg Config) error
	// runIterationThread wires a freshly constructed worker.Thread with
	// this driver's aligner(s) before it starts reading.
	runIterationThread(th *worker.Thread)
	// typeSpecificNextIteration is the per-driver half of the legacy
	// nextIteration hook; see Context's doc comment.
	typeSpecificNextIteration()
}

// insertSizeReporter is an optional capability a Driver may implement to
// contribute the insert-size acceptance window to printStats. Only the
// chimeric paired driver has one.
type insertSizeReporter interface {
	insertSizeWindow() (lo, hi int, ok bool)
}

// singleDriver runs single-end reads through one BandedAligner shared by
// every worker thread.
type singleDriver struct {
	aligner *align.BandedAligner
}

func (d *singleDriver) typeSpecificBeginIteration(idx *genome.Index, cfg Config) error {
	d.aligner = align.NewBandedAligner(idx)
	return nil
}

func (d *singleDriver) runIterationThread(th *worker.Thread) {
	th.Single = d.aligner
}

func (d *singleDriver) typeSpecificNextIteration() {}

// pairedDriver runs paired-end reads through a pairing.Engine, chosen
// between the chimeric (insert-size-aware) and separate engines by
// Config.SeparateMode (spec §4.4).
type pairedDriver struct {
	single        *align.BandedAligner
	insertAligner *align.InsertSizeAligner
	engine        pairing.Engine
}

func (d *pairedDriver) typeSpecificBeginIteration(idx *genome.Index, cfg Config) error {
	d.single = align.NewBandedAligner(idx)

	minReadLength := cfg.MinReadLength
	if minReadLength <= 0 && idx != nil && !idx.IsNull() {
		minReadLength = idx.SeedLength
	}
	pairCfg := pairing.Config{
		MinReadLength:                      minReadLength,
		MaxDist:                            cfg.MaxDist,
		ExtraSearchDepth:                   cfg.ExtraSearchDepth,
		MaxSecondaryAlignments:             cfg.MaxSecondaryAlignments,
		MaxSecondaryAdditionalEditDistance: cfg.MaxSecondaryAdditionalEditDistance,
		StrictInvariants:                   cfg.StrictInvariants,
	}

	if cfg.SeparateMode {
		d.engine = pairing.NewSeparateEngine(d.single, pairCfg)
		return nil
	}

	insertAligner := align.NewInsertSizeAligner(d.single, 0, 2000)
	insertAligner.RelearnAfter = 200
	d.insertAligner = insertAligner
	d.engine = pairing.NewChimericEngine(insertAligner, d.single, pairCfg)
	return nil
}

func (d *pairedDriver) runIterationThread(th *worker.Thread) {
	th.Single = d.single
	th.Paired = d.engine
}

func (d *pairedDriver) typeSpecificNextIteration() {}

func (d *pairedDriver) insertSizeWindow() (lo, hi int, ok bool) {
	if d.insertAligner == nil {
		return 0, 0, false
	}
	lo, hi = d.insertAligner.InsertSizeStats()
	return lo, hi, true
}

// newDriver picks the concrete Driver for cfg.Mode.
func newDriver(mode Mode) Driver {
	if mode == ModePaired {
		return &pairedDriver{}
	}
	return &singleDriver{}
}
