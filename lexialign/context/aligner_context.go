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
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shenwei356/lexialign/lexialign/extension"
	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/indexcache"
	"github.com/shenwei356/lexialign/lexialign/logutil"
	"github.com/shenwei356/lexialign/lexialign/reader"
	"github.com/shenwei356/lexialign/lexialign/stats"
	"github.com/shenwei356/lexialign/lexialign/worker"
	"github.com/shenwei356/lexialign/lexialign/writer"
	"github.com/shenwei356/util/pathutil"
)

var log = logutil.New("context")

// Context is AlignerContext (spec §2/§4.2): the top-level driver. One
// Context runs one iteration (single call to Run); a caller that needs
// another iteration against the same loaded index calls RunOnce again.
type Context struct {
	Cfg   Config
	Cache *indexcache.Cache
	Ext   extension.Factory

	PerfWriter *os.File

	idx        *genome.Index
	readerCtx  reader.Context
	readerSup  *reader.Supplier
	writerSup  *writer.Supplier
	stats      *stats.Stats
	driver     Driver
	alignStart time.Time
	alignTime  time.Duration
}

// New returns a Context ready for Initialize.
func New(cfg Config, ext extension.Factory) *Context {
	if ext == nil {
		ext = extension.Noop{}
	}
	return &Context{Cfg: cfg, Cache: indexcache.Global, Ext: ext, stats: stats.New()}
}

// Run implements the top-level run(argv) -> exit_code contract (spec
// §4.2), already having received a parsed and Validate'd Config: initialize,
// run one iteration unless SkipAlignment, and report elapsed time.
func (c *Context) Run() int {
	wallStart := time.Now()

	if ok, err := c.Initialize(); !ok {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := c.Ext.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "extension initialize"))
		return 1
	}

	if opts := c.Ext.ExtraOptions(); len(opts) > 0 {
		names := make([]string, 0, len(opts))
		for name := range opts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			log.Infof("extension option %s: default %s", name, opts[name])
		}
	}

	if !c.Cfg.SkipAlignment {
		if err := c.RunOnce(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			c.Ext.Finalize()
			return 1
		}
	}

	c.Ext.Finalize()
	log.Infof("total elapsed: %s", time.Since(wallStart))
	return 0
}

// Initialize implements spec §4.2 initialize(): load/reuse the index,
// validate min_read_length against the index's seed length, and open the
// optional perf-trace file. Returns false with the error message already
// suitable for stderr on any failure.
func (c *Context) Initialize() (bool, error) {
	if err := c.Cfg.Validate(); err != nil {
		return false, errors.Wrap(err, "ConfigInvalid")
	}

	isDir, err := pathutil.IsDir(c.Cfg.IndexDir)
	if err != nil {
		return false, errors.Wrap(err, "ResourceLoadFailed: checking index directory")
	}
	if !isDir {
		return false, errors.Errorf("ResourceLoadFailed: index directory does not exist: %s", c.Cfg.IndexDir)
	}

	idx, err := c.Cache.LoadOrReuse(c.Cfg.IndexDir, c.Cfg.MapIndex, c.Cfg.PrefetchIndex)
	if err != nil {
		return false, errors.Wrap(err, "ResourceLoadFailed")
	}
	c.idx = idx

	if !idx.IsNull() && c.Cfg.MinReadLength > 0 && c.Cfg.MinReadLength < idx.SeedLength {
		return false, errors.Errorf("ConfigInvalid: min_read_length(%d) < index seed length(%d)",
			c.Cfg.MinReadLength, idx.SeedLength)
	}

	if c.Cfg.PerfFile != "" {
		f, err := os.OpenFile(c.Cfg.PerfFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return false, errors.Wrap(err, "ResourceLoadFailed: opening perf file")
		}
		c.PerfWriter = f
	}

	return true, nil
}

// RunOnce drives exactly one iteration: beginIteration, the worker pool,
// finishIteration, and the stats report (spec §4.2 run(): "beginIteration;
// runTask; finishIteration; emit stats header and stats"). Exposed
// separately from Run so a daemon-mode caller can invoke several
// iterations against one already-Initialize'd Context.
func (c *Context) RunOnce() error {
	if err := c.beginIteration(); err != nil {
		return err
	}
	if err := c.runTask(); err != nil {
		c.finishIteration()
		return err
	}
	if err := c.finishIteration(); err != nil {
		return err
	}
	c.printStats()
	return nil
}

func (c *Context) beginIteration() error {
	c.stats = stats.New()
	c.readerCtx = reader.NewContext(c.idx, c.Cfg.MinReadLength, c.Cfg.Clipping, c.Cfg.ReadGroup)
	c.readerSup = reader.NewSupplier(c.Cfg.Inputs)

	c.driver = newDriver(c.Cfg.Mode)
	if err := c.driver.typeSpecificBeginIteration(c.idx, c.Cfg); err != nil {
		return errors.Wrap(err, "driver begin_iteration")
	}

	if err := c.Ext.BeginIteration(); err != nil {
		return errors.Wrap(err, "extension begin_iteration")
	}

	if c.Cfg.OutputFile != "" {
		opt := writer.Options{
			Format:              writer.FormatFromPath(c.Cfg.OutputFile),
			UseM:                c.Cfg.UseM,
			SortOutput:          c.Cfg.SortOutput,
			ReadGroup:           c.Cfg.ReadGroup,
			ProgramID:           uuid.New().String(),
			IgnoreSecondary:     c.Cfg.IgnoreSecondary,
			IgnoreSupplementary: c.Cfg.IgnoreSupplementary,
		}
		sup, err := writer.NewSupplier(c.Cfg.OutputFile, c.idx, opt)
		if err != nil {
			return errors.Wrap(err, "ResourceLoadFailed: opening output")
		}
		c.writerSup = sup
	}

	c.alignStart = time.Now()
	return nil
}

// runTask dispatches num_threads WorkerThreads against the current
// iteration's Reader/Writer suppliers, joins them, and merges their
// per-thread Stats under a single mutex (spec §4.2 "finish_thread ...
// merge stats into common.stats under the supplier-internal
// synchronization").
func (c *Context) runTask() error {
	if c.writerSup == nil {
		return errors.New("ConfigInvalid: no output file configured")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	n := c.Cfg.NumThreads
	if n < 1 {
		n = 1
	}

	for i := 0; i < n; i++ {
		obs := c.Ext.NewObserver(i)

		wg.Add(1)
		go func(id int, obs extension.Observer) {
			defer wg.Done()

			mode := worker.ModeSingle
			if c.Cfg.Mode == ModePaired {
				mode = worker.ModePaired
			}
			th := worker.NewThread(id, mode, c.readerCtx, stats.New())
			th.ReaderSup = c.readerSup
			th.MateFiles = c.Cfg.MateInputs
			th.WriterSup = c.writerSup
			th.Genome = c.idx
			c.driver.runIterationThread(th)
			th.SecondaryCap = c.Cfg.MaxSecondaryAlignments
			th.SecondaryBand = c.Cfg.MaxSecondaryAdditionalEditDistance
			th.StrictInvariants = c.Cfg.StrictInvariants

			if err := obs.BeginThread(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			runErr := func() error {
				if err := th.InitializeThread(); err != nil {
					return err
				}
				if err := th.RunThread(c.Cfg.MaxDist, c.Cfg.ExtraSearchDepth); err != nil {
					return err
				}
				return th.FinishThread()
			}()

			obs.FinishThread()

			mu.Lock()
			c.stats.Merge(th.Stats)
			if runErr != nil && firstErr == nil {
				firstErr = runErr
			}
			mu.Unlock()
		}(i, obs)
	}

	wg.Wait()
	return firstErr
}

func (c *Context) finishIteration() error {
	if err := c.Ext.FinishIteration(); err != nil {
		log.Errorf("extension finish_iteration: %v", err)
	}

	if c.writerSup != nil {
		if err := c.writerSup.Close(); err != nil {
			return errors.Wrap(err, "closing output")
		}
	}

	c.alignTime = time.Since(c.alignStart)
	return nil
}

// nextIteration is the legacy hook the source calls between iterations in
// daemon mode. Single-iteration is the only supported mode here, so Run
// never calls this, but the driver capability stays in place per spec §9
// Design Notes.
func (c *Context) nextIteration() {
	if c.driver != nil {
		c.driver.typeSpecificNextIteration()
	}
}

// printStats writes the human-readable summary and, if configured, appends
// one line to the perf-trace file (spec §6 perf file format).
func (c *Context) printStats() {
	s := c.stats
	ms := c.alignTime.Milliseconds()

	log.Infof("total reads: %d, useful: %.1f%%, single: %.1f%%, multi: %.1f%%, unaligned: %.1f%%, paired: %.1f%%, %.0f reads/sec",
		s.TotalReads, s.Percentage(s.UsefulReads), s.Percentage(s.SingleHits), s.Percentage(s.MultiHits),
		s.Percentage(s.NotFound), s.Percentage(s.AlignedAsPairs), s.ReadsPerSecond(ms))

	mapqP10, mapqP50, mapqP90 := s.MAPQPercentiles()
	edP10, edP50, edP90 := s.EditDistancePercentiles()
	log.Infof("MAPQ p10/p50/p90: %.0f/%.0f/%.0f, edit distance p10/p50/p90: %.0f/%.0f/%.0f",
		mapqP10, mapqP50, mapqP90, edP10, edP50, edP90)

	if r, ok := c.driver.(insertSizeReporter); ok {
		if lo, hi, ok := r.insertSizeWindow(); ok {
			log.Infof("insert-size acceptance window: [%d, %d]", lo, hi)
		}
	}

	if extra := c.Ext.ExtraStats(); len(extra) > 0 {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			log.Infof("extension stat %s: %s", k, extra[k])
		}
	}

	if c.PerfWriter != nil {
		fmt.Fprintf(c.PerfWriter, "%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%d\t%.2f\n",
			c.Cfg.MaxHits, c.Cfg.MaxDist,
			s.Percentage(s.UsefulReads), s.Percentage(s.SingleHits), s.Percentage(s.MultiHits), s.Percentage(s.NotFound),
			s.LVCalls, s.Percentage(s.AlignedAsPairs), s.TotalReads, s.ReadsPerSecond(ms))
	}
}

// Close releases the perf file handle; the genome index itself is owned by
// the IndexCache and outlives this Context.
func (c *Context) Close() error {
	if c.PerfWriter != nil {
		return c.PerfWriter.Close()
	}
	return nil
}
