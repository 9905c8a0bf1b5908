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

// Package extension implements the extension hook from spec §9 Design
// Notes: the source treats it as a cloneable observer, one copy per
// thread, each keeping thread-local stats extras. Re-expressed here as a
// factory plus a per-thread observer interface, rather than a single
// shared observer object: the factory runs at iteration granularity and
// hands each worker its own Observer before that worker starts, so
// BeginThread/FinishThread never need synchronization against a sibling
// worker's calls. No deep cloning of behavior is needed because Go
// interfaces already give every worker an independent value.
package extension

import (
	"strconv"
	"sync"
)

// Factory is the capability AlignerContext drives at iteration
// granularity: once per process (Initialize/Finalize), once per
// iteration (BeginIteration/FinishIteration/ExtraStats), and once per
// worker to mint that worker's Observer.
type Factory interface {
	// Initialize runs once, before the first iteration.
	Initialize() error

	// BeginIteration runs once per iteration, after stats reset and before
	// the worker pool starts.
	BeginIteration() error

	// NewObserver returns the Observer worker workerID should drive
	// through its own lifecycle this iteration. Called from the driver
	// goroutine just before that worker's goroutine starts; the returned Observer is
	// used only by that one worker goroutine.
	NewObserver(workerID int) Observer

	// FinishIteration runs once per iteration, after the worker pool has
	// joined and before the writer supplier is closed.
	FinishIteration() error

	// ExtraStats returns additional key/value pairs to fold into the
	// human-readable stats footer (spec §4.5's "extra_stats" hook).
	ExtraStats() map[string]string

	// ExtraOptions returns additional CLI flag names this extension
	// wants surfaced, mapped to their default value rendered as a
	// string (spec §9's "extra_options" hook). AlignerContext only
	// reports these; it neither parses nor consumes them itself.
	ExtraOptions() map[string]string

	// Finalize runs once, after the last iteration.
	Finalize()
}

// Observer is the per-worker half of the hook. A Factory mints one per
// worker thread, so implementations need no locking of their own against
// concurrent workers - only against the Factory-level state they close
// over, if any.
type Observer interface {
	// BeginThread runs once, before this worker's read loop starts.
	BeginThread() error

	// FinishThread runs once, after this worker's read loop ends
	// (whether by exhaustion or error) and before its stats are merged
	// into the shared total.
	FinishThread()
}

// Noop is a Factory that does nothing at every call site; it is the
// default AlignerContext uses when the caller supplies no extension.
type Noop struct{}

func (Noop) Initialize() error                    { return nil }
func (Noop) BeginIteration() error                { return nil }
func (Noop) NewObserver(int) Observer             { return noopObserver{} }
func (Noop) FinishIteration() error               { return nil }
func (Noop) ExtraStats() map[string]string        { return nil }
func (Noop) ExtraOptions() map[string]string      { return nil }
func (Noop) Finalize()                            {}

type noopObserver struct{}

func (noopObserver) BeginThread() error { return nil }
func (noopObserver) FinishThread()      {}

// Counting is a small reference Factory used by tests: it counts how many
// iterations ran and how many workers began and finished, guarding those
// counters with a mutex since the workers' Observers still update shared
// state concurrently even though each Observer instance is private to one
// goroutine.
type Counting struct {
	mu sync.Mutex

	Iterations   int
	ThreadsBegun int
	ThreadsEnded int
}

func (c *Counting) Initialize() error { return nil }

func (c *Counting) BeginIteration() error {
	c.mu.Lock()
	c.Iterations++
	c.mu.Unlock()
	return nil
}

func (c *Counting) NewObserver(workerID int) Observer {
	return &countingObserver{parent: c}
}

func (c *Counting) FinishIteration() error { return nil }

func (c *Counting) ExtraStats() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]string{
		"iterations":    strconv.Itoa(c.Iterations),
		"threads_begun": strconv.Itoa(c.ThreadsBegun),
		"threads_ended": strconv.Itoa(c.ThreadsEnded),
	}
}

func (c *Counting) ExtraOptions() map[string]string { return nil }

func (c *Counting) Finalize() {}

// countingObserver is the per-worker Observer Counting.NewObserver mints;
// it reports back into the shared, mutex-guarded Counting instance.
type countingObserver struct {
	parent *Counting
}

func (o *countingObserver) BeginThread() error {
	o.parent.mu.Lock()
	o.parent.ThreadsBegun++
	o.parent.mu.Unlock()
	return nil
}

func (o *countingObserver) FinishThread() {
	o.parent.mu.Lock()
	o.parent.ThreadsEnded++
	o.parent.mu.Unlock()
}
