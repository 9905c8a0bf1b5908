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

package extension

import (
	"sync"
	"testing"
)

func TestCountingFactoryMintsIndependentObservers(t *testing.T) {
	f := &Counting{}

	if err := f.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := f.BeginIteration(); err != nil {
		t.Fatalf("BeginIteration: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		obs := f.NewObserver(i)
		wg.Add(1)
		go func(obs Observer) {
			defer wg.Done()
			if err := obs.BeginThread(); err != nil {
				t.Errorf("BeginThread: %v", err)
			}
			obs.FinishThread()
		}(obs)
	}
	wg.Wait()

	stats := f.ExtraStats()
	if stats["threads_begun"] != "8" || stats["threads_ended"] != "8" {
		t.Fatalf("ExtraStats = %v, want 8 begun and ended", stats)
	}
	if stats["iterations"] != "1" {
		t.Fatalf("ExtraStats[iterations] = %s, want 1", stats["iterations"])
	}
}

func TestNoopFactoryObserversAreInert(t *testing.T) {
	var f Factory = Noop{}

	if err := f.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	obs := f.NewObserver(0)
	if err := obs.BeginThread(); err != nil {
		t.Fatalf("BeginThread: %v", err)
	}
	obs.FinishThread()

	if got := f.ExtraStats(); got != nil {
		t.Fatalf("ExtraStats() = %v, want nil", got)
	}
	if got := f.ExtraOptions(); got != nil {
		t.Fatalf("ExtraOptions() = %v, want nil", got)
	}
}
