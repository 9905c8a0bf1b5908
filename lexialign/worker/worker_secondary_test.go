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

package worker

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/reader"
	"github.com/shenwei356/lexialign/lexialign/record"
	"github.com/shenwei356/lexialign/lexialign/stats"
	"github.com/shenwei356/lexialign/lexialign/writer"
)

// manyHitsAligner always reports a tied multi-hit with more secondary
// candidates than any reasonable SecondaryCap, so runSingle's own bounding
// (not the aligner's) is what's under test.
type manyHitsAligner struct{}

func (manyHitsAligner) Align(read *record.Read, maxDist, extraSearchDepth int, out *record.SingleAlignmentResult) error {
	out.Reset()
	out.Status = record.MultipleHits
	out.Location = 0
	out.Score = 0
	out.Secondary = []record.SecondaryHit{
		{Location: 4, Score: 0},
		{Location: 8, Score: 0},
		{Location: 12, Score: 0},
	}
	return nil
}

func countSAMRecords(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if !strings.HasPrefix(sc.Text(), "@") {
			n++
		}
	}
	return n
}

func TestRunSingleBoundsSecondaryHitsBySecondaryCap(t *testing.T) {
	dir := t.TempDir()

	fastqPath := filepath.Join(dir, "reads.fastq")
	fastq := "@read1\nACGTACGTACGTACGTACGT\n+\nIIIIIIIIIIIIIIIIIIII\n"
	if err := os.WriteFile(fastqPath, []byte(fastq), 0644); err != nil {
		t.Fatalf("writing fastq fixture: %v", err)
	}

	ref := []byte("ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT")
	idx := genome.NewInMemory("chr1", ref, 20)

	outPath := filepath.Join(dir, "out.sam")
	wsup, err := writer.NewSupplier(outPath, idx, writer.Options{Format: writer.FormatSAM})
	if err != nil {
		t.Fatalf("writer.NewSupplier: %v", err)
	}

	rctx := reader.NewContext(idx, 1, reader.ClipNone, "")
	rsup := reader.NewSupplier([]string{fastqPath})

	th := NewThread(0, ModeSingle, rctx, stats.New())
	th.ReaderSup = rsup
	th.WriterSup = wsup
	th.Genome = idx
	th.Single = manyHitsAligner{}
	th.SecondaryCap = 1
	th.SecondaryBand = 0

	if err := th.InitializeThread(); err != nil {
		t.Fatalf("InitializeThread: %v", err)
	}
	if err := th.RunThread(8, 2); err != nil {
		t.Fatalf("RunThread: %v", err)
	}
	if err := th.FinishThread(); err != nil {
		t.Fatalf("FinishThread: %v", err)
	}
	if err := wsup.Close(); err != nil {
		t.Fatalf("writer.Supplier.Close: %v", err)
	}

	got := countSAMRecords(t, outPath)
	if want := 2; got != want { // 1 primary + SecondaryCap(1) secondary
		t.Fatalf("got %d SAM records, want %d (SecondaryCap=1 must drop the extra ties)", got, want)
	}
}
