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

package writer

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/record"
)

func newTestIndex(t *testing.T) *genome.Index {
	t.Helper()
	ref := []byte("ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT")
	return genome.NewInMemory("chr1", ref, 20)
}

func countRecordLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "@") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func TestWriteSingleEmitsOneRecordPerSecondaryHit(t *testing.T) {
	idx := newTestIndex(t)
	out := filepath.Join(t.TempDir(), "out.sam")

	sup, err := NewSupplier(out, idx, Options{Format: FormatSAM})
	if err != nil {
		t.Fatalf("NewSupplier: %v", err)
	}

	w := sup.GetWriter()
	read := record.Get()
	read.ID = append(read.ID, "read1"...)
	read.Bases = append(read.Bases, "ACGTACGTACGTACGTACGT"...)

	res := &record.SingleAlignmentResult{
		Status:   record.MultipleHits,
		Location: 0,
		Score:    0,
		Secondary: []record.SecondaryHit{
			{Location: 4, Score: 1},
			{Location: 8, Score: 2},
		},
	}

	if err := w.WriteSingle(read, res, idx); err != nil {
		t.Fatalf("WriteSingle: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}
	if err := sup.Close(); err != nil {
		t.Fatalf("Supplier.Close: %v", err)
	}

	lines := countRecordLines(t, out)
	if len(lines) != 3 {
		t.Fatalf("got %d records, want 3 (1 primary + 2 secondary), lines=%v", len(lines), lines)
	}

	secondaryCount := 0
	for _, l := range lines {
		fields := strings.Split(l, "\t")
		if len(fields) < 2 {
			continue
		}
		if fields[1] == "256" || fields[1] == "272" {
			secondaryCount++
		}
	}
	if secondaryCount != 2 {
		t.Fatalf("expected 2 records flagged secondary, got %d in %v", secondaryCount, lines)
	}
}

func TestWriteSingleIgnoreSecondarySuppressesExtraRecords(t *testing.T) {
	idx := newTestIndex(t)
	out := filepath.Join(t.TempDir(), "out.sam")

	sup, err := NewSupplier(out, idx, Options{Format: FormatSAM, IgnoreSecondary: true})
	if err != nil {
		t.Fatalf("NewSupplier: %v", err)
	}

	w := sup.GetWriter()
	read := record.Get()
	read.ID = append(read.ID, "read1"...)
	read.Bases = append(read.Bases, "ACGTACGTACGTACGTACGT"...)

	res := &record.SingleAlignmentResult{
		Status:   record.MultipleHits,
		Location: 0,
		Score:    0,
		Secondary: []record.SecondaryHit{
			{Location: 4, Score: 1},
		},
	}

	if err := w.WriteSingle(read, res, idx); err != nil {
		t.Fatalf("WriteSingle: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}
	if err := sup.Close(); err != nil {
		t.Fatalf("Supplier.Close: %v", err)
	}

	lines := countRecordLines(t, out)
	if len(lines) != 1 {
		t.Fatalf("got %d records, want 1 (IgnoreSecondary must drop the rest), lines=%v", len(lines), lines)
	}
}

func TestWriteSingleStampsConfiguredReadGroup(t *testing.T) {
	idx := newTestIndex(t)
	out := filepath.Join(t.TempDir(), "out.sam")

	sup, err := NewSupplier(out, idx, Options{Format: FormatSAM, ReadGroup: "rg1"})
	if err != nil {
		t.Fatalf("NewSupplier: %v", err)
	}

	w := sup.GetWriter()
	read := record.Get()
	read.ID = append(read.ID, "read1"...)
	read.Bases = append(read.Bases, "ACGTACGTACGTACGTACGT"...)

	res := &record.SingleAlignmentResult{Status: record.SingleHit, Location: 0, Score: 0}

	if err := w.WriteSingle(read, res, idx); err != nil {
		t.Fatalf("WriteSingle: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}
	if err := sup.Close(); err != nil {
		t.Fatalf("Supplier.Close: %v", err)
	}

	found := false
	for _, l := range countRecordLines(t, out) {
		if strings.Contains(l, "RG:Z:rg1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an RG:Z:rg1 aux tag in the output, got none")
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	headerHasRG := false
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "@RG") {
			headerHasRG = true
		}
	}
	if !headerHasRG {
		t.Fatalf("expected an @RG header line when ReadGroup is configured")
	}
}
