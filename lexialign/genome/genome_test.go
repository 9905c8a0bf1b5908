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

package genome

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewInMemoryRoundTripsWindowBases(t *testing.T) {
	idx := NewInMemory("chr1", []byte("ACGTACGTAC"), 6)

	window, ok := idx.WindowBases(2, 4)
	if !ok {
		t.Fatalf("WindowBases(2,4) returned ok=false")
	}
	if string(window) != "GTAC" {
		t.Fatalf("WindowBases(2,4) = %q, want %q", window, "GTAC")
	}
}

func TestWindowBasesRejectsOutOfRangeWindow(t *testing.T) {
	idx := NewInMemory("chr1", []byte("ACGT"), 4)
	if _, ok := idx.WindowBases(2, 10); ok {
		t.Fatalf("expected a window past the end of the reference to be rejected")
	}
	if _, ok := idx.WindowBases(-1, 2); ok {
		t.Fatalf("expected a negative start to be rejected")
	}
}

func TestContigForResolvesAcrossMultipleContigs(t *testing.T) {
	idx := &Index{
		basesCount: 30,
		Contigs: []Contig{
			{Name: "chr1", Offset: 0, Length: 10},
			{Name: "chr2", Offset: 10, Length: 20},
		},
	}

	c, off, ok := idx.ContigFor(15)
	if !ok || c.Name != "chr2" || off != 5 {
		t.Fatalf("ContigFor(15) = %+v, %d, %v; want chr2, 5, true", c, off, ok)
	}

	if _, _, ok := idx.ContigFor(30); ok {
		t.Fatalf("ContigFor(30) should be out of range (basesCount=30)")
	}
}

func TestIsAmbiguousDefaultsToFalseWithoutATable(t *testing.T) {
	idx := NewInMemory("chr1", []byte("ACGT"), 4)
	if idx.IsAmbiguous(0) {
		t.Fatalf("an in-memory index built without an ambiguous-base table must report no ambiguity")
	}
}

func TestNullSentinelIsSideEffectFree(t *testing.T) {
	if !Null.IsNull() {
		t.Fatalf("Null.IsNull() = false, want true")
	}
	if Null.BasesCount() != 0 {
		t.Fatalf("Null.BasesCount() = %d, want 0", Null.BasesCount())
	}
	if err := Null.Close(); err != nil {
		t.Fatalf("Null.Close() = %v, want nil", err)
	}
}

func TestBuildFromFASTAThenLoadRoundTripsAmbiguousRuns(t *testing.T) {
	dir := t.TempDir()
	fastaPath := filepath.Join(dir, "ref.fasta")
	fasta := ">chr1\nACGTNNNNACGT\n"
	if err := os.WriteFile(fastaPath, []byte(fasta), 0644); err != nil {
		t.Fatalf("writing fasta fixture: %v", err)
	}

	outDir := filepath.Join(dir, "index")
	if err := BuildFromFASTA(fastaPath, outDir); err != nil {
		t.Fatalf("BuildFromFASTA: %v", err)
	}

	idx, ls, err := Load(outDir, false, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer idx.Close()

	if idx.BasesCount() != 12 {
		t.Fatalf("BasesCount() = %d, want 12", idx.BasesCount())
	}
	if ls.BasesCount != 12 {
		t.Fatalf("LoadStats.BasesCount = %d, want 12", ls.BasesCount)
	}

	for i := int64(4); i < 8; i++ {
		if !idx.IsAmbiguous(i) {
			t.Fatalf("position %d should be within the N-run [4,8)", i)
		}
	}
	if idx.IsAmbiguous(0) || idx.IsAmbiguous(9) {
		t.Fatalf("positions outside the N-run must not be reported ambiguous")
	}
}
