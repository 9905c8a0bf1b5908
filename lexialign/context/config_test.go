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

import "testing"

func TestParsePositionalStopsAtBareComma(t *testing.T) {
	var cfg Config
	err := ParsePositional(&cfg, []string{"idxdir", "a.fq", "b.fq", ",", "ignored.fq"})
	if err != nil {
		t.Fatalf("ParsePositional returned error: %v", err)
	}
	if cfg.IndexDir != "idxdir" {
		t.Fatalf("IndexDir = %q, want idxdir", cfg.IndexDir)
	}
	if len(cfg.Inputs) != 2 || cfg.Inputs[0] != "a.fq" || cfg.Inputs[1] != "b.fq" {
		t.Fatalf("Inputs = %v, want [a.fq b.fq]", cfg.Inputs)
	}
}

func TestParsePositionalRejectsDuplicateStdin(t *testing.T) {
	var cfg Config
	err := ParsePositional(&cfg, []string{"idxdir", "-", "-"})
	if err == nil {
		t.Fatalf("expected an error for stdin specified twice")
	}
}

func TestParsePositionalRejectsNoInputs(t *testing.T) {
	var cfg Config
	err := ParsePositional(&cfg, []string{"idxdir"})
	if err == nil {
		t.Fatalf("expected an error when no input files are given")
	}
}

func TestValidateRejectsTooLargeMaxDist(t *testing.T) {
	cfg := DefaultConfig(ModeSingle)
	cfg.IndexDir = "idxdir"
	cfg.Inputs = []string{"a.fq"}
	cfg.MaxDist = 60
	cfg.ExtraSearchDepth = 10

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max_dist+extra_search_depth >= MAX_K to be rejected")
	}
}

func TestValidateRejectsSecondaryBandBeyondSearchDepth(t *testing.T) {
	cfg := DefaultConfig(ModeSingle)
	cfg.IndexDir = "idxdir"
	cfg.Inputs = []string{"a.fq"}
	cfg.MaxSecondaryAdditionalEditDistance = 5
	cfg.ExtraSearchDepth = 2

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max_secondary_additional_edit_distance > extra_search_depth to be rejected")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := DefaultConfig(ModeSingle)
	cfg.IndexDir = "idxdir"
	cfg.Inputs = []string{"a.fq"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error on a well-formed config: %v", err)
	}
}

func TestValidateRequiresMateFilesInPairedMode(t *testing.T) {
	cfg := DefaultConfig(ModePaired)
	cfg.IndexDir = "idxdir"
	cfg.Inputs = []string{"a_1.fq", "b_1.fq"}
	cfg.MateInputs = []string{"a_2.fq"}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a mismatched mate-file count to be rejected")
	}
}
