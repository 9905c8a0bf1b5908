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

// Package context implements AlignerContext (spec §2/§4.2): the top-level
// driver that parses options, loads the genome index, launches the worker
// pool, and reports statistics. Config carries the parse contract's
// alignment-relevant fields (positional index dir + input list terminated
// by a bare comma), independent of the CLI flag surface in cmd/.
package context

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/shenwei356/lexialign/lexialign/reader"
	"github.com/shenwei356/lexialign/lexialign/record"
)

// Mode selects the driver subtype (spec §4.2 "type_specific_begin_iteration
// distinct for single vs paired drivers").
type Mode uint8

const (
	ModeSingle Mode = iota
	ModePaired
)

// Config holds every option AlignerContext.initialize/beginIteration reads
// (spec §4.2, §6). It is built once by cmd/'s cobra layer and never mutated
// after Config.Validate succeeds.
type Config struct {
	Mode Mode

	IndexDir   string
	Inputs     []string // input files in command-line order
	MateInputs []string // second-mate files, paired mode only

	MapIndex     bool
	PrefetchIndex bool

	MaxHits                            int
	MaxDist                            int
	ExtraSearchDepth                   int
	MaxSecondaryAlignments             int
	MaxSecondaryAdditionalEditDistance int

	NumThreads    int
	Clipping      reader.ClippingPolicy
	MinReadLength int

	// SeparateMode selects SeparateEngine over ChimericEngine for paired
	// runs (spec §4.4: mate-pair libraries where insert-size modeling
	// would mislead).
	SeparateMode bool

	SortOutput bool
	OutputFile string
	UseM       bool
	ReadGroup  string

	// IgnoreSecondary and IgnoreSupplementary suppress secondary-hit SAM
	// records; kept as two independent options per spec §9 Open Question
	// ("the source conflates ignore_secondary_alignments and
	// ignore_supplementary_alignments ... implementations should expose
	// both independently but default to the same value"), even though
	// this aligner (like the source) never distinguishes the two
	// categories of extra record internally.
	IgnoreSecondary     bool
	IgnoreSupplementary bool

	PerfFile string

	SkipAlignment bool // legacy escape hatch, spec §9 Design Notes

	// StrictInvariants selects strict mode for the mapq > 1000 diagnostic
	// (spec §9 Open Question): after logging and clamping, the worker that
	// saw the value stops with an error and the iteration fails.
	StrictInvariants bool
}

// DefaultConfig returns a Config with the spec's stated defaults (spec §6,
// §3): num_threads = hardware thread count, max_secondary_alignments = 1
// (at most one secondary hit is reported beside the best one).
func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:                   mode,
		NumThreads:             runtime.NumCPU(),
		MaxHits:                16,
		MaxDist:                8,
		ExtraSearchDepth:       2,
		MaxSecondaryAlignments: 1,
		MapIndex:               true,
	}
}

// ParsePositional applies the spec §4.2 parse contract to the positional
// argument list a cobra command hands us after flag parsing: the first
// argument is the index directory, subsequent arguments are input files
// terminated by a bare "," token (which, outside daemon mode, is simply
// dropped since there is only one iteration to run).
func ParsePositional(cfg *Config, args []string) error {
	if len(args) == 0 {
		return errors.New("config: missing index directory")
	}
	cfg.IndexDir = args[0]

	// built in reverse then reversed, per spec §4.2, so a future daemon
	// mode can pop iterations off the back without re-parsing.
	var rev []string
	sawStdin := false
	for _, a := range args[1:] {
		if a == "," {
			break
		}
		if a == "-" {
			if sawStdin {
				return errors.New("config: stdin (\"-\") may appear as input at most once")
			}
			sawStdin = true
		}
		rev = append([]string{a}, rev...)
	}
	inputs := make([]string, len(rev))
	for i, a := range rev {
		inputs[len(rev)-1-i] = a
	}
	if len(inputs) == 0 {
		return errors.New("config: no input files specified")
	}
	cfg.Inputs = inputs
	return nil
}

// Validate applies the spec §4.2 cross-field validation. A ConfigInvalid
// failure here means the caller returns before ever touching the index or
// input files.
func (c *Config) Validate() error {
	if c.IndexDir == "" {
		return errors.New("config: index directory not set")
	}
	if len(c.Inputs) == 0 {
		return errors.New("config: no input files specified")
	}
	if c.Mode == ModePaired && len(c.MateInputs) != len(c.Inputs) {
		return errors.New("config: paired mode requires one mate file per primary input")
	}
	if c.MaxDist+c.ExtraSearchDepth >= record.MaxK {
		return errors.Errorf("config: max_dist(%d) + extra_search_depth(%d) >= MAX_K(%d): too large of a maximum edit distance",
			c.MaxDist, c.ExtraSearchDepth, record.MaxK)
	}
	if c.MaxSecondaryAdditionalEditDistance > c.ExtraSearchDepth {
		return errors.Errorf("config: max_secondary_additional_edit_distance(%d) > extra_search_depth(%d)",
			c.MaxSecondaryAdditionalEditDistance, c.ExtraSearchDepth)
	}
	if c.NumThreads < 1 {
		return errors.New("config: num_threads must be >= 1")
	}
	return nil
}
