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

package cmd

import (
	"os"

	"github.com/shenwei356/lexialign/lexialign/context"
	"github.com/shenwei356/lexialign/lexialign/extension"
	"github.com/shenwei356/lexialign/lexialign/reader"
	"github.com/spf13/cobra"
)

var singleCmd = &cobra.Command{
	Use:   "single <index-dir> <inputs...> [,]",
	Short: "Align single-end reads against a prebuilt index",
	Long: `Align single-end reads against a prebuilt genome index.

Input should be (optionally gzipped) FASTQ or FASTA records from files or
stdin ("-", at most once). A bare "," argument terminates the input list.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := configFromFlags(cmd, context.ModeSingle)
		checkError(context.ParsePositional(&cfg, args))
		checkError(cfg.Validate())

		ctx := context.New(cfg, extension.Noop{})
		os.Exit(ctx.Run())
	},
}

func init() {
	RootCmd.AddCommand(singleCmd)
	addAlignFlags(singleCmd)
}

// configFromFlags builds a context.Config from the flags shared by single
// and paired (spec §6's option table).
func configFromFlags(cmd *cobra.Command, mode context.Mode) context.Config {
	cfg := context.DefaultConfig(mode)

	cfg.MaxHits = getFlagPositiveInt(cmd, "max-hits")
	cfg.MaxDist = getFlagNonNegativeInt(cmd, "max-dist")
	cfg.ExtraSearchDepth = getFlagNonNegativeInt(cmd, "extra-search-depth")
	if n := getFlagNonNegativeInt(cmd, "num-threads"); n > 0 {
		cfg.NumThreads = n
	}
	cfg.SortOutput = getFlagBool(cmd, "sort-output")
	cfg.OutputFile = getFlagString(cmd, "output-file")
	cfg.UseM = getFlagBool(cmd, "use-m")
	cfg.MinReadLength = getFlagNonNegativeInt(cmd, "min-read-length")
	cfg.MaxSecondaryAlignments = getFlagPositiveInt(cmd, "max-secondary-alignments")
	cfg.MaxSecondaryAdditionalEditDistance = getFlagNonNegativeInt(cmd, "max-secondary-additional-edit-distance")
	cfg.PerfFile = getFlagString(cmd, "perf-file")
	cfg.MapIndex = getFlagBool(cmd, "map-index")
	cfg.PrefetchIndex = getFlagBool(cmd, "prefetch-index")
	cfg.IgnoreSecondary = getFlagBool(cmd, "ignore-secondary")
	cfg.IgnoreSupplementary = getFlagBool(cmd, "ignore-supplementary")
	if !cmd.Flags().Changed("ignore-supplementary") {
		// spec §9 Open Question: default ignore_supplementary_alignments
		// to whatever ignore_secondary_alignments was set to, for
		// backward compatibility with callers that only know the one flag.
		cfg.IgnoreSupplementary = cfg.IgnoreSecondary
	}
	cfg.ReadGroup = getFlagString(cmd, "read-group")
	cfg.StrictInvariants = getFlagBool(cmd, "strict-invariants")

	switch getFlagString(cmd, "clipping") {
	case "front":
		cfg.Clipping = reader.ClipFront
	case "back":
		cfg.Clipping = reader.ClipBack
	case "both":
		cfg.Clipping = reader.ClipBoth
	default:
		cfg.Clipping = reader.ClipNone
	}

	return cfg
}

// addAlignFlags registers the option table shared by single and paired
// (spec §6).
func addAlignFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("max-hits", "h", 16,
		"max candidate locations per seed before declaring a multi-hit")
	cmd.Flags().IntP("max-dist", "d", 8,
		"max edit distance considered")
	cmd.Flags().IntP("extra-search-depth", "D", 2,
		"additional edit distance searched beyond the best hit")
	cmd.Flags().IntP("num-threads", "t", 0,
		"worker count (0 = hardware thread count)")
	cmd.Flags().BoolP("sort-output", "s", false,
		"perform a final sort pass on close")
	cmd.Flags().StringP("output-file", "o", "",
		"output path; format inferred from extension (.sam/.bam)")
	cmd.Flags().BoolP("use-m", "M", false,
		"emit CIGAR 'M' instead of '='/'X'")
	cmd.Flags().String("clipping", "none",
		"soft-clip policy for low-quality read ends: none|front|back|both")
	cmd.Flags().Int("min-read-length", 0,
		"reads shorter than this are reported NotFound (0 = index seed length)")
	cmd.Flags().Int("max-secondary-alignments", 1,
		"cap on secondary hits reported per read")
	cmd.Flags().Int("max-secondary-additional-edit-distance", 0,
		"edit-distance band for secondary hits; must be <= extra-search-depth")
	cmd.Flags().String("perf-file", "",
		"append one-line performance trace per iteration")
	cmd.Flags().Bool("map-index", true,
		"memory-map the genome index instead of reading it fully into the heap")
	cmd.Flags().Bool("prefetch-index", false,
		"hint the OS to read the memory-mapped index in ahead of first touch")
	cmd.Flags().Bool("ignore-secondary", false,
		"do not write secondary-alignment SAM records")
	cmd.Flags().Bool("ignore-supplementary", false,
		"do not write supplementary-alignment SAM records (defaults to --ignore-secondary's value)")
	cmd.Flags().String("read-group", "",
		"read group ID stamped into the SAM @RG header and each record's RG tag")
	cmd.Flags().Bool("strict-invariants", false,
		"fail the run with an error (after logging and clamping) when an internal invariant (e.g. mapq > 1000) is violated")
}
