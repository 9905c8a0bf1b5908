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
	"github.com/spf13/cobra"
)

var pairedCmd = &cobra.Command{
	Use:   "paired <index-dir> <mate1-inputs...> [,]",
	Short: "Align paired-end reads against a prebuilt index",
	Long: `Align paired-end reads against a prebuilt genome index.

Mate-1 files are given as positional arguments, terminated by a bare ",".
Mate-2 files are given with --mate2, one per mate-1 file, in the same
order. Pairs are aligned jointly first (ChimericEngine); when that fails
to find a confident pair each mate falls back to independent single-end
alignment. Pass --separate to always align mates independently
(SeparateEngine), appropriate for mate-pair libraries.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := configFromFlags(cmd, context.ModePaired)
		checkError(context.ParsePositional(&cfg, args))

		cfg.MateInputs = getFlagStringSlice(cmd, "mate2")
		cfg.SeparateMode = getFlagBool(cmd, "separate")
		if len(cfg.MateInputs) != len(cfg.Inputs) {
			log.Errorf("paired mode requires one --mate2 file per positional input (%d inputs, %d mate2 files)",
				len(cfg.Inputs), len(cfg.MateInputs))
			os.Exit(1)
		}
		checkError(cfg.Validate())

		ctx := context.New(cfg, extension.Noop{})
		os.Exit(ctx.Run())
	},
}

func init() {
	RootCmd.AddCommand(pairedCmd)
	addAlignFlags(pairedCmd)
	pairedCmd.Flags().StringSlice("mate2", nil,
		"mate-2 input files, one per positional (mate-1) input, in the same order")
	pairedCmd.Flags().Bool("separate", false,
		"always align mates independently instead of attempting a joint paired alignment first")
}
