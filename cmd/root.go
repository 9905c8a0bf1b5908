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

// Package cmd is the cobra-based command line surface: `single` and
// `paired` subcommands over the lexialign/context driver.
package cmd

import (
	"fmt"
	"os"

	"github.com/shenwei356/lexialign/lexialign/logutil"
	"github.com/spf13/cobra"
)

var log = logutil.New("cmd")

// RootCmd is the top-level command, following the source's RootCmd/
// Execute() convention.
var RootCmd = &cobra.Command{
	Use:   "lexialign",
	Short: "Orchestrate short-read alignment against a prebuilt genome index",
	Long: `lexialign aligns short reads (single-end or paired-end) against a
prebuilt genome index, writing SAM or BAM output.

It does not implement seed indexing; the bundled banded edit-distance
and insert-size aligners are simple stand-ins behind the
SingleAligner/PairedAligner interfaces.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logutil.SetVerbose(!getFlagBool(cmd, "quiet"))
	},
}

// Execute runs RootCmd, mirroring the source's main.go entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress info-level logging")
	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
