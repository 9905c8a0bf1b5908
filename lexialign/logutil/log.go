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

// Package logutil provides the single leveled logger shared by every
// package in this module, backed by shenwei356/go-logging as in the
// upstream CLI's cmd package (var log = logging.MustGetLogger(...)).
package logutil

import (
	"os"

	logging "github.com/shenwei356/go-logging"
)

var backend = logging.NewLogBackend(os.Stderr, "", 0)
var format = logging.MustStringFormatter(
	`%{color}[%{level:.4s}]%{color:reset} %{message}`,
)

func init() {
	formatted := logging.NewBackendFormatter(backend, format)
	logging.SetBackend(formatted)
}

// New returns a named logger, following the "lexicmap"-style
// logging.MustGetLogger(name) pattern.
func New(name string) *logging.Logger {
	return logging.MustGetLogger(name)
}

// SetVerbose raises or lowers the global logging level; the CLI calls it
// from the root command's PersistentPreRun with the negated --quiet flag.
func SetVerbose(verbose bool) {
	if verbose {
		logging.SetLevel(logging.INFO, "")
	} else {
		logging.SetLevel(logging.WARNING, "")
	}
}
