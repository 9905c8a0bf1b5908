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

// Package genome loads the (opaque, per spec §1) genome index: a directory
// holding one 2-bit-packed reference and a contig table. The internals of
// seed indexing are out of scope; this package only owns the coordinate
// space (bases_count, seed_length, contig lookup) that readers and writers
// need for translating a GenomeLocation to a chromosome + offset.
package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
	"github.com/willf/bitset"
)

// Magic identifies the packed genome file.
var Magic = [8]byte{'l', 'x', 'a', 'g', 'n', 'o', 'm', 'e'}

const packedFileName = "genome.2bit"
const contigFileName = "contigs.tsv"
const ambigFileName = "ambiguous.tsv"

// Contig is one reference sequence within the genome.
type Contig struct {
	Name   string
	Offset int64 // 0-based base offset into the concatenated genome
	Length int64
}

// Index is the opaque, shared-immutable handle spec §3 describes:
// identified by its source directory, exposing BasesCount/SeedLength and a
// Genome view for coordinate translation. Exactly one Index exists per
// directory path at a time (enforced by the indexcache package).
type Index struct {
	Dir        string
	SeedLength int
	Contigs    []Contig
	basesCount int64

	packed   []byte    // 2-bit packed bases, either mmap-backed or heap-allocated
	region   mmap.MMap // non-nil when memory-mapped; must be Unmap'd on Close
	file     *os.File

	// ambiguous marks positions that were 'N' (or other non-ACGT) in the
	// source FASTA; the 2-bit packing loses that information, so it is
	// tracked separately rather than picked arbitrarily as one of A/C/G/T.
	ambiguous *bitset.BitSet
}

// IsAmbiguous reports whether the base at a global offset was an ambiguity
// code in the source reference rather than one of A/C/G/T.
func (idx *Index) IsAmbiguous(pos int64) bool {
	if idx.ambiguous == nil || pos < 0 || pos >= idx.basesCount {
		return false
	}
	return idx.ambiguous.Test(uint(pos))
}

// Null is the sentinel "-" index: I/O pass-through only, no alignment
// (spec §4.1). BasesCount and SeedLength are both zero.
var Null = &Index{Dir: "-"}

// IsNull reports whether idx is the pass-through sentinel.
func (idx *Index) IsNull() bool { return idx == nil || idx.Dir == "-" }

// BasesCount is the total number of bases in the concatenated reference.
func (idx *Index) BasesCount() int64 { return idx.basesCount }

// Load reads a packed genome directory into an Index. When mapFile is true
// the packed sequence is memory-mapped rather than read fully into the heap
// (spec §5 "the genome index is mapped once ... and never copied"); when
// prefetch is also true, the OS is hinted to read the mapping in ahead of
// first touch.
func Load(dir string, mapFile, prefetch bool) (*Index, LoadStats, error) {
	if dir == "-" {
		return Null, LoadStats{}, nil
	}

	start := time.Now()

	contigs, basesCount, err := readContigs(filepath.Join(dir, contigFileName))
	if err != nil {
		return nil, LoadStats{}, errors.Wrap(err, "reading contig table")
	}

	packedPath := filepath.Join(dir, packedFileName)
	f, err := os.Open(packedPath)
	if err != nil {
		return nil, LoadStats{}, errors.Wrap(err, "opening packed genome")
	}

	idx := &Index{
		Dir:        dir,
		SeedLength: defaultSeedLength,
		Contigs:    contigs,
		basesCount: basesCount,
		file:       f,
	}

	if ambig, err := readAmbiguous(filepath.Join(dir, ambigFileName), basesCount); err != nil {
		f.Close()
		return nil, LoadStats{}, errors.Wrap(err, "reading ambiguous-base table")
	} else {
		idx.ambiguous = ambig
	}

	if mapFile {
		region, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, LoadStats{}, errors.Wrap(err, "mmap packed genome")
		}
		if prefetch {
			_ = touch(region)
		}
		idx.region = region
		idx.packed = region
	} else {
		defer f.Close()
		r := bufio.NewReaderSize(f, 1<<20)
		buf, err := readAll(r)
		if err != nil {
			return nil, LoadStats{}, errors.Wrap(err, "reading packed genome")
		}
		idx.packed = buf
	}

	stats := LoadStats{
		Bytes:      int64(len(idx.packed)),
		BasesCount: idx.basesCount,
		SeedLength: idx.SeedLength,
		Elapsed:    time.Since(start),
	}
	return idx, stats, nil
}

// defaultSeedLength is the seed length every loaded Index reports; the
// packed genome directory does not record one, and it is kept as a
// constant since seed-index internals are out of scope for this package
// (spec §1).
const defaultSeedLength = 20

// NewInMemory builds an Index directly from a base sequence, bypassing the
// on-disk packed format. It is used by tests and by callers that already
// hold a reference in memory.
func NewInMemory(name string, bases []byte, seedLength int) *Index {
	packed := make([]byte, (len(bases)+3)/4)
	for i, base := range bases {
		byteIdx := i >> 2
		shift := uint((3 - (i & 3)) * 2)
		packed[byteIdx] |= base2bit[base] << shift
	}
	return &Index{
		Dir:        "<memory>",
		SeedLength: seedLength,
		Contigs:    []Contig{{Name: name, Offset: 0, Length: int64(len(bases))}},
		basesCount: int64(len(bases)),
		packed:     packed,
	}
}

// BuildFromFASTA is a convenience used by tests and by daemon-mode index
// preparation: it reads a FASTA reference and writes out the packed
// directory format that Load expects.
func BuildFromFASTA(fastaPath, outDir string) error {
	if err := os.MkdirAll(outDir, 0777); err != nil {
		return errors.Wrap(err, outDir)
	}

	reader, err := fastx.NewReader(seq.DNAredundant, fastaPath, "")
	if err != nil {
		return errors.Wrap(err, fastaPath)
	}
	defer reader.Close()

	packedFile, err := os.Create(filepath.Join(outDir, packedFileName))
	if err != nil {
		return err
	}
	defer packedFile.Close()
	w := bufio.NewWriterSize(packedFile, 1<<20)

	contigFile, err := os.Create(filepath.Join(outDir, contigFileName))
	if err != nil {
		return err
	}
	defer contigFile.Close()
	cw := bufio.NewWriter(contigFile)

	ambigFile, err := os.Create(filepath.Join(outDir, ambigFileName))
	if err != nil {
		return err
	}
	defer ambigFile.Close()
	aw := bufio.NewWriter(ambigFile)

	var offset int64
	var pending []byte
	var runStart int64 = -1
	flushRun := func(end int64) {
		if runStart >= 0 {
			fmt.Fprintf(aw, "%d\t%d\n", runStart, end-runStart)
			runStart = -1
		}
	}
	for {
		rec, err := reader.Read()
		if err != nil {
			break
		}
		bases := rec.Seq.Seq
		fmt.Fprintf(cw, "%s\t%d\t%d\n", rec.ID, offset, len(bases))

		for i, b := range bases {
			pos := offset + int64(i)
			if _, ok := base2bit[b]; ok {
				flushRun(pos)
			} else if runStart < 0 {
				runStart = pos
			}
		}
		offset += int64(len(bases))

		pending = append(pending, bases...)
		for len(pending) >= 4 {
			if err := w.WriteByte(packByte(pending[:4])); err != nil {
				return err
			}
			pending = pending[4:]
		}
	}
	flushRun(offset)
	if err := aw.Flush(); err != nil {
		return err
	}
	if len(pending) > 0 {
		padded := make([]byte, 4)
		copy(padded, pending)
		if err := w.WriteByte(packByte(padded)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return cw.Flush()
}

var base2bit = map[byte]byte{'A': 0, 'C': 1, 'G': 2, 'T': 3, 'a': 0, 'c': 1, 'g': 2, 't': 3}

func packByte(quad []byte) byte {
	var b byte
	for _, base := range quad {
		b = b<<2 | base2bit[base]
	}
	return b
}

func readContigs(path string) ([]Contig, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var contigs []Contig
	var total int64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var name string
		var offset, length int64
		if _, err := fmt.Sscanf(sc.Text(), "%s\t%d\t%d", &name, &offset, &length); err != nil {
			continue
		}
		contigs = append(contigs, Contig{Name: name, Offset: offset, Length: length})
		total = offset + length
	}
	return contigs, total, sc.Err()
}

// readAmbiguous loads the sparse ambiguous-base run table written by
// BuildFromFASTA into a dense bitset sized to basesCount. A missing file
// (older index directories built before this table existed) is treated as
// "no ambiguous bases known", not an error.
func readAmbiguous(path string, basesCount int64) (*bitset.BitSet, error) {
	if !xopen.Exists(path) {
		return nil, nil
	}
	f, err := xopen.Ropen(path)
	if err == xopen.ErrNoContent {
		// BuildFromFASTA writes an empty table when the reference has no
		// ambiguous runs.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bs := bitset.New(uint(basesCount))
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var start, length int64
		if _, err := fmt.Sscanf(sc.Text(), "%d\t%d", &start, &length); err != nil {
			continue
		}
		for i := start; i < start+length; i++ {
			bs.Set(uint(i))
		}
	}
	return bs, sc.Err()
}

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// WindowBases unpacks the [start, start+length) window of the concatenated
// reference. It returns ok=false if the window falls outside the packed
// sequence.
func (idx *Index) WindowBases(start, length int64) ([]byte, bool) {
	if idx.IsNull() || start < 0 || length <= 0 || start+length > idx.basesCount {
		return nil, false
	}

	out := make([]byte, length)
	for i := int64(0); i < length; i++ {
		pos := start + i
		byteIdx := pos >> 2
		shift := uint((3 - (pos & 3)) * 2)
		if int(byteIdx) >= len(idx.packed) {
			return nil, false
		}
		code := (idx.packed[byteIdx] >> shift) & 3
		out[i] = bit2base[code]
	}
	return out, true
}

// ContigFor resolves a global base offset to its contig and local offset.
func (idx *Index) ContigFor(loc int64) (Contig, int64, bool) {
	for _, c := range idx.Contigs {
		if loc >= c.Offset && loc < c.Offset+c.Length {
			return c, loc - c.Offset, true
		}
	}
	return Contig{}, 0, false
}

// Close releases the mapped memory / open file handle. Safe to call on the
// Null sentinel.
func (idx *Index) Close() error {
	if idx == nil || idx.IsNull() {
		return nil
	}
	var err error
	if idx.region != nil {
		err = idx.region.Unmap()
	}
	if idx.file != nil {
		if cerr := idx.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// LoadStats is returned by Load for the diagnostic log line spec §4.1
// requires ("bytes loaded, base count, seed length, elapsed").
type LoadStats struct {
	Bytes      int64
	BasesCount int64
	SeedLength int
	Elapsed    time.Duration
}

func touch(region mmap.MMap) error {
	var sum byte
	for i := 0; i < len(region); i += os.Getpagesize() {
		sum += region[i]
	}
	_ = sum
	return nil
}

func readAll(r *bufio.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 1<<16)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}
