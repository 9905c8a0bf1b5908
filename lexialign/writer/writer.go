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

// Package writer implements the WriterSupplier/Writer pair from spec §2-6:
// a shared supplier that hands each worker its own SAM or BAM Writer, and
// synchronizes the final close/flush/sort pass.
package writer

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
	"github.com/shenwei356/lexialign/lexialign/genome"
	"github.com/shenwei356/lexialign/lexialign/record"
	"github.com/twotwotwo/sorts"
)

// VERSION is stamped into the SAM @PG line.
const VERSION = "0.1.0"

// Format is the output container format (spec §6: "format inferred from
// extension").
type Format uint8

const (
	FormatSAM Format = iota
	FormatBAM
)

// FormatFromPath infers the format from an output path's extension.
func FormatFromPath(path string) Format {
	if strings.HasSuffix(path, ".bam") {
		return FormatBAM
	}
	return FormatSAM
}

// Options controls header construction and CIGAR style.
type Options struct {
	Format     Format
	UseM       bool // emit CIGAR 'M' instead of '='/'X' (spec §6 -M/--use-m)
	SortOutput bool // supplier performs a final sort pass on Close (spec §5)
	ReadGroup  string
	ProgramID  string // stamped into the @PG line, e.g. a per-run UUID

	// IgnoreSecondary and IgnoreSupplementary each suppress the extra SAM
	// records a bounded SecondaryBuffer would otherwise emit for each
	// read's secondary hits. Exposed as two independent options per spec
	// §9 Open Question, though this aligner conflates them exactly as the
	// source does: either one suppresses the same set of records, since
	// nothing here distinguishes a "secondary" hit from a "supplementary"
	// one.
	IgnoreSecondary     bool
	IgnoreSupplementary bool
}

// Writer is a per-worker, exclusively-owned output handle (spec §3
// Ownership: "each worker obtains its own Writer handle from the supplier
// and owns that handle for its lifetime").
type Writer struct {
	sup     *Supplier
	records []*sam.Record // buffered until Supplier.Close if SortOutput is set
	closed  bool
}

var rgTag = sam.Tag{'R', 'G'}

// Supplier is shared across all workers; it owns the header and the
// output stream and synchronizes both GetWriter and the final Close
// (spec §5).
type Supplier struct {
	mu     sync.Mutex
	opt    Options
	header *sam.Header
	refs   map[string]*sam.Reference

	out  io.WriteCloser
	bamW *bam.Writer
	samW *sam.Writer

	sorted []*sam.Record // only used when opt.SortOutput
}

// NewSupplier builds the shared header from the genome's contigs and opens
// the output file, writing the header once (spec §4.2 beginIteration:
// "write a one-time header using a throwaway writer").
func NewSupplier(path string, idx *genome.Index, opt Options) (*Supplier, error) {
	header, refs, err := buildHeader(idx, opt)
	if err != nil {
		return nil, errors.Wrap(err, "building SAM header")
	}

	var out io.WriteCloser
	if path == "-" {
		out = nopCloser{os.Stdout}
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s", path)
		}
		out = f
	}

	s := &Supplier{opt: opt, header: header, refs: refs, out: out}

	switch opt.Format {
	case FormatBAM:
		w, err := bam.NewWriter(out, header, 1)
		if err != nil {
			return nil, errors.Wrap(err, "opening BAM writer")
		}
		s.bamW = w
	default:
		w, err := sam.NewWriter(out, header, sam.FlagDecimal)
		if err != nil {
			return nil, errors.Wrap(err, "opening SAM writer")
		}
		s.samW = w
	}

	return s, nil
}

func buildHeader(idx *genome.Index, opt Options) (*sam.Header, map[string]*sam.Reference, error) {
	header, err := sam.NewHeader(nil, nil)
	if err != nil {
		return nil, nil, err
	}

	refs := make(map[string]*sam.Reference)
	if idx != nil && !idx.IsNull() {
		for _, c := range idx.Contigs {
			ref, err := sam.NewReference(c.Name, "", "", int(c.Length), nil, nil)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "reference %s", c.Name)
			}
			if err := header.AddReference(ref); err != nil {
				return nil, nil, err
			}
			refs[c.Name] = ref
		}
	}

	if opt.ReadGroup != "" {
		rg, err := sam.NewReadGroup(opt.ReadGroup, "", "", "", "lexialign", "", "", "", "", "", time.Time{}, 0)
		if err == nil {
			_ = header.AddReadGroup(rg)
		}
	}

	pg := sam.NewProgram(opt.ProgramID, "lexialign", "", "", VERSION)
	_ = header.AddProgram(pg)

	return header, refs, nil
}

// GetWriter returns this worker's exclusively-owned Writer (spec §4.2
// initialize_thread: "obtain a Writer from the supplier").
func (s *Supplier) GetWriter() *Writer {
	return &Writer{sup: s}
}

// WriteSingle appends a SAM record for one aligned (or unaligned) read,
// plus one additional record per bounded secondary hit (spec §3 secondary-
// alignment invariant), unless the supplier was configured to drop them.
func (w *Writer) WriteSingle(read *record.Read, res *record.SingleAlignmentResult, idx *genome.Index) error {
	rec, err := w.sup.toRecord(read, res, idx)
	if err != nil {
		return err
	}
	if err := w.emit(rec); err != nil {
		return err
	}
	return w.emitSecondary(read, res.Secondary, idx)
}

func (w *Writer) emitSecondary(read *record.Read, hits []record.SecondaryHit, idx *genome.Index) error {
	if w.sup.opt.IgnoreSecondary || w.sup.opt.IgnoreSupplementary {
		return nil
	}
	for _, hit := range hits {
		rec, err := w.sup.toSecondaryRecord(read, hit, idx)
		if err != nil {
			return err
		}
		if err := w.emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// WritePair appends the SAM records for both mates of a pair, wired to
// each other via the Paired/ProperPair/MateReverse flags.
func (w *Writer) WritePair(r0, r1 *record.Read, res *record.PairedAlignmentResult, idx *genome.Index) error {
	rec0, err := w.sup.toRecord(r0, &res.Mate[0], idx)
	if err != nil {
		return err
	}
	rec1, err := w.sup.toRecord(r1, &res.Mate[1], idx)
	if err != nil {
		return err
	}

	rec0.Flags |= sam.Paired
	rec1.Flags |= sam.Paired
	if res.Mate[1].Direction == record.Reverse {
		rec0.Flags |= sam.MateReverse
	}
	if res.Mate[0].Direction == record.Reverse {
		rec1.Flags |= sam.MateReverse
	}
	if res.AlignedAsPair {
		rec0.Flags |= sam.ProperPair
		rec1.Flags |= sam.ProperPair
	}

	if err := w.emit(rec0); err != nil {
		return err
	}
	if err := w.emit(rec1); err != nil {
		return err
	}
	if err := w.emitSecondary(r0, res.Mate[0].Secondary, idx); err != nil {
		return err
	}
	return w.emitSecondary(r1, res.Mate[1].Secondary, idx)
}

func (w *Writer) emit(rec *sam.Record) error {
	if w.sup.opt.SortOutput {
		w.records = append(w.records, rec)
		return nil
	}
	return w.sup.writeDirect(rec)
}

func (s *Supplier) writeDirect(rec *sam.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bamW != nil {
		return s.bamW.Write(rec)
	}
	return s.samW.Write(rec)
}

// Close flushes this worker's buffered records into the shared output.
// Called by WorkerThread.run_thread's "close and destroy writer" step.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if !w.sup.opt.SortOutput {
		return nil
	}
	s := w.sup
	s.mu.Lock()
	s.sorted = append(s.sorted, w.records...)
	s.mu.Unlock()
	return nil
}

// Close is the join point spec §4.2 describes: "ensures all worker writers
// have flushed and the output file is ordered/finalized". When SortOutput
// is set, this performs the final sort pass (spec §5) using the same
// parallel sort package the rest of this codebase uses for large slices.
func (s *Supplier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opt.SortOutput && len(s.sorted) > 0 {
		sorts.Quicksort(sortableRecords(s.sorted))
		for _, rec := range s.sorted {
			var err error
			if s.bamW != nil {
				err = s.bamW.Write(rec)
			} else {
				err = s.samW.Write(rec)
			}
			if err != nil {
				return errors.Wrap(err, "writing sorted record")
			}
		}
	}

	if s.bamW != nil {
		if err := s.bamW.Close(); err != nil {
			return errors.Wrap(err, "closing BAM writer")
		}
	}
	return errors.Wrap(s.out.Close(), "closing output file")
}

type sortableRecords []*sam.Record

func (r sortableRecords) Len() int { return len(r) }
func (r sortableRecords) Less(i, j int) bool {
	ri, rj := r[i].Ref, r[j].Ref
	switch {
	case ri == nil && rj == nil:
		return false
	case ri == nil:
		return false
	case rj == nil:
		return true
	case ri.ID() != rj.ID():
		return ri.ID() < rj.ID()
	default:
		return r[i].Pos < r[j].Pos
	}
}
func (r sortableRecords) Swap(i, j int) { r[i], r[j] = r[j], r[i] }

// samQual returns read's qualities, or 0xff bytes (written as '*') when the
// read carries none of matching length, as for FASTA input.
func samQual(read *record.Read) []byte {
	if len(read.Quality) == len(read.Bases) {
		return read.Quality
	}
	qual := make([]byte, len(read.Bases))
	for i := range qual {
		qual[i] = 0xff
	}
	return qual
}

func (s *Supplier) toRecord(read *record.Read, res *record.SingleAlignmentResult, idx *genome.Index) (*sam.Record, error) {
	rec := &sam.Record{
		Name: string(read.ID),
		Seq:  sam.NewSeq(read.Bases),
		Qual: samQual(read),
		Pos:  -1,
		MatePos: -1,
	}

	s.tagReadGroup(rec)

	if res.Status == record.NotFound {
		rec.Flags |= sam.Unmapped
		return rec, nil
	}

	contig, offset, ok := idx.ContigFor(int64(res.Location))
	if !ok {
		rec.Flags |= sam.Unmapped
		return rec, errors.Errorf("location %d outside genome coordinate space", res.Location)
	}

	rec.Ref = s.refs[contig.Name]
	rec.Pos = int(offset)
	rec.MapQ = byte(clampMAPQ(res.MAPQ))
	rec.Cigar = buildCIGAR(len(read.Bases), res.Score, s.opt.UseM)
	if res.Direction == record.Reverse {
		rec.Flags |= sam.Reverse
	}
	return rec, nil
}

// tagReadGroup stamps the RG:Z aux tag matching the @RG header line built
// in buildHeader, when a read group was configured.
func (s *Supplier) tagReadGroup(rec *sam.Record) {
	if s.opt.ReadGroup == "" {
		return
	}
	if aux, err := sam.NewAux(rgTag, s.opt.ReadGroup); err == nil {
		rec.AuxFields = append(rec.AuxFields, aux)
	}
}

// toSecondaryRecord builds one additional SAM record for a secondary hit,
// flagged sam.Secondary per convention (spec §3: "at most
// max_secondary_alignments" extra records per read, each within the
// configured edit-distance band of the best score).
func (s *Supplier) toSecondaryRecord(read *record.Read, hit record.SecondaryHit, idx *genome.Index) (*sam.Record, error) {
	contig, offset, ok := idx.ContigFor(int64(hit.Location))
	if !ok {
		return nil, errors.Errorf("secondary location %d outside genome coordinate space", hit.Location)
	}

	rec := &sam.Record{
		Name:    string(read.ID),
		Seq:     sam.NewSeq(read.Bases),
		Qual:    samQual(read),
		Ref:     s.refs[contig.Name],
		Pos:     int(offset),
		MatePos: -1,
		Cigar:   buildCIGAR(len(read.Bases), hit.Score, s.opt.UseM),
	}
	rec.Flags |= sam.Secondary
	if hit.Direction == record.Reverse {
		rec.Flags |= sam.Reverse
	}
	s.tagReadGroup(rec)
	return rec, nil
}

// clampMAPQ enforces spec §3's [0, 70] bound at the output boundary even
// though the aligner already should have; this is the last line of
// defense the §7 InternalInvariantViolated policy calls for.
func clampMAPQ(mapq int) int {
	if mapq < 0 {
		return 0
	}
	if mapq > record.MaxMAPQ {
		return record.MaxMAPQ
	}
	return mapq
}

func buildCIGAR(readLen, editDistance int, useM bool) sam.Cigar {
	op := sam.CigarEqual
	if useM || editDistance > 0 {
		op = sam.CigarMatch
	}
	return sam.Cigar{sam.NewCigarOp(op, readLen)}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
