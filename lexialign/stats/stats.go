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

// Package stats implements the per-thread counters and histograms of
// spec §4.5, and their sum-reduction into a single global Stats value.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NumBuckets is the number of log2(nanoseconds) buckets, clamped to
// [0, 30] per spec §4.5.
const NumBuckets = 31

// Stats holds one thread's (or, after Merge, the whole run's) counters.
type Stats struct {
	TotalReads     uint64
	UsefulReads    uint64
	SingleHits     uint64
	MultiHits      uint64
	NotFound       uint64
	AlignedAsPairs uint64
	LVCalls        uint64

	// SecondaryOverflows counts BudgetOverflow events (spec §7): not an
	// error, just a clamp-and-record.
	SecondaryOverflows uint64

	// MAPQAnomalies counts observed mapq values above
	// record.MAPQDiagnosticThreshold (spec §9 Open Question), whether or
	// not StrictInvariants turned one into an aborting error.
	MAPQAnomalies uint64

	CountByTimeBucket [NumBuckets]uint64
	NanosByTimeBucket [NumBuckets]uint64

	mapqSamples  []int
	editSamples  []int
}

// New returns a zeroed, ready-to-use Stats.
func New() *Stats { return &Stats{} }

// RecordRead updates the counters for one read outcome and its elapsed
// wall time (spec §4.5).
func (s *Stats) RecordRead(useful bool, single, multi, notFound bool, nanos int64) {
	s.TotalReads++
	if useful {
		s.UsefulReads++
	}
	switch {
	case single:
		s.SingleHits++
	case multi:
		s.MultiHits++
	case notFound:
		s.NotFound++
	}
	s.recordTime(nanos)
}

func (s *Stats) recordTime(nanos int64) {
	if nanos < 0 {
		nanos = 0
	}
	bucket := TimeBucketFor(nanos)
	s.CountByTimeBucket[bucket]++
	s.NanosByTimeBucket[bucket] += uint64(nanos)
}

// RecordMAPQ appends a MAPQ sample for the distribution report (spec §4.5,
// "histograms of ... MAPQ distribution"). Values above
// record.MAPQDiagnosticThreshold are still recorded so the diagnostic
// tooling can see them; the caller is responsible for the soft-fail log.
func (s *Stats) RecordMAPQ(mapq int) {
	s.mapqSamples = append(s.mapqSamples, mapq)
}

// RecordEditDistance appends an edit-distance sample.
func (s *Stats) RecordEditDistance(d int) {
	s.editSamples = append(s.editSamples, d)
}

// RecordPair marks that a read was reported aligned as a pair.
func (s *Stats) RecordPair() { s.AlignedAsPairs++ }

// RecordLVCall counts one dynamic-programming invocation (cost proxy).
func (s *Stats) RecordLVCall() { s.LVCalls++ }

// RecordSecondaryOverflow counts a clamped secondary-alignment buffer
// overflow (spec §4.3 edge case, §7 BudgetOverflow).
func (s *Stats) RecordSecondaryOverflow() { s.SecondaryOverflows++ }

// RecordMAPQAnomaly counts one mapq observation above the diagnostic
// threshold.
func (s *Stats) RecordMAPQAnomaly() { s.MAPQAnomalies++ }

// Merge adds other's counters and histograms into s (element-wise sum,
// spec §4.5 / §8 invariant 5). Merge is the only place per-thread Stats is
// combined into the global Stats; the caller destroys other afterward.
func (s *Stats) Merge(other *Stats) {
	s.TotalReads += other.TotalReads
	s.UsefulReads += other.UsefulReads
	s.SingleHits += other.SingleHits
	s.MultiHits += other.MultiHits
	s.NotFound += other.NotFound
	s.AlignedAsPairs += other.AlignedAsPairs
	s.LVCalls += other.LVCalls
	s.SecondaryOverflows += other.SecondaryOverflows
	s.MAPQAnomalies += other.MAPQAnomalies

	for i := 0; i < NumBuckets; i++ {
		s.CountByTimeBucket[i] += other.CountByTimeBucket[i]
		s.NanosByTimeBucket[i] += other.NanosByTimeBucket[i]
	}

	s.mapqSamples = append(s.mapqSamples, other.mapqSamples...)
	s.editSamples = append(s.editSamples, other.editSamples...)
}

// ReadsPerSecond is the derived reporting value from spec §4.5:
// 1000 * total_reads / max(align_time_ms, 1).
func (s *Stats) ReadsPerSecond(alignTimeMs int64) float64 {
	if alignTimeMs < 1 {
		alignTimeMs = 1
	}
	return 1000 * float64(s.TotalReads) / float64(alignTimeMs)
}

// Percentage computes a percentage against max(total_reads, 1), avoiding
// division by zero as spec §4.5 requires.
func (s *Stats) Percentage(count uint64) float64 {
	total := s.TotalReads
	if total < 1 {
		total = 1
	}
	return 100 * float64(count) / float64(total)
}

// MAPQPercentiles reports the p10/p50/p90 mapping-quality percentiles
// across every RecordMAPQ sample seen (merged or not), used in the
// human-readable stats footer.
func (s *Stats) MAPQPercentiles() (p10, p50, p90 float64) {
	return percentiles(s.mapqSamples)
}

// EditDistancePercentiles is the edit-distance analogue of MAPQPercentiles.
func (s *Stats) EditDistancePercentiles() (p10, p50, p90 float64) {
	return percentiles(s.editSamples)
}

func percentiles(samples []int) (p10, p50, p90 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	xs := make([]float64, len(samples))
	for i, v := range samples {
		xs[i] = float64(v)
	}
	sortFloats(xs)
	return stat.Quantile(0.10, stat.Empirical, xs, nil),
		stat.Quantile(0.50, stat.Empirical, xs, nil),
		stat.Quantile(0.90, stat.Empirical, xs, nil)
}

func sortFloats(xs []float64) {
	// insertion sort over every sample passed in (for the merged run-wide
	// Stats, one per read); stat.Quantile requires sorted input.
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// LegalOutcome reports the spec §8 invariant 6 relationship:
// total_reads >= single_hits + multi_hits + not_found.
func (s *Stats) LegalOutcome() bool {
	return s.TotalReads >= s.SingleHits+s.MultiHits+s.NotFound
}

// TimeBucketFor exposes the log2 bucketing rule for tests.
func TimeBucketFor(nanos int64) int {
	if nanos <= 0 {
		return 0
	}
	b := int(math.Log2(float64(nanos)))
	if b < 0 {
		b = 0
	}
	if b > NumBuckets-1 {
		b = NumBuckets - 1
	}
	return b
}
