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

package align

import (
	"github.com/pkg/errors"
	"github.com/shenwei356/lexialign/lexialign/logutil"
	"github.com/shenwei356/lexialign/lexialign/record"
	"github.com/shenwei356/lexialign/lexialign/stats"
)

var log = logutil.New("align")

// ValidateMAPQ implements the mapq > 1000 diagnostic (spec §4.3 edge case,
// §7, §9 Open Question): strict mode returns an error the caller aborts
// the iteration on, permissive mode logs full context and clamps.
// Clamping always happens first, so a record written before a strict
// caller gives up stays within the legal [0, 70] range. Both the
// single-end and paired-end code paths funnel through here so the
// strict/permissive choice behaves identically regardless of mode.
func ValidateMAPQ(res *record.SingleAlignmentResult, strict bool, st *stats.Stats) error {
	if res.MAPQ <= record.MAPQDiagnosticThreshold {
		return nil
	}
	log.Errorf("observed mapq %d exceeds diagnostic threshold %d: location=%v score=%d status=%v",
		res.MAPQ, record.MAPQDiagnosticThreshold, res.Location, res.Score, res.Status)
	st.RecordMAPQAnomaly()
	res.MAPQ = record.MaxMAPQ
	if strict {
		return errors.Errorf("InternalInvariantViolated: observed mapq exceeds diagnostic threshold %d",
			record.MAPQDiagnosticThreshold)
	}
	return nil
}
