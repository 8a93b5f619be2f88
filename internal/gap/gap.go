// Package gap computes the missing sub-ranges of a requested interval
// against the candles accumulated so far, grounded on the original
// source's gap_detector.py (detect_gaps / Gap dataclass).
package gap

import "fcp-engine/internal/market"

// Range is a half-open [Start, End) interval over canonical
// microsecond UTC instants, per spec §3 Range.
type Range struct {
	Start int64
	End   int64
}

// Gap is a diagnostic artifact describing one missing sub-range, per
// spec §3 Gap: (start_ms, end_ms, duration_ms, missing_points,
// crosses_day_boundary). Start, End and DurationUs are kept in
// canonical microseconds; the dataclass shape and thresholds below
// come straight from gap_detector.py.
type Gap struct {
	Start              int64
	End                int64
	DurationUs         int64
	MissingPoints      int64
	CrossesDayBoundary bool
}

// Config holds the gap detector's tunable thresholds, surfaced as
// internal/config.GapConfig fields rather than hardcoded constants
// (spec §9 Open Question on funding-rate cadence).
type Config struct {
	RegularThreshold     float64 // fraction of interval width that counts as a gap, default 0.30
	DayBoundaryThreshold float64 // looser threshold across a UTC day boundary, default 1.50
	MinSpanHours         float64 // minimum span before gap detection applies, default 23
}

// DefaultConfig matches gap_detector.py's defaults.
func DefaultConfig() Config {
	return Config{RegularThreshold: 0.30, DayBoundaryThreshold: 1.50, MinSpanHours: 23}
}

const microsPerSecond = int64(1_000_000)

// Detect computes the missing sub-ranges of [requested.Start,
// requested.End) given the sorted, deduplicated open_time timestamps
// already covered by accumulated results, following detect_gaps's
// regular-vs-day-boundary masking logic: a gap between two consecutive
// points (or between a range edge and the first/last point) is only
// reported if the elapsed time exceeds threshold * interval width, with
// a looser threshold when the gap crosses a UTC day boundary.
//
// enforce_min_span mirrors gap_detector.py: if the requested span is
// shorter than MinSpanHours and no timestamps were supplied, the whole
// span is reported as a single gap without threshold analysis. A short
// span that does have timestamps goes through the same threshold
// analysis as any other span.
func Detect(openTimesUs []int64, requested Range, interval market.Interval, cfg Config) []Gap {
	intervalUs := interval.Seconds() * microsPerSecond
	if intervalUs <= 0 || requested.End <= requested.Start {
		return nil
	}

	spanHours := float64(requested.End-requested.Start) / float64(microsPerSecond) / 3600.0
	if spanHours < cfg.MinSpanHours {
		if len(openTimesUs) == 0 {
			return []Gap{newGap(requested.Start, requested.End, intervalUs)}
		}
	}

	points := make([]int64, 0, len(openTimesUs)+2)
	for _, p := range openTimesUs {
		if p >= requested.Start && p < requested.End {
			points = append(points, p)
		}
	}

	var gaps []Gap
	cursor := requested.Start
	for _, p := range points {
		if p > cursor {
			if isGap(cursor, p, intervalUs, cfg) {
				gaps = append(gaps, newGap(cursor, p, intervalUs))
			}
		}
		next := p + intervalUs
		if next > cursor {
			cursor = next
		}
	}
	if cursor < requested.End {
		if isGap(cursor, requested.End, intervalUs, cfg) {
			gaps = append(gaps, newGap(cursor, requested.End, intervalUs))
		}
	}
	return gaps
}

func isGap(start, end, intervalUs int64, cfg Config) bool {
	elapsed := end - start
	threshold := cfg.RegularThreshold
	if crossesDayBoundary(start, end) {
		threshold = cfg.DayBoundaryThreshold
	}
	return float64(elapsed) > threshold*float64(intervalUs)
}

func crossesDayBoundary(startUs, endUs int64) bool {
	const microsPerDay = 24 * 3600 * microsPerSecond
	return startUs/microsPerDay != (endUs-1)/microsPerDay
}

func newGap(start, end, intervalUs int64) Gap {
	missing := (end - start) / intervalUs
	return Gap{
		Start:              start,
		End:                end,
		DurationUs:         end - start,
		MissingPoints:      missing,
		CrossesDayBoundary: crossesDayBoundary(start, end),
	}
}

// ToRanges converts gaps back to Ranges for feeding to the next source
// stage's "missing" set.
func ToRanges(gaps []Gap) []Range {
	ranges := make([]Range, len(gaps))
	for i, g := range gaps {
		ranges[i] = Range{Start: g.Start, End: g.End}
	}
	return ranges
}
