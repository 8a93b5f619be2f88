// Package timeutil handles the UTC timestamp arithmetic FCP needs:
// canonical-microsecond conversion, dynamic unit detection for upstream
// data that mixes millisecond and microsecond timestamps, and interval
// boundary alignment.
package timeutil

import (
	"time"

	"fcp-engine/internal/market"
)

// Canonical internal resolution is microseconds since the Unix epoch,
// per spec invariant 1 ("internal canonical resolution is microseconds").
const (
	msToUs = int64(1000)
	usToMs = int64(1000)
)

// DetectUnitAndNormalizeUs converts a raw upstream integer timestamp to
// canonical microseconds, detecting whether the source value was
// milliseconds (13 digits, pre-2025 archives) or microseconds (16
// digits, 2025+ archives), per spec §4.3 "Decode".
func DetectUnitAndNormalizeUs(raw int64) int64 {
	if raw == 0 {
		return 0
	}
	digits := digitCount(raw)
	if digits >= 16 {
		return raw // already microseconds
	}
	return raw * msToUs // milliseconds -> microseconds
}

func digitCount(n int64) int {
	if n < 0 {
		n = -n
	}
	count := 0
	for n > 0 {
		count++
		n /= 10
	}
	if count == 0 {
		return 1
	}
	return count
}

// MicrosToMillis converts a canonical microsecond timestamp to the
// external API's millisecond resolution (spec invariant 1).
func MicrosToMillis(us int64) int64 { return us / usToMs }

// MillisToMicros converts an external millisecond timestamp to the
// internal canonical microsecond resolution.
func MillisToMicros(ms int64) int64 { return ms * msToUs }

// FromUnixMicros converts a canonical microsecond timestamp to a UTC time.Time.
func FromUnixMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// ToUnixMicros converts a UTC time.Time to the canonical microsecond timestamp.
func ToUnixMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

// CloseTime returns the close timestamp for a candle opening at openUs
// with the given interval: open_time + interval - 1us, matching
// bars.py's get_bar_close_time and spec invariant 4.
func CloseTime(openUs int64, interval market.Interval) int64 {
	durationUs := interval.Seconds() * 1_000_000
	return openUs + durationUs - 1
}

// IsBarComplete reports whether the candle opening at openUs has fully
// closed as of now, i.e. now is strictly past its close time (at or
// after open time + interval).
func IsBarComplete(openUs int64, interval market.Interval, now time.Time) bool {
	return ToUnixMicros(now) >= CloseTime(openUs, interval)+1
}

// FloorToInterval floors t to the start of the interval bucket containing it.
func FloorToInterval(t time.Time, interval market.Interval) time.Time {
	secs := interval.Seconds()
	if secs <= 0 {
		return t
	}
	unix := t.UTC().Unix()
	floored := (unix / secs) * secs
	return time.Unix(floored, 0).UTC()
}

// CeilToInterval ceils t to the end of the interval bucket containing it.
func CeilToInterval(t time.Time, interval market.Interval) time.Time {
	floor := FloorToInterval(t, interval)
	if floor.Equal(t.UTC()) {
		return floor
	}
	return floor.Add(time.Duration(interval.Seconds()) * time.Second)
}

// DayBounds returns the [start, end) UTC range for the calendar day
// containing t, used for Vision's per-day file granularity.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// DaysBetween enumerates the UTC calendar days intersecting [start, end).
func DaysBetween(start, end time.Time) []time.Time {
	if !end.After(start) {
		return nil
	}
	var days []time.Time
	cur, _ := DayBounds(start)
	for cur.Before(end) {
		days = append(days, cur)
		cur = cur.Add(24 * time.Hour)
	}
	return days
}
