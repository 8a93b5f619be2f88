package gap

import (
	"testing"

	"fcp-engine/internal/market"
)

func TestDetect_NoGapsWhenFullyCovered(t *testing.T) {
	cfg := DefaultConfig()
	interval := market.Interval1h
	intervalUs := interval.Seconds() * microsPerSecond

	start := int64(0)
	end := start + 24*intervalUs
	var points []int64
	for p := start; p < end; p += intervalUs {
		points = append(points, p)
	}

	gaps := Detect(points, Range{Start: start, End: end}, interval, cfg)
	if len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %v", gaps)
	}
}

func TestDetect_ReportsMiddleGap(t *testing.T) {
	cfg := DefaultConfig()
	interval := market.Interval1h
	intervalUs := interval.Seconds() * microsPerSecond

	start := int64(0)
	end := 24 * intervalUs
	var points []int64
	for p := start; p < end; p += intervalUs {
		if p >= 10*intervalUs && p < 15*intervalUs {
			continue // missing hours 10-14
		}
		points = append(points, p)
	}

	gaps := Detect(points, Range{Start: start, End: end}, interval, cfg)
	if len(gaps) != 1 {
		t.Fatalf("expected exactly one gap, got %d: %v", len(gaps), gaps)
	}
	if gaps[0].Start != 10*intervalUs {
		t.Errorf("expected gap to start at hour 10, got %d", gaps[0].Start/intervalUs)
	}
	if gaps[0].MissingPoints != 5 {
		t.Errorf("expected 5 missing points, got %d", gaps[0].MissingPoints)
	}
}

func TestDetect_ShortSpanBelowMinimum(t *testing.T) {
	cfg := DefaultConfig()
	interval := market.Interval1h
	// 2-hour span is well below the 23h minimum; with zero points it
	// should report the whole span as one gap.
	gaps := Detect(nil, Range{Start: 0, End: 2 * 3600 * microsPerSecond}, interval, cfg)
	if len(gaps) != 1 {
		t.Fatalf("expected one gap for short empty span, got %d", len(gaps))
	}
}

func TestDetect_EmptyRangeReturnsNil(t *testing.T) {
	gaps := Detect(nil, Range{Start: 10, End: 10}, market.Interval1h, DefaultConfig())
	if gaps != nil {
		t.Errorf("expected nil for zero-width range, got %v", gaps)
	}
}

func TestToRanges(t *testing.T) {
	gaps := []Gap{{Start: 1, End: 5}, {Start: 10, End: 20}}
	ranges := ToRanges(gaps)
	if len(ranges) != 2 || ranges[0] != (Range{Start: 1, End: 5}) || ranges[1] != (Range{Start: 10, End: 20}) {
		t.Errorf("unexpected ranges: %v", ranges)
	}
}
