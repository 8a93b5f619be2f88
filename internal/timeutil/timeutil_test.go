package timeutil

import (
	"testing"
	"time"

	"fcp-engine/internal/market"
)

func TestDetectUnitAndNormalizeUs(t *testing.T) {
	cases := []struct {
		name string
		raw  int64
		want int64
	}{
		{"milliseconds 13-digit", 1609459200000, 1609459200000 * 1000},
		{"microseconds 16-digit", 1609459200000000, 1609459200000000},
		{"zero", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectUnitAndNormalizeUs(tc.raw)
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCloseTime(t *testing.T) {
	openUs := int64(0)
	got := CloseTime(openUs, market.Interval1h)
	want := int64(3600*1_000_000 - 1)
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestIsBarComplete(t *testing.T) {
	openUs := int64(0)
	closeUs := CloseTime(openUs, market.Interval1m)
	notYetClosed := FromUnixMicros(closeUs - 1000)
	justClosed := FromUnixMicros(closeUs + 1)

	if IsBarComplete(openUs, market.Interval1m, notYetClosed) {
		t.Error("expected bar not yet complete")
	}
	if !IsBarComplete(openUs, market.Interval1m, justClosed) {
		t.Error("expected bar to be complete after close time")
	}
}

func TestFloorAndCeilToInterval(t *testing.T) {
	mid := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	floored := FloorToInterval(mid, market.Interval1h)
	ceiled := CeilToInterval(mid, market.Interval1h)

	wantFloor := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	wantCeil := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	if !floored.Equal(wantFloor) {
		t.Errorf("floor: got %v want %v", floored, wantFloor)
	}
	if !ceiled.Equal(wantCeil) {
		t.Errorf("ceil: got %v want %v", ceiled, wantCeil)
	}
}

func TestDaysBetween(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)
	days := DaysBetween(start, end)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d: %v", len(days), days)
	}
	if !days[0].Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first day: %v", days[0])
	}
}
