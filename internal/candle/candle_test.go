package candle

import "testing"

func TestMerge_PriorityResolvesDuplicates(t *testing.T) {
	frames := []SourceFrame{
		{Source: Cache, Candles: []Candle{{OpenTime: 100, Close: 1.0}, {OpenTime: 200, Close: 2.0}}},
		{Source: Vision, Candles: []Candle{{OpenTime: 100, Close: 9.0}}}, // lower priority, should lose
		{Source: Rest, Candles: []Candle{{OpenTime: 200, Close: 99.0}}}, // higher priority, should win
	}

	merged := Merge(frames)

	if len(merged.Candles) != 2 {
		t.Fatalf("expected 2 deduplicated rows, got %d", len(merged.Candles))
	}
	if merged.Candles[0].OpenTime != 100 || merged.Candles[0].Close != 1.0 {
		t.Errorf("expected CACHE to win over VISION at open_time=100, got %+v", merged.Candles[0])
	}
	if merged.Candles[1].OpenTime != 200 || merged.Candles[1].Close != 99.0 {
		t.Errorf("expected REST to win over CACHE at open_time=200, got %+v", merged.Candles[1])
	}
}

func TestMerge_SortsByOpenTime(t *testing.T) {
	frames := []SourceFrame{
		{Source: Rest, Candles: []Candle{{OpenTime: 300}, {OpenTime: 100}, {OpenTime: 200}}},
	}
	merged := Merge(frames)
	for i := 1; i < len(merged.Candles); i++ {
		if merged.Candles[i].OpenTime <= merged.Candles[i-1].OpenTime {
			t.Fatalf("result not strictly increasing at index %d: %v", i, merged.Candles)
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	merged := Merge(nil)
	if len(merged.Candles) != 0 {
		t.Errorf("expected empty frame, got %+v", merged)
	}
}

func TestFilterRange(t *testing.T) {
	f := Frame{
		Candles: []Candle{{OpenTime: 1}, {OpenTime: 5}, {OpenTime: 10}},
		Sources: []Source{Cache, Cache, Cache},
	}
	out := FilterRange(f, 2, 9)
	if len(out.Candles) != 1 || out.Candles[0].OpenTime != 5 {
		t.Errorf("expected only open_time=5 to survive filter, got %+v", out.Candles)
	}
}

func TestCandle_Valid(t *testing.T) {
	valid := Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}
	if !valid.Valid() {
		t.Error("expected candle to be valid")
	}
	invalid := Candle{Open: 10, High: 9, Low: 11, Close: 11, Volume: 5}
	if invalid.Valid() {
		t.Error("expected candle with low > high to be invalid")
	}
	negativeVolume := Candle{Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}
	if negativeVolume.Valid() {
		t.Error("expected candle with negative volume to be invalid")
	}
}
