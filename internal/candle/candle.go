// Package candle defines the canonical OHLCV row type and the schema
// standardization / priority-merge pipeline that combines frames from
// the cache, Vision, and REST sources into one ordered, deduplicated
// series, per spec §4.1 step 6 and §4.7.
package candle

import "sort"

// Source tags which stage produced a row, per spec §3 SourceFrame.
type Source string

const (
	Unknown Source = "UNKNOWN"
	Vision  Source = "VISION"
	Cache   Source = "CACHE"
	Rest    Source = "REST"
)

// priority implements the fixed map {UNKNOWN:0, VISION:1, CACHE:2, REST:3}
// from spec §4.1 step 6.
var priority = map[Source]int{
	Unknown: 0,
	Vision:  1,
	Cache:   2,
	Rest:    3,
}

// Candle is the canonical row shape of spec §4.7: open_time/close_time
// in canonical microseconds UTC, float64 OHLCV + quote volume, int64
// trade count.
type Candle struct {
	OpenTime           int64 // canonical µs UTC, start of period (invariant 5)
	Open               float64
	High               float64
	Low                float64
	Close              float64
	Volume             float64
	CloseTime          int64 // canonical µs UTC
	QuoteAssetVolume   float64
	Count              int64
	TakerBuyVolume     float64
	TakerBuyQuoteVolume float64
}

// Valid reports whether the OHLC relationship holds (invariant 3).
// Violations are never synthesized away — callers count/flag them.
func (c Candle) Valid() bool {
	return c.Low <= c.Open && c.Open <= c.High &&
		c.Low <= c.Close && c.Close <= c.High &&
		c.Volume >= 0
}

// SourceFrame is an ordered run of candles tagged with the stage that
// produced them, per spec §3.
type SourceFrame struct {
	Source   Source
	Candles  []Candle
}

// Metadata carries frame-level attributes surfaced at the API boundary
// (spec §6 "Return shape at API boundary").
type Metadata struct {
	RateLimited bool
	Partial     bool
}

// Frame is the final merged, deduplicated result returned by get_data.
type Frame struct {
	Candles  []Candle
	Sources  []Source // parallel to Candles; provenance tag per row, §4.1
	Metadata Metadata
}

type taggedCandle struct {
	c        Candle
	source   Source
	priority int
}

// Merge implements spec §4.1 step 6: concatenate all SourceFrames,
// attach priority, sort by (open_time ASC, priority ASC), deduplicate on
// open_time keeping the last (highest-priority) row, drop the priority
// column, re-sort on open_time. Step 7's final [t_start, t_end] filter
// is applied separately by the orchestrator.
func Merge(frames []SourceFrame) Frame {
	var tagged []taggedCandle
	for _, f := range frames {
		for _, c := range f.Candles {
			tagged = append(tagged, taggedCandle{c: c, source: f.Source, priority: priority[f.Source]})
		}
	}
	if len(tagged) == 0 {
		return Frame{}
	}

	sort.SliceStable(tagged, func(i, j int) bool {
		if tagged[i].c.OpenTime != tagged[j].c.OpenTime {
			return tagged[i].c.OpenTime < tagged[j].c.OpenTime
		}
		return tagged[i].priority < tagged[j].priority
	})

	deduped := make([]taggedCandle, 0, len(tagged))
	for _, t := range tagged {
		n := len(deduped)
		if n > 0 && deduped[n-1].c.OpenTime == t.c.OpenTime {
			deduped[n-1] = t // keep the later (higher-priority-sorted) entry
			continue
		}
		deduped = append(deduped, t)
	}

	out := Frame{Candles: make([]Candle, len(deduped)), Sources: make([]Source, len(deduped))}
	for i, t := range deduped {
		out.Candles[i] = t.c
		out.Sources[i] = t.source
	}
	return out
}

// FilterRange restricts f to candles whose open_time falls in
// [startUs, endUs] inclusive, per spec §4.1 step 7.
func FilterRange(f Frame, startUs, endUs int64) Frame {
	out := Frame{Metadata: f.Metadata}
	for i, c := range f.Candles {
		if c.OpenTime >= startUs && c.OpenTime <= endUs {
			out.Candles = append(out.Candles, c)
			out.Sources = append(out.Sources, f.Sources[i])
		}
	}
	return out
}
