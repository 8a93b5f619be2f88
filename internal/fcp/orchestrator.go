package fcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"fcp-engine/internal/availability"
	"fcp-engine/internal/cache"
	"fcp-engine/internal/candle"
	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/gap"
	"fcp-engine/internal/logging"
	"fcp-engine/internal/market"
	"fcp-engine/internal/restsource"
	"fcp-engine/internal/timeutil"
	"fcp-engine/internal/vision"
)

// Orchestrator wires the cache, Vision, and REST sources together and
// implements the priority-merge algorithm of spec §4.1.
type Orchestrator struct {
	Cache        *cache.Store
	Vision       *vision.Downloader
	RestClients  map[market.Provider]map[market.Type]*restsource.Client
	Availability *availability.Table
	GapConfig    gap.Config
	Log          *logging.Logger
}

// GetData is the public contract of spec §4.1: plan sources, invoke
// each stage, merge, resolve conflicts, and return.
func (o *Orchestrator) GetData(ctx context.Context, req Request) (candle.Frame, error) {
	log := o.Log
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("fcp.orchestrator")

	if err := req.Validate(); err != nil {
		return candle.Frame{}, err
	}

	// Step 1: availability preflight.
	knownSymbol := false
	if o.Availability != nil {
		_, knownSymbol = o.Availability.Lookup(req.MarketType, req.Symbol)
		if err := availability.Preflight(o.Availability, req.MarketType, req.Symbol, req.Start); err != nil {
			return candle.Frame{}, err
		}
		if req.MarketType != market.FuturesUSDT && req.MarketType != market.FuturesCoin {
			if warn := availability.FuturesCounterpart(o.Availability, market.FuturesUSDT, req.Symbol, req.Start); warn != nil {
				fmt.Fprintln(os.Stderr, warn.String())
				log.Warn("futures counterpart warning", "symbol", req.Symbol, "detail", warn.String())
			}
		}
	}

	// Step 2: initial gap set.
	missing := []gap.Range{{Start: req.startUs(), End: req.endUs()}}

	var frames []candle.SourceFrame
	metadata := candle.Metadata{}

	runCache := req.UseCache && (req.EnforceSource == Auto || req.EnforceSource == Cache)
	runVision := req.EnforceSource == Auto || req.EnforceSource == Vision
	runRest := req.EnforceSource == Auto || req.EnforceSource == Rest

	if req.ChartType == market.FundingRate {
		runCache = runCache && req.EnforceSource == Cache // cache optional for funding rate per spec §4.1
	}

	// Step 3: stage CACHE.
	if runCache && o.Cache != nil {
		cacheFrame, residual := o.stageCache(req, missing, log)
		if len(cacheFrame.Candles) > 0 {
			frames = append(frames, cacheFrame)
		}
		missing = residual
	}

	// Step 4: stage VISION.
	if runVision && o.Vision != nil && len(missing) > 0 {
		visionFrame, residual := o.stageVision(ctx, req, missing, log)
		if len(visionFrame.Candles) > 0 {
			frames = append(frames, visionFrame)
		}
		missing = residual
	}

	// Step 5: stage REST.
	if runRest && len(missing) > 0 {
		restFrame, restMeta := o.stageRest(ctx, req, missing, log)
		if len(restFrame.Candles) > 0 {
			frames = append(frames, restFrame)
		}
		if restMeta.RateLimited {
			metadata.RateLimited = true
			metadata.Partial = true
		}
	}

	// Step 6: merge & resolve.
	merged := candle.Merge(frames)
	merged.Metadata = metadata

	// Step 7: final filter.
	result := candle.FilterRange(merged, req.startUs(), req.endUs())
	result.Metadata = metadata

	// Step 8: return, applying §7 empty-result rules.
	if len(result.Candles) == 0 && len(frames) == 0 {
		if o.Availability != nil && !knownSymbol {
			return result, nil // unknown symbol: an empty frame is a legal result
		}
		return candle.Frame{}, &fcperrors.NoDataError{Symbol: req.Symbol, MarketType: string(req.MarketType)}
	}
	return result, nil
}

func (o *Orchestrator) stageCache(req Request, missing []gap.Range, log *logging.Logger) (candle.SourceFrame, []gap.Range) {
	var all []candle.Candle
	for _, r := range missing {
		for _, day := range timeutil.DaysBetween(timeutil.FromUnixMicros(r.Start), timeutil.FromUnixMicros(r.End)) {
			key := cache.Key{Provider: req.Provider, Market: req.MarketType, Chart: req.ChartType, Symbol: req.Symbol, Interval: req.Interval, Date: day}
			frame, err := o.Cache.Read(key, nil)
			if err != nil || frame == nil {
				continue
			}
			all = append(all, frame.Candles...)
		}
	}
	residual := recomputeMissing(all, missing, req.Interval, o.GapConfig)
	return candle.SourceFrame{Source: candle.Cache, Candles: all}, residual
}

func (o *Orchestrator) stageVision(ctx context.Context, req Request, missing []gap.Range, log *logging.Logger) (candle.SourceFrame, []gap.Range) {
	var all []candle.Candle
	var days []time.Time
	for _, r := range missing {
		days = append(days, timeutil.DaysBetween(timeutil.FromUnixMicros(r.Start), timeutil.FromUnixMicros(r.End))...)
	}
	if len(days) == 0 {
		return candle.SourceFrame{}, missing
	}

	results := o.Vision.FetchDays(ctx, req.MarketType, req.ChartType, req.Symbol, req.Interval, days)
	for _, res := range results {
		if res.Err != nil {
			log.Debug("vision day failed, remains in missing set", "date", res.Date.Format("2006-01-02"), "error", res.Err.Error())
			continue
		}
		all = append(all, res.Candles...)
		if o.Cache != nil && req.UseCache {
			key := cache.Key{Provider: req.Provider, Market: req.MarketType, Chart: req.ChartType, Symbol: req.Symbol, Interval: req.Interval, Date: res.Date}
			if err := o.Cache.Write(key, res.Candles); err != nil {
				log.Warn("failed to persist vision day to cache", "date", res.Date.Format("2006-01-02"), "error", err.Error())
			}
		}
	}

	residual := recomputeMissing(all, missing, req.Interval, o.GapConfig)
	return candle.SourceFrame{Source: candle.Vision, Candles: all}, residual
}

// stageRest fetches the residual gap ranges from the venue's REST API.
// Per spec §7, a per-window failure that isn't a rate limit (5xx
// exhausted after retries, a network error, a bad decode, ...) is not
// fatal to the request: rows from the windows fetched before the
// failure are kept, the failing window and the rest of that range stay
// unfetched, and the orchestrator only raises NoDataError at step 8 if
// every stage ended up empty. A rate limit, by contrast, stops the stage immediately but
// keeps everything fetched so far (spec §4.4).
func (o *Orchestrator) stageRest(ctx context.Context, req Request, missing []gap.Range, log *logging.Logger) (candle.SourceFrame, restsource.FetchResult) {
	byProvider, ok := o.RestClients[req.Provider]
	if !ok {
		log.Warn("no rest client configured, rest stage skipped", "provider", req.Provider, "market_type", req.MarketType)
		return candle.SourceFrame{}, restsource.FetchResult{}
	}
	client, ok := byProvider[req.MarketType]
	if !ok {
		log.Warn("no rest client configured, rest stage skipped", "provider", req.Provider, "market_type", req.MarketType)
		return candle.SourceFrame{}, restsource.FetchResult{}
	}

	var all []candle.Candle
	var meta restsource.FetchResult
	for _, r := range missing {
		result, err := client.FetchRange(ctx, req.Symbol, req.Interval, r.Start, r.End)
		if err != nil {
			log.Warn("rest window failed, leaving range in residual gap set", "start", r.Start, "end", r.End, "error", err.Error())
			all = append(all, result.Candles...)
			continue
		}
		all = append(all, result.Candles...)
		if result.RateLimited {
			meta.RateLimited = true
			break // never discard earlier windows' progress (spec §4.4)
		}
	}
	meta.Candles = all
	return candle.SourceFrame{Source: candle.Rest, Candles: all}, meta
}

// recomputeMissing runs the gap detector against the accumulated
// result plus the original requested ranges, per spec §4.1 steps 3-5
// ("recompute missing by running the gap detector").
func recomputeMissing(accumulated []candle.Candle, previousMissing []gap.Range, interval market.Interval, cfg gap.Config) []gap.Range {
	openTimes := make([]int64, len(accumulated))
	for i, c := range accumulated {
		openTimes[i] = c.OpenTime
	}
	var residual []gap.Range
	for _, r := range previousMissing {
		gaps := gap.Detect(openTimes, r, interval, cfg)
		residual = append(residual, gap.ToRanges(gaps)...)
	}
	return residual
}
