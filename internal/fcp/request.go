// Package fcp implements the orchestrator: the public get_data entry
// point that plans sources, invokes each stage, merges, and returns a
// candle.Frame, per spec §4.1.
package fcp

import (
	"time"

	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/market"
	"fcp-engine/internal/timeutil"
)

// SourcePolicy selects which stages of the chain run, matching spec
// §4.1 "Enforce-source semantics".
type SourcePolicy string

const (
	Auto   SourcePolicy = "AUTO"
	Cache  SourcePolicy = "CACHE"
	Vision SourcePolicy = "VISION"
	Rest   SourcePolicy = "REST"
)

// Request is the immutable input to get_data, per spec §3 Request entity.
type Request struct {
	Provider      market.Provider
	MarketType    market.Type
	ChartType     market.ChartType
	Symbol        string
	Interval      market.Interval
	Start         time.Time
	End           time.Time
	EnforceSource SourcePolicy
	UseCache      bool
	RetryCount    int
}

// Validate enforces spec §4.1's input constraints: t_start < t_end,
// interval supported for market_type, symbol format valid, and the
// enforce_source/use_cache contradiction check.
func (r Request) Validate() error {
	if !r.Start.Before(r.End) {
		return &fcperrors.ConfigurationError{Message: "t_start must precede t_end"}
	}
	if r.EnforceSource == Cache && !r.UseCache {
		return &fcperrors.ConfigurationError{Message: "enforce_source=CACHE contradicts use_cache=false"}
	}
	if err := market.ValidateSymbol(r.Symbol, r.Provider, r.MarketType); err != nil {
		return err
	}
	caps, err := market.GetCapabilities(r.Provider, r.MarketType)
	if err != nil {
		return &fcperrors.ConfigurationError{Message: err.Error()}
	}
	if !caps.SupportsInterval(r.Interval) {
		return &fcperrors.UnsupportedIntervalError{Interval: string(r.Interval), MarketType: string(r.MarketType)}
	}
	return nil
}

func (r Request) startUs() int64 { return timeutil.ToUnixMicros(r.Start) }
func (r Request) endUs() int64   { return timeutil.ToUnixMicros(r.End) }
