// Package market defines the venue-agnostic enums and symbol/endpoint
// tables FCP needs to talk to a provider: market types, chart types,
// intervals, and the capability tables that drive URL/path derivation
// and REST pagination limits.
package market

import (
	"fmt"
	"strings"
)

// Type identifies the kind of instrument a request targets.
type Type string

const (
	Spot         Type = "SPOT"
	FuturesUSDT  Type = "FUTURES_USDT"
	FuturesCoin  Type = "FUTURES_COIN"
	Options      Type = "OPTIONS"
)

// ChartType identifies the series being requested.
type ChartType string

const (
	Klines      ChartType = "KLINES"
	FundingRate ChartType = "FUNDING_RATE"
)

// Provider identifies the venue implementation backing a request.
type Provider string

const (
	Binance Provider = "BINANCE"
	OKX     Provider = "OKX"
)

// Interval is a canonical candle width tag.
type Interval string

const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var intervalSeconds = map[Interval]int64{
	Interval1s: 1, Interval1m: 60, Interval3m: 180, Interval5m: 300,
	Interval15m: 900, Interval30m: 1800, Interval1h: 3600, Interval2h: 7200,
	Interval4h: 14400, Interval6h: 21600, Interval8h: 28800, Interval12h: 43200,
	Interval1d: 86400, Interval3d: 259200, Interval1w: 604800, Interval1M: 2592000,
}

// Seconds returns the interval's duration in seconds, or 0 if unrecognized.
func (i Interval) Seconds() int64 { return intervalSeconds[i] }

// Valid reports whether i is a known canonical interval tag.
func (i Interval) Valid() bool {
	_, ok := intervalSeconds[i]
	return ok
}

// Capabilities describes a provider's limits and wire paths for one
// market type, grounded on the original source's MARKET_CAPABILITIES /
// OKX_MARKET_CAPABILITIES tables (capabilities.py).
type Capabilities struct {
	Provider           Provider
	MarketType         Type
	PrimaryEndpoint    string
	BackupEndpoints    []string
	MarketPath         string // path component in the cache tree and Vision URL, e.g. "futures/um"
	KlinesPath         string // REST path relative to the endpoint base
	FundingRatePath    string
	MaxLimit           int // max rows per REST request
	SupportedIntervals []Interval
}

var capabilityTable = map[Provider]map[Type]Capabilities{
	Binance: {
		Spot: {
			Provider: Binance, MarketType: Spot,
			PrimaryEndpoint: "https://api.binance.com",
			BackupEndpoints: []string{"https://api1.binance.com", "https://api2.binance.com", "https://api3.binance.com"},
			MarketPath:      "spot",
			KlinesPath:      "/api/v3/klines",
			MaxLimit:        1000,
			SupportedIntervals: []Interval{
				Interval1s, Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
				Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
				Interval1d, Interval3d, Interval1w, Interval1M,
			},
		},
		FuturesUSDT: {
			Provider: Binance, MarketType: FuturesUSDT,
			PrimaryEndpoint: "https://fapi.binance.com",
			BackupEndpoints: []string{"https://fapi1.binance.com", "https://fapi2.binance.com"},
			MarketPath:      "futures/um",
			KlinesPath:      "/fapi/v1/klines",
			FundingRatePath: "/fapi/v1/fundingRate",
			MaxLimit:        1500,
			SupportedIntervals: []Interval{
				Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
				Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
				Interval1d, Interval3d, Interval1w, Interval1M,
			},
		},
		FuturesCoin: {
			Provider: Binance, MarketType: FuturesCoin,
			PrimaryEndpoint: "https://dapi.binance.com",
			BackupEndpoints: []string{"https://dapi1.binance.com"},
			MarketPath:      "futures/cm",
			KlinesPath:      "/dapi/v1/klines",
			FundingRatePath: "/dapi/v1/fundingRate",
			MaxLimit:        1500,
			SupportedIntervals: []Interval{
				Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
				Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
				Interval1d, Interval3d, Interval1w, Interval1M,
			},
		},
		Options: {
			Provider: Binance, MarketType: Options,
			PrimaryEndpoint:    "https://eapi.binance.com",
			MarketPath:         "options",
			KlinesPath:         "/eapi/v1/klines",
			MaxLimit:           1000,
			SupportedIntervals: []Interval{Interval1m, Interval5m, Interval15m, Interval30m, Interval1h, Interval1d},
		},
	},
	OKX: {
		Spot: {
			Provider: OKX, MarketType: Spot,
			PrimaryEndpoint:    "https://www.okx.com",
			KlinesPath:         "/api/v5/market/candles",
			MarketPath:         "spot",
			MaxLimit:           300,
			SupportedIntervals: []Interval{Interval1m, Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d},
		},
		FuturesUSDT: {
			Provider: OKX, MarketType: FuturesUSDT,
			PrimaryEndpoint:    "https://www.okx.com",
			KlinesPath:         "/api/v5/market/candles",
			MarketPath:         "futures/um",
			MaxLimit:           300,
			SupportedIntervals: []Interval{Interval1m, Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d},
		},
	},
}

// okxHistoryPath is the OKX "history-candles" endpoint path.
// GetCapabilities reports it as FundingRatePath for OKX pairs; the REST
// client always requests KlinesPath, so it is never used for candles.
const okxHistoryPath = "/api/v5/market/history-candles"

// GetCapabilities looks up the capability table for a provider/market pair.
func GetCapabilities(p Provider, t Type) (Capabilities, error) {
	byType, ok := capabilityTable[p]
	if !ok {
		return Capabilities{}, fmt.Errorf("market: unknown provider %q", p)
	}
	caps, ok := byType[t]
	if !ok {
		return Capabilities{}, fmt.Errorf("market: provider %q does not support market type %q", p, t)
	}
	if p == OKX {
		caps.FundingRatePath = okxHistoryPath
	}
	return caps, nil
}

// SupportsInterval reports whether caps lists interval among its supported set.
func (c Capabilities) SupportsInterval(i Interval) bool {
	for _, s := range c.SupportedIntervals {
		if s == i {
			return true
		}
	}
	return false
}

// ChartPath returns the cache-tree / Vision-URL chart path component.
func ChartPath(c ChartType) string {
	switch c {
	case FundingRate:
		return "fundingRate"
	default:
		return "klines"
	}
}

// SymbolError reports a symbol that fails market-specific format
// validation, carrying a suggested correction per spec §6 ("suggested
// corrections are included in the error").
type SymbolError struct {
	Symbol     string
	MarketType Type
	Suggestion string
}

func (e *SymbolError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("market: symbol %q is not valid for %s (did you mean %q?)", e.Symbol, e.MarketType, e.Suggestion)
	}
	return fmt.Sprintf("market: symbol %q is not valid for %s", e.Symbol, e.MarketType)
}

// ValidateSymbol enforces the market-specific symbol grammar of spec §6
// and returns a SymbolError with a best-effort suggested correction on
// failure.
func ValidateSymbol(symbol string, p Provider, t Type) error {
	if symbol == "" {
		return &SymbolError{Symbol: symbol, MarketType: t}
	}
	upper := strings.ToUpper(symbol)

	if p == OKX {
		if !strings.Contains(symbol, "-") {
			return &SymbolError{Symbol: symbol, MarketType: t, Suggestion: hyphenateGuess(upper)}
		}
		return nil
	}

	switch t {
	case Spot, FuturesUSDT:
		if strings.ContainsAny(symbol, "-_") || symbol != upper {
			return &SymbolError{Symbol: symbol, MarketType: t, Suggestion: strings.NewReplacer("-", "", "_", "").Replace(upper)}
		}
	case FuturesCoin:
		if !strings.Contains(upper, "_") {
			return &SymbolError{Symbol: symbol, MarketType: t, Suggestion: upper + "_PERP"}
		}
	case Options:
		parts := strings.Split(upper, "-")
		if len(parts) != 4 {
			return &SymbolError{Symbol: symbol, MarketType: t, Suggestion: "BASE-YYMMDD-STRIKE-C|P"}
		}
	}
	return nil
}

func hyphenateGuess(upper string) string {
	for _, quote := range []string{"USDT", "USD", "USDC"} {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return upper[:len(upper)-len(quote)] + "-" + quote
		}
	}
	return upper
}

// CanonicalFuturesCoinSymbol appends the perpetual delivery code if the
// symbol doesn't already carry one, matching vision_path_mapper.py's
// safe_symbol property for coin-margined futures.
func CanonicalFuturesCoinSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	if strings.Contains(upper, "_") {
		return upper
	}
	return upper + "_PERP"
}
