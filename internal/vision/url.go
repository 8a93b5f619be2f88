// Package vision implements the bulk historical archive source: URL
// derivation, download with checksum verification, and zip/CSV decode,
// grounded on the original source's vision_path_mapper.py and
// vision_download.py.
package vision

import (
	"fmt"
	"time"

	"fcp-engine/internal/market"
)

const baseURL = "https://data.binance.vision/data"

// PathComponents mirrors vision_path_mapper.py's PathComponents
// dataclass: the pieces needed to derive the remote archive URL and
// file name from one key. The local cache path is derived separately
// by cache.Store.Path.
type PathComponents struct {
	MarketPath string // spot | futures/um | futures/cm | options
	ChartPath  string // klines | fundingRate
	Symbol     string // canonicalized per market (e.g. _PERP appended)
	Interval   market.Interval
	Date       time.Time
}

// SafeSymbol returns the Vision-canonical symbol, appending the
// perpetual delivery code for coin-margined futures symbols that lack
// one, matching PathComponents.safe_symbol in the original source.
func (c PathComponents) SafeSymbol() string {
	if c.MarketPath == "futures/cm" {
		return market.CanonicalFuturesCoinSymbol(c.Symbol)
	}
	return c.Symbol
}

// NewPathComponents builds PathComponents from a cache/request key.
func NewPathComponents(mt market.Type, chart market.ChartType, symbol string, interval market.Interval, date time.Time) PathComponents {
	return PathComponents{
		MarketPath: marketPath(mt),
		ChartPath:  market.ChartPath(chart),
		Symbol:     symbol,
		Interval:   interval,
		Date:       date,
	}
}

func marketPath(t market.Type) string {
	switch t {
	case market.FuturesUSDT:
		return "futures/um"
	case market.FuturesCoin:
		return "futures/cm"
	case market.Options:
		return "options"
	default:
		return "spot"
	}
}

// RemoteURL derives the Vision archive URL per spec §6's grammar:
// https://data.binance.vision/data/{market_path}/daily/{chart_path}/{SYMBOL}/{interval}/{SYMBOL}-{interval}-{date}.zip
func (c PathComponents) RemoteURL() string {
	symbol := c.SafeSymbol()
	dateStr := c.Date.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s/%s/daily/%s/%s/%s/%s-%s-%s.zip",
		baseURL, c.MarketPath, c.ChartPath, symbol, c.Interval, symbol, c.Interval, dateStr)
}

// ChecksumURL is the .CHECKSUM sibling of RemoteURL.
func (c PathComponents) ChecksumURL() string { return c.RemoteURL() + ".CHECKSUM" }

// FileName is the base name of the .zip archive. The downloader uses it
// only to label checksum errors; the zip entry and the .CHECKSUM file
// name are not matched against it.
func (c PathComponents) FileName() string {
	symbol := c.SafeSymbol()
	dateStr := c.Date.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s-%s-%s.zip", symbol, c.Interval, dateStr)
}
