// Package restsource implements the live REST API source: chunked
// pagination sized to the venue's per-request limit, retry with
// exponential backoff and jitter, rate-limit handling that preserves
// partial progress, and primary/backup endpoint rotation. Grounded on
// the teacher's internal/binance/client.go (Kline struct, GetKlines
// row parsing, parseFloat) and rate_limiter.go (weight tracking),
// generalized across market types/providers per spec §4.4.
package restsource

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"fcp-engine/internal/candle"
	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/logging"
	"fcp-engine/internal/market"
	"fcp-engine/internal/timeutil"
)

// Client fetches klines from a venue's REST API with pagination,
// retry, and endpoint rotation.
type Client struct {
	http        *http.Client
	caps        market.Capabilities
	endpoints   []string // primary followed by backups
	endpointIdx int
	limiter     *WeightLimiter
	retryCount  int
	log         *logging.Logger
}

// Config configures a Client.
type Config struct {
	Timeout    time.Duration
	RetryCount int
	MaxWeight  int
}

// NewClient builds a Client for one provider/market pair.
func NewClient(caps market.Capabilities, cfg Config, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Default()
	}
	endpoints := append([]string{caps.PrimaryEndpoint}, caps.BackupEndpoints...)
	maxWeight := cfg.MaxWeight
	if maxWeight <= 0 {
		maxWeight = 2400
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		caps:       caps,
		endpoints:  endpoints,
		limiter:    NewWeightLimiter(maxWeight),
		retryCount: cfg.RetryCount,
		log:        log.WithComponent("fcp.rest"),
	}
}

func (c *Client) currentEndpoint() string { return c.endpoints[c.endpointIdx] }

// rotateEndpoint advances to the next backup endpoint, matching spec
// §4.4 "Endpoint selection": a 5xx from primary triggers a backup on
// the next retry.
func (c *Client) rotateEndpoint() {
	if len(c.endpoints) > 1 {
		c.endpointIdx = (c.endpointIdx + 1) % len(c.endpoints)
		c.log.Warn("rotating to backup endpoint", "endpoint", c.currentEndpoint())
	}
}

// FetchResult carries one REST stage's accumulated rows plus the
// partial-progress flags of spec §4.4's rate-limit handling.
type FetchResult struct {
	Candles     []candle.Candle
	RateLimited bool
}

// FetchRange paginates [startUs, endUs) into windows sized to the
// venue's per-request limit, fetching sequentially with clock
// alignment (floor start, ceil end), per spec §4.4 "Pagination" and
// "Clock alignment". A rate-limit signal mid-stage returns everything
// fetched so far with RateLimited=true, never discarding prior
// progress (spec §4.4 "critical" rate-limit handling).
func (c *Client) FetchRange(ctx context.Context, symbol string, interval market.Interval, startUs, endUs int64) (FetchResult, error) {
	intervalUs := interval.Seconds() * 1_000_000
	if intervalUs <= 0 {
		return FetchResult{}, &fcperrors.UnsupportedIntervalError{Interval: string(interval), MarketType: string(c.caps.MarketType)}
	}

	windowStart := timeutil.ToUnixMicros(timeutil.FloorToInterval(timeutil.FromUnixMicros(startUs), interval))
	alignedEnd := timeutil.ToUnixMicros(timeutil.CeilToInterval(timeutil.FromUnixMicros(endUs), interval))

	var result FetchResult
	for windowStart < alignedEnd {
		windowEnd := windowStart + int64(c.caps.MaxLimit)*intervalUs
		if windowEnd > alignedEnd {
			windowEnd = alignedEnd
		}

		rows, err := c.fetchWindowWithRetry(ctx, symbol, interval, windowStart, windowEnd)
		if err != nil {
			var rl *fcperrors.RateLimitError
			if asRateLimitError(err, &rl) {
				result.RateLimited = true
				return result, nil
			}
			return result, err
		}
		result.Candles = append(result.Candles, rows...)

		if len(rows) < c.caps.MaxLimit {
			break // short page: no more data in range
		}
		windowStart = rows[len(rows)-1].OpenTime + intervalUs
	}
	return result, nil
}

func asRateLimitError(err error, target **fcperrors.RateLimitError) bool {
	if rl, ok := err.(*fcperrors.RateLimitError); ok {
		*target = rl
		return true
	}
	return false
}

// fetchWindowWithRetry retries transient failures with exponential
// backoff (min 1s, cap 120s) plus uniform jitter [0, 1s), per spec
// §4.4 "Retry policy". RateLimitError is never retried and propagates
// immediately with its original type (spec's "reraise = true").
func (c *Client) fetchWindowWithRetry(ctx context.Context, symbol string, interval market.Interval, startUs, endUs int64) ([]candle.Candle, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			wait := backoffWithJitter(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		rows, err := c.fetchWindow(ctx, symbol, interval, startUs, endUs)
		if err == nil {
			return rows, nil
		}
		if _, ok := err.(*fcperrors.RateLimitError); ok {
			return nil, err // never retried
		}
		if he, ok := err.(*fcperrors.HTTPError); ok && he.StatusCode >= 500 {
			c.rotateEndpoint()
		}
		lastErr = err
	}
	return nil, lastErr
}

func backoffWithJitter(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	if base > 120*time.Second {
		base = 120 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return base + jitter
}

func (c *Client) fetchWindow(ctx context.Context, symbol string, interval market.Interval, startUs, endUs int64) ([]candle.Candle, error) {
	const weight = 2
	if banned, remaining := c.limiter.Banned(); banned {
		return nil, &fcperrors.RateLimitError{RetryAfterSeconds: int(remaining.Seconds()), Message: "circuit open from prior ban"}
	}
	if !c.limiter.TryAcquire(weight) {
		return nil, &fcperrors.RateLimitError{RetryAfterSeconds: 60, Message: "local weight budget exhausted"}
	}

	url := fmt.Sprintf("%s%s?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
		c.currentEndpoint(), c.caps.KlinesPath, symbol, interval,
		timeutil.MicrosToMillis(startUs), timeutil.MicrosToMillis(endUs), c.caps.MaxLimit)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &fcperrors.NetworkError{Op: "build request", Err: err}
	}

	resp, err := c.http.Do(req.Request)
	if err != nil {
		return nil, &fcperrors.NetworkError{Op: "rest GET " + url, Err: err}
	}
	defer resp.Body.Close()

	if used := resp.Header.Get("X-MBX-USED-WEIGHT-1M"); used != "" {
		if n, err := strconv.Atoi(used); err == nil {
			c.limiter.UpdateFromHeaders(n)
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
		retryAfter := 60
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if n, err := strconv.Atoi(ra); err == nil {
				retryAfter = n
			}
		}
		return nil, &fcperrors.RateLimitError{RetryAfterSeconds: retryAfter, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 500 {
		return nil, &fcperrors.HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &fcperrors.APIError{Code: resp.StatusCode, Message: resp.Status}
	}

	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &fcperrors.JSONDecodeError{Err: err}
	}

	candles := make([]candle.Candle, 0, len(raw))
	for _, row := range raw {
		c, err := parseKlineRow(row, interval)
		if err != nil {
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseKlineRow parses one element of the wire array form (spec §6
// "Kline wire schema"): [open_time, open, high, low, close, volume,
// close_time, quote_asset_volume, number_of_trades,
// taker_buy_base_asset_volume, taker_buy_quote_asset_volume, ignore].
// The trailing "ignore" element is dropped.
func parseKlineRow(row []interface{}, interval market.Interval) (candle.Candle, error) {
	if len(row) < 11 {
		return candle.Candle{}, fmt.Errorf("restsource: kline row too short: %d fields", len(row))
	}
	openMs, err := toInt64(row[0])
	if err != nil {
		return candle.Candle{}, err
	}
	closeMs, err := toInt64(row[6])
	if err != nil {
		return candle.Candle{}, err
	}

	open, _ := parseFloat(row[1])
	high, _ := parseFloat(row[2])
	low, _ := parseFloat(row[3])
	closeP, _ := parseFloat(row[4])
	volume, _ := parseFloat(row[5])
	quoteVol, _ := parseFloat(row[7])
	count, _ := toInt64(row[8])
	takerBuy, _ := parseFloat(row[9])
	takerBuyQuote, _ := parseFloat(row[10])

	return candle.Candle{
		OpenTime: timeutil.MillisToMicros(openMs), Open: open, High: high, Low: low, Close: closeP, Volume: volume,
		CloseTime: timeutil.MillisToMicros(closeMs), QuoteAssetVolume: quoteVol, Count: count,
		TakerBuyVolume: takerBuy, TakerBuyQuoteVolume: takerBuyQuote,
	}, nil
}

// parseFloat handles both string and float64 representations, mirroring
// the teacher's internal/binance/client.go parseFloat helper.
func parseFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("restsource: unexpected type %T for float field", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch val := v.(type) {
	case float64:
		return int64(val), nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("restsource: unexpected type %T for int field", v)
	}
}
