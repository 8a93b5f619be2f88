package vision

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"fcp-engine/internal/candle"
	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/logging"
	"fcp-engine/internal/market"
	"fcp-engine/internal/timeutil"
)

// Downloader fetches, verifies, and decodes daily Vision archives.
// Grounded on vision_download.py's VisionDownloadManager, rebuilt
// around retryablehttp's CheckRetry hook instead of a manual retry
// loop so 4xx is terminal and 5xx/network errors retry per the
// configured count.
type Downloader struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	concurrency       int
	freshnessLag      time.Duration
	log               *logging.Logger
}

// Config configures a Downloader.
type Config struct {
	Timeout           time.Duration
	RetryCount        int
	Concurrency       int
	RequestsPerSecond int
	FreshnessLag      time.Duration
}

// NewDownloader builds a Downloader. Per-file retries never fire for
// 4xx (terminal for that day per spec §4.3 "Download policy") because
// CheckRetry below only retries 5xx and network errors.
func NewDownloader(cfg Config, log *logging.Logger) *Downloader {
	if log == nil {
		log = logging.Default()
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryCount
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 120 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	rc.CheckRetry = checkRetryNoTerminal4xx

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Downloader{
		client:       rc,
		limiter:      rate.NewLimiter(rate.Limit(rps), rps),
		concurrency:  concurrency,
		freshnessLag: cfg.FreshnessLag,
		log:          log.WithComponent("fcp.vision"),
	}
}

// checkRetryNoTerminal4xx retries transient network errors and 5xx
// responses but never 4xx, matching spec §4.3's "4xx is terminal for
// that day; 5xx and network errors retry up to the configured count".
func checkRetryNoTerminal4xx(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418 {
		return false, nil // rate limit short-circuits retries for that day
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// DayResult carries the outcome of one day's Vision fetch.
type DayResult struct {
	Date    time.Time
	Candles []candle.Candle
	Err     error // nil on success; a *fcperrors.DataFreshnessError, *fcperrors.DownloadFailedError, *fcperrors.ChecksumVerificationError, or the context's error otherwise
}

// FetchDays downloads and decodes each day in days with bounded
// parallelism (errgroup, paced by the token-bucket limiter), per spec
// §5 "bounded parallelism" and §4.1 step 4. Failures are confined to
// their day; callers inspect DayResult.Err per day rather than
// aborting the whole batch.
func (d *Downloader) FetchDays(ctx context.Context, mt market.Type, chart market.ChartType, symbol string, interval market.Interval, days []time.Time) []DayResult {
	results := make([]DayResult, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			if err := d.limiter.Wait(gctx); err != nil {
				results[i] = DayResult{Date: day, Err: err}
				return nil
			}
			candles, err := d.fetchDay(gctx, mt, chart, symbol, interval, day)
			results[i] = DayResult{Date: day, Candles: candles, Err: err}
			return nil // per-day errors never abort the group
		})
	}
	_ = g.Wait()
	return results
}

func (d *Downloader) fetchDay(ctx context.Context, mt market.Type, chart market.ChartType, symbol string, interval market.Interval, day time.Time) ([]candle.Candle, error) {
	comps := NewPathComponents(mt, chart, symbol, interval, day)
	zipURL := comps.RemoteURL()

	zipBytes, err := d.get(ctx, zipURL)
	if err != nil {
		if isNotFound(err) {
			if time.Since(day) < d.freshnessLag {
				return nil, &fcperrors.DataFreshnessError{Date: day.Format("2006-01-02")}
			}
			return nil, &fcperrors.DownloadFailedError{URL: zipURL, Reason: "not found"}
		}
		return nil, &fcperrors.DownloadFailedError{URL: zipURL, Reason: err.Error()}
	}

	checksumBytes, err := d.get(ctx, comps.ChecksumURL())
	if err == nil {
		if verr := verifyChecksum(checksumBytes, zipBytes, comps.FileName()); verr != nil {
			return nil, verr
		}
	} else {
		d.log.Warn("checksum file unavailable, proceeding unverified", "url", comps.ChecksumURL())
	}

	candles, err := decodeZipCSV(zipBytes, interval)
	if err != nil {
		return nil, &fcperrors.DownloadFailedError{URL: zipURL, Reason: fmt.Sprintf("decode error: %v", err)}
	}
	return candles, nil
}

type notFoundError struct{ status int }

func (e *notFoundError) Error() string { return fmt.Sprintf("http status %d", e.status) }
func isNotFound(err error) bool {
	nf, ok := err.(*notFoundError)
	return ok && nf.status == http.StatusNotFound
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &fcperrors.NetworkError{Op: "vision GET " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &notFoundError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &fcperrors.HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	return io.ReadAll(resp.Body)
}

// verifyChecksum parses the whitespace-separated "hexdigest filename"
// pair from the .CHECKSUM body and compares against the SHA-256 of
// zipBytes, per spec §4.3 "Integrity".
func verifyChecksum(checksumBody, zipBytes []byte, expectedFileName string) error {
	fields := strings.Fields(string(checksumBody))
	if len(fields) < 1 {
		return &fcperrors.ChecksumVerificationError{URL: expectedFileName, Expected: "", Actual: ""}
	}
	expected := strings.ToLower(fields[0])

	sum := sha256.Sum256(zipBytes)
	actual := hex.EncodeToString(sum[:])

	if expected != actual {
		return &fcperrors.ChecksumVerificationError{URL: expectedFileName, Expected: expected, Actual: actual}
	}
	return nil
}

// decodeZipCSV extracts the single CSV entry from a Vision zip archive
// and parses its rows into candles, detecting the timestamp unit
// dynamically (13-digit ms vs 16-digit µs) per spec §4.3 "Decode".
func decodeZipCSV(zipBytes []byte, interval market.Interval) ([]candle.Candle, error) {
	r, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("vision: invalid zip: %w", err)
	}
	if len(r.File) == 0 {
		return nil, fmt.Errorf("vision: zip archive contains no files")
	}

	f, err := r.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("vision: open zip entry: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &fcperrors.JSONDecodeError{Err: err}
	}

	candles := make([]candle.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 11 {
			continue
		}
		if _, err := strconv.ParseInt(row[0], 10, 64); err != nil {
			continue // header row
		}
		c, err := parseKlineRow(row, interval)
		if err != nil {
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKlineRow(row []string, interval market.Interval) (candle.Candle, error) {
	openTimeRaw, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return candle.Candle{}, err
	}
	closeTimeRaw, err := strconv.ParseInt(row[6], 10, 64)
	if err != nil {
		return candle.Candle{}, err
	}

	open, _ := strconv.ParseFloat(row[1], 64)
	high, _ := strconv.ParseFloat(row[2], 64)
	low, _ := strconv.ParseFloat(row[3], 64)
	closeP, _ := strconv.ParseFloat(row[4], 64)
	volume, _ := strconv.ParseFloat(row[5], 64)
	quoteVol, _ := strconv.ParseFloat(row[7], 64)
	count, _ := strconv.ParseInt(row[8], 10, 64)
	takerBuy, _ := strconv.ParseFloat(row[9], 64)
	takerBuyQuote, _ := strconv.ParseFloat(row[10], 64)

	openUs := timeutil.DetectUnitAndNormalizeUs(openTimeRaw)
	closeUs := timeutil.DetectUnitAndNormalizeUs(closeTimeRaw)
	if closeUs == 0 {
		closeUs = timeutil.CloseTime(openUs, interval)
	}

	return candle.Candle{
		OpenTime: openUs, Open: open, High: high, Low: low, Close: closeP, Volume: volume,
		CloseTime: closeUs, QuoteAssetVolume: quoteVol, Count: count,
		TakerBuyVolume: takerBuy, TakerBuyQuoteVolume: takerBuyQuote,
	}, nil
}
