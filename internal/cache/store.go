// Package cache implements the local columnar cache layer: a
// deterministic on-disk tree of daily Arrow IPC files, written
// atomically and read with a magic-byte sniff, per spec §4.2. Legacy
// Parquet files are recognized by their magic bytes but not decoded;
// they are treated as cache misses.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"fcp-engine/internal/candle"
	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/logging"
	"fcp-engine/internal/market"
)

// Key identifies one daily cache file, matching the path grammar
// {cache_root}/{provider}/{market_path}/{chart_path}/daily/{SYMBOL}/{interval}/{YYYY-MM-DD}.arrow
type Key struct {
	Provider market.Provider
	Market   market.Type
	Chart    market.ChartType
	Symbol   string
	Interval market.Interval
	Date     time.Time // truncated to the UTC calendar day
}

// Schema is the canonical Arrow schema matching candle.Candle / spec §4.7.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "open_time", Type: arrow.PrimitiveTypes.Int64},
	{Name: "open", Type: arrow.PrimitiveTypes.Float64},
	{Name: "high", Type: arrow.PrimitiveTypes.Float64},
	{Name: "low", Type: arrow.PrimitiveTypes.Float64},
	{Name: "close", Type: arrow.PrimitiveTypes.Float64},
	{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
	{Name: "close_time", Type: arrow.PrimitiveTypes.Int64},
	{Name: "quote_asset_volume", Type: arrow.PrimitiveTypes.Float64},
	{Name: "count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "taker_buy_volume", Type: arrow.PrimitiveTypes.Float64},
	{Name: "taker_buy_quote_volume", Type: arrow.PrimitiveTypes.Float64},
}, nil)

var arrowMagic = []byte("ARROW1")
var parquetMagic = []byte("PAR1")

// Store implements the cache's read/write/validate/exists/list
// operations over a root directory.
type Store struct {
	root  string
	alloc memory.Allocator
	log   *logging.Logger
}

// NewStore creates a Store rooted at root.
func NewStore(root string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Default()
	}
	return &Store{root: root, alloc: memory.NewGoAllocator(), log: log.WithComponent("fcp.cache")}
}

// Path returns the on-disk path for key, following spec §4.2's grammar.
func (s *Store) Path(key Key) string {
	marketPath := marketPathComponent(key.Market)
	chartPath := market.ChartPath(key.Chart)
	dateStr := key.Date.UTC().Format("2006-01-02")
	return filepath.Join(s.root, string(key.Provider), marketPath, chartPath, "daily",
		key.Symbol, string(key.Interval), dateStr+".arrow")
}

func marketPathComponent(t market.Type) string {
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

// Exists reports whether a cache file is present for key.
func (s *Store) Exists(key Key) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Read loads the frame for key. The columns argument is accepted but
// not applied: every canonical column is decoded into each Candle.
// On any I/O/decode/schema error it
// returns (nil, nil) and logs a recoverable warning — callers must not
// treat a nil frame as fatal (spec §4.2 "do not raise").
func (s *Store) Read(key Key, columns []string) (*candle.SourceFrame, error) {
	path := s.Path(key)
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("cache read failed to open file", "path", path, "error", err.Error())
		}
		return nil, nil
	}
	defer f.Close()

	header := make([]byte, 6)
	n, _ := f.Read(header)
	if n < 6 {
		s.log.Warn("cache file too small to sniff", "path", path)
		return nil, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil
	}

	switch {
	case hasPrefix(header, arrowMagic):
		return s.readArrow(f, path)
	case hasPrefix(header, parquetMagic):
		s.log.Warn("legacy parquet cache file encountered; read-only compatibility path not implemented for parquet decode", "path", path)
		return nil, nil
	default:
		s.log.Warn("cache file has unrecognized magic bytes, treating as corrupt", "path", path)
		return nil, nil
	}
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *Store) readArrow(f *os.File, path string) (*candle.SourceFrame, error) {
	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(s.alloc))
	if err != nil {
		s.log.Warn("cache file failed arrow decode", "path", path, "error", err.Error())
		return nil, nil
	}
	defer reader.Release()

	if !reader.Schema().Equal(Schema) {
		s.log.Warn("cache file schema does not match canonical schema", "path", path)
		return nil, nil
	}

	var candles []candle.Candle
	for reader.Next() {
		candles = append(candles, recordToCandles(reader.Record())...)
	}
	if err := reader.Err(); err != nil {
		s.log.Warn("cache file record decode failed", "path", path, "error", err.Error())
		return nil, nil
	}
	if len(candles) == 0 {
		return nil, nil
	}
	return &candle.SourceFrame{Source: candle.Cache, Candles: candles}, nil
}

func recordToCandles(rec arrow.Record) []candle.Candle {
	rows := int(rec.NumRows())
	out := make([]candle.Candle, rows)

	openTime := rec.Column(0).(*array.Int64)
	open := rec.Column(1).(*array.Float64)
	high := rec.Column(2).(*array.Float64)
	low := rec.Column(3).(*array.Float64)
	closeCol := rec.Column(4).(*array.Float64)
	volume := rec.Column(5).(*array.Float64)
	closeTime := rec.Column(6).(*array.Int64)
	quoteVol := rec.Column(7).(*array.Float64)
	count := rec.Column(8).(*array.Int64)
	takerBuy := rec.Column(9).(*array.Float64)
	takerBuyQuote := rec.Column(10).(*array.Float64)

	for i := 0; i < rows; i++ {
		out[i] = candle.Candle{
			OpenTime:            openTime.Value(i),
			Open:                open.Value(i),
			High:                high.Value(i),
			Low:                 low.Value(i),
			Close:               closeCol.Value(i),
			Volume:              volume.Value(i),
			CloseTime:           closeTime.Value(i),
			QuoteAssetVolume:    quoteVol.Value(i),
			Count:               count.Value(i),
			TakerBuyVolume:      takerBuy.Value(i),
			TakerBuyQuoteVolume: takerBuyQuote.Value(i),
		}
	}
	return out
}

// Write persists candles as a daily Arrow IPC file, writing to a
// sibling temp file and atomically renaming into place. Empty frames
// must not create files (spec §4.2). On any error the temp file is
// removed before returning, matching the original source's
// save_to_cache partial-write cleanup.
func (s *Store) Write(key Key, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cache: create directory: %w", err)
	}

	tmpPath := path + fmt.Sprintf(".tmp-%d", time.Now().UnixNano())
	if err := s.writeArrowFile(tmpPath, candles); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: write temp file: %w", err)
	}

	f, err := os.OpenFile(tmpPath, os.O_RDWR, 0644)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: atomic rename: %w", err)
	}

	s.log.Debug("cache write committed", "path", path, "rows", len(candles))
	return nil
}

func (s *Store) writeArrowFile(path string, candles []candle.Candle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer, err := ipc.NewFileWriter(f, ipc.WithSchema(Schema), ipc.WithAllocator(s.alloc))
	if err != nil {
		return err
	}

	builder := array.NewRecordBuilder(s.alloc, Schema)
	defer builder.Release()

	for _, c := range candles {
		builder.Field(0).(*array.Int64Builder).Append(c.OpenTime)
		builder.Field(1).(*array.Float64Builder).Append(c.Open)
		builder.Field(2).(*array.Float64Builder).Append(c.High)
		builder.Field(3).(*array.Float64Builder).Append(c.Low)
		builder.Field(4).(*array.Float64Builder).Append(c.Close)
		builder.Field(5).(*array.Float64Builder).Append(c.Volume)
		builder.Field(6).(*array.Int64Builder).Append(c.CloseTime)
		builder.Field(7).(*array.Float64Builder).Append(c.QuoteAssetVolume)
		builder.Field(8).(*array.Int64Builder).Append(c.Count)
		builder.Field(9).(*array.Float64Builder).Append(c.TakerBuyVolume)
		builder.Field(10).(*array.Float64Builder).Append(c.TakerBuyQuoteVolume)
	}

	rec := builder.NewRecord()
	defer rec.Release()

	if err := writer.Write(rec); err != nil {
		return err
	}
	return writer.Close()
}

// Validate checks existence, a minimum size threshold, optional TTL
// age, and schema conformance, per spec §4.2 `validate(path)`. It
// performs no SHA-256 checksum comparison.
func (s *Store) Validate(key Key, ttl time.Duration) error {
	path := s.Path(key)
	info, err := os.Stat(path)
	if err != nil {
		return &fcperrors.CacheValidationError{Path: path, Reason: "file does not exist"}
	}
	const minSizeBytes = 8 // arrow footer + magic lower bound
	if info.Size() < minSizeBytes {
		return &fcperrors.CacheValidationError{Path: path, Reason: "file below minimum size threshold"}
	}
	if ttl > 0 && time.Since(info.ModTime()) > ttl {
		return &fcperrors.CacheValidationError{Path: path, Reason: "file exceeds configured TTL"}
	}
	frame, err := s.Read(key, nil)
	if err != nil || frame == nil {
		return &fcperrors.CacheValidationError{Path: path, Reason: "schema decode failed"}
	}
	return nil
}

// List enumerates the cache keys present for a symbol/interval subtree,
// used by diagnostics and tests.
func (s *Store) List(provider market.Provider, m market.Type, chart market.ChartType, symbol string, interval market.Interval) ([]time.Time, error) {
	dir := filepath.Join(s.root, string(provider), marketPathComponent(m), market.ChartPath(chart), "daily", symbol, string(interval))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".arrow" {
			continue
		}
		dateStr := name[:len(name)-len(".arrow")]
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	return dates, nil
}
