// Package availability implements the preflight symbol-listing lookup
// of spec §4.6: a per-market_type symbol -> (earliest_date,
// supported_intervals) table sourced from a static CSV dataset,
// memoized process-wide. Grounded on the original source's
// availability_data.py (_load_csv_data with @lru_cache(maxsize=3)),
// reimplemented with golang.org/x/sync/singleflight so concurrent
// first-lookups for the same market type collapse into one CSV parse.
package availability

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/logging"
	"fcp-engine/internal/market"
)

// Entry is one symbol's listing record.
type Entry struct {
	Symbol             string
	EarliestAvailable  time.Time
	SupportedIntervals []string
}

// csvFileFor maps market types to their static dataset file, matching
// availability_data.py's CSV_FILES map (um/cm/spot earliest-dates CSVs).
var csvFileFor = map[market.Type]string{
	market.Spot:        "spot_earliest_dates.csv",
	market.FuturesUSDT: "um_earliest_dates.csv",
	market.FuturesCoin: "cm_earliest_dates.csv",
}

// Table is a process-wide memoized availability loader.
type Table struct {
	dir    string
	group  singleflight.Group
	cache  sync.Map // market.Type -> map[string]Entry
	log    *logging.Logger
}

// NewTable creates a Table that loads CSVs from dir on first use per market type.
func NewTable(dir string, log *logging.Logger) *Table {
	if log == nil {
		log = logging.Default()
	}
	return &Table{dir: dir, log: log.WithComponent("fcp.availability")}
}

func (t *Table) load(mt market.Type) (map[string]Entry, error) {
	if v, ok := t.cache.Load(mt); ok {
		return v.(map[string]Entry), nil
	}

	v, err, _ := t.group.Do(string(mt), func() (interface{}, error) {
		if v, ok := t.cache.Load(mt); ok {
			return v, nil
		}
		filename, ok := csvFileFor[mt]
		if !ok {
			return map[string]Entry{}, nil
		}
		entries, err := t.loadCSV(filepath.Join(t.dir, filename))
		if err != nil {
			return nil, err
		}
		t.cache.Store(mt, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]Entry), nil
}

func (t *Table) loadCSV(path string) (map[string]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.log.Warn("availability dataset missing, treating as empty table", "path", path)
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("availability: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("availability: parse %s: %w", path, err)
	}

	entries := make(map[string]Entry, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue // header row or malformed line
		}
		earliest, err := time.Parse("2006-01-02", row[1])
		if err != nil {
			continue
		}
		e := Entry{Symbol: row[0], EarliestAvailable: earliest}
		if len(row) >= 3 && row[2] != "" {
			e.SupportedIntervals = splitIntervals(row[2])
		}
		entries[row[0]] = e
	}
	return entries, nil
}

func splitIntervals(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == '|' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// Lookup returns the listing entry for symbol in market type mt.
// Unknown symbols return (Entry{}, false), not an error — spec §4.6
// "Unknown symbols do not fail".
func (t *Table) Lookup(mt market.Type, symbol string) (Entry, bool) {
	entries, err := t.load(mt)
	if err != nil {
		t.log.Warn("availability table load failed, proceeding as unknown symbol", "market_type", mt, "error", err.Error())
		return Entry{}, false
	}
	e, ok := entries[symbol]
	return e, ok
}

// Preflight implements spec §4.1 step 1 for the primary market_type:
// if known and requestedStart precedes the earliest listing date,
// return a DataNotAvailableError. Unknown symbols proceed silently.
func Preflight(t *Table, mt market.Type, symbol string, requestedStart time.Time) error {
	entry, known := t.Lookup(mt, symbol)
	if !known {
		return nil
	}
	if requestedStart.Before(entry.EarliestAvailable) {
		return &fcperrors.DataNotAvailableError{
			Symbol:            symbol,
			MarketType:        string(mt),
			RequestedStart:    requestedStart.UTC().Format("2006-01-02"),
			EarliestAvailable: entry.EarliestAvailable.UTC().Format("2006-01-02"),
		}
	}
	return nil
}

// FuturesCounterpart checks whether the futures contract paired with a
// non-futures request has a later earliest-available date, returning a
// non-fatal warning to log and write to stderr (spec §4.6 "Cross-market
// futures warning"). It must not be called for futures requests.
func FuturesCounterpart(t *Table, futuresType market.Type, symbol string, requestedStart time.Time) *fcperrors.FuturesCounterpartWarning {
	entry, known := t.Lookup(futuresType, symbol)
	if !known {
		return nil
	}
	if entry.EarliestAvailable.After(requestedStart) {
		return &fcperrors.FuturesCounterpartWarning{
			Symbol:            symbol,
			FuturesMarketType: string(futuresType),
			RequestedStart:    requestedStart.UTC().Format("2006-01-02"),
			FuturesEarliest:   entry.EarliestAvailable.UTC().Format("2006-01-02"),
		}
	}
	return nil
}
