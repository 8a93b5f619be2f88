package availability

import (
	"testing"
	"time"

	"fcp-engine/internal/fcperrors"
	"fcp-engine/internal/market"
)

func TestLookup_KnownSymbol(t *testing.T) {
	table := NewTable("testdata", nil)
	entry, ok := table.Lookup(market.Spot, "BTCUSDT")
	if !ok {
		t.Fatal("expected BTCUSDT to be known")
	}
	want := time.Date(2017, 8, 17, 0, 0, 0, 0, time.UTC)
	if !entry.EarliestAvailable.Equal(want) {
		t.Errorf("got %v, want %v", entry.EarliestAvailable, want)
	}
}

func TestLookup_UnknownSymbolProceedsSilently(t *testing.T) {
	table := NewTable("testdata", nil)
	_, ok := table.Lookup(market.Spot, "NOSUCHSYMBOL")
	if ok {
		t.Error("expected unknown symbol to report not-found")
	}
}

func TestPreflight_RejectsTooEarlyStart(t *testing.T) {
	table := NewTable("testdata", nil)
	err := Preflight(table, market.FuturesUSDT, "BTCUSDT", time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected DataNotAvailableError")
	}
	var dnae *fcperrors.DataNotAvailableError
	if de, ok := err.(*fcperrors.DataNotAvailableError); ok {
		dnae = de
	} else {
		t.Fatalf("expected *fcperrors.DataNotAvailableError, got %T", err)
	}
	if dnae.EarliestAvailable != "2019-09-08" {
		t.Errorf("unexpected earliest_available: %s", dnae.EarliestAvailable)
	}
}

func TestPreflight_AllowsValidStart(t *testing.T) {
	table := NewTable("testdata", nil)
	err := Preflight(table, market.Spot, "BTCUSDT", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestPreflight_UnknownSymbolProceeds(t *testing.T) {
	table := NewTable("testdata", nil)
	err := Preflight(table, market.Spot, "NOSUCHSYMBOL", time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Errorf("expected unknown symbol to pass preflight silently, got %v", err)
	}
}

func TestFuturesCounterpart_WarnsWhenLaterEarliest(t *testing.T) {
	table := NewTable("testdata", nil)
	warn := FuturesCounterpart(table, market.FuturesUSDT, "BTCUSDT", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))
	if warn == nil {
		t.Fatal("expected a futures counterpart warning since futures listed later than spot request")
	}
}

func TestFuturesCounterpart_NoneWhenFuturesEarlier(t *testing.T) {
	table := NewTable("testdata", nil)
	warn := FuturesCounterpart(table, market.FuturesUSDT, "BTCUSDT", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	if warn != nil {
		t.Errorf("expected no warning, got %v", warn)
	}
}
