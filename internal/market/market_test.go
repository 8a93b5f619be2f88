package market

import "testing"

func TestGetCapabilities_Known(t *testing.T) {
	caps, err := GetCapabilities(Binance, Spot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.MaxLimit != 1000 {
		t.Errorf("expected spot max_limit=1000, got %d", caps.MaxLimit)
	}
}

func TestGetCapabilities_FuturesLimits(t *testing.T) {
	caps, err := GetCapabilities(Binance, FuturesUSDT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.MaxLimit != 1500 {
		t.Errorf("expected USDT futures max_limit=1500, got %d", caps.MaxLimit)
	}
}

func TestGetCapabilities_OKXLimit(t *testing.T) {
	caps, err := GetCapabilities(OKX, Spot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps.MaxLimit != 300 {
		t.Errorf("expected OKX max_limit=300, got %d", caps.MaxLimit)
	}
}

func TestGetCapabilities_Unknown(t *testing.T) {
	if _, err := GetCapabilities(OKX, Options); err == nil {
		t.Error("expected error for unsupported provider/market combination")
	}
}

func TestValidateSymbol_Spot(t *testing.T) {
	if err := ValidateSymbol("BTCUSDT", Binance, Spot); err != nil {
		t.Errorf("expected BTCUSDT to be valid, got %v", err)
	}
	if err := ValidateSymbol("btc-usdt", Binance, Spot); err == nil {
		t.Error("expected lowercase hyphenated symbol to be invalid for spot")
	}
}

func TestValidateSymbol_FuturesCoin(t *testing.T) {
	if err := ValidateSymbol("BTCUSD_PERP", Binance, FuturesCoin); err != nil {
		t.Errorf("expected BTCUSD_PERP to be valid, got %v", err)
	}
	err := ValidateSymbol("BTCUSD", Binance, FuturesCoin)
	if err == nil {
		t.Fatal("expected missing delivery code to be invalid")
	}
	symErr, ok := err.(*SymbolError)
	if !ok {
		t.Fatalf("expected *SymbolError, got %T", err)
	}
	if symErr.Suggestion != "BTCUSD_PERP" {
		t.Errorf("expected suggestion BTCUSD_PERP, got %q", symErr.Suggestion)
	}
}

func TestValidateSymbol_OKX(t *testing.T) {
	if err := ValidateSymbol("BTC-USDT", OKX, Spot); err != nil {
		t.Errorf("expected BTC-USDT to be valid for OKX, got %v", err)
	}
	if err := ValidateSymbol("BTCUSDT", OKX, Spot); err == nil {
		t.Error("expected non-hyphenated symbol to be invalid for OKX")
	}
}

func TestCanonicalFuturesCoinSymbol(t *testing.T) {
	if got := CanonicalFuturesCoinSymbol("btcusd"); got != "BTCUSD_PERP" {
		t.Errorf("got %q, want BTCUSD_PERP", got)
	}
	if got := CanonicalFuturesCoinSymbol("BTCUSD_231229"); got != "BTCUSD_231229" {
		t.Errorf("expected delivery-coded symbol unchanged, got %q", got)
	}
}

func TestInterval_Seconds(t *testing.T) {
	if Interval1h.Seconds() != 3600 {
		t.Errorf("expected 1h = 3600s, got %d", Interval1h.Seconds())
	}
	if Interval("bogus").Seconds() != 0 {
		t.Errorf("expected unknown interval to report 0 seconds")
	}
}
