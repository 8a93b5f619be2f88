package restsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fcp-engine/internal/market"
)

func testCapabilities(baseURL string) market.Capabilities {
	return market.Capabilities{
		Provider:        market.Binance,
		MarketType:      market.Spot,
		PrimaryEndpoint: baseURL,
		KlinesPath:      "/api/v3/klines",
		MaxLimit:        2,
	}
}

func klineRow(openMs int64) []interface{} {
	return []interface{}{
		openMs, "100.0", "110.0", "90.0", "105.0", "10.5",
		openMs + 59999, "1000.0", 5, "5.0", "500.0", "0",
	}
}

func TestClient_FetchRange_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := [][]interface{}{klineRow(0), klineRow(60000)}
		json.NewEncoder(w).Encode(rows)
	}))
	defer server.Close()

	client := NewClient(testCapabilities(server.URL), Config{Timeout: 5 * time.Second, RetryCount: 1, MaxWeight: 2400}, nil)
	result, err := client.FetchRange(context.Background(), "BTCUSDT", market.Interval1m, 0, 120*1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candles) == 0 {
		t.Fatal("expected candles to be parsed")
	}
	if result.Candles[0].Open != 100.0 {
		t.Errorf("expected open=100.0, got %v", result.Candles[0].Open)
	}
}

func TestClient_FetchRange_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testCapabilities(server.URL), Config{Timeout: 5 * time.Second, RetryCount: 2, MaxWeight: 2400}, nil)
	result, err := client.FetchRange(context.Background(), "BTCUSDT", market.Interval1m, 0, 120*1_000_000)
	if err != nil {
		t.Fatalf("expected rate limit to surface as partial result, not error: %v", err)
	}
	if !result.RateLimited {
		t.Error("expected RateLimited=true")
	}
}

func TestParseFloat(t *testing.T) {
	if v, err := parseFloat("1.5"); err != nil || v != 1.5 {
		t.Errorf("string form: got %v, %v", v, err)
	}
	if v, err := parseFloat(2.5); err != nil || v != 2.5 {
		t.Errorf("float64 form: got %v, %v", v, err)
	}
	if _, err := parseFloat(true); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(attempt)
		if d < 0 || d > 121*time.Second {
			t.Errorf("attempt %d: backoff %v out of expected bounds", attempt, d)
		}
	}
}
