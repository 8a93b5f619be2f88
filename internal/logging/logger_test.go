package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	// Route through the same construction path as New, but write to an
	// in-memory buffer instead of stdout/stderr/a file, by temporarily
	// building a Logger with the buffer as its zerolog destination.
	l := New(&Config{Level: "DEBUG", Output: "stdout", JSONFormat: true})
	l.zl = l.zl.Output(buf)
	return l
}

func TestLogger_WithFieldsAppearInOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.WithField("symbol", "BTCUSDT").Info("fetched candles")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log line, got error %v (line: %s)", err, buf.String())
	}
	if entry["symbol"] != "BTCUSDT" {
		t.Errorf("expected symbol field, got %v", entry)
	}
	if entry["message"] != "fetched candles" {
		t.Errorf("expected message field, got %v", entry)
	}
}

func TestLogger_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "WARN", Output: "stdout", JSONFormat: true})
	l.zl = l.zl.Output(&buf)

	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below WARN level, got %q", buf.String())
	}

	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected WARN message to appear, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DEBUG, "INFO": INFO, "warning": WARN, "ERROR": ERROR, "bogus": INFO}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLogWithArgs_KeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	l.Info("request started", "venue", "binance", "symbol", "BTCUSDT")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON, got %v", err)
	}
	if entry["venue"] != "binance" || entry["symbol"] != "BTCUSDT" {
		t.Errorf("expected kv pairs in output, got %v", entry)
	}
}

func TestGenerateTraceID_Unique(t *testing.T) {
	a := GenerateTraceID()
	b := GenerateTraceID()
	if a == b {
		t.Error("expected two generated trace IDs to differ")
	}
	if len(a) != 36 {
		t.Errorf("expected a 36-char UUID string, got %d: %q", len(a), a)
	}
}
