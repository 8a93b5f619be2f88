package restsource

import (
	"testing"
	"time"
)

func TestWeightLimiter_TryAcquire(t *testing.T) {
	l := NewWeightLimiter(100)
	if !l.TryAcquire(50) {
		t.Fatal("expected first acquire of 50/100 to succeed")
	}
	if !l.TryAcquire(40) {
		t.Fatal("expected second acquire of 40 (total 90/100) to succeed")
	}
	if l.TryAcquire(20) {
		t.Fatal("expected third acquire to fail: 90+20 > 100")
	}
}

func TestWeightLimiter_WindowReset(t *testing.T) {
	l := NewWeightLimiter(10)
	l.windowStart = time.Now().Add(-2 * time.Minute)
	l.currentWeight = 10
	if !l.TryAcquire(5) {
		t.Fatal("expected window reset to allow a fresh acquire")
	}
}

func TestWeightLimiter_Ban(t *testing.T) {
	l := NewWeightLimiter(100)
	l.RecordBan(time.Now().Add(time.Minute))
	banned, remaining := l.Banned()
	if !banned {
		t.Fatal("expected limiter to report banned")
	}
	if remaining <= 0 {
		t.Errorf("expected positive remaining ban duration, got %v", remaining)
	}
	if l.TryAcquire(1) {
		t.Error("expected acquire to fail while banned")
	}
}

func TestWeightLimiter_UpdateFromHeaders(t *testing.T) {
	l := NewWeightLimiter(100)
	l.UpdateFromHeaders(80)
	if !l.TryAcquire(15) {
		t.Fatal("expected 80+15=95 <= 100 to succeed")
	}
	if l.TryAcquire(10) {
		t.Error("expected 95+10 > 100 to fail")
	}
}
