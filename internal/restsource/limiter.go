package restsource

import (
	"sync"
	"time"
)

// WeightLimiter is a fixed-window request-weight tracker adapted
// from the teacher's internal/binance/rate_limiter.go: it tracks
// accumulated weight against a per-minute budget, resetting it once a
// minute has passed since the window started, and opens a circuit
// when the venue bans the client, rather than the teacher's full
// priority/circuit-breaker machinery (order placement, account
// endpoints) which has no FCP counterpart.
type WeightLimiter struct {
	mu            sync.Mutex
	maxWeight     int
	currentWeight int
	windowStart   time.Time
	banUntil      time.Time
}

// NewWeightLimiter creates a limiter with the venue's per-minute weight budget.
func NewWeightLimiter(maxWeight int) *WeightLimiter {
	return &WeightLimiter{maxWeight: maxWeight, windowStart: time.Now()}
}

// TryAcquire reports whether a request costing weight can proceed now,
// resetting the window if a minute has elapsed.
func (l *WeightLimiter) TryAcquire(weight int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Before(l.banUntil) {
		return false
	}
	if now.Sub(l.windowStart) >= time.Minute {
		l.windowStart = now
		l.currentWeight = 0
	}
	if l.currentWeight+weight > l.maxWeight {
		return false
	}
	l.currentWeight += weight
	return true
}

// RecordBan opens the circuit until until, matching
// ParseBanUntilFromError in the teacher's limiter for 418/429 bodies
// that carry an explicit ban expiry.
func (l *WeightLimiter) RecordBan(until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.banUntil) {
		l.banUntil = until
	}
}

// UpdateFromHeaders adjusts currentWeight from the venue's
// X-MBX-USED-WEIGHT-1M-style response header, keeping the local
// tracker in sync with server-side accounting.
func (l *WeightLimiter) UpdateFromHeaders(usedWeight int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if usedWeight > l.currentWeight {
		l.currentWeight = usedWeight
	}
}

// Banned reports whether the circuit is currently open.
func (l *WeightLimiter) Banned() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Now().Before(l.banUntil) {
		return true, time.Until(l.banUntil)
	}
	return false, 0
}
