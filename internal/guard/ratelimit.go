package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attaboy/sportsbet/internal/domain"
)

// RateLimiter implements a sliding window rate limiter. Keys whose window
// has expired are dropped at most once per window, so memory is bounded by
// the keys seen in the last two windows.
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	limit     int
	window    time.Duration
	clock     Clock
	lastSweep time.Time
}

// NewRateLimiter creates a rate limiter with the given limit per window.
// A nil clock uses the system clock.
func NewRateLimiter(limit int, window time.Duration, clock Clock) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		clock:   orSystem(clock),
	}
}

// Check returns a GuardResult indicating whether the key is within rate limits.
// Allowed calls count against the window; rejected ones do not.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	entries := rl.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %d/%s", rl.limit, rl.window),
			Guard:   "rate_limiter",
		}
	}

	rl.windows[key] = append(valid, now)
	return domain.GuardResult{Allowed: true}
}

// Sweep drops keys whose whole window has expired.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	rl.lastSweep = now
	return rl.sweep(now.Add(-rl.window))
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *RateLimiter) sweep(cutoff time.Time) int {
	removed := 0
	for key, entries := range rl.windows {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}
