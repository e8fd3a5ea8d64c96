package guard

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by caller.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter allows limit calls per key within window. A limit below 1 disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Check records a call for key and reports whether it is within the limit.
// RetryAfter is how long until the oldest call in the window ages out.
func (rl *RateLimiter) Check(key string) (Result, time.Duration) {
	if rl.limit < 1 {
		return Result{Allowed: true}, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	entries := rl.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		return Result{
			Reason: fmt.Sprintf("rate limit exceeded: %d per %s", rl.limit, rl.window),
			Guard:  "rate_limiter",
		}, valid[0].Sub(cutoff)
	}

	rl.windows[key] = append(valid, now)
	return Result{Allowed: true}, 0
}
