// Package throttle provides pure token bucket arithmetic for request
// rate limiting. All functions are deterministic.
package throttle

import "time"

// Config holds bucket parameters (value type).
type Config struct {
	Capacity float64 // max requests per minute, also the bucket ceiling
}

// State holds bucket counters (value type). Invariant: 0 <= Tokens <= Capacity.
// Bucket state is in-memory only and never persisted.
type State struct {
	Tokens     float64
	LastRefill time.Time
}

// NewState returns a full bucket.
func NewState(cfg Config, now time.Time) State {
	return State{Tokens: cfg.Capacity, LastRefill: now}
}

// Refill adds Capacity tokens per 60 seconds of elapsed wall-clock time,
// capped at Capacity. PURE.
func Refill(s State, cfg Config, now time.Time) State {
	elapsed := now.Sub(s.LastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.Tokens += elapsed / 60.0 * cfg.Capacity
	if s.Tokens > cfg.Capacity {
		s.Tokens = cfg.Capacity
	}
	s.LastRefill = now
	return s
}

// Acquire refills the bucket and attempts to take one token.
// When fewer than one token is available it reports the exact wait for
// the next token: (1 - tokens) * (60 / capacity) seconds.
// The caller must serialize Acquire calls on shared state so that
// refill and decrement happen as one atomic step.
func Acquire(s State, cfg Config, now time.Time) (granted bool, wait time.Duration, next State) {
	s = Refill(s, cfg, now)

	if s.Tokens < 1 {
		secs := (1 - s.Tokens) * (60.0 / cfg.Capacity)
		return false, time.Duration(secs * float64(time.Second)), s
	}

	s.Tokens--
	return true, 0, s
}
