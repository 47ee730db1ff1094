// Package clock provides Clock and Sleeper implementations.
package clock

import (
	"context"
	"sync"
	"time"
)

// Real returns the actual current time and really sleeps.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d or until ctx is done.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake provides a controllable clock for testing. Sleep calls return
// immediately, advance the clock by the requested duration, and record
// it for assertions.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
	waits   []time.Duration
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Sleep records the wait and advances the clock instead of blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	f.current = f.current.Add(d)
	return nil
}

// Waits returns every duration passed to Sleep so far.
func (f *Fake) Waits() []time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]time.Duration, len(f.waits))
	copy(out, f.waits)
	return out
}
