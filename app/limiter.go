// Package app wires the domain logic into application services: the
// rate limiter facade, the transfer engine, and batch orchestration.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tubegate/tubegate/adapters/metrics"
	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/domain/throttle"
	"github.com/tubegate/tubegate/ports"
)

// RateLimiterConfig carries the tunables for both limiting layers.
type RateLimiterConfig struct {
	DailyQuota           int
	MaxRequestsPerMinute int
}

// RateLimiterDeps carries the dependencies for a RateLimiter.
type RateLimiterDeps struct {
	Store   ports.LedgerStore
	Clock   ports.Clock
	Sleeper ports.Sleeper
	Logger  zerolog.Logger
	Metrics *metrics.Collector // optional
}

// RateLimiter is the single entry point for both limiting concerns: the
// daily quota ledger and the per-minute token bucket. All state lives
// behind one mutex; the domain functions stay pure.
type RateLimiter struct {
	mu     sync.Mutex
	ledger quota.State
	bucket throttle.State

	bucketCfg throttle.Config
	store     ports.LedgerStore
	clock     ports.Clock
	sleeper   ports.Sleeper
	log       zerolog.Logger
	metrics   *metrics.Collector
}

// NewRateLimiter loads the persisted ledger (rolling it over when the
// reset time has passed), or starts a fresh one, and fills the bucket.
func NewRateLimiter(ctx context.Context, deps RateLimiterDeps, cfg RateLimiterConfig) (*RateLimiter, error) {
	now := deps.Clock.Now()

	r := &RateLimiter{
		bucketCfg: throttle.Config{Capacity: float64(cfg.MaxRequestsPerMinute)},
		bucket:    throttle.NewState(throttle.Config{Capacity: float64(cfg.MaxRequestsPerMinute)}, now),
		store:     deps.Store,
		clock:     deps.Clock,
		sleeper:   deps.Sleeper,
		log:       deps.Logger,
		metrics:   deps.Metrics,
	}

	state, found, err := deps.Store.Load(ctx)
	if err != nil {
		deps.Logger.Warn().Err(err).Msg("failed to load quota ledger, starting fresh")
		found = false
	}

	if found {
		if state.DailyQuota != cfg.DailyQuota {
			// Configured ceiling changed since the ledger was written.
			state.DailyQuota = cfg.DailyQuota
			state.Remaining = cfg.DailyQuota - state.Used
		}
		rolled, reset := quota.Rollover(state, now)
		if reset {
			deps.Logger.Info().
				Time("next_reset", rolled.ResetTime).
				Msg("daily quota window reset")
		}
		r.ledger = rolled
	} else {
		r.ledger = quota.NewState(cfg.DailyQuota, now)
	}

	r.publishGauges(r.ledger)
	return r, nil
}

// rolledLedger applies any pending daily rollover and returns the
// current ledger. Callers must hold r.mu.
func (r *RateLimiter) rolledLedger() quota.State {
	rolled, reset := quota.Rollover(r.ledger, r.clock.Now())
	if reset {
		r.log.Info().Time("next_reset", rolled.ResetTime).Msg("daily quota window reset")
		r.ledger = rolled
	}
	return r.ledger
}

// CheckQuota reports whether op fits in the remaining daily budget.
func (r *RateLimiter) CheckQuota(op quota.Operation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.rolledLedger()
	ok := quota.Check(s, op)
	if !ok {
		r.log.Warn().
			Str("operation", string(op)).
			Int("required", quota.Cost(op)).
			Int("remaining", s.Remaining).
			Time("reset_time", s.ResetTime).
			Msg("insufficient quota")
	}
	return ok
}

// CanPerformOperations reports whether a set of counted operations fits
// in the remaining budget together.
func (r *RateLimiter) CanPerformOperations(ops map[quota.Operation]int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return quota.CheckAll(r.rolledLedger(), ops)
}

// EstimateOperationCost returns the unit cost of op without touching
// any state.
func (r *RateLimiter) EstimateOperationCost(op quota.Operation) int {
	return quota.Cost(op)
}

// WaitForToken blocks until a request token is available or ctx is
// done. Waits are computed from the bucket arithmetic, not polled.
func (r *RateLimiter) WaitForToken(ctx context.Context) error {
	start := r.clock.Now()
	for {
		r.mu.Lock()
		granted, wait, next := throttle.Acquire(r.bucket, r.bucketCfg, r.clock.Now())
		r.bucket = next
		r.mu.Unlock()

		if granted {
			if r.metrics != nil {
				r.metrics.ThrottleWaitSeconds.Observe(r.clock.Now().Sub(start).Seconds())
			}
			return nil
		}

		r.log.Debug().Dur("wait", wait).Msg("request rate limit reached, waiting")
		if err := r.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// ConsumeQuota debits op from the ledger and persists it. Persistence
// is best effort: a failed save is logged and the in-memory ledger
// stays authoritative for the rest of the run.
func (r *RateLimiter) ConsumeQuota(ctx context.Context, op quota.Operation, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ledger = quota.Consume(r.rolledLedger(), op, details, r.clock.Now())

	r.log.Info().
		Str("operation", string(op)).
		Int("cost", quota.Cost(op)).
		Int("remaining", r.ledger.Remaining).
		Msg("quota consumed")

	if r.metrics != nil {
		r.metrics.QuotaConsumed.WithLabelValues(string(op)).Add(float64(quota.Cost(op)))
	}
	r.publishGauges(r.ledger)

	if err := r.store.Save(ctx, r.ledger); err != nil {
		r.log.Error().Err(err).Msg("failed to persist quota ledger")
	}
}

// Reconfigure applies new tunables to the running limiter. The used
// count is kept; the remaining budget is recomputed against the new
// ceiling. Bucket tokens above the new capacity are forfeited.
func (r *RateLimiter) Reconfigure(cfg RateLimiterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.rolledLedger()
	if s.DailyQuota != cfg.DailyQuota {
		s.DailyQuota = cfg.DailyQuota
		s.Remaining = cfg.DailyQuota - s.Used
		r.ledger = s
		r.log.Info().
			Int("daily_quota", cfg.DailyQuota).
			Int("remaining", s.Remaining).
			Msg("daily quota ceiling updated")
	}

	capacity := float64(cfg.MaxRequestsPerMinute)
	if r.bucketCfg.Capacity != capacity {
		r.bucketCfg.Capacity = capacity
		if r.bucket.Tokens > capacity {
			r.bucket.Tokens = capacity
		}
		r.log.Info().
			Int("max_rpm", cfg.MaxRequestsPerMinute).
			Msg("request rate limit updated")
	}

	r.publishGauges(r.ledger)
}

// Status returns a reporting view of the current ledger.
func (r *RateLimiter) Status() quota.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return quota.Summarize(r.rolledLedger())
}

// Close persists the ledger one final time.
func (r *RateLimiter) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Save(ctx, r.ledger)
}

func (r *RateLimiter) publishGauges(s quota.State) {
	if r.metrics == nil {
		return
	}
	r.metrics.QuotaUsedUnits.Set(float64(s.Used))
	r.metrics.QuotaRemainingUnits.Set(float64(s.Remaining))
}
