package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tubegate/tubegate/adapters/clock"
	"github.com/tubegate/tubegate/adapters/memory"
	"github.com/tubegate/tubegate/app"
	"github.com/tubegate/tubegate/domain/quota"
)

func newLimiter(t *testing.T, store *memory.LedgerStore, fake *clock.Fake, daily, rpm int) *app.RateLimiter {
	t.Helper()
	limiter, err := app.NewRateLimiter(context.Background(),
		app.RateLimiterDeps{
			Store:   store,
			Clock:   fake,
			Sleeper: fake,
			Logger:  zerolog.Nop(),
		},
		app.RateLimiterConfig{DailyQuota: daily, MaxRequestsPerMinute: rpm},
	)
	if err != nil {
		t.Fatal(err)
	}
	return limiter
}

func TestCheckQuota_GatesOnRemaining(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 2000, 60)

	if !limiter.CheckQuota(quota.OpVideoUpload) {
		t.Error("upload should fit in a fresh 2000 unit budget")
	}

	limiter.ConsumeQuota(context.Background(), quota.OpVideoUpload, "first")

	if limiter.CheckQuota(quota.OpVideoUpload) {
		t.Error("second upload should not fit in 400 remaining units")
	}
	if !limiter.CheckQuota(quota.OpVideoList) {
		t.Error("cheap list operation should still fit")
	}
}

func TestConsumeQuota_PersistsLedger(t *testing.T) {
	store := memory.NewLedgerStore()
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, store, fake, 10000, 60)

	limiter.ConsumeQuota(context.Background(), quota.OpVideoUpload, "movie")

	state, found, _ := store.Load(context.Background())
	if !found {
		t.Fatal("ledger not persisted")
	}
	if state.Used != 1600 {
		t.Errorf("persisted used = %d, want 1600", state.Used)
	}
	if len(state.Operations) != 1 || state.Operations[0].Details != "movie" {
		t.Errorf("audit log = %+v", state.Operations)
	}
}

func TestConsumeQuota_SaveFailureIsBestEffort(t *testing.T) {
	store := memory.NewLedgerStore()
	store.SaveErr = errors.New("disk full")
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, store, fake, 10000, 60)

	limiter.ConsumeQuota(context.Background(), quota.OpVideoUpload, "movie")

	// In-memory ledger stays authoritative despite the failed save.
	if got := limiter.Status().Used; got != 1600 {
		t.Errorf("used = %d, want 1600", got)
	}
}

func TestNewRateLimiter_ResumesPersistedLedger(t *testing.T) {
	store := memory.NewLedgerStore()
	seeded := quota.NewState(10000, baseTime)
	seeded = quota.Consume(seeded, quota.OpVideoUpload, "yesterday", baseTime)
	store.Seed(seeded)

	fake := clock.NewFake(baseTime.Add(time.Hour))
	limiter := newLimiter(t, store, fake, 10000, 60)

	if got := limiter.Status().Used; got != 1600 {
		t.Errorf("resumed used = %d, want 1600", got)
	}
}

func TestNewRateLimiter_RollsOverStaleLedger(t *testing.T) {
	store := memory.NewLedgerStore()
	seeded := quota.NewState(10000, baseTime)
	seeded = quota.Consume(seeded, quota.OpVideoUpload, "", baseTime)
	store.Seed(seeded)

	fake := clock.NewFake(seeded.ResetTime.Add(time.Minute))
	limiter := newLimiter(t, store, fake, 10000, 60)

	s := limiter.Status()
	if s.Used != 0 || s.Remaining != 10000 {
		t.Errorf("stale ledger not reset: used=%d remaining=%d", s.Used, s.Remaining)
	}
}

func TestStatus_RollsOverMidRun(t *testing.T) {
	store := memory.NewLedgerStore()
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, store, fake, 10000, 60)

	limiter.ConsumeQuota(context.Background(), quota.OpVideoUpload, "")
	reset := limiter.Status().ResetTime

	fake.Set(reset.Add(time.Minute))
	if got := limiter.Status().Used; got != 0 {
		t.Errorf("used after reset = %d, want 0", got)
	}
}

func TestCanPerformOperations_Compound(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 1650, 60)

	ops := map[quota.Operation]int{
		quota.OpVideoUpload:      1,
		quota.OpCollectionInsert: 1,
	}
	if !limiter.CanPerformOperations(ops) {
		t.Error("1650 units should cover upload + insert")
	}

	limiter.ConsumeQuota(context.Background(), quota.OpVideoList, "")
	if limiter.CanPerformOperations(ops) {
		t.Error("1649 units should not cover upload + insert")
	}
}

func TestWaitForToken_ImmediateWhenTokensAvailable(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 10000, 60)

	if err := limiter.WaitForToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(fake.Waits()); got != 0 {
		t.Errorf("full bucket must not wait, got %d sleeps", got)
	}
}

func TestWaitForToken_WaitsWhenBucketEmpty(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 10000, 60)

	// Drain the bucket.
	for i := 0; i < 60; i++ {
		if err := limiter.WaitForToken(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	if err := limiter.WaitForToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	waits := fake.Waits()
	if len(waits) == 0 {
		t.Fatal("empty bucket must wait")
	}
	// At 60/minute one token costs one second.
	if waits[0] != time.Second {
		t.Errorf("wait = %v, want 1s", waits[0])
	}
}

func TestWaitForToken_Cancellation(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 10000, 60)

	for i := 0; i < 60; i++ {
		if err := limiter.WaitForToken(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.WaitForToken(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEstimateOperationCost(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 10000, 60)

	if got := limiter.EstimateOperationCost(quota.OpVideoUpload); got != 1600 {
		t.Errorf("cost = %d, want 1600", got)
	}
	if got := limiter.EstimateOperationCost("unknown_op"); got != 0 {
		t.Errorf("unknown cost = %d, want 0", got)
	}
}

func TestClose_PersistsFinalLedger(t *testing.T) {
	store := memory.NewLedgerStore()
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, store, fake, 10000, 60)

	limiter.ConsumeQuota(context.Background(), quota.OpVideoList, "")
	if err := limiter.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.Saves() < 2 {
		t.Errorf("saves = %d, want at least 2", store.Saves())
	}
}

func TestReconfigure_AppliesNewCeilingMidWindow(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 10000, 60)

	limiter.ConsumeQuota(context.Background(), quota.OpVideoUpload, "movie")

	limiter.Reconfigure(app.RateLimiterConfig{DailyQuota: 5000, MaxRequestsPerMinute: 60})

	s := limiter.Status()
	if s.DailyQuota != 5000 {
		t.Errorf("daily quota = %d, want 5000", s.DailyQuota)
	}
	if s.Used != 1600 || s.Remaining != 3400 {
		t.Errorf("status = %+v", s)
	}
	if limiter.CheckQuota(quota.OpVideoUpload) {
		t.Error("upload should not fit when 3400 units remain under the new ceiling and cost is 1600")
	}
}

func TestReconfigure_RaisingCeilingUnblocksUploads(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 2000, 60)

	limiter.ConsumeQuota(context.Background(), quota.OpVideoUpload, "first")
	if limiter.CheckQuota(quota.OpVideoUpload) {
		t.Fatal("second upload should not fit before the reload")
	}

	limiter.Reconfigure(app.RateLimiterConfig{DailyQuota: 10000, MaxRequestsPerMinute: 60})

	if !limiter.CheckQuota(quota.OpVideoUpload) {
		t.Error("second upload should fit after the ceiling was raised")
	}
}

func TestReconfigure_CapsBucketAtNewCapacity(t *testing.T) {
	fake := clock.NewFake(baseTime)
	limiter := newLimiter(t, memory.NewLedgerStore(), fake, 10000, 60)

	limiter.Reconfigure(app.RateLimiterConfig{DailyQuota: 10000, MaxRequestsPerMinute: 1})

	// The full 60-token bucket is capped to 1: the first acquire is
	// immediate, the second waits a full minute.
	if err := limiter.WaitForToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fake.Waits()) != 0 {
		t.Fatalf("first acquire should not wait, got %v", fake.Waits())
	}
	if err := limiter.WaitForToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	waits := fake.Waits()
	if len(waits) != 1 || waits[0] != time.Minute {
		t.Errorf("waits = %v, want one 1m wait", waits)
	}
}
