package throttle_test

import (
	"math"
	"testing"
	"time"

	"github.com/tubegate/tubegate/domain/throttle"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestNewState_StartsFull(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.NewState(cfg, baseTime)
	if s.Tokens != 60 {
		t.Errorf("tokens = %v, want 60", s.Tokens)
	}
}

func TestRefill_ProportionalToElapsed(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.State{Tokens: 0, LastRefill: baseTime}

	// 30 seconds at 60/minute refills 30 tokens.
	s = throttle.Refill(s, cfg, baseTime.Add(30*time.Second))
	if math.Abs(s.Tokens-30) > 1e-9 {
		t.Errorf("tokens = %v, want 30", s.Tokens)
	}
}

func TestRefill_CappedAtCapacity(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.State{Tokens: 50, LastRefill: baseTime}

	s = throttle.Refill(s, cfg, baseTime.Add(time.Hour))
	if s.Tokens != 60 {
		t.Errorf("tokens = %v, want cap 60", s.Tokens)
	}
}

func TestRefill_ClockGoingBackwards(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.State{Tokens: 10, LastRefill: baseTime}

	s = throttle.Refill(s, cfg, baseTime.Add(-time.Minute))
	if s.Tokens != 10 {
		t.Errorf("tokens = %v, want unchanged 10", s.Tokens)
	}
}

func TestAcquire_GrantsWhenTokenAvailable(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.NewState(cfg, baseTime)

	granted, wait, next := throttle.Acquire(s, cfg, baseTime)
	if !granted {
		t.Fatal("expected grant from a full bucket")
	}
	if wait != 0 {
		t.Errorf("wait = %v, want 0", wait)
	}
	if next.Tokens != 59 {
		t.Errorf("tokens = %v, want 59", next.Tokens)
	}
}

func TestAcquire_EmptyBucketWaitsOneTokenInterval(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.State{Tokens: 0, LastRefill: baseTime}

	granted, wait, _ := throttle.Acquire(s, cfg, baseTime)
	if granted {
		t.Fatal("expected denial from an empty bucket")
	}
	// (1 - 0) * (60 / 60) = 1 second
	if wait != time.Second {
		t.Errorf("wait = %v, want 1s", wait)
	}
}

func TestAcquire_FractionalTokensShortenWait(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.State{Tokens: 0.5, LastRefill: baseTime}

	granted, wait, _ := throttle.Acquire(s, cfg, baseTime)
	if granted {
		t.Fatal("expected denial with half a token")
	}
	if wait != 500*time.Millisecond {
		t.Errorf("wait = %v, want 500ms", wait)
	}
}

func TestAcquire_LowCapacityLongWait(t *testing.T) {
	cfg := throttle.Config{Capacity: 2}
	s := throttle.State{Tokens: 0, LastRefill: baseTime}

	granted, wait, _ := throttle.Acquire(s, cfg, baseTime)
	if granted {
		t.Fatal("expected denial")
	}
	// (1 - 0) * (60 / 2) = 30 seconds
	if wait != 30*time.Second {
		t.Errorf("wait = %v, want 30s", wait)
	}
}

func TestAcquire_DrainThenRefillGrantsAgain(t *testing.T) {
	cfg := throttle.Config{Capacity: 60}
	s := throttle.NewState(cfg, baseTime)

	for i := 0; i < 60; i++ {
		granted, _, next := throttle.Acquire(s, cfg, baseTime)
		if !granted {
			t.Fatalf("acquire %d denied, want grant", i)
		}
		s = next
	}

	granted, _, s := throttle.Acquire(s, cfg, baseTime)
	if granted {
		t.Fatal("bucket should be empty after draining capacity")
	}

	granted, _, _ = throttle.Acquire(s, cfg, baseTime.Add(2*time.Second))
	if !granted {
		t.Fatal("two seconds of refill should grant a token")
	}
}
