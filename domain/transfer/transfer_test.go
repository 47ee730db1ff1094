package transfer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tubegate/tubegate/domain/transfer"
)

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		if !transfer.RetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 308, 400, 401, 403, 404, 501} {
		if transfer.RetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestStatusError_TruncatesBody(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	err := &transfer.StatusError{Code: 503, Body: string(long)}
	if len(err.Error()) > 250 {
		t.Errorf("error message too long: %d chars", len(err.Error()))
	}
}

func TestAttemptConstructors(t *testing.T) {
	if a := transfer.Advanced(0.5); a.Kind != transfer.AttemptProgress || a.Fraction != 0.5 {
		t.Errorf("Advanced = %+v", a)
	}
	if a := transfer.Completed("vid123"); a.Kind != transfer.AttemptCompleted || a.ResourceID != "vid123" {
		t.Errorf("Completed = %+v", a)
	}
	cause := errors.New("boom")
	if a := transfer.Retryable(cause); a.Kind != transfer.AttemptRetryable || a.Err != cause {
		t.Errorf("Retryable = %+v", a)
	}
	if a := transfer.Fatal(cause); a.Kind != transfer.AttemptFatal || a.Err != cause {
		t.Errorf("Fatal = %+v", a)
	}
}

func TestProgressReport_FractionAndThroughput(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Second)

	r := transfer.ProgressReport(500, 1000, start, now)

	if r.Fraction != 0.5 {
		t.Errorf("fraction = %v, want 0.5", r.Fraction)
	}
	if r.BytesSent != 500 {
		t.Errorf("bytes = %d, want 500", r.BytesSent)
	}
	if r.Throughput != 50 {
		t.Errorf("throughput = %v, want 50 B/s", r.Throughput)
	}
}

func TestProgressReport_ZeroElapsed(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	r := transfer.ProgressReport(500, 1000, start, start)
	if r.Throughput != 0 {
		t.Errorf("throughput = %v, want 0 with no elapsed time", r.Throughput)
	}
}

func TestProgressReport_FractionClamped(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	r := transfer.ProgressReport(1500, 1000, start, start.Add(time.Second))
	if r.Fraction != 1 {
		t.Errorf("fraction = %v, want clamp at 1", r.Fraction)
	}
}

func TestSessionStatus_String(t *testing.T) {
	cases := map[transfer.SessionStatus]string{
		transfer.StatusPending:    "pending",
		transfer.StatusInProgress: "in_progress",
		transfer.StatusRetrying:   "retrying",
		transfer.StatusCompleted:  "completed",
		transfer.StatusFailed:     "failed",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
