// Package transfer provides pure helpers for the chunked resumable
// upload protocol: per-attempt outcomes, failure classification, and
// progress arithmetic.
package transfer

import (
	"fmt"
	"time"
)

// SessionStatus tracks one in-flight upload.
type SessionStatus int

const (
	StatusPending SessionStatus = iota
	StatusInProgress
	StatusRetrying
	StatusCompleted
	StatusFailed
)

// String returns the status name.
func (s SessionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusRetrying:
		return "retrying"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session describes one upload in flight (value type). Owned by the
// transfer engine for the duration of a single upload call.
type Session struct {
	FilePath   string
	TotalBytes int64
	ChunkSize  int64
	BytesSent  int64
	Attempts   int
	Status     SessionStatus
}

// AttemptKind classifies the outcome of one send-next-chunk call.
type AttemptKind int

const (
	// AttemptProgress means the chunk was accepted and more remain.
	AttemptProgress AttemptKind = iota
	// AttemptCompleted means the final chunk was accepted and the
	// platform returned the new resource identifier.
	AttemptCompleted
	// AttemptRetryable means a transient failure: server 5xx, connection
	// error, or a resumable-protocol error. Worth retrying with backoff.
	AttemptRetryable
	// AttemptFatal means a permanent failure such as a 4xx client error.
	AttemptFatal
)

// Attempt is the result of one send-next-chunk call (value type).
// Exactly one of ResourceID, Fraction, or Err is meaningful per Kind.
type Attempt struct {
	Kind       AttemptKind
	Fraction   float64 // AttemptProgress: 0.0 .. 1.0
	ResourceID string  // AttemptCompleted
	Err        error   // AttemptRetryable, AttemptFatal
}

// Advanced reports an accepted chunk with more remaining.
func Advanced(fraction float64) Attempt {
	return Attempt{Kind: AttemptProgress, Fraction: fraction}
}

// Completed reports a finished upload.
func Completed(resourceID string) Attempt {
	return Attempt{Kind: AttemptCompleted, ResourceID: resourceID}
}

// Retryable reports a transient failure.
func Retryable(err error) Attempt {
	return Attempt{Kind: AttemptRetryable, Err: err}
}

// Fatal reports a permanent failure.
func Fatal(err error) Attempt {
	return Attempt{Kind: AttemptFatal, Err: err}
}

// RetryableStatus reports whether an HTTP status code indicates a
// transient server-side failure.
func RetryableStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	}
	return false
}

// StatusError is an HTTP-level failure from the upload endpoint.
type StatusError struct {
	Code int
	Body string
}

// Error returns the status code and a body excerpt.
func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("upload endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("upload endpoint returned status %d: %s", e.Code, body)
}

// Report is a progress snapshot handed to observers.
type Report struct {
	Fraction   float64
	BytesSent  int64
	Elapsed    time.Duration
	Throughput float64 // bytes per second since transfer start
}

// ProgressReport computes a snapshot from the bytes acknowledged so far.
// PURE: throughput is bytes / elapsed since start, zero when no time has
// passed.
func ProgressReport(bytesSent, totalBytes int64, start, now time.Time) Report {
	r := Report{BytesSent: bytesSent, Elapsed: now.Sub(start)}
	if totalBytes > 0 {
		r.Fraction = float64(bytesSent) / float64(totalBytes)
		if r.Fraction > 1 {
			r.Fraction = 1
		}
	}
	if secs := r.Elapsed.Seconds(); secs > 0 {
		r.Throughput = float64(bytesSent) / secs
	}
	return r
}
