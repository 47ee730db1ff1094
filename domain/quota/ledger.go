// Package quota provides pure functions for daily API quota accounting.
// All functions are deterministic - same input always produces same output.
package quota

import "time"

// Operation identifies a billable API call.
type Operation string

// Known operations and their platform-assigned costs.
const (
	OpVideoUpload      Operation = "video_upload"
	OpVideoList        Operation = "video_list"
	OpCollectionCreate Operation = "collection_create"
	OpCollectionInsert Operation = "collection_insert"
	OpCollectionList   Operation = "collection_list"
)

// costs maps operations to quota units. Unknown operations cost zero so
// new read-only calls never block on accounting.
var costs = map[Operation]int{
	OpVideoUpload:      1600,
	OpVideoList:        1,
	OpCollectionCreate: 50,
	OpCollectionInsert: 50,
	OpCollectionList:   1,
}

// ResetHourUTC is the platform's local midnight expressed in UTC.
// Fixed offset, no daylight saving adjustment.
const ResetHourUTC = 8

// Record is one consumed operation in the append-only audit log.
type Record struct {
	Type      Operation `json:"type"`
	Cost      int       `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// State is the daily ledger (value type). Invariant after a reset:
// Used + Remaining == DailyQuota. Remaining is not clamped; callers
// gate with Check before Consume.
type State struct {
	DailyQuota int       `json:"daily_quota"`
	Used       int       `json:"used_quota"`
	Remaining  int       `json:"remaining_quota"`
	ResetTime  time.Time `json:"reset_time"`
	Operations []Record  `json:"operations"`
}

// Status summarizes a ledger for reporting.
type Status struct {
	DailyQuota  int
	Used        int
	Remaining   int
	PercentUsed float64
	ResetTime   time.Time
}

// Cost returns the unit cost of op. Unknown operations cost 0.
func Cost(op Operation) int {
	return costs[op]
}

// NextReset returns the first reset instant strictly after now.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	reset := time.Date(now.Year(), now.Month(), now.Day(), ResetHourUTC, 0, 0, 0, time.UTC)
	if !reset.After(now) {
		reset = reset.AddDate(0, 0, 1)
	}
	return reset
}

// NewState creates a fresh ledger with the full daily budget available.
func NewState(daily int, now time.Time) State {
	return State{
		DailyQuota: daily,
		Used:       0,
		Remaining:  daily,
		ResetTime:  NextReset(now),
	}
}

// Check reports whether op fits in the remaining budget. PURE.
func Check(s State, op Operation) bool {
	return Cost(op) <= s.Remaining
}

// CheckAll reports whether a set of counted operations fits together.
// Used for compound pre-flight checks (upload + collection insert).
func CheckAll(s State, ops map[Operation]int) bool {
	total := 0
	for op, count := range ops {
		total += Cost(op) * count
	}
	return total <= s.Remaining
}

// Consume debits op and appends an audit record, returning the new state.
// The caller is expected to have gated with Check; Remaining may go
// negative otherwise.
func Consume(s State, op Operation, details string, now time.Time) State {
	cost := Cost(op)
	s.Used += cost
	s.Remaining -= cost
	s.Operations = append(s.Operations[:len(s.Operations):len(s.Operations)], Record{
		Type:      op,
		Cost:      cost,
		Timestamp: now.UTC(),
		Details:   details,
	})
	return s
}

// Rollover resets the ledger when now has passed ResetTime: usage back to
// zero, audit log cleared, and ResetTime advanced one day at a time until
// it lies in the future. Returns the state unchanged otherwise.
func Rollover(s State, now time.Time) (State, bool) {
	if s.ResetTime.IsZero() || now.Before(s.ResetTime) {
		return s, false
	}

	next := s.ResetTime
	prior := next.UTC()
	next = time.Date(prior.Year(), prior.Month(), prior.Day(), ResetHourUTC, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	for !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return State{
		DailyQuota: s.DailyQuota,
		Used:       0,
		Remaining:  s.DailyQuota,
		ResetTime:  next,
	}, true
}

// Summarize returns a reporting view of the ledger.
func Summarize(s State) Status {
	var pct float64
	if s.DailyQuota > 0 {
		pct = float64(s.Used) / float64(s.DailyQuota) * 100
	}
	return Status{
		DailyQuota:  s.DailyQuota,
		Used:        s.Used,
		Remaining:   s.Remaining,
		PercentUsed: pct,
		ResetTime:   s.ResetTime,
	}
}
