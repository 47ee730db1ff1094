package memory

import (
	"context"
	"sync"

	"github.com/tubegate/tubegate/domain/video"
	"github.com/tubegate/tubegate/ports"
)

// HistoryStore is an in-memory implementation of ports.HistoryStore.
type HistoryStore struct {
	mu      sync.RWMutex
	records []ports.HistoryRecord
}

// NewHistoryStore creates an empty in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// IsUploaded reports whether filename has a successful upload on record.
func (s *HistoryStore) IsUploaded(ctx context.Context, filename string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Filename == filename && r.Status == video.OutcomeSuccess {
			return true, nil
		}
	}
	return false, nil
}

// Record appends an outcome.
func (s *HistoryStore) Record(ctx context.Context, rec ports.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Recent returns the most recent records, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]ports.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit > n {
		limit = n
	}
	out := make([]ports.HistoryRecord, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// CountByStatus returns record counts grouped by outcome status.
func (s *HistoryStore) CountByStatus(ctx context.Context) (map[video.OutcomeStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[video.OutcomeStatus]int)
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts, nil
}

// Len returns the number of stored records (for testing).
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure interface compliance.
var _ ports.HistoryStore = (*HistoryStore)(nil)
