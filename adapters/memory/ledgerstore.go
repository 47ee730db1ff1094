package memory

import (
	"context"
	"sync"

	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/ports"
)

// LedgerStore is an in-memory implementation of ports.LedgerStore.
// Used by tests; state does not survive the process.
type LedgerStore struct {
	mu    sync.Mutex
	state quota.State
	found bool

	// SaveErr, when set, is returned from Save to exercise best-effort
	// persistence paths.
	SaveErr error
	saves   int
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

// Seed installs a stored ledger so the next Load finds it.
func (s *LedgerStore) Seed(state quota.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.found = true
}

// Load returns the stored ledger, if any.
func (s *LedgerStore) Load(ctx context.Context) (quota.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.found, nil
}

// Save stores the ledger.
func (s *LedgerStore) Save(ctx context.Context, state quota.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.state = state
	s.found = true
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *LedgerStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
