// Package ledgerfile persists the quota ledger as a JSON document.
package ledgerfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tubegate/tubegate/domain/quota"
	"github.com/tubegate/tubegate/ports"
)

// Store reads and writes the ledger document at a fixed path.
type Store struct {
	path string
}

// New creates a ledger store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored ledger. A missing file is not an error; found is
// false and the caller starts a fresh ledger.
func (s *Store) Load(ctx context.Context) (quota.State, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return quota.State{}, false, nil
	}
	if err != nil {
		return quota.State{}, false, fmt.Errorf("read ledger: %w", err)
	}

	var state quota.State
	if err := json.Unmarshal(data, &state); err != nil {
		return quota.State{}, false, fmt.Errorf("parse ledger: %w", err)
	}
	return state, true, nil
}

// Save rewrites the full ledger document. The write goes through a
// temporary file and rename so a crash cannot leave a torn document.
func (s *Store) Save(ctx context.Context, state quota.State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*Store)(nil)
