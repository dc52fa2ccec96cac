// Package memory is an in-process ledger adapter for tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "bujo/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
}

var (
	_ ports.LedgerAppender = (*Store)(nil)
	_ ports.LedgerRemover  = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

func (s *Store) Append(ctx context.Context, row ports.LedgerRow) (string, error) {
	if row.RecordID == "" {
		return "", fmt.Errorf("ledger row missing record id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("memory!A%d", len(s.rows)), nil
}

func (s *Store) Remove(ctx context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range s.rows {
		if row.RecordID == recordID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the stored ledger.
func (s *Store) Rows() []ports.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ports.LedgerRow, len(s.rows))
	copy(out, s.rows)
	return out
}
