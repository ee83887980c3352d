// Package memory is an in-process statement writer used in tests and when
// no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"ateria/internal/core"
	"ateria/internal/export"
)

type Store struct {
	mu      sync.Mutex
	entries []core.PaymentEntry
}

var _ export.PaymentWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendPayment records the entry.
func (s *Store) AppendPayment(_ context.Context, entry core.PaymentEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []core.PaymentEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PaymentEntry(nil), s.entries...)
}
