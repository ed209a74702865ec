// Package memstore is the in-memory LedgerStore used by tests and dev mode.
// It honors the store contract exactly: Load hands out deep copies, Save
// replaces the stored aggregate atomically.
package memstore

import (
	"context"
	"sync"

	"github.com/minifi-app/minifi/internal/domain"
)

// Store keeps account ledgers in a map guarded by an RWMutex.
type Store struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.AccountLedger
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{ledgers: make(map[string]*domain.AccountLedger)}
}

// Load returns a deep copy of the account's ledger.
func (s *Store) Load(_ context.Context, accountID string) (*domain.AccountLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return l.Clone(), nil
}

// Save stores a deep copy of the ledger, replacing any previous state.
func (s *Store) Save(_ context.Context, ledger *domain.AccountLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[ledger.AccountID] = ledger.Clone()
	return nil
}
