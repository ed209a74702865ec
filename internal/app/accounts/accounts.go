// Package accounts enforces the single-writer-per-account discipline.
//
// Balances, tier, and position state are mutually dependent; a lost update
// would break ledger-replay consistency. Every mutation therefore runs under
// a per-account mutex: load → mutate → save as one atomic unit. Operations on
// different accounts proceed fully in parallel with no shared mutable state.
//
// Reads are served from a snapshot without blocking writers; they must never
// feed a write without re-validating under Update.
package accounts

import (
	"context"
	"errors"
	"sync"

	"github.com/minifi-app/minifi/internal/domain"
)

// Registry mediates all ledger access through a LedgerStore.
type Registry struct {
	store domain.LedgerStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex // accountID → writer lock
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store domain.LedgerStore) *Registry {
	return &Registry{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the writer lock for an account, creating it on first use.
func (r *Registry) lockFor(accountID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[accountID] = l
	}
	return l
}

// Update runs fn against the account's ledger under its writer lock and
// commits the result. If fn returns an error the loaded copy is discarded and
// nothing is persisted — operations fully commit or fully fail. An unknown
// account starts from an empty ledger.
func (r *Registry) Update(ctx context.Context, accountID string, fn func(*domain.AccountLedger) error) error {
	lock := r.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()

	ledger, err := r.store.Load(ctx, accountID)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		ledger = domain.NewAccountLedger(accountID)
	case err != nil:
		return err
	}

	if err := fn(ledger); err != nil {
		return err
	}
	return r.store.Save(ctx, ledger)
}

// View runs fn against a snapshot of the account's ledger. The snapshot is a
// deep copy owned by the caller; mutating it has no effect. Unknown accounts
// are presented as an empty ledger.
func (r *Registry) View(ctx context.Context, accountID string, fn func(*domain.AccountLedger) error) error {
	ledger, err := r.store.Load(ctx, accountID)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		ledger = domain.NewAccountLedger(accountID)
	case err != nil:
		return err
	}
	return fn(ledger)
}
