// Package wallet is an in-process implementation of the spendable XP balance
// collaborator. The real balance lives outside this subsystem; this
// implementation backs tests and single-process deployments.
package wallet

import (
	"context"
	"sync"

	"github.com/minifi-app/minifi/internal/domain"
)

// Memory is a thread-safe in-memory wallet.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemory creates an empty wallet.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]int64)}
}

// Deposit seeds an account's spendable balance (test/dev helper).
func (m *Memory) Deposit(accountID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] += amount
}

// Balance returns an account's spendable balance.
func (m *Memory) Balance(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID]
}

// Debit removes amount from the account, failing without mutation when the
// balance is short.
func (m *Memory) Debit(_ context.Context, accountID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[accountID] < amount {
		return domain.ErrInsufficientBalance
	}
	m.balances[accountID] -= amount
	return nil
}

// Credit adds amount to the account.
func (m *Memory) Credit(_ context.Context, accountID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] += amount
	return nil
}
