package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/memstore"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// flatTier pays earns 1:1 so every balance below is hand-checkable.
var flatTier = domain.Tier{ID: "starter", Name: "Starter", EarnMultiplierBps: domain.OneBps}

// ═══════════════════════════════════════════════════════════════════════════
// Writer serialization
// ═══════════════════════════════════════════════════════════════════════════

// Run with -race. Every concurrent earn must land exactly once; a lost
// update would show up as a short balance or a failed replay.
func TestUpdateSerializesWritersPerAccount(t *testing.T) {
	reg := NewRegistry(memstore.New())
	ctx := context.Background()

	const writers = 100
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			err := reg.Update(ctx, "alice", func(l *domain.AccountLedger) error {
				l.EarnPoints(fmt.Sprintf("tx-%03d", n), 1, flatTier, testStart, "activity")
				return nil
			})
			if err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	err := reg.View(ctx, "alice", func(l *domain.AccountLedger) error {
		if l.PointsBalance != writers {
			t.Errorf("points balance = %d, want %d", l.PointsBalance, writers)
		}
		if len(l.Transactions) != writers {
			t.Errorf("transactions = %d, want %d", len(l.Transactions), writers)
		}
		return l.Replay()
	})
	if err != nil {
		t.Errorf("ledger replay error = %v", err)
	}
}

func TestUpdateAcrossAccountsStaysIsolated(t *testing.T) {
	reg := NewRegistry(memstore.New())
	ctx := context.Background()

	accountIDs := []string{"alice", "bob", "carol", "dave"}
	const perAccount = 25

	var wg sync.WaitGroup
	for _, id := range accountIDs {
		for i := 0; i < perAccount; i++ {
			wg.Add(1)
			go func(id string, n int) {
				defer wg.Done()
				err := reg.Update(ctx, id, func(l *domain.AccountLedger) error {
					l.EarnPoints(fmt.Sprintf("%s-tx-%03d", id, n), 2, flatTier, testStart, "activity")
					return nil
				})
				if err != nil {
					t.Errorf("Update(%s) error = %v", id, err)
				}
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range accountIDs {
		err := reg.View(ctx, id, func(l *domain.AccountLedger) error {
			if l.PointsBalance != 2*perAccount {
				t.Errorf("%s: points balance = %d, want %d", id, l.PointsBalance, 2*perAccount)
			}
			return l.Replay()
		})
		if err != nil {
			t.Errorf("%s: ledger replay error = %v", id, err)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Commit semantics
// ═══════════════════════════════════════════════════════════════════════════

func TestUpdateErrorDiscardsEveryMutation(t *testing.T) {
	reg := NewRegistry(memstore.New())
	ctx := context.Background()

	err := reg.Update(ctx, "alice", func(l *domain.AccountLedger) error {
		l.EarnPoints("tx-1", 50, flatTier, testStart, "activity")
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	boom := errors.New("boom")
	err = reg.Update(ctx, "alice", func(l *domain.AccountLedger) error {
		l.EarnPoints("tx-2", 50, flatTier, testStart, "activity")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	err = reg.View(ctx, "alice", func(l *domain.AccountLedger) error {
		if l.PointsBalance != 50 {
			t.Errorf("points balance = %d, want 50 (failed update discarded)", l.PointsBalance)
		}
		if len(l.Transactions) != 1 {
			t.Errorf("transactions = %d, want 1", len(l.Transactions))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
}

func TestViewSnapshotDoesNotLeakWrites(t *testing.T) {
	reg := NewRegistry(memstore.New())
	ctx := context.Background()

	err := reg.Update(ctx, "alice", func(l *domain.AccountLedger) error {
		l.EarnPoints("tx-1", 10, flatTier, testStart, "activity")
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	err = reg.View(ctx, "alice", func(l *domain.AccountLedger) error {
		l.PointsBalance = 9_999
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}

	err = reg.View(ctx, "alice", func(l *domain.AccountLedger) error {
		if l.PointsBalance != 10 {
			t.Errorf("points balance = %d, want 10 (snapshot write discarded)", l.PointsBalance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
}

func TestUpdateUnknownAccountStartsEmpty(t *testing.T) {
	reg := NewRegistry(memstore.New())
	ctx := context.Background()

	err := reg.Update(ctx, "newcomer", func(l *domain.AccountLedger) error {
		if l.AccountID != "newcomer" {
			t.Errorf("AccountID = %q, want newcomer", l.AccountID)
		}
		if l.PointsBalance != 0 || len(l.Transactions) != 0 {
			t.Errorf("ledger not empty: balance %d, %d transactions", l.PointsBalance, len(l.Transactions))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}
