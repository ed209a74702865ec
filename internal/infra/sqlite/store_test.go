package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minifi-app/minifi/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testLedger() *domain.AccountLedger {
	l := domain.NewAccountLedger("alice")
	l.PointsBalance = 120
	l.LifetimePointsEarned = 300
	l.StreakDays = 4
	l.LastActiveDay = testTime.Truncate(24 * time.Hour)
	l.Positions = []*domain.StakePosition{{
		ID: "pos-1", PoolID: "hodl", AccountID: "alice",
		Principal: 1_000, StakedAt: testTime,
		UnlocksAt:     testTime.Add(14 * 24 * time.Hour),
		LastAccrualAt: testTime, PendingRewards: 7, TotalEarned: 12,
	}}
	l.Boosts = []domain.Boost{{
		ID: "boost-1", OfferID: "quick-boost", MultiplierBps: 15_000,
		ActivatedAt: testTime, ExpiresAt: testTime.Add(time.Hour),
	}}
	l.Transactions = []domain.Transaction{
		{ID: "tx-1", AccountID: "alice", Kind: domain.TxEarnPoints, Amount: 300,
			Timestamp: testTime, ResultingBalance: 300, Description: "quiz"},
		{ID: "tx-2", AccountID: "alice", Kind: domain.TxRedeemPoints, Amount: -180,
			Timestamp: testTime.Add(time.Minute), ResultingBalance: 120, Description: "boost"},
	}
	return l
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Persistence Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestSaveLoadRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, testLedger()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := db.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got.PointsBalance != 120 || got.LifetimePointsEarned != 300 {
		t.Errorf("balance/lifetime = %d/%d, want 120/300", got.PointsBalance, got.LifetimePointsEarned)
	}
	if got.StreakDays != 4 {
		t.Errorf("StreakDays = %d, want 4", got.StreakDays)
	}
	if len(got.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(got.Positions))
	}
	p := got.Positions[0]
	if p.Principal != 1_000 || p.PendingRewards != 7 || p.TotalEarned != 12 {
		t.Errorf("position = %+v, want principal 1000 pending 7 earned 12", p)
	}
	if !p.StakedAt.Equal(testTime) {
		t.Errorf("StakedAt = %v, want %v", p.StakedAt, testTime)
	}
	if len(got.Boosts) != 1 || got.Boosts[0].MultiplierBps != 15_000 {
		t.Errorf("boosts = %+v, want one at 15000 bps", got.Boosts)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(got.Transactions))
	}
	if got.Transactions[1].Kind != domain.TxRedeemPoints {
		t.Errorf("kind = %v, want REDEEM_POINTS", got.Transactions[1].Kind)
	}

	if err := got.Replay(); err != nil {
		t.Errorf("Replay() error: %v", err)
	}
}

func TestLoadUnknownAccount(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Load(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("Load() error = %v, want ErrAccountNotFound", err)
	}
}

func TestSaveIsUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	l := testLedger()
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("first Save() error: %v", err)
	}

	l.PointsBalance = 90
	l.Positions[0].Principal = 1_500
	l.Positions[0].Closed = true
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	got, err := db.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.PointsBalance != 90 {
		t.Errorf("balance = %d, want 90", got.PointsBalance)
	}
	if !got.Positions[0].Closed || got.Positions[0].Principal != 1_500 {
		t.Errorf("position = %+v, want closed with principal 1500", got.Positions[0])
	}
}

func TestTransactionLogIsAppendOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	l := testLedger()
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Tampering with an already-saved record is ignored on re-save.
	l.Transactions[0].Amount = 999_999
	l.Transactions = append(l.Transactions, domain.Transaction{
		ID: "tx-3", AccountID: "alice", Kind: domain.TxEarnPoints, Amount: 10,
		Timestamp: testTime.Add(2 * time.Minute), ResultingBalance: 130,
	})
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("re-Save() error: %v", err)
	}

	got, err := db.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got.Transactions) != 3 {
		t.Fatalf("transactions = %d, want 3", len(got.Transactions))
	}
	if got.Transactions[0].Amount != 300 {
		t.Errorf("first amount = %d, want 300 (original row kept)", got.Transactions[0].Amount)
	}
	if got.Transactions[2].ID != "tx-3" {
		t.Errorf("appended id = %s, want tx-3", got.Transactions[2].ID)
	}
}

func TestExpiredBoostsDisappearAfterPrune(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	l := testLedger()
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	l.PruneExpiredBoosts(testTime.Add(2 * time.Hour))
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("Save() after prune error: %v", err)
	}

	got, err := db.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got.Boosts) != 0 {
		t.Errorf("boosts = %d, want 0", len(got.Boosts))
	}
}

func TestStoredTimesAreUTC(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	est := time.FixedZone("EST", -5*3600)
	l := domain.NewAccountLedger("bob")
	l.Positions = []*domain.StakePosition{{
		ID: "pos-est", PoolID: "flex", AccountID: "bob", Principal: 100,
		StakedAt:      time.Date(2026, 1, 1, 7, 0, 0, 0, est),
		UnlocksAt:     time.Date(2026, 1, 1, 7, 0, 0, 0, est),
		LastAccrualAt: time.Date(2026, 1, 1, 7, 0, 0, 0, est),
	}}
	if err := db.Save(ctx, l); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := db.Load(ctx, "bob")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !got.Positions[0].StakedAt.Equal(want) {
		t.Errorf("StakedAt = %v, want %v", got.Positions[0].StakedAt, want)
	}
}
