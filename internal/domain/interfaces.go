package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Clock is the injectable time source. Every operation captures Now() exactly
// once at entry so a single logical operation can never observe time skew.
type Clock interface {
	Now() time.Time
}

// LedgerStore abstracts durable per-account ledger persistence.
//
// Load returns a deep copy the caller owns; mutating it has no effect until
// Save. Save commits the whole aggregate (balances, positions, boosts, new
// transactions) as one atomic unit — a transaction record is never visible
// without its balance mutation. Load returns ErrAccountNotFound for unknown
// accounts; infrastructure failures wrap ErrPersistenceFailure.
type LedgerStore interface {
	Load(ctx context.Context, accountID string) (*AccountLedger, error)
	Save(ctx context.Context, ledger *AccountLedger) error
}

// Wallet is the game's spendable XP balance — owned outside this subsystem,
// consulted by stake/claim/unstake.
type Wallet interface {
	Debit(ctx context.Context, accountID string, amount int64) error
	Credit(ctx context.Context, accountID string, amount int64) error
}

// Leaderboard receives lifetime-points updates after each earn. Optional:
// the engine is fully functional with a nil leaderboard.
type Leaderboard interface {
	SetScore(ctx context.Context, accountID string, lifetimePoints int64) error
}
