package domain

import (
	"fmt"
	"time"
)

// ─── Transaction Types ──────────────────────────────────────────────────────

// TransactionKind is the business reason for a ledger entry.
type TransactionKind string

const (
	TxStake        TransactionKind = "STAKE"
	TxUnstake      TransactionKind = "UNSTAKE"
	TxClaim        TransactionKind = "CLAIM"
	TxCompound     TransactionKind = "COMPOUND"
	TxEarnPoints   TransactionKind = "EARN_POINTS"
	TxRedeemPoints TransactionKind = "REDEEM_POINTS"
)

// PointsKind reports whether this kind moves the Mini Points balance.
// Stake-family kinds move the spendable XP wallet instead and contribute
// zero to the points fold.
func (k TransactionKind) PointsKind() bool {
	return k == TxEarnPoints || k == TxRedeemPoints
}

// Transaction is a single immutable row in an account's append-only log.
//
// Amount is signed from the account's perspective: positive credits, negative
// debits, in the currency the kind concerns (XP minor units for stake-family
// kinds, points minor units for points kinds). ResultingBalance is always the
// points balance after the transaction, which makes the log fully replayable.
type Transaction struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	Kind             TransactionKind `json:"kind"`
	Amount           int64           `json:"amount"`
	Timestamp        time.Time       `json:"timestamp"`
	ResultingBalance int64           `json:"resulting_balance"`
	SourcePositionID string          `json:"source_position_id,omitempty"`
	Description      string          `json:"description,omitempty"`
}

// ─── Account Ledger ─────────────────────────────────────────────────────────

// AccountLedger is the per-account aggregate: point balances, open stake
// positions, active boosts, and the append-only transaction log. One logical
// owner per account; all mutation goes through a single writer (see
// app/accounts).
type AccountLedger struct {
	AccountID            string           `json:"account_id"`
	PointsBalance        int64            `json:"points_balance"`
	LifetimePointsEarned int64            `json:"lifetime_points_earned"` // monotonic, never reduced
	StreakDays           int              `json:"streak_days"`
	LastActiveDay        time.Time        `json:"last_active_day"` // UTC midnight
	Positions            []*StakePosition `json:"positions"`
	Boosts               []Boost          `json:"boosts"`
	Transactions         []Transaction    `json:"transactions"`
}

// NewAccountLedger returns an empty ledger for an account.
func NewAccountLedger(accountID string) *AccountLedger {
	return &AccountLedger{AccountID: accountID}
}

// Clone returns a deep copy. Stores hand copies to readers so snapshot reads
// never alias writer state.
func (l *AccountLedger) Clone() *AccountLedger {
	if l == nil {
		return nil
	}
	c := *l
	c.Positions = make([]*StakePosition, len(l.Positions))
	for i, p := range l.Positions {
		cp := *p
		c.Positions[i] = &cp
	}
	c.Boosts = append([]Boost(nil), l.Boosts...)
	c.Transactions = append([]Transaction(nil), l.Transactions...)
	return &c
}

// Position finds a position by id. Closed positions are not found; closing
// removes a position from the active set for good.
func (l *AccountLedger) Position(id string) (*StakePosition, error) {
	for _, p := range l.Positions {
		if p.ID == id && !p.Closed {
			return p, nil
		}
	}
	return nil, ErrPositionNotFound
}

// ActivePositions returns all open positions.
func (l *AccountLedger) ActivePositions() []*StakePosition {
	out := make([]*StakePosition, 0, len(l.Positions))
	for _, p := range l.Positions {
		if !p.Closed {
			out = append(out, p)
		}
	}
	return out
}

// ActiveBoosts returns non-expired boosts. Expiry is checked lazily; no
// cleanup pass is required for correctness.
func (l *AccountLedger) ActiveBoosts(now time.Time) []Boost {
	out := make([]Boost, 0, len(l.Boosts))
	for _, b := range l.Boosts {
		if b.Active(now) {
			out = append(out, b)
		}
	}
	return out
}

// PruneExpiredBoosts drops expired boosts from storage. Optional housekeeping:
// correctness never depends on it.
func (l *AccountLedger) PruneExpiredBoosts(now time.Time) {
	kept := l.Boosts[:0]
	for _, b := range l.Boosts {
		if b.Active(now) {
			kept = append(kept, b)
		}
	}
	l.Boosts = kept
}

// Append records a transaction at the tail of the log.
func (l *AccountLedger) Append(tx Transaction) {
	l.Transactions = append(l.Transactions, tx)
}

// ─── Points Operations ──────────────────────────────────────────────────────

// EarnPoints credits points for baseAmount through the ordered multiplier
// pipeline: tier first, then active boosts by ascending id. The tier is the
// account's tier at the moment of earning; past transactions are never
// re-rated. Returns the recorded transaction.
func (l *AccountLedger) EarnPoints(txID string, baseAmount int64, tier Tier, now time.Time, source string) Transaction {
	steps := append([]Multiplier{{Kind: MultiplierTier, ID: tier.ID, Bps: tier.EarnMultiplierBps}},
		BoostMultipliers(l.Boosts, now)...)
	earned := ApplyBps(baseAmount, FoldMultipliers(steps))

	l.PointsBalance += earned
	l.LifetimePointsEarned += earned

	tx := Transaction{
		ID:               txID,
		AccountID:        l.AccountID,
		Kind:             TxEarnPoints,
		Amount:           earned,
		Timestamp:        now,
		ResultingBalance: l.PointsBalance,
		Description:      source,
	}
	l.Append(tx)
	return tx
}

// RedeemPoints debits the spendable points balance. LifetimePointsEarned is
// untouched — tier is monotonic and never reduced by redemption.
func (l *AccountLedger) RedeemPoints(txID string, amount int64, now time.Time, description string) (Transaction, error) {
	if amount <= 0 || amount > l.PointsBalance {
		return Transaction{}, ErrInsufficientPoints
	}
	l.PointsBalance -= amount

	tx := Transaction{
		ID:               txID,
		AccountID:        l.AccountID,
		Kind:             TxRedeemPoints,
		Amount:           -amount,
		Timestamp:        now,
		ResultingBalance: l.PointsBalance,
		Description:      description,
	}
	l.Append(tx)
	return tx, nil
}

// ─── Streak ─────────────────────────────────────────────────────────────────

// RecordActivity advances the daily streak: +1 on the first activity of a new
// calendar day, reset to 1 after a missed day. Same-day calls are idempotent.
func (l *AccountLedger) RecordActivity(now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	switch {
	case l.LastActiveDay.IsZero():
		l.StreakDays = 1
	case day.Equal(l.LastActiveDay):
		return
	case day.Sub(l.LastActiveDay) == 24*time.Hour:
		l.StreakDays++
	default:
		l.StreakDays = 1
	}
	l.LastActiveDay = day
}

// ─── Ledger Replay ──────────────────────────────────────────────────────────

// Replay folds the transaction log in order and verifies that it reproduces
// the materialized points balance exactly. This is the central correctness
// contract of the engine: any drift means value was created or lost.
func (l *AccountLedger) Replay() error {
	var balance int64
	for i, tx := range l.Transactions {
		if tx.Kind.PointsKind() {
			balance += tx.Amount
		}
		if tx.ResultingBalance != balance {
			return fmt.Errorf("%w: tx %d (%s) recorded balance %d, replay says %d",
				ErrReplayMismatch, i, tx.ID, tx.ResultingBalance, balance)
		}
	}
	if balance != l.PointsBalance {
		return fmt.Errorf("%w: materialized balance %d, replay says %d",
			ErrReplayMismatch, l.PointsBalance, balance)
	}
	return nil
}
