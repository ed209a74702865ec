// Package vault is the stake position manager: the state machine that drives
// stake, claim, compound, and unstake against the account ledger.
//
// Position lifecycle: Open(locked) → Open(unlockable) → Closed. Open states
// accept claim and compound; Closed is terminal and behaves as not-found.
//
// Every operation captures now once at entry, validates before mutating, and
// commits through the per-account single-writer registry as one atomic unit.
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minifi-app/minifi/internal/app/accounts"
	"github.com/minifi-app/minifi/internal/app/accrual"
	"github.com/minifi-app/minifi/internal/infra/catalog"
	"github.com/minifi-app/minifi/internal/domain"
)

// ClaimPointsRatePercent is the fraction of a claimed reward converted into
// base Mini Points, before the tier/boost earn pipeline. Mirrors the
// production 10% mission-complete conversion rate.
const ClaimPointsRatePercent int64 = 10

// Manager orchestrates stake position operations.
type Manager struct {
	catalog  *catalog.Catalog
	accounts *accounts.Registry
	wallet   domain.Wallet
	clock    domain.Clock
}

// New creates a position manager.
func New(cat *catalog.Catalog, reg *accounts.Registry, w domain.Wallet, clk domain.Clock) *Manager {
	return &Manager{catalog: cat, accounts: reg, wallet: w, clock: clk}
}

// ─── Results ────────────────────────────────────────────────────────────────

// StakeResult reports a successful stake.
type StakeResult struct {
	Position    domain.StakePosition `json:"position"`
	Transaction domain.Transaction   `json:"transaction"`
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	Claimed      int64              `json:"claimed"`       // credited to the wallet
	PointsEarned int64              `json:"points_earned"` // after tier/boost pipeline
	DaysAccrued  int                `json:"days_accrued"`
	Transaction  domain.Transaction `json:"transaction"`
}

// CompoundResult reports a successful compound.
type CompoundResult struct {
	Compounded   int64              `json:"compounded"`
	NewPrincipal int64              `json:"new_principal"`
	Transaction  domain.Transaction `json:"transaction"`
}

// UnstakeResult reports a successful unstake.
type UnstakeResult struct {
	Returned    int64              `json:"returned"` // principal − penalty + rewards
	Penalty     int64              `json:"penalty"`  // burned, removed from circulation
	Rewards     int64              `json:"rewards"`  // accrued rewards, always paid in full
	Transaction domain.Transaction `json:"transaction"`
}

// Preview is a read-only pending-rewards projection.
type Preview struct {
	Position        domain.StakePosition `json:"position"`
	PendingRewards  int64                `json:"pending_rewards"` // stored + unaccrued
	DaysUnaccrued   int                  `json:"days_unaccrued"`
	EffectiveAPYBps int64                `json:"effective_apy_bps"`
	DaysLocked      int                  `json:"days_locked"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Stake opens a new position in a pool. The amount is debited from the
// spendable wallet; validation errors are returned before any mutation.
func (m *Manager) Stake(ctx context.Context, accountID, poolID string, amount int64) (*StakeResult, error) {
	now := m.clock.Now()

	pool, err := m.catalog.Pool(poolID)
	if err != nil {
		return nil, err
	}
	if amount < pool.MinStake {
		return nil, fmt.Errorf("%w: %d < %d", domain.ErrBelowMinimum, amount, pool.MinStake)
	}
	if amount > pool.MaxStake {
		return nil, fmt.Errorf("%w: %d > %d", domain.ErrAboveMaximum, amount, pool.MaxStake)
	}

	var (
		res     StakeResult
		debited bool
	)
	err = m.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		if err := m.wallet.Debit(ctx, accountID, amount); err != nil {
			return err
		}
		debited = true

		pos := &domain.StakePosition{
			ID:            uuid.NewString(),
			PoolID:        pool.ID,
			AccountID:     accountID,
			Principal:     amount,
			StakedAt:      now,
			UnlocksAt:     now.Add(time.Duration(pool.LockPeriodDays) * 24 * time.Hour),
			LastAccrualAt: now,
		}
		l.Positions = append(l.Positions, pos)

		tx := domain.Transaction{
			ID:               uuid.NewString(),
			AccountID:        accountID,
			Kind:             domain.TxStake,
			Amount:           -amount,
			Timestamp:        now,
			ResultingBalance: l.PointsBalance,
			SourcePositionID: pos.ID,
			Description:      "stake into " + pool.ID,
		}
		l.Append(tx)

		res = StakeResult{Position: *pos, Transaction: tx}
		return nil
	})
	if err != nil {
		// The wallet is external: if persistence failed after the debit, put
		// the funds back so the operation nets to zero.
		if debited {
			_ = m.wallet.Credit(ctx, accountID, amount)
		}
		return nil, err
	}
	return &res, nil
}

// Claim moves accrued rewards to the spendable wallet and converts 10% of the
// claimed amount into points. The point credit commits in the same store
// write as the claim — one cannot be observed without the other.
func (m *Manager) Claim(ctx context.Context, accountID, positionID string) (*ClaimResult, error) {
	now := m.clock.Now()

	var (
		res      ClaimResult
		credited int64
	)
	err := m.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		pos, err := l.Position(positionID)
		if err != nil {
			return err
		}
		pool, err := m.catalog.Pool(pos.PoolID)
		if err != nil {
			return err
		}
		tier := m.catalog.TierFor(l.LifetimePointsEarned)

		acc := accrual.Compute(pos, pool, tier, l.StreakDays, l.Boosts, now)
		claimed := pos.PendingRewards + acc.RewardDelta
		if claimed == 0 {
			return domain.ErrNothingToClaim
		}

		pos.PendingRewards = 0
		pos.TotalEarned += claimed
		pos.LastAccrualAt = now

		if err := m.wallet.Credit(ctx, accountID, claimed); err != nil {
			return err
		}
		credited = claimed

		tx := domain.Transaction{
			ID:               uuid.NewString(),
			AccountID:        accountID,
			Kind:             domain.TxClaim,
			Amount:           claimed,
			Timestamp:        now,
			ResultingBalance: l.PointsBalance,
			SourcePositionID: pos.ID,
			Description:      "claim rewards from " + pool.ID,
		}
		l.Append(tx)

		// Conversion rate applies to the raw claim; the tier multiplier
		// applies to the points earning, never to the claim amount itself.
		base := domain.DivHalfEven(claimed*ClaimPointsRatePercent, 100)
		var earned int64
		if base > 0 {
			ptx := l.EarnPoints(uuid.NewString(), base, tier, now, "stake_reward:"+pos.ID)
			earned = ptx.Amount
		}

		res = ClaimResult{Claimed: claimed, PointsEarned: earned, DaysAccrued: acc.DaysElapsed, Transaction: tx}
		return nil
	})
	if err != nil {
		if credited > 0 {
			_ = m.wallet.Debit(ctx, accountID, credited)
		}
		return nil, err
	}
	return &res, nil
}

// Compound folds accrued rewards into the principal instead of paying them
// out. All-or-nothing: if the new principal would exceed the pool maximum the
// whole operation fails and no state changes, not even the accrual.
func (m *Manager) Compound(ctx context.Context, accountID, positionID string) (*CompoundResult, error) {
	now := m.clock.Now()

	var res CompoundResult
	err := m.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		pos, err := l.Position(positionID)
		if err != nil {
			return err
		}
		pool, err := m.catalog.Pool(pos.PoolID)
		if err != nil {
			return err
		}
		tier := m.catalog.TierFor(l.LifetimePointsEarned)

		acc := accrual.Compute(pos, pool, tier, l.StreakDays, l.Boosts, now)
		pending := pos.PendingRewards + acc.RewardDelta
		if pending == 0 {
			return domain.ErrNothingToClaim
		}
		if pos.Principal+pending > pool.MaxStake {
			return fmt.Errorf("%w: %d + %d > %d",
				domain.ErrExceedsPoolMaximum, pos.Principal, pending, pool.MaxStake)
		}

		pos.Principal += pending
		pos.PendingRewards = 0
		pos.TotalEarned += pending
		pos.LastAccrualAt = now

		tx := domain.Transaction{
			ID:               uuid.NewString(),
			AccountID:        accountID,
			Kind:             domain.TxCompound,
			Amount:           pending,
			Timestamp:        now,
			ResultingBalance: l.PointsBalance,
			SourcePositionID: pos.ID,
			Description:      "compound rewards in " + pool.ID,
		}
		l.Append(tx)

		res = CompoundResult{Compounded: pending, NewPrincipal: pos.Principal, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Unstake closes a position and returns principal plus accrued rewards to the
// wallet. Before the lock expires it fails with ErrStillLocked unless
// forceEarly is set, in which case the early-exit penalty is taken from the
// principal only — accrued rewards are always paid in full. The penalty is
// burned. Unstaking a closed position fails with ErrPositionNotFound.
func (m *Manager) Unstake(ctx context.Context, accountID, positionID string, forceEarly bool) (*UnstakeResult, error) {
	now := m.clock.Now()

	var (
		res      UnstakeResult
		credited int64
	)
	err := m.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		pos, err := l.Position(positionID)
		if err != nil {
			return err
		}
		pool, err := m.catalog.Pool(pos.PoolID)
		if err != nil {
			return err
		}
		tier := m.catalog.TierFor(l.LifetimePointsEarned)

		locked := !pos.Unlockable(now)
		if locked && !forceEarly {
			return fmt.Errorf("%w: %d day(s) remaining", domain.ErrStillLocked, pos.DaysLocked(now))
		}

		acc := accrual.Compute(pos, pool, tier, l.StreakDays, l.Boosts, now)
		rewards := pos.PendingRewards + acc.RewardDelta

		var penalty int64
		if locked {
			penalty = domain.DivHalfEven(pos.Principal*pool.EarlyPenaltyPercent, 100)
		}
		returned := pos.Principal - penalty + rewards

		pos.PendingRewards = 0
		pos.TotalEarned += rewards
		pos.Closed = true

		if err := m.wallet.Credit(ctx, accountID, returned); err != nil {
			return err
		}
		credited = returned

		desc := "unstake from " + pool.ID
		if penalty > 0 {
			desc = fmt.Sprintf("early unstake from %s (penalty %d burned)", pool.ID, penalty)
		}
		tx := domain.Transaction{
			ID:               uuid.NewString(),
			AccountID:        accountID,
			Kind:             domain.TxUnstake,
			Amount:           returned,
			Timestamp:        now,
			ResultingBalance: l.PointsBalance,
			SourcePositionID: pos.ID,
			Description:      desc,
		}
		l.Append(tx)

		res = UnstakeResult{Returned: returned, Penalty: penalty, Rewards: rewards, Transaction: tx}
		return nil
	})
	if err != nil {
		if credited > 0 {
			_ = m.wallet.Debit(ctx, accountID, credited)
		}
		return nil, err
	}
	return &res, nil
}

// PendingRewards computes a read-only projection of a position's rewards from
// a snapshot. It commits nothing; a later claim re-validates under the writer
// lock and may return a different value.
func (m *Manager) PendingRewards(ctx context.Context, accountID, positionID string) (*Preview, error) {
	now := m.clock.Now()

	var p Preview
	err := m.accounts.View(ctx, accountID, func(l *domain.AccountLedger) error {
		pos, err := l.Position(positionID)
		if err != nil {
			return err
		}
		pool, err := m.catalog.Pool(pos.PoolID)
		if err != nil {
			return err
		}
		tier := m.catalog.TierFor(l.LifetimePointsEarned)

		acc := accrual.Compute(pos, pool, tier, l.StreakDays, l.Boosts, now)
		p = Preview{
			Position:        *pos,
			PendingRewards:  pos.PendingRewards + acc.RewardDelta,
			DaysUnaccrued:   acc.DaysElapsed,
			EffectiveAPYBps: acc.EffectiveAPYBps,
			DaysLocked:      pos.DaysLocked(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Positions lists an account's open positions from a snapshot.
func (m *Manager) Positions(ctx context.Context, accountID string) ([]domain.StakePosition, error) {
	var out []domain.StakePosition
	err := m.accounts.View(ctx, accountID, func(l *domain.AccountLedger) error {
		for _, p := range l.ActivePositions() {
			out = append(out, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
