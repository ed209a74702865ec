// Package points runs the Mini Points loyalty ledger: earning through the
// tier/boost multiplier pipeline, redemption, boost activation, and the daily
// activity streak.
//
// The tier used for an earn is always resolved from LifetimePointsEarned as it
// stood BEFORE the earn; an earn that crosses a tier threshold pays at the old
// tier and the new tier applies from the next earn on.
package points

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/minifi-app/minifi/internal/app/accounts"
	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/catalog"
)

// Service orchestrates point operations for accounts.
type Service struct {
	catalog     *catalog.Catalog
	accounts    *accounts.Registry
	leaderboard domain.Leaderboard // may be nil
	clock       domain.Clock
}

// New creates a points service. leaderboard may be nil to disable ranking.
func New(cat *catalog.Catalog, reg *accounts.Registry, lb domain.Leaderboard, clk domain.Clock) *Service {
	return &Service{catalog: cat, accounts: reg, leaderboard: lb, clock: clk}
}

// ─── Results ────────────────────────────────────────────────────────────────

// EarnResult reports a completed earn.
type EarnResult struct {
	Earned      int64              `json:"earned"` // base × tier × boosts
	Balance     int64              `json:"balance"`
	Lifetime    int64              `json:"lifetime"`
	Tier        domain.Tier        `json:"tier"` // tier the earn was paid at
	Transaction domain.Transaction `json:"transaction"`
}

// RedeemResult reports a completed redemption.
type RedeemResult struct {
	Redeemed    int64              `json:"redeemed"`
	Balance     int64              `json:"balance"`
	Transaction domain.Transaction `json:"transaction"`
}

// BoostResult reports an activated boost.
type BoostResult struct {
	Boost       domain.Boost       `json:"boost"`
	Balance     int64              `json:"balance"`
	Transaction domain.Transaction `json:"transaction"`
}

// StreakResult reports the streak after an activity ping.
type StreakResult struct {
	StreakDays int  `json:"streak_days"`
	Extended   bool `json:"extended"` // false when today was already counted
}

// Summary is a read-only account overview.
type Summary struct {
	AccountID    string         `json:"account_id"`
	Balance      int64          `json:"balance"`
	Lifetime     int64          `json:"lifetime"`
	Tier         domain.Tier    `json:"tier"`
	StreakDays   int            `json:"streak_days"`
	ActiveBoosts []domain.Boost `json:"active_boosts"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Earn credits points for an activity. baseAmount runs through the earn
// pipeline (tier multiplier, then each active boost) before being credited.
func (s *Service) Earn(ctx context.Context, accountID string, baseAmount int64, source string) (*EarnResult, error) {
	if baseAmount <= 0 {
		return nil, fmt.Errorf("earn amount must be positive, got %d", baseAmount)
	}
	now := s.clock.Now()

	var res EarnResult
	err := s.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		l.PruneExpiredBoosts(now)
		tier := s.catalog.TierFor(l.LifetimePointsEarned)
		tx := l.EarnPoints(uuid.NewString(), baseAmount, tier, now, source)
		res = EarnResult{
			Earned:      tx.Amount,
			Balance:     l.PointsBalance,
			Lifetime:    l.LifetimePointsEarned,
			Tier:        tier,
			Transaction: tx,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishScore(ctx, accountID, res.Lifetime)
	return &res, nil
}

// Redeem spends points from the balance. Lifetime points are untouched, so
// redeeming never demotes a tier.
func (s *Service) Redeem(ctx context.Context, accountID string, amount int64, description string) (*RedeemResult, error) {
	now := s.clock.Now()

	var res RedeemResult
	err := s.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		tx, err := l.RedeemPoints(uuid.NewString(), amount, now, description)
		if err != nil {
			return err
		}
		res = RedeemResult{Redeemed: amount, Balance: l.PointsBalance, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ActivateBoost purchases a boost from the catalog. The cost is debited from
// the points balance as a redemption; the boost takes effect from activation
// and applies to future earning and accrual only, never retroactively.
func (s *Service) ActivateBoost(ctx context.Context, accountID, offerID string) (*BoostResult, error) {
	offer, err := s.catalog.BoostOffer(offerID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	var res BoostResult
	err = s.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		l.PruneExpiredBoosts(now)
		tx, err := l.RedeemPoints(uuid.NewString(), offer.PointsCost, now, "boost: "+offer.Name)
		if err != nil {
			return err
		}
		b := domain.Boost{
			ID:            uuid.NewString(),
			OfferID:       offer.ID,
			MultiplierBps: offer.MultiplierBps,
			ActivatedAt:   now,
			ExpiresAt:     now.Add(offer.Duration),
		}
		l.Boosts = append(l.Boosts, b)
		res = BoostResult{Boost: b, Balance: l.PointsBalance, Transaction: tx}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RecordActivity extends the daily streak. Calling it more than once on the
// same UTC day is a no-op; a missed day resets the streak to 1.
func (s *Service) RecordActivity(ctx context.Context, accountID string) (*StreakResult, error) {
	now := s.clock.Now()

	var res StreakResult
	err := s.accounts.Update(ctx, accountID, func(l *domain.AccountLedger) error {
		before := l.StreakDays
		l.RecordActivity(now)
		res = StreakResult{StreakDays: l.StreakDays, Extended: l.StreakDays != before}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CurrentTier resolves an account's tier from lifetime points earned.
func (s *Service) CurrentTier(ctx context.Context, accountID string) (domain.Tier, error) {
	var tier domain.Tier
	err := s.accounts.View(ctx, accountID, func(l *domain.AccountLedger) error {
		tier = s.catalog.TierFor(l.LifetimePointsEarned)
		return nil
	})
	return tier, err
}

// AccountSummary returns a read-only overview of an account's points state.
func (s *Service) AccountSummary(ctx context.Context, accountID string) (*Summary, error) {
	now := s.clock.Now()

	var sum Summary
	err := s.accounts.View(ctx, accountID, func(l *domain.AccountLedger) error {
		sum = Summary{
			AccountID:    accountID,
			Balance:      l.PointsBalance,
			Lifetime:     l.LifetimePointsEarned,
			Tier:         s.catalog.TierFor(l.LifetimePointsEarned),
			StreakDays:   l.StreakDays,
			ActiveBoosts: l.ActiveBoosts(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// History returns an account's transaction log, newest last.
func (s *Service) History(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.accounts.View(ctx, accountID, func(l *domain.AccountLedger) error {
		txs = append(txs, l.Transactions...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// publishScore pushes the lifetime total to the leaderboard. Ranking is
// best-effort: a leaderboard outage must never fail an earn.
func (s *Service) publishScore(ctx context.Context, accountID string, lifetime int64) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.SetScore(ctx, accountID, lifetime); err != nil {
		log.Printf("points: leaderboard update for %s failed: %v", accountID, err)
	}
}
