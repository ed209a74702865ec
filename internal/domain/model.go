// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
//
// All currency amounts (XP and Mini Points) are fixed-point integers in minor
// units. Multipliers are carried in basis points (10000 = ×1.0) so every
// computation stays in integer arithmetic with one rounding rule (half-even).
package domain

import (
	"fmt"
	"sort"
	"time"
)

// ─── Fixed-Point Arithmetic ─────────────────────────────────────────────────

// OneBps is the basis-point representation of a ×1.0 multiplier.
const OneBps int64 = 10_000

// DivHalfEven divides num by den rounding half to even (banker's rounding).
// This is the single rounding rule of the whole engine; it is never applied
// per day, only at the documented points of each operation.
func DivHalfEven(num, den int64) int64 {
	if den < 0 {
		num, den = -num, -den
	}
	neg := num < 0
	if neg {
		num = -num
	}
	q, r := num/den, num%den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}
	if neg {
		return -q
	}
	return q
}

// ApplyBps scales v by a basis-point multiplier, rounding half-even.
func ApplyBps(v, bps int64) int64 {
	return DivHalfEven(v*bps, OneBps)
}

// ─── Catalog Types ──────────────────────────────────────────────────────────

// Pool is an immutable staking pool definition from the catalog.
type Pool struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	BaseAPYPercent      int64  `json:"base_apy_percent"`      // annual yield, whole percent
	MinStake            int64  `json:"min_stake"`             // minor units
	MaxStake            int64  `json:"max_stake"`             // minor units
	LockPeriodDays      int    `json:"lock_period_days"`
	EarlyPenaltyPercent int64  `json:"early_penalty_percent"` // % of principal, whole percent
	StreakMultiplierBps int64  `json:"streak_multiplier_bps"` // applied when streak ≥ threshold
	StreakThresholdDays int    `json:"streak_threshold_days"`
}

// Tier is an immutable account rank from the catalog, ordered by threshold.
type Tier struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	LifetimePointsMin int64  `json:"lifetime_points_min"`
	EarnMultiplierBps int64  `json:"earn_multiplier_bps"` // points earning multiplier
	BonusAPYPercent   int64  `json:"bonus_apy_percent"`   // added to pool base APY
}

// BoostOffer is a purchasable temporary multiplier from the catalog.
type BoostOffer struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	MultiplierBps int64         `json:"multiplier_bps"`
	Duration      time.Duration `json:"duration"`
	PointsCost    int64         `json:"points_cost"`
}

// ─── Stake Position ─────────────────────────────────────────────────────────

// StakePosition is a single stake owned exclusively by one account.
//
// Lifecycle: created by stake, mutated by claim/compound (which reset
// PendingRewards and advance LastAccrualAt), terminated by unstake
// (Closed = true). A closed position never transitions again.
type StakePosition struct {
	ID             string    `json:"id"`
	PoolID         string    `json:"pool_id"`
	AccountID      string    `json:"account_id"`
	Principal      int64     `json:"principal"` // minor units, excludes accrued rewards
	StakedAt       time.Time `json:"staked_at"`
	UnlocksAt      time.Time `json:"unlocks_at"`
	LastAccrualAt  time.Time `json:"last_accrual_at"`
	PendingRewards int64     `json:"pending_rewards"`
	TotalEarned    int64     `json:"total_earned"`
	Closed         bool      `json:"closed"`
}

// Unlockable reports whether the lock period has elapsed.
func (p *StakePosition) Unlockable(now time.Time) bool {
	return !now.Before(p.UnlocksAt)
}

// DaysLocked returns whole days until the position unlocks, rounded up.
// Returns 0 once the position is unlockable.
func (p *StakePosition) DaysLocked(now time.Time) int {
	if p.Unlockable(now) {
		return 0
	}
	d := p.UnlocksAt.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// String returns a position summary for logging.
func (p *StakePosition) String() string {
	return fmt.Sprintf("StakePosition{%s pool=%s principal=%d pending=%d closed=%v}",
		p.ID, p.PoolID, p.Principal, p.PendingRewards, p.Closed)
}

// ─── Boosts ─────────────────────────────────────────────────────────────────

// Boost is an account-scoped temporary multiplier. Expired boosts are inert:
// they are excluded lazily at read time and never applied.
type Boost struct {
	ID            string    `json:"id"`
	OfferID       string    `json:"offer_id"`
	MultiplierBps int64     `json:"multiplier_bps"`
	ActivatedAt   time.Time `json:"activated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Active reports whether the boost applies at the given instant.
func (b Boost) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}

// ─── Multiplier Pipeline ────────────────────────────────────────────────────

// MultiplierKind tags the origin of a multiplier in the stacking pipeline.
type MultiplierKind string

const (
	MultiplierTier   MultiplierKind = "tier"
	MultiplierStreak MultiplierKind = "streak"
	MultiplierBoost  MultiplierKind = "boost"
)

// Multiplier is one step of the ordered multiplier pipeline.
type Multiplier struct {
	Kind MultiplierKind
	ID   string // boost id when Kind == MultiplierBoost
	Bps  int64
}

// FoldMultipliers reduces an ordered multiplier pipeline into a single
// basis-point factor. Each step rounds half-even, so given the same order the
// result is reproducible bit-for-bit across implementations. Callers are
// responsible for the ordering contract: boosts sorted by ascending id.
func FoldMultipliers(steps []Multiplier) int64 {
	out := OneBps
	for _, s := range steps {
		out = ApplyBps(out, s.Bps)
	}
	return out
}

// BoostMultipliers converts the active subset of boosts into pipeline steps,
// sorted by ascending boost id (the documented stacking order).
func BoostMultipliers(boosts []Boost, now time.Time) []Multiplier {
	active := make([]Boost, 0, len(boosts))
	for _, b := range boosts {
		if b.Active(now) {
			active = append(active, b)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	steps := make([]Multiplier, len(active))
	for i, b := range active {
		steps[i] = Multiplier{Kind: MultiplierBoost, ID: b.ID, Bps: b.MultiplierBps}
	}
	return steps
}
