// Package accrual computes day-granular staking yield.
//
// Accrual is lazy: nothing runs on a timer. Whenever a position is touched
// (claim, compound, preview) the engine computes how many whole days elapsed
// since the last accrual and what reward those days earned. Calling it twice
// within the same day is idempotent — the second call yields exactly zero.
//
//	effectiveAPY = (pool.baseAPY + tier.bonusAPY) × streak × boosts
//	rewardDelta  = principal × effectiveAPY / 365 × daysElapsed
//
// All arithmetic is integer (minor units, basis points) with half-even
// rounding at two documented points: once folding the multiplier pipeline
// into the effective APY, once for the final reward division. The per-day
// value is never rounded, so there is no cumulative drift.
package accrual

import (
	"time"

	"github.com/minifi-app/minifi/internal/domain"
)

// DaysPerYear is the APY denominator.
const DaysPerYear = 365

// Result is the outcome of one accrual computation.
type Result struct {
	DaysElapsed     int
	RewardDelta     int64 // minor units earned over DaysElapsed
	EffectiveAPYBps int64 // post-multiplier annual yield, basis points
}

// Pipeline builds the ordered multiplier pipeline for a position: the streak
// multiplier (when the account's streak meets the pool threshold) followed by
// active boosts in ascending id order. The order is fixed so half-even
// rounding reproduces bit-for-bit across implementations.
func Pipeline(pool domain.Pool, streakDays int, boosts []domain.Boost, now time.Time) []domain.Multiplier {
	var steps []domain.Multiplier
	if pool.StreakThresholdDays > 0 && streakDays >= pool.StreakThresholdDays {
		steps = append(steps, domain.Multiplier{
			Kind: domain.MultiplierStreak,
			Bps:  pool.StreakMultiplierBps,
		})
	}
	return append(steps, domain.BoostMultipliers(boosts, now)...)
}

// Compute returns the accrual for a position. Pure function: no side effects,
// no I/O, never fails — callers validate inputs.
//
// Boosts apply prospectively only: the set active at now is applied to the
// whole days elapsed since LastAccrualAt.
func Compute(pos *domain.StakePosition, pool domain.Pool, tier domain.Tier, streakDays int, boosts []domain.Boost, now time.Time) Result {
	apyBps := (pool.BaseAPYPercent + tier.BonusAPYPercent) * 100
	multBps := domain.FoldMultipliers(Pipeline(pool, streakDays, boosts, now))
	effBps := domain.ApplyBps(apyBps, multBps)

	elapsed := now.Sub(pos.LastAccrualAt)
	if elapsed < 0 {
		elapsed = 0
	}
	days := int64(elapsed / (24 * time.Hour))
	if days < 1 {
		return Result{EffectiveAPYBps: effBps}
	}

	// Magnitudes stay well inside int64: principal and effBps are bounded by
	// the catalog, days by the position's age.
	reward := domain.DivHalfEven(pos.Principal*effBps*days, DaysPerYear*domain.OneBps)

	return Result{
		DaysElapsed:     int(days),
		RewardDelta:     reward,
		EffectiveAPYBps: effBps,
	}
}
