// Package catalog holds the static, versioned staking configuration: pools,
// tiers, and boost offers. It is read-only at runtime — the engine consults
// it, never mutates it. Hot reload is out of scope.
//
// Built-in defaults mirror the production Mini.Fi catalog and can be replaced
// wholesale from a TOML file.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/minifi-app/minifi/internal/domain"
)

// Catalog is an immutable set of pool, tier, and boost definitions.
// Tiers are kept sorted ascending by threshold.
type Catalog struct {
	pools  map[string]domain.Pool
	tiers  []domain.Tier
	boosts map[string]domain.BoostOffer
}

// New builds a catalog from explicit definitions.
func New(pools []domain.Pool, tiers []domain.Tier, boosts []domain.BoostOffer) (*Catalog, error) {
	if len(pools) == 0 || len(tiers) == 0 {
		return nil, fmt.Errorf("catalog needs at least one pool and one tier")
	}

	c := &Catalog{
		pools:  make(map[string]domain.Pool, len(pools)),
		boosts: make(map[string]domain.BoostOffer, len(boosts)),
	}
	for _, p := range pools {
		if p.MinStake <= 0 || p.MaxStake < p.MinStake {
			return nil, fmt.Errorf("pool %q: invalid stake bounds [%d, %d]", p.ID, p.MinStake, p.MaxStake)
		}
		c.pools[p.ID] = p
	}
	c.tiers = append([]domain.Tier(nil), tiers...)
	sort.Slice(c.tiers, func(i, j int) bool {
		return c.tiers[i].LifetimePointsMin < c.tiers[j].LifetimePointsMin
	})
	if c.tiers[0].LifetimePointsMin != 0 {
		return nil, fmt.Errorf("lowest tier %q must start at 0 lifetime points", c.tiers[0].ID)
	}
	for _, b := range boosts {
		// RedeemPoints rejects non-positive amounts, so a free or negative
		// boost would be unpurchasable at runtime. Reject it at load time.
		if b.PointsCost <= 0 {
			return nil, fmt.Errorf("boost %q: points cost must be positive, got %d", b.ID, b.PointsCost)
		}
		if b.MultiplierBps <= 0 || b.Duration <= 0 {
			return nil, fmt.Errorf("boost %q: invalid multiplier or duration (×%d bps, %s)", b.ID, b.MultiplierBps, b.Duration)
		}
		c.boosts[b.ID] = b
	}
	return c, nil
}

// Pool returns a pool definition by id.
func (c *Catalog) Pool(id string) (domain.Pool, error) {
	p, ok := c.pools[id]
	if !ok {
		return domain.Pool{}, domain.ErrInvalidPool
	}
	return p, nil
}

// Pools returns all pools sorted by id.
func (c *Catalog) Pools() []domain.Pool {
	out := make([]domain.Pool, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TierFor returns the highest tier whose threshold is at or below the given
// lifetime points. Pure function of the catalog and the input.
func (c *Catalog) TierFor(lifetimePoints int64) domain.Tier {
	current := c.tiers[0]
	for _, t := range c.tiers[1:] {
		if lifetimePoints >= t.LifetimePointsMin {
			current = t
		}
	}
	return current
}

// Tiers returns all tiers ascending by threshold.
func (c *Catalog) Tiers() []domain.Tier {
	return append([]domain.Tier(nil), c.tiers...)
}

// BoostOffer returns a purchasable boost definition by id.
func (c *Catalog) BoostOffer(id string) (domain.BoostOffer, error) {
	b, ok := c.boosts[id]
	if !ok {
		return domain.BoostOffer{}, domain.ErrUnknownBoostOffer
	}
	return b, nil
}

// BoostOffers returns all boost offers sorted by id.
func (c *Catalog) BoostOffers() []domain.BoostOffer {
	out := make([]domain.BoostOffer, 0, len(c.boosts))
	for _, b := range c.boosts {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ─── Built-in Defaults ──────────────────────────────────────────────────────

// Default returns the production Mini.Fi catalog.
func Default() *Catalog {
	c, err := New(defaultPools(), defaultTiers(), defaultBoosts())
	if err != nil {
		panic("catalog: invalid built-in defaults: " + err.Error())
	}
	return c
}

func defaultPools() []domain.Pool {
	return []domain.Pool{
		{ID: "flex", Name: "Flex Pool", BaseAPYPercent: 5, MinStake: 50, MaxStake: 1_000,
			LockPeriodDays: 0, EarlyPenaltyPercent: 0, StreakMultiplierBps: 10_000, StreakThresholdDays: 7},
		{ID: "starter", Name: "Starter Stake", BaseAPYPercent: 12, MinStake: 100, MaxStake: 2_500,
			LockPeriodDays: 7, EarlyPenaltyPercent: 10, StreakMultiplierBps: 11_000, StreakThresholdDays: 7},
		{ID: "hodl", Name: "HODL Pool", BaseAPYPercent: 25, MinStake: 250, MaxStake: 5_000,
			LockPeriodDays: 14, EarlyPenaltyPercent: 15, StreakMultiplierBps: 12_500, StreakThresholdDays: 7},
		{ID: "whale", Name: "Whale Pool", BaseAPYPercent: 50, MinStake: 500, MaxStake: 10_000,
			LockPeriodDays: 30, EarlyPenaltyPercent: 20, StreakMultiplierBps: 15_000, StreakThresholdDays: 7},
		{ID: "legend", Name: "Legend Vault", BaseAPYPercent: 100, MinStake: 1_000, MaxStake: 25_000,
			LockPeriodDays: 60, EarlyPenaltyPercent: 25, StreakMultiplierBps: 20_000, StreakThresholdDays: 7},
	}
}

func defaultTiers() []domain.Tier {
	return []domain.Tier{
		{ID: "starter", Name: "Starter", LifetimePointsMin: 0, EarnMultiplierBps: 10_000, BonusAPYPercent: 0},
		{ID: "bronze", Name: "Bronze", LifetimePointsMin: 100, EarnMultiplierBps: 11_000, BonusAPYPercent: 2},
		{ID: "silver", Name: "Silver", LifetimePointsMin: 500, EarnMultiplierBps: 12_500, BonusAPYPercent: 5},
		{ID: "gold", Name: "Gold", LifetimePointsMin: 1_500, EarnMultiplierBps: 15_000, BonusAPYPercent: 10},
		{ID: "platinum", Name: "Platinum", LifetimePointsMin: 5_000, EarnMultiplierBps: 20_000, BonusAPYPercent: 20},
	}
}

func defaultBoosts() []domain.BoostOffer {
	return []domain.BoostOffer{
		{ID: "quick-boost", Name: "Quick Boost", MultiplierBps: 15_000, Duration: time.Hour, PointsCost: 25},
		{ID: "power-hour", Name: "Power Hour", MultiplierBps: 20_000, Duration: time.Hour, PointsCost: 50},
		{ID: "super-session", Name: "Super Session", MultiplierBps: 15_000, Duration: 24 * time.Hour, PointsCost: 100},
		{ID: "mega-boost", Name: "Mega Boost", MultiplierBps: 20_000, Duration: 24 * time.Hour, PointsCost: 175},
	}
}

// ─── TOML Loader ────────────────────────────────────────────────────────────

type fileFormat struct {
	Pools  []poolEntry  `toml:"pool"`
	Tiers  []tierEntry  `toml:"tier"`
	Boosts []boostEntry `toml:"boost"`
}

type poolEntry struct {
	ID                  string `toml:"id"`
	Name                string `toml:"name"`
	APYPercent          int64  `toml:"apy_percent"`
	MinStake            int64  `toml:"min_stake"`
	MaxStake            int64  `toml:"max_stake"`
	LockPeriodDays      int    `toml:"lock_period_days"`
	EarlyPenaltyPercent int64  `toml:"early_penalty_percent"`
	StreakMultiplierBps int64  `toml:"streak_multiplier_bps"`
	StreakThresholdDays int    `toml:"streak_threshold_days"`
}

type tierEntry struct {
	ID                string `toml:"id"`
	Name              string `toml:"name"`
	LifetimePointsMin int64  `toml:"lifetime_points_min"`
	EarnMultiplierBps int64  `toml:"earn_multiplier_bps"`
	BonusAPYPercent   int64  `toml:"bonus_apy_percent"`
}

type boostEntry struct {
	ID            string `toml:"id"`
	Name          string `toml:"name"`
	MultiplierBps int64  `toml:"multiplier_bps"`
	DurationHours int    `toml:"duration_hours"`
	PointsCost    int64  `toml:"points_cost"`
}

// LoadFile reads a full catalog from a TOML file. The file replaces the
// defaults entirely; there is no merging.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f fileFormat
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	pools := make([]domain.Pool, len(f.Pools))
	for i, p := range f.Pools {
		pools[i] = domain.Pool{
			ID: p.ID, Name: p.Name, BaseAPYPercent: p.APYPercent,
			MinStake: p.MinStake, MaxStake: p.MaxStake,
			LockPeriodDays: p.LockPeriodDays, EarlyPenaltyPercent: p.EarlyPenaltyPercent,
			StreakMultiplierBps: p.StreakMultiplierBps, StreakThresholdDays: p.StreakThresholdDays,
		}
	}
	tiers := make([]domain.Tier, len(f.Tiers))
	for i, t := range f.Tiers {
		tiers[i] = domain.Tier{
			ID: t.ID, Name: t.Name, LifetimePointsMin: t.LifetimePointsMin,
			EarnMultiplierBps: t.EarnMultiplierBps, BonusAPYPercent: t.BonusAPYPercent,
		}
	}
	boosts := make([]domain.BoostOffer, len(f.Boosts))
	for i, b := range f.Boosts {
		boosts[i] = domain.BoostOffer{
			ID: b.ID, Name: b.Name, MultiplierBps: b.MultiplierBps,
			Duration: time.Duration(b.DurationHours) * time.Hour, PointsCost: b.PointsCost,
		}
	}
	return New(pools, tiers, boosts)
}
