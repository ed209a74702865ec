// Package observability exposes Prometheus metrics for the staking and
// points engine. Metrics are recorded at the API boundary; the engine core
// stays measurement-free.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Staking Metrics ────────────────────────────────────────────────────────

// StakeOperations counts position operations by kind and outcome.
var StakeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "vault",
	Name:      "operations_total",
	Help:      "Stake position operations by kind (stake, claim, compound, unstake) and outcome (ok, error).",
}, []string{"kind", "outcome"})

// CoinsStaked tracks coins moved into positions.
var CoinsStaked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "vault",
	Name:      "coins_staked_total",
	Help:      "Total coins staked, by pool.",
}, []string{"pool"})

// RewardsPaid tracks rewards credited to wallets via claim or unstake.
var RewardsPaid = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "vault",
	Name:      "rewards_paid_total",
	Help:      "Total reward coins paid out to wallets.",
})

// PenaltiesBurned tracks coins destroyed by early-exit penalties.
var PenaltiesBurned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "vault",
	Name:      "penalties_burned_total",
	Help:      "Total coins burned as early-unstake penalties.",
})

// ─── Points Metrics ─────────────────────────────────────────────────────────

// PointsEarned tracks points credited, by activity source.
var PointsEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "points",
	Name:      "earned_total",
	Help:      "Total points earned after multipliers, by source.",
}, []string{"source"})

// PointsRedeemed tracks points spent.
var PointsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "points",
	Name:      "redeemed_total",
	Help:      "Total points redeemed.",
})

// BoostsActivated counts boost purchases by offer.
var BoostsActivated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "minifi",
	Subsystem: "points",
	Name:      "boosts_activated_total",
	Help:      "Total boosts activated, by offer.",
}, []string{"offer"})

// ─── API Metrics ────────────────────────────────────────────────────────────

// RequestDuration observes HTTP handler latency.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "minifi",
	Subsystem: "api",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status class.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "status"})
