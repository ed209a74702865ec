package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Every validation
// error is returned before any mutation occurs; nothing here is fatal.

var (
	// Staking errors
	ErrInvalidPool         = errors.New("unknown staking pool")
	ErrBelowMinimum        = errors.New("amount below pool minimum stake")
	ErrAboveMaximum        = errors.New("amount above pool maximum stake")
	ErrInsufficientBalance = errors.New("insufficient spendable balance")
	ErrPositionNotFound    = errors.New("stake position not found")
	ErrStillLocked         = errors.New("position is still locked")
	ErrExceedsPoolMaximum  = errors.New("compounding would exceed pool maximum")
	ErrNothingToClaim      = errors.New("no pending rewards to claim")

	// Points errors
	ErrInsufficientPoints = errors.New("insufficient points balance")
	ErrUnknownBoostOffer  = errors.New("unknown boost offer")

	// Store errors
	ErrAccountNotFound    = errors.New("account ledger not found")
	ErrPersistenceFailure = errors.New("ledger store unavailable")

	// Consistency errors
	ErrReplayMismatch = errors.New("ledger replay mismatch")
)
