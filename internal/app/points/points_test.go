package points

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minifi-app/minifi/internal/app/accounts"
	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/catalog"
	"github.com/minifi-app/minifi/internal/infra/clock"
	"github.com/minifi-app/minifi/internal/infra/memstore"
)

var testStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeBoard records leaderboard updates and can be told to fail.
type fakeBoard struct {
	scores map[string]int64
	fail   bool
}

func (f *fakeBoard) SetScore(_ context.Context, accountID string, lifetime int64) error {
	if f.fail {
		return errors.New("redis down")
	}
	if f.scores == nil {
		f.scores = make(map[string]int64)
	}
	f.scores[accountID] = lifetime
	return nil
}

func newTestService(t *testing.T, lb domain.Leaderboard) (*Service, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(testStart)
	reg := accounts.NewRegistry(memstore.New())
	return New(catalog.Default(), reg, lb, clk), clk
}

// ═══════════════════════════════════════════════════════════════════════════
// Earn
// ═══════════════════════════════════════════════════════════════════════════

func TestEarnAtStarterTierCreditsBaseAmount(t *testing.T) {
	s, _ := newTestService(t, nil)

	res, err := s.Earn(context.Background(), "alice", 50, "lesson_complete")
	if err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if res.Earned != 50 {
		t.Errorf("Earned = %d, want 50", res.Earned)
	}
	if res.Tier.ID != "starter" {
		t.Errorf("Tier = %s, want starter", res.Tier.ID)
	}
	if res.Balance != 50 || res.Lifetime != 50 {
		t.Errorf("balance/lifetime = %d/%d, want 50/50", res.Balance, res.Lifetime)
	}
}

func TestEarnCrossingThresholdPaysAtOldTier(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	// 0 → 100 lifetime: still paid at starter ×1.0 even though it lands
	// exactly on the bronze threshold.
	res, err := s.Earn(ctx, "alice", 100, "quiz")
	if err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if res.Earned != 100 || res.Tier.ID != "starter" {
		t.Errorf("earned %d at %s, want 100 at starter", res.Earned, res.Tier.ID)
	}

	// Next earn is paid at bronze ×1.1.
	res, err = s.Earn(ctx, "alice", 100, "quiz")
	if err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if res.Tier.ID != "bronze" {
		t.Errorf("Tier = %s, want bronze", res.Tier.ID)
	}
	if res.Earned != 110 {
		t.Errorf("Earned = %d, want 110", res.Earned)
	}
}

func TestEarnRejectsNonPositiveAmount(t *testing.T) {
	s, _ := newTestService(t, nil)
	for _, amount := range []int64{0, -5} {
		if _, err := s.Earn(context.Background(), "alice", amount, "x"); err == nil {
			t.Errorf("Earn(%d) error = nil, want error", amount)
		}
	}
}

func TestEarnPublishesLifetimeToLeaderboard(t *testing.T) {
	board := &fakeBoard{}
	s, _ := newTestService(t, board)
	ctx := context.Background()

	if _, err := s.Earn(ctx, "alice", 60, "quiz"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if _, err := s.Earn(ctx, "alice", 40, "quiz"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if got := board.scores["alice"]; got != 100 {
		t.Errorf("leaderboard score = %d, want 100", got)
	}
}

func TestEarnSurvivesLeaderboardOutage(t *testing.T) {
	s, _ := newTestService(t, &fakeBoard{fail: true})

	res, err := s.Earn(context.Background(), "alice", 50, "quiz")
	if err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if res.Balance != 50 {
		t.Errorf("balance = %d, want 50", res.Balance)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Redeem
// ═══════════════════════════════════════════════════════════════════════════

func TestRedeemSpendsBalanceNotLifetime(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := s.Earn(ctx, "alice", 200, "quiz"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	res, err := s.Redeem(ctx, "alice", 150, "avatar frame")
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if res.Balance != 50 {
		t.Errorf("balance = %d, want 50", res.Balance)
	}

	// Lifetime is untouched, so the tier earned at 200 lifetime survives.
	tier, err := s.CurrentTier(ctx, "alice")
	if err != nil {
		t.Fatalf("CurrentTier() error = %v", err)
	}
	if tier.ID != "bronze" {
		t.Errorf("tier = %s, want bronze", tier.ID)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := s.Earn(ctx, "alice", 50, "quiz"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if _, err := s.Redeem(ctx, "alice", 51, "x"); !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Fatalf("Redeem() error = %v, want ErrInsufficientPoints", err)
	}

	sum, err := s.AccountSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("AccountSummary() error = %v", err)
	}
	if sum.Balance != 50 {
		t.Errorf("balance = %d, want 50 (unchanged)", sum.Balance)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Boosts
// ═══════════════════════════════════════════════════════════════════════════

func TestActivateBoostDebitsCostAndMultipliesEarning(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := s.Earn(ctx, "alice", 50, "quiz"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	res, err := s.ActivateBoost(ctx, "alice", "quick-boost") // ×1.5 for 1h, costs 25
	if err != nil {
		t.Fatalf("ActivateBoost() error = %v", err)
	}
	if res.Balance != 25 {
		t.Errorf("balance = %d, want 25", res.Balance)
	}
	if res.Boost.MultiplierBps != 15_000 {
		t.Errorf("MultiplierBps = %d, want 15000", res.Boost.MultiplierBps)
	}
	if want := testStart.Add(time.Hour); !res.Boost.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", res.Boost.ExpiresAt, want)
	}

	earn, err := s.Earn(ctx, "alice", 100, "quiz")
	if err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if earn.Earned != 150 { // starter ×1.0, boost ×1.5
		t.Errorf("Earned = %d, want 150", earn.Earned)
	}
}

func TestBoostExpires(t *testing.T) {
	s, clk := newTestService(t, nil)
	ctx := context.Background()

	if _, err := s.Earn(ctx, "alice", 50, "quiz"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if _, err := s.ActivateBoost(ctx, "alice", "quick-boost"); err != nil {
		t.Fatalf("ActivateBoost() error = %v", err)
	}
	clk.Advance(time.Hour) // inactive at the exact expiry instant

	earn, err := s.Earn(ctx, "alice", 100, "quiz")
	if err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	// 75 lifetime at this point: still starter ×1.0, boost gone.
	if earn.Earned != 100 {
		t.Errorf("Earned = %d, want 100", earn.Earned)
	}
}

func TestActivateBoostFailures(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := s.ActivateBoost(ctx, "alice", "no-such-offer"); !errors.Is(err, domain.ErrUnknownBoostOffer) {
		t.Errorf("unknown offer error = %v, want ErrUnknownBoostOffer", err)
	}
	if _, err := s.ActivateBoost(ctx, "alice", "quick-boost"); !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Errorf("broke account error = %v, want ErrInsufficientPoints", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak
// ═══════════════════════════════════════════════════════════════════════════

func TestRecordActivityStreak(t *testing.T) {
	s, clk := newTestService(t, nil)
	ctx := context.Background()

	res, err := s.RecordActivity(ctx, "alice")
	if err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}
	if res.StreakDays != 1 || !res.Extended {
		t.Errorf("day 1: streak = %d extended = %v, want 1 true", res.StreakDays, res.Extended)
	}

	// Same UTC day: no-op.
	clk.Advance(2 * time.Hour)
	res, _ = s.RecordActivity(ctx, "alice")
	if res.StreakDays != 1 || res.Extended {
		t.Errorf("same day: streak = %d extended = %v, want 1 false", res.StreakDays, res.Extended)
	}

	// Next day extends.
	clk.Advance(24 * time.Hour)
	res, _ = s.RecordActivity(ctx, "alice")
	if res.StreakDays != 2 || !res.Extended {
		t.Errorf("day 2: streak = %d extended = %v, want 2 true", res.StreakDays, res.Extended)
	}

	// A missed day resets to 1.
	clk.Advance(48 * time.Hour)
	res, _ = s.RecordActivity(ctx, "alice")
	if res.StreakDays != 1 {
		t.Errorf("after gap: streak = %d, want 1", res.StreakDays)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Summary
// ═══════════════════════════════════════════════════════════════════════════

func TestAccountSummary(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := s.Earn(ctx, "alice", 600, "course_complete"); err != nil {
		t.Fatalf("Earn() error = %v", err)
	}
	if _, err := s.ActivateBoost(ctx, "alice", "power-hour"); err != nil {
		t.Fatalf("ActivateBoost() error = %v", err)
	}
	if _, err := s.RecordActivity(ctx, "alice"); err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}

	sum, err := s.AccountSummary(ctx, "alice")
	if err != nil {
		t.Fatalf("AccountSummary() error = %v", err)
	}
	if sum.Balance != 550 {
		t.Errorf("balance = %d, want 550", sum.Balance)
	}
	if sum.Lifetime != 600 {
		t.Errorf("lifetime = %d, want 600", sum.Lifetime)
	}
	if sum.Tier.ID != "silver" {
		t.Errorf("tier = %s, want silver", sum.Tier.ID)
	}
	if sum.StreakDays != 1 {
		t.Errorf("streak = %d, want 1", sum.StreakDays)
	}
	if len(sum.ActiveBoosts) != 1 {
		t.Errorf("active boosts = %d, want 1", len(sum.ActiveBoosts))
	}

	hist, err := s.History(ctx, "alice")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(hist) != 2 { // earn + boost redemption
		t.Errorf("history length = %d, want 2", len(hist))
	}
}
