package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minifi-app/minifi/internal/app/vault"
	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/leaderboard"
	"github.com/minifi-app/minifi/internal/infra/observability"
)

// ─── Staking API ────────────────────────────────────────────────────────────
//
// POST /api/accounts/{id}/stake                        — open a position
// GET  /api/accounts/{id}/positions                    — list open positions
// GET  /api/accounts/{id}/positions/{pos}/rewards      — pending-rewards preview
// POST /api/accounts/{id}/positions/{pos}/claim        — claim rewards
// POST /api/accounts/{id}/positions/{pos}/compound     — compound rewards
// POST /api/accounts/{id}/positions/{pos}/unstake      — close a position

// VaultAPI is the position manager surface the server needs.
type VaultAPI interface {
	Stake(ctx context.Context, accountID, poolID string, amount int64) (*vault.StakeResult, error)
	Claim(ctx context.Context, accountID, positionID string) (*vault.ClaimResult, error)
	Compound(ctx context.Context, accountID, positionID string) (*vault.CompoundResult, error)
	Unstake(ctx context.Context, accountID, positionID string, forceEarly bool) (*vault.UnstakeResult, error)
	PendingRewards(ctx context.Context, accountID, positionID string) (*vault.Preview, error)
	Positions(ctx context.Context, accountID string) ([]domain.StakePosition, error)
}

// BoardAPI is the leaderboard surface the server needs.
type BoardAPI interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
	Rank(ctx context.Context, accountID string) (leaderboard.Entry, error)
}

type stakeRequest struct {
	PoolID string `json:"pool_id"`
	Amount int64  `json:"amount"`
}

type unstakeRequest struct {
	ForceEarly bool `json:"force_early"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PoolID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "pool_id and a positive amount are required")
		return
	}

	res, err := s.vault.Stake(r.Context(), accountID, req.PoolID, req.Amount)
	if err != nil {
		observability.StakeOperations.WithLabelValues("stake", "error").Inc()
		writeDomainError(w, err)
		return
	}
	observability.StakeOperations.WithLabelValues("stake", "ok").Inc()
	observability.CoinsStaked.WithLabelValues(req.PoolID).Add(float64(req.Amount))
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.vault.Positions(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if positions == nil {
		positions = []domain.StakePosition{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}

func (s *Server) handlePendingRewards(w http.ResponseWriter, r *http.Request) {
	p, err := s.vault.PendingRewards(r.Context(),
		chi.URLParam(r, "accountID"), chi.URLParam(r, "positionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	res, err := s.vault.Claim(r.Context(),
		chi.URLParam(r, "accountID"), chi.URLParam(r, "positionID"))
	if err != nil {
		observability.StakeOperations.WithLabelValues("claim", "error").Inc()
		writeDomainError(w, err)
		return
	}
	observability.StakeOperations.WithLabelValues("claim", "ok").Inc()
	observability.RewardsPaid.Add(float64(res.Claimed))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCompound(w http.ResponseWriter, r *http.Request) {
	res, err := s.vault.Compound(r.Context(),
		chi.URLParam(r, "accountID"), chi.URLParam(r, "positionID"))
	if err != nil {
		observability.StakeOperations.WithLabelValues("compound", "error").Inc()
		writeDomainError(w, err)
		return
	}
	observability.StakeOperations.WithLabelValues("compound", "ok").Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req unstakeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	res, err := s.vault.Unstake(r.Context(),
		chi.URLParam(r, "accountID"), chi.URLParam(r, "positionID"), req.ForceEarly)
	if err != nil {
		observability.StakeOperations.WithLabelValues("unstake", "error").Inc()
		writeDomainError(w, err)
		return
	}
	observability.StakeOperations.WithLabelValues("unstake", "ok").Inc()
	observability.RewardsPaid.Add(float64(res.Rewards))
	if res.Penalty > 0 {
		observability.PenaltiesBurned.Add(float64(res.Penalty))
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Catalog endpoints ──────────────────────────────────────────────────────

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"pools": s.catalog.Pools()})
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": s.catalog.Tiers()})
}

func (s *Server) handleBoostOffers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"boosts": s.catalog.BoostOffers()})
}
