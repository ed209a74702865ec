package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minifi-app/minifi/internal/app/points"
	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/observability"
)

// ─── Points API ─────────────────────────────────────────────────────────────
//
// GET  /api/accounts/{id}/points        — balance, tier, streak, boosts
// POST /api/accounts/{id}/points/earn   — credit points for an activity
// POST /api/accounts/{id}/points/redeem — spend points
// POST /api/accounts/{id}/points/boosts — activate a boost from the catalog
// POST /api/accounts/{id}/activity      — daily streak ping
// GET  /api/accounts/{id}/transactions  — full transaction log

// PointsAPI is the points service surface the server needs.
type PointsAPI interface {
	Earn(ctx context.Context, accountID string, baseAmount int64, source string) (*points.EarnResult, error)
	Redeem(ctx context.Context, accountID string, amount int64, description string) (*points.RedeemResult, error)
	ActivateBoost(ctx context.Context, accountID, offerID string) (*points.BoostResult, error)
	RecordActivity(ctx context.Context, accountID string) (*points.StreakResult, error)
	AccountSummary(ctx context.Context, accountID string) (*points.Summary, error)
	History(ctx context.Context, accountID string) ([]domain.Transaction, error)
}

type earnRequest struct {
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

type redeemRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type boostRequest struct {
	OfferID string `json:"offer_id"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.points.AccountSummary(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleEarn(w http.ResponseWriter, r *http.Request) {
	var req earnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "a positive amount is required")
		return
	}
	if req.Source == "" {
		req.Source = "activity"
	}

	res, err := s.points.Earn(r.Context(), chi.URLParam(r, "accountID"), req.Amount, req.Source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	observability.PointsEarned.WithLabelValues(req.Source).Add(float64(res.Earned))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "a positive amount is required")
		return
	}

	res, err := s.points.Redeem(r.Context(), chi.URLParam(r, "accountID"), req.Amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	observability.PointsRedeemed.Add(float64(req.Amount))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActivateBoost(w http.ResponseWriter, r *http.Request) {
	var req boostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OfferID == "" {
		writeError(w, http.StatusBadRequest, "offer_id is required")
		return
	}

	res, err := s.points.ActivateBoost(r.Context(), chi.URLParam(r, "accountID"), req.OfferID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	observability.BoostsActivated.WithLabelValues(req.OfferID).Inc()
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	res, err := s.points.RecordActivity(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := s.points.History(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}
