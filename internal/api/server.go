// Package api provides the HTTP server for the Mini.Fi staking and points
// engine. JSON over REST; the host app authenticates upstream and passes the
// account id in the URL.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minifi-app/minifi/internal/domain"
	"github.com/minifi-app/minifi/internal/infra/catalog"
	"github.com/minifi-app/minifi/internal/infra/leaderboard"
	"github.com/minifi-app/minifi/internal/infra/observability"
)

// Server is the engine HTTP API server.
type Server struct {
	catalog        *catalog.Catalog
	vault          VaultAPI
	points         PointsAPI
	board          BoardAPI // nil when ranking is disabled
	metricsEnabled bool
}

// NewServer creates an API server over the vault and points services.
func NewServer(cat *catalog.Catalog, v VaultAPI, p PointsAPI) *Server {
	return &Server{catalog: cat, vault: v, points: p}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetLeaderboard mounts the leaderboard endpoints.
func (s *Server) SetLeaderboard(b BoardAPI) { s.board = b }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(latencyMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Catalog endpoints
	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/pools", s.handlePools)
		r.Get("/tiers", s.handleTiers)
		r.Get("/boosts", s.handleBoostOffers)
	})

	// Per-account staking endpoints
	r.Route("/api/accounts/{accountID}", func(r chi.Router) {
		r.Post("/stake", s.handleStake)
		r.Get("/positions", s.handlePositions)
		r.Get("/positions/{positionID}/rewards", s.handlePendingRewards)
		r.Post("/positions/{positionID}/claim", s.handleClaim)
		r.Post("/positions/{positionID}/compound", s.handleCompound)
		r.Post("/positions/{positionID}/unstake", s.handleUnstake)

		r.Get("/points", s.handleSummary)
		r.Post("/points/earn", s.handleEarn)
		r.Post("/points/redeem", s.handleRedeem)
		r.Post("/points/boosts", s.handleActivateBoost)
		r.Post("/activity", s.handleActivity)
		r.Get("/transactions", s.handleHistory)
	})

	if s.board != nil {
		r.Route("/api/leaderboard", func(r chi.Router) {
			r.Get("/", s.handleLeaderboardTop)
			r.Get("/{accountID}", s.handleLeaderboardRank)
		})
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps engine sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPool),
		errors.Is(err, domain.ErrUnknownBoostOffer),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrPositionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrAboveMaximum),
		errors.Is(err, domain.ErrExceedsPoolMaximum),
		errors.Is(err, domain.ErrNothingToClaim):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientPoints):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrStillLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPersistenceFailure):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// latencyMiddleware observes handler latency per route pattern. Patterns
// rather than raw paths keep the label cardinality bounded.
func latencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := fmt.Sprintf("%dxx", ww.Status()/100)
		observability.RequestDuration.WithLabelValues(route, status).
			Observe(time.Since(start).Seconds())
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// ─── Leaderboard endpoints ──────────────────────────────────────────────────

func (s *Server) handleLeaderboardTop(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "limit", 10)
	if n > 100 {
		n = 100
	}
	entries, err := s.board.Top(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleLeaderboardRank(w http.ResponseWriter, r *http.Request) {
	entry, err := s.board.Rank(r.Context(), chi.URLParam(r, "accountID"))
	if errors.Is(err, leaderboard.ErrNotRanked) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
