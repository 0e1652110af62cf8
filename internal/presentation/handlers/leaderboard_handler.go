package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/application/services"
	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardHandler handles HTTP requests for counterparty leaderboards
type LeaderboardHandler struct {
	service *services.LeaderboardService
	logger  *zap.Logger
	now     func() time.Time
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(service *services.LeaderboardService, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes registers the leaderboard routes
func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/collectives/{slug}/leaderboard", h.GetLeaderboard)
}

// GetLeaderboard handles GET /collectives/{slug}/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	direction, ok := parseDirection(r)
	if !ok || direction == entities.DirectionInternal {
		respondError(w, http.StatusBadRequest, "Invalid direction")
		return
	}

	response, err := h.service.GetLeaderboard(r.Context(), chi.URLParam(r, "slug"), services.LeaderboardQuery{
		Period:    period,
		Direction: direction,
		Limit:     parseLimit(r, defaultLeaderboardLimit, maxLeaderboardLimit),
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get leaderboard")
		return
	}

	respondJSON(w, http.StatusOK, response)
}
