package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/application/services"
)

// StatsHandler handles HTTP requests for collective statistics
type StatsHandler struct {
	service *services.StatsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes registers the stats routes
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/collectives/{slug}/stats", h.GetTokenStats)
	r.Get("/collectives/{slug}/totals", h.GetTotals)
}

// GetTokenStats handles GET /collectives/{slug}/stats
func (h *StatsHandler) GetTokenStats(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := h.service.GetTokenStats(r.Context(), chi.URLParam(r, "slug"), period)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get token stats")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// GetTotals handles GET /collectives/{slug}/totals
func (h *StatsHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := h.service.GetTotals(r.Context(), chi.URLParam(r, "slug"), period)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get totals")
		return
	}

	respondJSON(w, http.StatusOK, response)
}
