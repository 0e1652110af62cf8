package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/application/services"
)

// TokenHandler handles HTTP requests for collectives and indexed tokens
type TokenHandler struct {
	service *services.TokenService
	logger  *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(service *services.TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the token and collective routes
func (h *TokenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tokens", h.GetTokens)
	r.Get("/collectives", h.GetCollectives)
	r.Get("/collectives/{slug}", h.GetCollective)
}

// GetTokens handles GET /tokens
func (h *TokenHandler) GetTokens(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.GetAllTokens(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get tokens")
		return
	}
	respondJSON(w, http.StatusOK, response)
}

// GetCollectives handles GET /collectives
func (h *TokenHandler) GetCollectives(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.GetCollectives(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get collectives")
		return
	}
	respondJSON(w, http.StatusOK, response)
}

// GetCollective handles GET /collectives/{slug}
func (h *TokenHandler) GetCollective(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.GetCollective(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get collective")
		return
	}
	respondJSON(w, http.StatusOK, response)
}
