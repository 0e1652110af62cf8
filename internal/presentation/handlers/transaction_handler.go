package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/application/services"
)

// TransactionHandler handles HTTP requests for a collective's transactions
type TransactionHandler struct {
	service *services.TransactionService
	logger  *zap.Logger
	now     func() time.Time
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *services.TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes registers the transaction routes
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/collectives/{slug}/transactions", h.GetTransactions)
}

// GetTransactions handles GET /collectives/{slug}/transactions
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	direction, ok := parseDirection(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid direction")
		return
	}
	tokenType, ok := parseTokenType(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid token type")
		return
	}

	response, err := h.service.GetFeed(r.Context(), chi.URLParam(r, "slug"), services.FeedFilter{
		Period:    period,
		TokenType: tokenType,
		Direction: direction,
		Limit:     parseLimit(r, defaultLimit, maxLimit),
		Offset:    parseOffset(r),
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get transactions")
		return
	}

	respondJSON(w, http.StatusOK, response)
}
