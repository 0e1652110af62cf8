package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/application/services"
	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, message string) {
	switch {
	case errors.Is(err, services.ErrCollectiveNotFound):
		respondError(w, http.StatusNotFound, "Collective not found")
	case errors.Is(err, services.ErrInvalidPeriod):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(message, zap.Error(err))
		respondError(w, http.StatusInternalServerError, message)
	}
}

// parsePeriod reads year and month. No parameters selects the current month,
// a year alone selects the whole year and a month alone uses the current year.
func parsePeriod(r *http.Request, now time.Time) (services.Period, error) {
	q := r.URL.Query()
	yearParam, monthParam := q.Get("year"), q.Get("month")

	if yearParam == "" && monthParam == "" {
		return services.CurrentMonth(now), nil
	}

	period := services.Period{Year: now.UTC().Year()}
	if yearParam != "" {
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			return period, fmt.Errorf("%w: year %q", services.ErrInvalidPeriod, yearParam)
		}
		period.Year = year
	}
	if monthParam != "" {
		month, err := strconv.Atoi(monthParam)
		if err != nil || month < 1 {
			return period, fmt.Errorf("%w: month %q", services.ErrInvalidPeriod, monthParam)
		}
		period.Month = month
	}

	return period, period.Validate()
}

func parseDirection(r *http.Request) (entities.Direction, bool) {
	v := strings.ToLower(r.URL.Query().Get("direction"))
	if v == "" {
		return "", true
	}
	d := entities.Direction(v)
	return d, d.Valid()
}

func parseTokenType(r *http.Request) (entities.TokenType, bool) {
	v := entities.TokenType(strings.ToLower(r.URL.Query().Get("type")))
	switch v {
	case "", entities.TokenTypeToken, entities.TokenTypeFiat:
		return v, true
	}
	return "", false
}

// parseLimit returns the limit query parameter, or fallback when absent or out of range
func parseLimit(r *http.Request, fallback, max int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= max {
			return l
		}
	}
	return fallback
}

func parseOffset(r *http.Request) int {
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			return o
		}
	}
	return 0
}
