package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Component is a dependency reported by the health endpoints.
// A failing critical component makes the service unhealthy and not ready;
// any other failing component only degrades it.
type Component struct {
	Name     string
	Checker  HealthChecker
	Critical bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	components []Component
	now        func() time.Time
}

// NewHealthHandler creates a health handler over the given components.
// Components with a nil checker are skipped.
func NewHealthHandler(components ...Component) *HealthHandler {
	h := &HealthHandler{now: time.Now}
	for _, c := range components {
		if c.Checker != nil {
			h.components = append(h.components, c)
		}
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// RegisterRoutes registers the probe routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string, len(h.components)),
	}

	for _, c := range h.components {
		err := c.Checker.HealthCheck(ctx)
		if err == nil {
			response.Services[c.Name] = "healthy"
			continue
		}
		response.Services[c.Name] = "unhealthy: " + err.Error()
		if c.Critical {
			response.Status = "unhealthy"
		} else if response.Status == "healthy" {
			response.Status = "degraded"
		}
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}

// Ready handles GET /ready (Kubernetes readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, c := range h.components {
		if !c.Critical {
			continue
		}
		if err := c.Checker.HealthCheck(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Live handles GET /live (Kubernetes liveness probe)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("alive"))
}
