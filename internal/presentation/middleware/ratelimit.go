package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimiter limits each client IP to requestsPerSecond and answers
// rejected requests with a JSON error body.
func RateLimiter(requestsPerSecond int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerSecond,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded"})
		}),
	)
}
