package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results
const (
	resultHit     = "hit"
	resultStale   = "stale"
	resultMiss    = "miss"
	resultExpired = "expired"
	resultInvalid = "invalid"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"result"},
	)

	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_refreshes_total",
			Help: "Total number of cache refreshes by outcome",
		},
		[]string{"outcome"},
	)

	writeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_write_errors_total",
			Help: "Total number of failed cache writes",
		},
	)
)
