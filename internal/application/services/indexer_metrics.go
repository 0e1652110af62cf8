package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksIndexedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_blocks_indexed_total",
			Help: "Total number of blocks indexed",
		},
		[]string{"chain"},
	)

	transactionsIndexedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_transactions_indexed_total",
			Help: "Total number of transactions indexed",
		},
		[]string{"chain", "token"},
	)

	lastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indexer_last_indexed_block",
			Help: "Last indexed block number",
		},
		[]string{"chain", "token"},
	)

	indexingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexer_indexing_latency_seconds",
			Help:    "Time taken by one indexing pass",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"chain"},
	)

	indexerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_errors_total",
			Help: "Total number of indexing errors",
		},
		[]string{"chain"},
	)
)
