package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by namespace.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunedeck_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// cacheMisses tracks cache misses by namespace.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunedeck_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// cacheErrors tracks backend operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunedeck_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
