package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunedeck_router_attempts_total",
		Help: "Strategy attempts by outcome (success, failure class, circuit_open, quota_denied)",
	}, []string{"strategy", "outcome"})

	exhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunedeck_router_exhausted_total",
		Help: "Resolutions that exhausted every strategy, by decisive failure class",
	}, []string{"class"})

	singleflightShared = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunedeck_router_singleflight_shared_total",
		Help: "Callers that shared an in-flight resolution instead of starting one",
	}, []string{"namespace"})

	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunedeck_router_resolution_duration_seconds",
		Help:    "Upstream resolution duration (cache misses only)",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
	}, []string{"namespace"})
)
