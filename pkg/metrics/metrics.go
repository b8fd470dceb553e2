// Package metrics provides the central Prometheus registry reference.
// Metrics themselves are defined via promauto in the packages that
// produce them (cache, quota, breaker, router) to keep ownership local
// and avoid circular dependencies.
//
// This package documents the full metric surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry. All metrics register
// themselves here via promauto at package init.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - tunedeck_cache_hits_total{namespace} (Counter): Cache hits by namespace
//   - tunedeck_cache_misses_total{namespace} (Counter): Cache misses by namespace
//   - tunedeck_cache_errors_total{operation} (Counter): Store operation failures
//
// Quota Metrics (pkg/quota):
//   - tunedeck_quota_consumed_units{namespace} (Gauge): Units consumed in the current window
//   - tunedeck_quota_denied_total{namespace} (Counter): Denied reservations
//
// Circuit Breaker Metrics (pkg/breaker):
//   - tunedeck_breaker_state{strategy} (Gauge): 0=closed, 1=open, 2=half-open
//   - tunedeck_breaker_opens_total{strategy} (Counter): Circuit open transitions
//
// Router Metrics (pkg/router):
//   - tunedeck_router_attempts_total{strategy, outcome} (Counter): Attempts by outcome
//     (success, a failure class, circuit_open, quota_denied)
//   - tunedeck_router_exhausted_total{class} (Counter): Fully exhausted resolutions
//   - tunedeck_router_singleflight_shared_total{namespace} (Counter): Shared in-flight resolutions
//   - tunedeck_router_resolution_duration_seconds{namespace} (Histogram): Upstream resolution latency
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(tunedeck_cache_hits_total[5m])) /
//	(sum(rate(tunedeck_cache_hits_total[5m])) + sum(rate(tunedeck_cache_misses_total[5m])))
//
//	# Quota Pressure
//	tunedeck_quota_consumed_units / 8000
//
//	# Strategy Health
//	rate(tunedeck_router_attempts_total{outcome="success"}[5m]) /
//	rate(tunedeck_router_attempts_total[5m])
//
//	# Open Circuits
//	tunedeck_breaker_state == 1
//
//	# P95 Resolution Latency
//	histogram_quantile(0.95, rate(tunedeck_router_resolution_duration_seconds_bucket[5m]))
