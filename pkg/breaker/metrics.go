package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// breakerState reports each circuit's state (0 closed, 1 open,
	// 2 half-open).
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunedeck_breaker_state",
			Help: "Circuit state by strategy (0=closed, 1=open, 2=half-open)",
		},
		[]string{"strategy"},
	)

	// breakerOpens counts circuit open transitions.
	breakerOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunedeck_breaker_opens_total",
			Help: "Total circuit open transitions by strategy",
		},
		[]string{"strategy"},
	)
)
