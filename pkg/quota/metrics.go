package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// quotaConsumed tracks units consumed in the current window.
	quotaConsumed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunedeck_quota_consumed_units",
			Help: "Quota units consumed in the current window by namespace",
		},
		[]string{"namespace"},
	)

	// quotaDenied tracks reservations denied because they would exceed
	// the budget.
	quotaDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunedeck_quota_denied_total",
			Help: "Total quota reservations denied by namespace",
		},
		[]string{"namespace"},
	)
)
