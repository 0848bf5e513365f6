// metrics.go - Prometheus metrics for the editor server.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carousel_exports_total",
			Help: "Exports by outcome (ok, failed, cancelled, rejected)",
		},
		[]string{"status"},
	)

	exportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carousel_export_duration_seconds",
			Help:    "Wall time of completed exports by format",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	slidesRendered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carousel_slides_rendered_total",
			Help: "Slides rendered and encoded for export",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carousel_active_sessions",
			Help: "Open editing sessions",
		},
	)
)
