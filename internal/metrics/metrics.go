package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	GuardDecisions = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentguard_decisions_total",
			Help: "Content guard decisions by outcome and the stage that produced them",
		},
		[]string{"outcome", "stage"},
	)

	OCRDuration = promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contentguard_ocr_duration_seconds",
			Help:    "Time spent waiting on the OCR engine",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	OCRSkipped = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentguard_ocr_skipped_total",
			Help: "OCR checks skipped and allowed through, by cause",
		},
		[]string{"cause"},
	)

	AuditWrites = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentguard_audit_writes_total",
			Help: "Moderation audit writes by result",
		},
		[]string{"result"},
	)

	PendingReviews = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "contentguard_pending_reviews",
			Help: "Audit records waiting for a reviewer decision",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func Registry() *prometheus.Registry {
	return registry
}
