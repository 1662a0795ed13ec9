// Package metrics exposes Prometheus collectors for lead scoring.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LeadsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscore_leads_scored_total",
			Help: "Total number of leads scored, by final intent",
		},
		[]string{"intent"},
	)

	LeadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadscore_lead_failures_total",
			Help: "Total number of leads that could not be scored",
		},
	)

	InferenceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscore_inference_fallbacks_total",
			Help: "Total number of inference calls answered with the fallback score",
		},
		[]string{"reason"},
	)

	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadscore_inference_duration_seconds",
			Help:    "Duration of language-model scoring calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)

	LeadScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "leadscore_lead_scoring_duration_seconds",
			Help: "Duration of scoring a single lead in seconds",
		},
	)

	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadscore_batch_runs_total",
			Help: "Total number of batch runs, by final status",
		},
		[]string{"status"},
	)

	BatchInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadscore_batch_in_progress",
			Help: "1 while a batch run is processing",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
