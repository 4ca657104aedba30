// Package metrics provides Prometheus metrics for the rule engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics collects and exposes engine-related Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	MatchesProcessed  prometheus.Counter
	RulesMatched      prometheus.Counter
	Opportunities     *prometheus.CounterVec
	EvaluationSeconds prometheus.Histogram

	// Live metrics
	AlertsTotal  *prometheus.CounterVec
	ResultsTotal *prometheus.CounterVec
	TrackedPairs prometheus.Gauge

	// Hub metrics
	HubClients  prometheus.Gauge
	HubMessages *prometheus.CounterVec
}

// NewEngineMetrics creates a new engine metrics collector backed by its
// own registry.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		MatchesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_matches_processed_total",
				Help: "Total number of matches run through the rule pipeline",
			},
		),
		RulesMatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_rules_matched_total",
				Help: "Total number of rule matches across all matches",
			},
		),
		Opportunities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_opportunities_total",
				Help: "Opportunities by outcome of the confidence filter",
			},
			[]string{"status"},
		),
		EvaluationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engine_evaluation_duration_seconds",
				Help:    "Time to normalize and match one match",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
		),

		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_live_alerts_total",
				Help: "Live alerts broadcast, by urgency level",
			},
			[]string{"level"},
		),
		ResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_results_total",
				Help: "Final prediction results, by outcome",
			},
			[]string{"outcome"},
		),
		TrackedPairs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_tracked_predictions",
				Help: "Currently tracked (match, prediction) pairs",
			},
		),

		HubClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_hub_clients",
				Help: "Connected websocket clients",
			},
		),
		HubMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_hub_messages_total",
				Help: "Messages fanned out to websocket clients, by event type",
			},
			[]string{"type"},
		),
	}

	em.registerAll()
	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.MatchesProcessed,
		em.RulesMatched,
		em.Opportunities,
		em.EvaluationSeconds,
		em.AlertsTotal,
		em.ResultsTotal,
		em.TrackedPairs,
		em.HubClients,
		em.HubMessages,
	)
}

// Registry returns the metrics registry for exposing via HTTP.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// Handler returns an http.Handler serving this collector's registry.
func (em *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(em.registry, promhttp.HandlerOpts{})
}

// RecordEvaluation records one pass of the rule pipeline over a match.
func (em *EngineMetrics) RecordEvaluation(matched int, durationSec float64) {
	em.MatchesProcessed.Inc()
	em.RulesMatched.Add(float64(matched))
	em.EvaluationSeconds.Observe(durationSec)
}

// RecordOpportunity records the outcome of the confidence filter for
// one match: "found" or "below_threshold".
func (em *EngineMetrics) RecordOpportunity(status string) {
	em.Opportunities.WithLabelValues(status).Inc()
}

// RecordAlert records one broadcast live alert.
func (em *EngineMetrics) RecordAlert(level string) {
	em.AlertsTotal.WithLabelValues(level).Inc()
}

// RecordResult records one final prediction outcome.
func (em *EngineMetrics) RecordResult(outcome string) {
	em.ResultsTotal.WithLabelValues(outcome).Inc()
}
