// Package metrics exposes Prometheus collectors for the answering
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuestionsTotal counts answered questions by outcome: answered,
	// refused, apology.
	QuestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Name:      "questions_total",
		Help:      "Questions processed, labeled by outcome.",
	}, []string{"outcome"})

	// StageDuration observes per-stage latency.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assistant",
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// StageSkips counts stages that degraded gracefully after a provider
	// failure.
	StageSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Name:      "stage_skips_total",
		Help:      "Stages skipped due to provider failure.",
	}, []string{"stage"})

	// WebFallbacksTotal counts questions that consulted the external
	// search.
	WebFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assistant",
		Name:      "web_fallbacks_total",
		Help:      "Questions that used the external fallback search.",
	})

	// IndexRebuildsTotal counts full index rebuilds.
	IndexRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assistant",
		Name:      "index_rebuilds_total",
		Help:      "Full index rebuilds triggered by source changes.",
	})
)
