// Package metrics holds the Prometheus collectors for generation dispatch,
// context assembly and the context cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch metrics
	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightd_generation_requests_total",
			Help: "Generation attempts per adapter",
		},
		[]string{"model", "status"}, // status: success/failure/unavailable
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightd_generation_duration_seconds",
			Help:    "Backend generation call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"model"},
	)

	GenerationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightd_generation_tokens_total",
			Help: "Tokens reported by generation backends",
		},
		[]string{"model"},
	)

	FallbackAdvances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insightd_fallback_advances_total",
			Help: "Times dispatch moved past a candidate adapter",
		},
	)

	ModelsExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insightd_models_exhausted_total",
			Help: "Generation requests for which every candidate failed",
		},
	)

	// Context metrics
	ContextCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightd_context_cache_lookups_total",
			Help: "Context cache lookups by result",
		},
		[]string{"result"}, // hit/miss
	)

	ContextBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightd_context_build_duration_seconds",
			Help:    "Time spent assembling a context on cache miss",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
	)

	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightd_provider_failures_total",
			Help: "Provider listing or fetch failures that were skipped",
		},
		[]string{"provider"},
	)

	// Recommendation metrics
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightd_recommendations_total",
			Help: "Recommendations produced by complexity and signal",
		},
		[]string{"complexity", "signal"},
	)
)
