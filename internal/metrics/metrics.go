// Forkcast - Personalized Recipe Recommendation Service
// Copyright 2026 Forkcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/forkcast/forkcast

// Package metrics defines the Prometheus instrumentation for the
// recommendation service. All collectors are registered with the default
// registry via promauto and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request latency by method, route and status.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forkcast",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// InferenceDuration tracks per-strategy model inference latency.
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forkcast",
			Name:      "model_inference_duration_seconds",
			Help:      "Model inference duration in seconds by strategy",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"model"},
	)

	// ModelUsage counts which strategy ultimately served each request.
	ModelUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "model_usage_total",
			Help:      "Requests served by each recommendation strategy",
		},
		[]string{"model"},
	)

	// ModelFailures counts per-strategy inference failures that triggered fallback.
	ModelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "model_failure_total",
			Help:      "Inference failures by strategy",
		},
		[]string{"model"},
	)

	// CacheHits counts result-cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "cache_hit_total",
			Help:      "Result cache hits",
		},
	)

	// CacheMisses counts result-cache misses, including backend failures
	// degraded to misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "cache_miss_total",
			Help:      "Result cache misses",
		},
	)

	// Errors counts errors by category (validation, inference, cache, events, internal).
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "error_total",
			Help:      "Errors by category",
		},
		[]string{"category"},
	)

	// RecommendationsServed counts individual recommendations returned to clients.
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "recommendations_total",
			Help:      "Recommendations returned to clients by strategy",
		},
		[]string{"model"},
	)

	// DiversityScore observes the mean pairwise dissimilarity of each
	// re-ranked result set, for monitoring diversity drift.
	DiversityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "forkcast",
			Name:      "recommendation_diversity",
			Help:      "Mean pairwise dissimilarity of re-ranked result sets",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// EventsProcessed counts interaction events by outcome.
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forkcast",
			Name:      "interaction_events_total",
			Help:      "Interaction events consumed from the stream by outcome",
		},
		[]string{"outcome"},
	)
)
