// Cartwright - Budget-Aware Cart Substitution Engine
// Copyright 2026 P. Telford (ptelford)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ptelford/cartwright

// Package metrics provides Prometheus instrumentation for the
// recommendation pipeline:
//   - request throughput and latency
//   - tier selection and fallback frequency
//   - re-ranker availability and fallbacks
//   - intent mode switches
//   - cache efficiency
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendRequestsTotal counts recommendation requests by outcome
	// ("ok", "invalid", "error").
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwright_recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"outcome"},
	)

	// RecommendLatency observes end-to-end recommendation latency.
	RecommendLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cartwright_recommend_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TierSelectedTotal counts which filter tier produced suggestions
	// for a cart item ("same_subcategory", "any_cheaper", "none").
	TierSelectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwright_tier_selected_total",
			Help: "Total number of cart items resolved per filter tier",
		},
		[]string{"tier"},
	)

	// ColdStartTotal counts requests served without a user profile.
	ColdStartTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartwright_cold_start_total",
			Help: "Total number of recommendation requests with no user embedding",
		},
	)

	// SuggestionsEmittedTotal counts emitted suggestions by label.
	SuggestionsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwright_suggestions_emitted_total",
			Help: "Total number of substitute suggestions emitted",
		},
		[]string{"label"},
	)

	// RerankerFallbacksTotal counts re-ranker fallbacks by reason
	// ("unavailable", "timeout", "breaker_open", "inference_error").
	RerankerFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwright_reranker_fallbacks_total",
			Help: "Total number of re-ranker fallbacks to the blended order",
		},
		[]string{"reason"},
	)

	// RerankerAvailable reports the re-ranker capability flag (0 or 1).
	RerankerAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartwright_reranker_available",
			Help: "Whether the gradient-boosted re-ranking model is loaded",
		},
	)

	// IntentModeSwitchesTotal counts adopted guardrail mode switches.
	IntentModeSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwright_intent_mode_switches_total",
			Help: "Total number of adopted guardrail mode switches",
		},
		[]string{"mode"},
	)

	// IntentSessionsActive reports the number of tracked sessions.
	IntentSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartwright_intent_sessions_active",
			Help: "Current number of sessions with tracked intent state",
		},
	)

	// ResponseCacheHits counts engine response cache hits.
	ResponseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartwright_response_cache_hits_total",
			Help: "Total number of recommendation response cache hits",
		},
	)

	// ResponseCacheMisses counts engine response cache misses.
	ResponseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartwright_response_cache_misses_total",
			Help: "Total number of recommendation response cache misses",
		},
	)

	// APIRequestsTotal counts HTTP requests by endpoint and status code.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartwright_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "status"},
	)
)
