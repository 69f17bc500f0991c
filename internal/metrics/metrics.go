// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package metrics provides Prometheus instrumentation for:
//   - Sync orchestrator runs and per-provider outcomes
//   - Provider API request latency and error classes
//   - Token cache refreshes and single-flight dedupe
//   - SWR cache efficiency (hit / miss / stale-serve)
//   - HTTP endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync orchestrator metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_sync_runs_total",
			Help: "Total sync orchestrator runs by terminal status",
		},
		[]string{"status"}, // succeeded, partially_failed, failed, timeout
	)

	SyncProviderOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_sync_provider_outcomes_total",
			Help: "Per-provider sync outcomes",
		},
		[]string{"provider", "outcome"}, // outcome: success, failure
	)

	SyncNewRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_sync_new_records_total",
			Help: "New rows inserted by sync, by provider",
		},
		[]string{"provider"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_sync_duration_seconds",
			Help:    "Duration of per-provider sync operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Provider client metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_provider_requests_total",
			Help: "Upstream provider API requests by status class",
		},
		[]string{"provider", "operation", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_provider_request_duration_seconds",
			Help:    "Upstream provider API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// Token cache metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_token_refreshes_total",
			Help: "Token refresh exchanges by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: success, failure
	)

	TokenRefreshesDeduped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_token_refreshes_deduped_total",
			Help: "Concurrent token requests collapsed into an in-flight refresh",
		},
		[]string{"provider"},
	)

	TokenInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_token_invalidations_total",
			Help: "Explicit token cache invalidations (401 responses)",
		},
		[]string{"provider"},
	)

	// SWR cache metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_cache_requests_total",
			Help: "SWR cache lookups by outcome",
		},
		[]string{"outcome"}, // fresh, stale_served, miss
	)

	CacheBackgroundRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_cache_background_refreshes_total",
			Help: "Background refreshes triggered by stale cache hits",
		},
		[]string{"outcome"}, // success, failure
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Poller metrics
	PollerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_poller_state",
			Help: "Adaptive poller state (0=active, 1=inactive, 2=suspended)",
		},
		[]string{"tier"},
	)

	PollerFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_poller_fetches_total",
			Help: "Fetches issued by the adaptive poller",
		},
		[]string{"tier", "state"},
	)
)

// ObserveProviderRequest records one upstream request with its duration
// and numeric HTTP status (0 for transport errors).
func ObserveProviderRequest(provider, operation string, status int, start time.Time) {
	ProviderRequests.WithLabelValues(provider, operation, strconv.Itoa(status)).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, start time.Time) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
