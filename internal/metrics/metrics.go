// Package metrics registers the Prometheus metrics emitted by the client.
// All collectors are registered on the default registry at import time, so a
// host process only needs to mount promhttp.Handler to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream call counters and histograms.
var (
	// UpstreamRequests counts completed upstream calls labelled by upstream
	// ("api", "root"), HTTP method and status ("200", "401", "transport").
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betclient_upstream_requests_total",
			Help: "Total number of requests sent to upstream backends.",
		},
		[]string{"upstream", "method", "status"},
	)

	// UpstreamDuration observes upstream round-trip latency in seconds.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "betclient_upstream_duration_seconds",
			Help:    "Upstream request duration in seconds.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"upstream", "method"},
	)

	// CircuitBreakerState tracks per-upstream breaker state:
	// 0 = closed, 1 = open, 2 = half_open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "betclient_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0=closed 1=open 2=half_open).",
		},
		[]string{"upstream"},
	)
)

// Cache and dedup metrics.
var (
	// CacheLookups counts cache reads by logical key and result ("hit", "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betclient_cache_lookups_total",
			Help: "Cache lookups by logical key and result.",
		},
		[]string{"key", "result"},
	)

	// CacheInvalidations counts invalidations by tag; full clears use tag "*".
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betclient_cache_invalidations_total",
			Help: "Cache invalidations by tag.",
		},
		[]string{"tag"},
	)

	// DedupShared counts callers that attached to an already in-flight read.
	DedupShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betclient_dedup_shared_total",
			Help: "Callers served by an in-flight request for the same key.",
		},
		[]string{"key"},
	)

	// PendingRequests is the number of logical keys with an in-flight fetch.
	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "betclient_pending_requests",
			Help: "Logical keys with an outstanding upstream fetch.",
		},
	)

	// CredentialResets counts credential clears by reason ("logout", "unauthorized", "login").
	CredentialResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betclient_credential_resets_total",
			Help: "Credential and cache resets by reason.",
		},
		[]string{"reason"},
	)
)
