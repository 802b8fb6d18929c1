// Package metrics holds the Prometheus instruments shared by the sync pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts Riot API calls by endpoint and outcome
	// (success, not_found, rate_limited, transient, throttled, error).
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchlog_provider_requests_total",
			Help: "Total number of Riot API requests",
		},
		[]string{"endpoint", "outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchlog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	MatchesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchlog_matches_discovered_total",
			Help: "Match ids newly inserted by the walkers",
		},
		[]string{"walker"},
	)

	DetailsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchlog_details_resolved_total",
			Help: "Detail fetch cycles by outcome",
		},
		[]string{"outcome"},
	)

	Announcements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchlog_announcements_total",
			Help: "Announcement attempts by outcome",
		},
		[]string{"outcome"},
	)

	// MatchesByState is the number of stored match rows in each lifecycle state
	MatchesByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchlog_matches",
			Help: "Stored match rows by lifecycle state",
		},
		[]string{"state"},
	)

	RankLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchlog_rank_lookups_total",
			Help: "Rank cache lookups by source (store or provider)",
		},
		[]string{"source"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchlog_task_duration_seconds",
			Help:    "Duration of scheduled task cycles",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task", "status"},
	)
)
