// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flashstudy"

var (
	// ReviewsTotal counts recorded reviews.
	// Labels: outcome (again, hard, good, easy)
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "study",
			Name:      "reviews_total",
			Help:      "Total number of recorded reviews by outcome",
		},
		[]string{"outcome"},
	)

	// ReviewConflictsTotal counts review writes rejected by the version check.
	ReviewConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "study",
			Name:      "review_conflicts_total",
			Help:      "Total number of review writes that lost an optimistic concurrency check",
		},
	)

	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "study",
			Name:      "sessions_started_total",
			Help:      "Total number of study sessions started",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "study",
			Name:      "active_sessions",
			Help:      "Number of study sessions currently held in memory",
		},
	)

	// GenerationsTotal counts finished generations.
	// Labels: status (completed, failed)
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "generations_total",
			Help:      "Total number of finished generations by status",
		},
		[]string{"status"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Duration of LLM generation calls in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	// CandidateDecisionsTotal counts review decisions on proposed cards.
	// Labels: decision (accepted, edited, rejected)
	CandidateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "candidate_decisions_total",
			Help:      "Total number of candidate decisions by kind",
		},
		[]string{"decision"},
	)

	// JobsTotal counts background jobs by result (succeeded, failed).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total number of background jobs by result",
		},
		[]string{"result"},
	)

	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the worker queue",
		},
	)

	// HTTPRequestsTotal counts HTTP requests.
	// Labels: method, route, status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
