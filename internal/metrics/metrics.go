// Package metrics exposes Prometheus instrumentation for the scheduler and
// coordination engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_jobs_scheduled_total",
			Help: "Total number of jobs accepted by the scheduler",
		},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_jobs_completed_total",
			Help: "Total number of supervised jobs reaching a terminal run outcome",
		},
		[]string{"outcome"}, // completed, failed, timeout
	)

	JobRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_job_retries_total",
			Help: "Total number of failed jobs re-armed for retry",
		},
	)

	StuckJobsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_stuck_jobs_recovered_total",
			Help: "Total number of running jobs failed proactively by the health sweep",
		},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_jobs_running",
			Help: "Current number of jobs under active supervision",
		},
	)

	CollaborationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_collaborations_active",
			Help: "Current number of collaborations in planning or active state",
		},
	)

	ConflictsResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_conflicts_resolved_total",
			Help: "Total number of conflicts settled by the resolver",
		},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_messages_total",
			Help: "Total number of communications dispatched on the bus",
		},
		[]string{"type"},
	)

	KnowledgeEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_knowledge_entries",
			Help: "Current number of (agent, domain) knowledge entries",
		},
	)

	JobDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chorus_job_duration_seconds",
			Help:    "Supervised job run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
	)

	SweepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_sweep_duration_seconds",
			Help:    "Periodic sweep execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"sweep"}, // schedule, health, coordination, learning
	)
)
