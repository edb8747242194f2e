package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stepExecutionsTotal counts step executions by kind and outcome.
	stepExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stepflow_step_executions_total",
			Help: "Total number of step executions by kind and status (ok, error)",
		},
		[]string{"kind", "status"},
	)

	// stepDuration observes how long a single step takes to execute.
	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stepflow_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"kind"},
	)

	runsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stepflow_runs_total",
			Help: "Total number of pipeline passes",
		},
	)
)
