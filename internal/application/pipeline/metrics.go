package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome of one popped token.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeFailed         Outcome = "failed"
	OutcomeAnalysisFailed Outcome = "analysis_failed"
	OutcomeSkipped        Outcome = "skipped"
)

var (
	processedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_items_processed_total",
		Help: "Popped work tokens by outcome.",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Time spent per pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.005, 4, 9),
	}, []string{"stage"})

	queueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_queue_backlog",
		Help: "Tokens waiting in the work queue, sampled when the worker is idle.",
	})
)
