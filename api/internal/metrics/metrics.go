package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policyfund_requests_total",
		Help: "Generation requests by endpoint and terminal outcome.",
	}, []string{"endpoint", "outcome"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyfund_upstream_duration_seconds",
		Help:    "Time spent in the provider call.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"provider"})

	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policyfund_upstream_errors_total",
		Help: "Failed provider calls by error code.",
	}, []string{"provider", "code"})

	DisclaimerAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policyfund_disclaimer_appended_total",
		Help: "Replies that did not carry the disclaimer and had it appended.",
	}, []string{"endpoint"})

	NormalizationGapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policyfund_normalization_gaps_total",
		Help: "Provider replies from which no text could be extracted.",
	}, []string{"provider"})

	UsageRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyfund_usage_recorded_total",
		Help: "Usage rows successfully written to the database.",
	})

	UsageRecordErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyfund_usage_record_errors_total",
		Help: "Usage insert failures.",
	})

	UsageDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyfund_usage_dropped_total",
		Help: "Usage events dropped because the writer queue was full.",
	})
)
