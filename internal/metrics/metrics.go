// Package metrics defines Prometheus instrumentation for the service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DetectionRunsTotal counts detection runs by status.
	DetectionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blackforge",
			Name:      "detection_runs_total",
			Help:      "Total number of detection runs",
		},
		[]string{"status"},
	)

	// DetectionDuration observes full detection-run latency.
	DetectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blackforge",
			Name:      "detection_duration_seconds",
			Help:      "Detection run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// SuspiciousSamples observes the flagged fraction per run.
	SuspiciousSamples = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blackforge",
			Name:      "suspicious_sample_ratio",
			Help:      "Fraction of samples flagged per detection run",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// PurificationsTotal counts purification runs by kind and outcome mode.
	PurificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blackforge",
			Name:      "purifications_total",
			Help:      "Total number of purification runs",
		},
		[]string{"kind", "mode"},
	)

	// AssistantRequestsTotal counts assistant calls by kind and status.
	AssistantRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blackforge",
			Name:      "assistant_requests_total",
			Help:      "Total number of AI assistant requests",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		DetectionRunsTotal,
		DetectionDuration,
		SuspiciousSamples,
		PurificationsTotal,
		AssistantRequestsTotal,
	)
}
