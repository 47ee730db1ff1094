// Package metrics provides Prometheus metrics collection for tubegate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for tubegate.
type Collector struct {
	// Upload metrics
	UploadsTotal    *prometheus.CounterVec
	UploadBytes     prometheus.Counter
	UploadDuration  prometheus.Histogram
	ChunkRetries    *prometheus.CounterVec

	// Quota metrics
	QuotaUsedUnits      prometheus.Gauge
	QuotaRemainingUnits prometheus.Gauge
	QuotaConsumed       *prometheus.CounterVec

	// Throttle metrics
	ThrottleWaitSeconds prometheus.Histogram

	// Batch metrics
	BatchRuns        prometheus.Counter
	BatchHaltedQuota prometheus.Counter
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newCollector(promauto.With(reg))
}

func newCollector(factory promauto.Factory) *Collector {
	return &Collector{
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tubegate",
				Name:      "uploads_total",
				Help:      "Total number of files processed by terminal status",
			},
			[]string{"status"},
		),
		UploadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tubegate",
				Name:      "upload_bytes_total",
				Help:      "Total bytes acknowledged by the upload endpoint",
			},
		),
		UploadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tubegate",
				Name:      "upload_duration_seconds",
				Help:      "Duration of individual file uploads in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),
		ChunkRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tubegate",
				Name:      "chunk_retries_total",
				Help:      "Total number of retried chunk sends",
			},
			[]string{"reason"},
		),
		QuotaUsedUnits: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tubegate",
				Name:      "quota_used_units",
				Help:      "Quota units consumed in the current daily window",
			},
		),
		QuotaRemainingUnits: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tubegate",
				Name:      "quota_remaining_units",
				Help:      "Quota units remaining in the current daily window",
			},
		),
		QuotaConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tubegate",
				Name:      "quota_consumed_units_total",
				Help:      "Quota units consumed by operation type",
			},
			[]string{"operation"},
		),
		ThrottleWaitSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tubegate",
				Name:      "throttle_wait_seconds",
				Help:      "Time spent waiting for a request token",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		BatchRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tubegate",
				Name:      "batch_runs_total",
				Help:      "Total number of batch runs started",
			},
		),
		BatchHaltedQuota: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tubegate",
				Name:      "batch_halted_quota_total",
				Help:      "Total number of batch runs halted on quota exhaustion",
			},
		),
	}
}
