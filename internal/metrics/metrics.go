// Package metrics exposes the scheduler's Prometheus gauges and counters.
// Grounded on YouSangSon-database-service's internal/pkg/metrics package:
// same promauto-constructed-at-Init shape, relabeled from HTTP/gRPC/DB
// request metrics to queue depth and batch execution metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduler's Prometheus instruments.
type Metrics struct {
	QueueDepth         prometheus.Gauge
	BatchesTotal       *prometheus.CounterVec
	BatchSize          *prometheus.HistogramVec
	BatchDuration      *prometheus.HistogramVec
	ExecutionErrors    *prometheus.CounterVec
	CheckpointAdvances prometheus.Counter
}

// Init constructs and registers the scheduler's metrics under namespace.
func Init(namespace string) *Metrics {
	return &Metrics{
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tasks returned by the last queue peek (capped at the prefix size).",
		}),
		BatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of batches executed, by variant.",
			},
			[]string{"variant"},
		),
		BatchSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_size_tasks",
				Help:      "Number of tasks absorbed into a single batch.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"variant"},
		),
		BatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_execution_duration_seconds",
				Help:      "Time spent executing a batch against the index.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"variant"},
		),
		ExecutionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "execution_errors_total",
				Help:      "Total number of batch executions that returned an error.",
			},
			[]string{"variant"},
		),
		CheckpointAdvances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_advances_total",
			Help:      "Total number of times the checkpoint was advanced.",
		}),
	}
}

// RecordBatch records the outcome of one scheduler cycle.
func (m *Metrics) RecordBatch(variant string, size int, duration time.Duration, err error) {
	m.BatchesTotal.WithLabelValues(variant).Inc()
	m.BatchSize.WithLabelValues(variant).Observe(float64(size))
	m.BatchDuration.WithLabelValues(variant).Observe(duration.Seconds())
	if err != nil {
		m.ExecutionErrors.WithLabelValues(variant).Inc()
	}
}
