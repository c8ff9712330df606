package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for batch throughput and failure visibility.
var (
	BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_batches_total",
			Help: "Total number of batches processed",
		},
	)

	EventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Total number of events run through the stage chain",
		},
	)

	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_stage_failures_total",
			Help: "Per-event failures, labelled by the stage that halted the traversal",
		},
		[]string{"stage"},
	)

	FlushFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_flush_failures_total",
			Help: "Failed end-of-batch bulk commits, labelled by store",
		},
		[]string{"store"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_duration_seconds",
			Help:    "Wall time of ProcessBatch, traversal plus flush",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_flush_duration_seconds",
			Help:    "Duration of each store flush",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)
)

// RegisterMetrics registers all worker metrics with the default
// prometheus registry.
func RegisterMetrics() {
	prometheus.MustRegister(
		BatchesTotal,
		EventsTotal,
		StageFailuresTotal,
		FlushFailuresTotal,
		BatchDuration,
		FlushDuration,
	)
}
