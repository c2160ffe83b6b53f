// Package metrics exposes the Prometheus instrumentation the worker pool,
// queue maintenance loop, and scheduler record against.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge/histogram the pipeline records
// against. One instance is created at process startup and threaded through
// the queue, worker pool, and scheduler.
type Metrics struct {
	QueueDepth         *prometheus.GaugeVec
	WorkerConcurrency  prometheus.Gauge
	OCRDuration        prometheus.Histogram
	OCRFailuresTotal   *prometheus.CounterVec
	DocumentsIngested  *prometheus.CounterVec
	SyncOutcomesTotal  *prometheus.CounterVec
	DirectoryChanges   *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance registered against the global
// Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry builds a Metrics instance registered against reg,
// letting tests use a throwaway *prometheus.Registry to avoid duplicate
// registration panics.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current count of queue items by status.",
		}, []string{"status"}),

		WorkerConcurrency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_concurrency_in_use",
			Help:      "Number of OCR worker semaphore permits currently held.",
		}),

		OCRDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_duration_seconds",
			Help:      "Observed OCR extraction latency.",
			Buckets:   prometheus.DefBuckets,
		}),

		OCRFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_failures_total",
			Help:      "Terminal OCR failures by sanitized failure reason.",
		}, []string{"reason"}),

		DocumentsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Ingestion outcomes by sanitized result kind.",
		}, []string{"result"}),

		SyncOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_outcomes_total",
			Help:      "Scheduler sync task outcomes by sanitized status.",
		}, []string{"status"}),

		DirectoryChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_changes_total",
			Help:      "Smart sync planner decisions by sanitized strategy.",
		}, []string{"strategy"}),
	}

	reg.MustRegister(
		m.QueueDepth, m.WorkerConcurrency, m.OCRDuration,
		m.OCRFailuresTotal, m.DocumentsIngested, m.SyncOutcomesTotal, m.DirectoryChanges,
	)
	return m
}
