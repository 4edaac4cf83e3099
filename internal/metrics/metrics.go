// Package metrics exposes a Prometheus exporter built on
// prometheus/client_golang: a stable call shape
// (RecordOperation/RecordError/SetDocumentsTotal/...) over real metric
// types, registration, and exposition.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kartikbazzad/reactorcore/internal/errs"
)

// Exporter owns a private Prometheus registry and the gauges/counters the
// engine reports against.
type Exporter struct {
	registry *prometheus.Registry

	operationsTotal    *prometheus.CounterVec
	operationDurations *prometheus.HistogramVec
	documentsTotal     prometheus.Gauge
	writeLogBytes      prometheus.Gauge
	pendingDepth       prometheus.Gauge
	errorsTotal        *prometheus.CounterVec
	retentionSweeps    prometheus.Counter
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	subscriptionsLive  prometheus.Gauge
}

// NewExporter builds and registers the metric set.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactorcore_operations_total",
			Help: "Total number of operations by type and status.",
		}, []string{"operation", "status"}),
		operationDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reactorcore_operation_duration_seconds",
			Help:    "Operation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		documentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactorcore_documents_total",
			Help: "Total number of live documents across all tables.",
		}),
		writeLogBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactorcore_write_log_entries",
			Help: "Number of entries currently retained in the write log.",
		}),
		pendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactorcore_pending_depth",
			Help: "Number of commits staged but not yet published.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactorcore_errors_total",
			Help: "Total number of errors by classification category.",
		}, []string{"category"}),
		retentionSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactorcore_retention_sweeps_total",
			Help: "Total number of MVCC retention sweeps run.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactorcore_cache_hits_total",
			Help: "Total number of query cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactorcore_cache_misses_total",
			Help: "Total number of query cache misses.",
		}),
		subscriptionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactorcore_subscriptions_live",
			Help: "Number of currently registered subscription tokens.",
		}),
	}
	e.registry.MustRegister(
		e.operationsTotal, e.operationDurations, e.documentsTotal, e.writeLogBytes,
		e.pendingDepth, e.errorsTotal, e.retentionSweeps, e.cacheHits, e.cacheMisses,
		e.subscriptionsLive,
	)
	return e
}

// Registry exposes the underlying registry for wiring into an HTTP handler.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// RecordOperation records one operation's outcome and latency.
func (e *Exporter) RecordOperation(operation, status string, duration time.Duration) {
	e.operationsTotal.WithLabelValues(operation, status).Inc()
	e.operationDurations.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetDocumentsTotal publishes the live document count.
func (e *Exporter) SetDocumentsTotal(count uint64) { e.documentsTotal.Set(float64(count)) }

// SetWriteLogEntries publishes the write log's current retained entry count.
func (e *Exporter) SetWriteLogEntries(count int) { e.writeLogBytes.Set(float64(count)) }

// SetPendingDepth publishes the committer's pending queue depth.
func (e *Exporter) SetPendingDepth(depth int) { e.pendingDepth.Set(float64(depth)) }

// RecordError records an error occurrence by its classified category.
func (e *Exporter) RecordError(category errs.Category) {
	e.errorsTotal.WithLabelValues(category.String()).Inc()
}

// RecordRetentionSweep records one completed MVCC retention sweep.
func (e *Exporter) RecordRetentionSweep() { e.retentionSweeps.Inc() }

// RecordCacheHit and RecordCacheMiss track query cache effectiveness.
func (e *Exporter) RecordCacheHit()  { e.cacheHits.Inc() }
func (e *Exporter) RecordCacheMiss() { e.cacheMisses.Inc() }

// SetSubscriptionsLive publishes the number of live subscription tokens.
func (e *Exporter) SetSubscriptionsLive(n int) { e.subscriptionsLive.Set(float64(n)) }
