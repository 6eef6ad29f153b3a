// Package obs provides Prometheus metrics for the storage engine and SQL
// pipeline.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the engine exposes.
type Metrics struct {
	// Buffer pool
	BufferPoolHitRatio prometheus.Gauge
	BufferPoolFlushes  prometheus.Counter

	// Write-ahead log
	WalAppendsTotal    prometheus.Counter
	WalFsyncsTotal     prometheus.Counter
	WalFsyncDuration   prometheus.Histogram
	WalBytesWritten    prometheus.Counter

	// Transactional store
	TxnCommitsTotal   prometheus.Counter
	TxnAbortsTotal    prometheus.Counter
	CheckpointsTotal  prometheus.Counter

	// Query pipeline
	QueriesTotal       *prometheus.CounterVec
	QueryDuration      *prometheus.HistogramVec
	PlannerAccessTotal *prometheus.CounterVec
}

// New creates and registers every metric against the default registry.
func New() *Metrics {
	m := &Metrics{}

	m.BufferPoolHitRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniql_bufferpool_hit_ratio",
		Help: "Cumulative cache-hit ratio of the buffer pool.",
	})
	m.BufferPoolFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_bufferpool_flushes_total",
		Help: "Total number of buffer pool FlushAll calls.",
	})

	m.WalAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_wal_appends_total",
		Help: "Total number of WAL records appended.",
	})
	m.WalFsyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_wal_fsyncs_total",
		Help: "Total number of WAL fsync calls.",
	})
	m.WalFsyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "miniql_wal_fsync_duration_seconds",
		Help:    "Duration of WAL fsync calls.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	m.WalBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_wal_bytes_written_total",
		Help: "Total bytes appended to the WAL.",
	})

	m.TxnCommitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_txn_commits_total",
		Help: "Total number of committed transactions.",
	})
	m.TxnAbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_txn_aborts_total",
		Help: "Total number of aborted transactions.",
	})
	m.CheckpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniql_checkpoints_total",
		Help: "Total number of completed checkpoints.",
	})

	m.QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniql_queries_total",
		Help: "Total number of executed statements by kind and status.",
	}, []string{"kind", "status"})
	m.QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "miniql_query_duration_seconds",
		Help:    "Duration of execute() calls by statement kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	m.PlannerAccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miniql_planner_access_method_total",
		Help: "Access method chosen by the planner (table_scan vs index_scan).",
	}, []string{"method"})

	return m
}

// RecordQuery records a completed execute() call.
func (m *Metrics) RecordQuery(kind, status string, d time.Duration) {
	m.QueriesTotal.WithLabelValues(kind, status).Inc()
	m.QueryDuration.WithLabelValues(kind).Observe(d.Seconds())
}
