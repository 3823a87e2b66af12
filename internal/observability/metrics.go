// Package observability provides Prometheus metrics and OpenTelemetry
// tracing helpers for rosterdb.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics registry and standard meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	QueryRecords      *prometheus.CounterVec
	CacheEvents       *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates a custom Prometheus registry with standard rosterdb metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rosterdb_operation_duration_seconds",
		Help:    "Duration of store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterdb_operation_total",
		Help: "Total number of store operations.",
	}, []string{"operation", "status"})

	queryRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterdb_query_records_total",
		Help: "Total records returned by query traversals.",
	}, []string{"operation"})

	cacheEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterdb_cache_events_total",
		Help: "Memory cache hits, misses, and evictions by tier.",
	}, []string{"tier", "event"})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterdb_errors_total",
		Help: "Total number of errors.",
	}, []string{"operation", "type"})

	reg.MustRegister(opDuration, opTotal, queryRecords, cacheEvents, errorsTotal)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		QueryRecords:      queryRecords,
		CacheEvents:       cacheEvents,
		ErrorsTotal:       errorsTotal,
	}
}
