// Package metrics holds the Prometheus instruments the master and
// worker loops update at each generation advance, TTL skip, window
// advance, and row delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tableLabels tags a metric by the CDC log table it describes.
var tableLabels = []string{"keyspace", "table"}

// latencyBuckets spans a CDC window's realistic lifetime: milliseconds
// for a single CQL round trip up through minutes for a generation
// advance.
var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300}

var (
	// GenerationsAdvanced counts every time the master loop moves from
	// one generation to its successor.
	GenerationsAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scyllacdc_generations_advanced_total",
		Help: "the number of CDC generations the master loop has advanced past",
	})

	// GenerationsTTLSkipped counts generations retired on the TTL
	// visibility floor rather than confirmed transport progress.
	GenerationsTTLSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scyllacdc_generations_ttl_skipped_total",
		Help: "the number of CDC generations retired because their rows aged out under TTL",
	})

	// TableTTLFetchErrors counts localized per-table TTL fetch
	// failures that did not stall the master.
	TableTTLFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scyllacdc_table_ttl_fetch_errors_total",
		Help: "the number of times fetching a table's TTL failed and was treated as TTL-absent",
	}, tableLabels)

	// WindowsAdvanced counts task window advances, labeled by table.
	WindowsAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scyllacdc_windows_advanced_total",
		Help: "the number of task windows fully consumed and advanced",
	}, tableLabels)

	// RowsDelivered counts rows handed to the consumer, labeled by
	// table.
	RowsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scyllacdc_rows_delivered_total",
		Help: "the number of CDC log rows delivered to the consumer",
	}, tableLabels)

	// RowsSkippedResume counts rows suppressed by the lastConsumed
	// resume-skip after a crash.
	RowsSkippedResume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scyllacdc_rows_skipped_resume_total",
		Help: "the number of CDC log rows suppressed because they were already reported consumed",
	}, tableLabels)

	// CQLReadErrors counts worker-side read failures that triggered a
	// window retry.
	CQLReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scyllacdc_cql_read_errors_total",
		Help: "the number of CDC log read failures that triggered a window retry",
	}, tableLabels)

	// WindowReadDuration observes the wall time spent reading one
	// window to completion, labeled by table.
	WindowReadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scyllacdc_window_read_duration_seconds",
		Help:    "the time spent reading a single task window to completion",
		Buckets: latencyBuckets,
	}, tableLabels)
)
