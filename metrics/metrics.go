// Package metrics exposes prometheus metrics of migration runs, labelled by
// the migrated table.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BatchesTotal tracks the number of committed batches.
var BatchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "etl_batches_total",
		Help: "Total batches committed",
	},
	[]string{"table"},
)

// RowsExtractedTotal tracks the rows read from the source.
var RowsExtractedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "etl_rows_extracted_total",
		Help: "Total rows extracted from the source",
	},
	[]string{"table"},
)

// RowsLoadedTotal tracks the rows appended to the target.
var RowsLoadedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "etl_rows_loaded_total",
		Help: "Total rows appended to the target",
	},
	[]string{"table"},
)

// RowsSkippedTotal tracks rows not appended because their natural key already existed.
var RowsSkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "etl_rows_skipped_total",
		Help: "Total rows skipped as duplicates",
	},
	[]string{"table"},
)

// ErrorsTotal tracks failed batches by error kind.
var ErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "etl_errors_total",
		Help: "Total failed batches",
	},
	[]string{"table", "kind"},
)

// Cursor tracks the last committed legacy ID.
var Cursor = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "etl_cursor",
		Help: "Last committed legacy ID",
	},
	[]string{"table"},
)

// RunState tracks the state of a table run (value 1 for current state, 0 otherwise).
var RunState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "etl_run_state",
		Help: "Table run state (1 for current state, 0 otherwise)",
	},
	[]string{"table", "state"},
)

// StageDuration tracks the time spent in each pipeline stage per batch.
var StageDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "etl_stage_duration_seconds",
		Help:    "Time spent in a pipeline stage per batch",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"table", "stage"},
)

// BatchDuration tracks end-to-end batch latency.
var BatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "etl_batch_duration_seconds",
		Help:    "End-to-end batch latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"table"},
)
