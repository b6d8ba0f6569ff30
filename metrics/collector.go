package metrics

import (
	"errors"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
)

// Pipeline stages.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageResolve   = "resolve"
	StageLoad      = "load"
)

// Run states.
const (
	StateRunning = "running"
	StateDrained = "drained"
	StateFailed  = "failed"
)

var states = []string{StateRunning, StateDrained, StateFailed}

// Collector wraps metrics and provides helper methods with the table label pre-filled.
type Collector struct {
	table string
}

// NewCollector creates a new Collector for the given table.
func NewCollector(table string) *Collector {
	return &Collector{table: table}
}

// ObserveBatch records a committed batch.
func (c *Collector) ObserveBatch(extracted int, result etl.LoadResult, seconds float64) {
	BatchesTotal.WithLabelValues(c.table).Inc()
	RowsExtractedTotal.WithLabelValues(c.table).Add(float64(extracted))
	RowsLoadedTotal.WithLabelValues(c.table).Add(float64(result.RowsInserted))
	RowsSkippedTotal.WithLabelValues(c.table).Add(float64(result.RowsSkipped))
	Cursor.WithLabelValues(c.table).Set(float64(result.Cursor))
	BatchDuration.WithLabelValues(c.table).Observe(seconds)
}

// ObserveStage records the duration of one pipeline stage.
func (c *Collector) ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(c.table, stage).Observe(seconds)
}

// SetCursor sets the cursor gauge.
func (c *Collector) SetCursor(cursor int64) {
	Cursor.WithLabelValues(c.table).Set(float64(cursor))
}

// IncErrors increments the error counter for the kind of err.
func (c *Collector) IncErrors(err error) {
	ErrorsTotal.WithLabelValues(c.table, ErrorKind(err)).Inc()
}

// SetState sets the run state gauge. Sets value to 1 for the given state, 0 for others.
func (c *Collector) SetState(state string) {
	for _, s := range states {
		if s == state {
			RunState.WithLabelValues(c.table, s).Set(1)
		} else {
			RunState.WithLabelValues(c.table, s).Set(0)
		}
	}
}

// ErrorKind returns the metric label of an error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, etl.ErrMissingDependency):
		return "missing_dependency"
	case errors.Is(err, etl.ErrDataIntegrity):
		return "data_integrity"
	case errors.Is(err, etl.ErrTransientIO):
		return "transient_io"
	case errors.Is(err, etl.ErrCorruption):
		return "corruption"
	default:
		return "other"
	}
}
