package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchesTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(BatchesTotal.WithLabelValues("test-table"))
	BatchesTotal.WithLabelValues("test-table").Inc()
	after := testutil.ToFloat64(BatchesTotal.WithLabelValues("test-table"))

	assert.Equal(t, before+1, after)
}

func TestCursor_SetValue(t *testing.T) {
	Cursor.WithLabelValues("test-table-2").Set(99)

	assert.Equal(t, float64(99), testutil.ToFloat64(Cursor.WithLabelValues("test-table-2")))
}

func TestStageDuration_Observe(t *testing.T) {
	StageDuration.WithLabelValues("test-table-3", StageResolve).Observe(0.5)

	assert.Greater(t, testutil.CollectAndCount(StageDuration), 0)
}

func TestMetricNames_Registered(t *testing.T) {
	RowsLoadedTotal.WithLabelValues("test-table-4").Add(3)
	ErrorsTotal.WithLabelValues("test-table-4", "other").Inc()

	for _, name := range []string{"etl_rows_loaded_total", "etl_errors_total"} {
		count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, name)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 1, name)
	}
}
