package etl

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_Clone(t *testing.T) {
	row := Row{"Name": "Main branch", "StatusID": int64(1)}

	clone := row.Clone()
	clone["Name"] = "Changed"

	assert.Equal(t, "Main branch", row["Name"])
	assert.Equal(t, int64(1), clone["StatusID"])
}

func TestBatch_ZeroValues(t *testing.T) {
	t.Run("nil batch is empty", func(t *testing.T) {
		var b *Batch

		assert.Equal(t, 0, b.Len())
		assert.True(t, b.Empty())
	})

	t.Run("zero value batch", func(t *testing.T) {
		var b Batch

		assert.True(t, b.Empty())
		assert.Equal(t, int64(0), b.MaxKey)
		assert.False(t, b.HasColumn("Name"))
	})
}

func TestBatch_WithRows(t *testing.T) {
	b := &Batch{
		Table:     "dbo.Locations",
		KeyColumn: "OldLocationID",
		Columns:   []string{"OldLocationID", "Name"},
		Rows:      []Row{{"OldLocationID": int64(5)}, {"OldLocationID": int64(9)}},
		Cursor:    4,
		MaxKey:    9,
	}

	filtered := b.WithRows(b.Rows[1:])
	filtered.Columns[1] = "Renamed"

	assert.Equal(t, 1, filtered.Len())
	assert.Equal(t, int64(9), filtered.MaxKey)
	assert.Equal(t, int64(4), filtered.Cursor)
	assert.Equal(t, "Name", b.Columns[1])
	assert.True(t, b.HasColumn("Name"))
	assert.Equal(t, 2, b.Len())
}

func TestDependencyError(t *testing.T) {
	err := NewDependencyError("dbo.Locations", "accounts", "OldUserID", []int64{9, 3, 7})

	assert.True(t, errors.Is(err, ErrMissingDependency))
	assert.True(t, IsMissingDependency(err))
	assert.Equal(t, []int64{3, 7, 9}, err.Missing)
	assert.Contains(t, err.Error(), "accounts")
	assert.Contains(t, err.Error(), "OldUserID")
	assert.Contains(t, err.Error(), "3, 7, 9")

	wrapped := fmt.Errorf("run failed: %w", err)
	var depErr *DependencyError
	require.True(t, errors.As(wrapped, &depErr))
	assert.Equal(t, "accounts", depErr.Upstream)
	assert.True(t, IsMissingDependency(wrapped))
}

func TestDependencyError_TruncatesLongLists(t *testing.T) {
	missing := make([]int64, 25)
	for i := range missing {
		missing[i] = int64(i + 1)
	}

	err := NewDependencyError("dbo.Items", "categories", "OldCategoryID", missing)

	assert.Len(t, err.Missing, 25)
	assert.Contains(t, err.Error(), "10, ... (25 total)")
	assert.False(t, strings.Contains(err.Error(), "11"))
}

func TestIsMissingDependency_OtherErrors(t *testing.T) {
	assert.False(t, IsMissingDependency(nil))
	assert.False(t, IsMissingDependency(ErrDataIntegrity))
	assert.False(t, IsMissingDependency(errors.New("boom")))
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int64", int64(42), 42, true},
		{"int", 7, 7, true},
		{"whole float", float64(12), 12, true},
		{"fractional float", 1.5, 0, false},
		{"string", " 4101 ", 4101, true},
		{"float string", "9.0", 9, true},
		{"bytes", []byte("15"), 15, true},
		{"garbage", "abc", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt64(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
