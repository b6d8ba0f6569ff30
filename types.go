package etl

import "time"

// Row is one loosely-typed record. Values are nil, string, int64, float64,
// bool or time.Time.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Batch is the bounded set of rows extracted and processed together in one
// pipeline pass.
type Batch struct {
	// Table is the cursor key of the migrated table (usually the source table name).
	Table string

	// KeyColumn is the column carrying the legacy ID. Extraction sets it to the
	// source key column; projection renames it along with the rows.
	KeyColumn string

	// Columns lists the row columns in insert order.
	Columns []string

	// Rows holds the records in legacy-ID ascending order.
	Rows []Row

	// Cursor is the high-water mark the batch was extracted after.
	Cursor int64

	// MaxKey is the highest legacy ID extracted. Filtering rows later in the
	// pipeline never lowers it, so the cursor moves past dropped rows too.
	MaxKey int64

	// Extracted is the number of rows read from the source.
	Extracted int
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Empty reports whether the batch carries no rows.
func (b *Batch) Empty() bool {
	return b.Len() == 0
}

// HasColumn reports whether the column is part of the batch shape.
func (b *Batch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// WithRows returns a copy of the batch metadata carrying the given rows.
func (b *Batch) WithRows(rows []Row) *Batch {
	out := *b
	out.Columns = append([]string(nil), b.Columns...)
	out.Rows = rows
	return &out
}

// Cursor is the persisted high-water mark for one migrated table.
type Cursor struct {
	// Table is the cursor key.
	Table string

	// MaxIndex is the last successfully migrated legacy primary-key value.
	MaxIndex int64

	// UpdatedAt is when the cursor was last advanced.
	UpdatedAt time.Time
}

// BatchRecord is the audit entry written alongside every committed batch.
type BatchRecord struct {
	RunID         string
	Table         string
	CursorFrom    int64
	CursorTo      int64
	RowsExtracted int
	RowsLoaded    int
	LoadedAt      time.Time
}

// LoadResult describes what one committed batch wrote.
type LoadResult struct {
	// RowsInserted is the number of rows appended to the target table.
	RowsInserted int

	// RowsSkipped is the number of rows already present by natural key.
	RowsSkipped int

	// IDsMapped is the number of legacy IDs recorded in the ID map.
	IDsMapped int

	// Cursor is the cursor value committed with the batch.
	Cursor int64
}

// Summary describes a finished table run.
type Summary struct {
	RunID       string
	Table       string
	Batches     int
	RowsLoaded  int
	RowsSkipped int
	StartCursor int64
	FinalCursor int64
	Duration    time.Duration
}
