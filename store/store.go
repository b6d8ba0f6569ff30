// Package store defines the bookkeeping persisted by the pipeline: per-table
// cursors, the legacy-to-new ID map and the batch audit log.
package store

import (
	"context"
	"database/sql"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
)

// Querier is the subset of *sql.DB and *sql.Tx the stores need. Writes that
// must commit together with a batch are issued through the caller's *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CursorStore persists the high-water mark of each migrated table.
type CursorStore interface {
	// GetCursor returns the last committed legacy ID for a table.
	// Returns 0 if the table has never been loaded.
	GetCursor(ctx context.Context, q Querier, table string) (int64, error)

	// AdvanceCursor upserts the cursor of a table.
	// Monotonicity is the caller's concern.
	AdvanceCursor(ctx context.Context, q Querier, table string, maxIndex int64) error

	// ListCursors returns every stored cursor ordered by table.
	ListCursors(ctx context.Context, q Querier) ([]etl.Cursor, error)
}

// IDMapStore persists legacy ID to new ID mappings per entity.
type IDMapStore interface {
	// LookupIDs returns the new IDs of the given legacy IDs. Unmapped IDs are
	// absent from the result. New IDs are int64 when they parse as integers
	// and string otherwise.
	LookupIDs(ctx context.Context, q Querier, entity string, legacyIDs []int64) (map[int64]any, error)

	// RecordIDs stores mappings, replacing existing ones for the same legacy IDs.
	RecordIDs(ctx context.Context, q Querier, entity string, ids map[int64]any) error
}

// BatchLog persists one audit record per loaded batch.
type BatchLog interface {
	// RecordBatch appends an audit record.
	RecordBatch(ctx context.Context, q Querier, rec etl.BatchRecord) error

	// ListBatches returns the most recent records of a table, newest first.
	// A limit of 0 returns every record.
	ListBatches(ctx context.Context, q Querier, table string, limit int) ([]etl.BatchRecord, error)
}

// Store combines the bookkeeping interfaces.
type Store interface {
	CursorStore
	IDMapStore
	BatchLog
}
