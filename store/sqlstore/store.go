// Package sqlstore implements the bookkeeping stores on any supported SQL
// dialect using parameterized statements.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
)

// Store is a SQL implementation of store.Store.
type Store struct {
	dialect     dialect.Dialect
	cursorTable string
	idMapTable  string
	batchTable  string
	now         func() time.Time
}

// New creates a store with default table names.
func New(d dialect.Dialect) *Store {
	return NewWithConfig(d, DefaultTableConfig())
}

// NewWithConfig creates a store with custom table names.
func NewWithConfig(d dialect.Dialect, config TableConfig) *Store {
	return &Store{
		dialect:     d,
		cursorTable: config.CursorTable,
		idMapTable:  config.IDMapTable,
		batchTable:  config.BatchTable,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the bookkeeping tables when missing.
func (s *Store) Migrate(ctx context.Context, q store.Querier) error {
	stmts := MigrationUp(s.dialect, TableConfig{
		CursorTable: s.cursorTable,
		IDMapTable:  s.idMapTable,
		BatchTable:  s.batchTable,
	})
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create bookkeeping tables: %w", s.dialect.Classify(err))
		}
	}
	return nil
}

// GetCursor returns the last committed legacy ID for a table.
// Returns 0 if the table has never been loaded.
func (s *Store) GetCursor(ctx context.Context, q store.Querier, table string) (int64, error) {
	if table == "" {
		return 0, store.ErrEmptyTable
	}

	query := fmt.Sprintf("SELECT max_index FROM %s WHERE table_name = %s",
		s.dialect.Quote(s.cursorTable), s.dialect.Placeholder(1))

	var maxIndex int64
	err := q.QueryRowContext(ctx, query, table).Scan(&maxIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor for %s: %w", table, s.dialect.Classify(err))
	}

	return maxIndex, nil
}

// AdvanceCursor upserts the cursor of a table.
func (s *Store) AdvanceCursor(ctx context.Context, q store.Querier, table string, maxIndex int64) error {
	if table == "" {
		return store.ErrEmptyTable
	}

	query := s.dialect.Upsert(s.cursorTable, []string{"table_name", "max_index", "updated_at"}, []string{"table_name"})
	if _, err := q.ExecContext(ctx, query, table, maxIndex, s.now()); err != nil {
		return fmt.Errorf("failed to advance cursor for %s: %w", table, s.dialect.Classify(err))
	}

	return nil
}

// ListCursors returns every stored cursor ordered by table.
func (s *Store) ListCursors(ctx context.Context, q store.Querier) ([]etl.Cursor, error) {
	query := fmt.Sprintf("SELECT table_name, max_index, updated_at FROM %s ORDER BY table_name",
		s.dialect.Quote(s.cursorTable))

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", s.dialect.Classify(err))
	}
	defer rows.Close()

	cursors := []etl.Cursor{}
	for rows.Next() {
		var c etl.Cursor
		if err := rows.Scan(&c.Table, &c.MaxIndex, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cursor: %w", err)
		}
		cursors = append(cursors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cursors: %w", s.dialect.Classify(err))
	}

	return cursors, nil
}

// LookupIDs returns the new IDs of the mapped legacy IDs, querying in chunks
// that respect the dialect's parameter limit.
func (s *Store) LookupIDs(ctx context.Context, q store.Querier, entity string, legacyIDs []int64) (map[int64]any, error) {
	if entity == "" {
		return nil, store.ErrEmptyEntity
	}

	found := make(map[int64]any, len(legacyIDs))
	for _, chunk := range chunkIDs(distinct(legacyIDs), s.chunkSize(1)) {
		query := fmt.Sprintf("SELECT legacy_id, new_id FROM %s WHERE entity = %s AND %s",
			s.dialect.Quote(s.idMapTable),
			s.dialect.Placeholder(1),
			dialect.InList(s.dialect, "legacy_id", 2, len(chunk)))

		args := make([]any, 0, len(chunk)+1)
		args = append(args, entity)
		for _, id := range chunk {
			args = append(args, id)
		}

		if err := s.scanIDs(ctx, q, query, args, found); err != nil {
			return nil, fmt.Errorf("failed to look up %s ids: %w", entity, err)
		}
	}

	return found, nil
}

func (s *Store) scanIDs(ctx context.Context, q store.Querier, query string, args []any, found map[int64]any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return s.dialect.Classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var legacyID int64
		var newID string
		if err := rows.Scan(&legacyID, &newID); err != nil {
			return err
		}
		found[legacyID] = store.DecodeID(newID)
	}
	return s.dialect.Classify(rows.Err())
}

// RecordIDs stores mappings, replacing existing ones for the same legacy IDs.
func (s *Store) RecordIDs(ctx context.Context, q store.Querier, entity string, ids map[int64]any) error {
	if entity == "" {
		return store.ErrEmptyEntity
	}
	if len(ids) == 0 {
		return nil
	}

	legacyIDs := make([]int64, 0, len(ids))
	encoded := make(map[int64]string, len(ids))
	for legacyID, newID := range ids {
		v, err := store.EncodeID(newID)
		if err != nil {
			return fmt.Errorf("legacy id %d of %s: %w", legacyID, entity, err)
		}
		encoded[legacyID] = v
		legacyIDs = append(legacyIDs, legacyID)
	}
	sort.Slice(legacyIDs, func(i, j int) bool { return legacyIDs[i] < legacyIDs[j] })

	table := s.dialect.Quote(s.idMapTable)
	for _, chunk := range chunkIDs(legacyIDs, s.chunkSize(1)) {
		query := fmt.Sprintf("DELETE FROM %s WHERE entity = %s AND %s",
			table, s.dialect.Placeholder(1), dialect.InList(s.dialect, "legacy_id", 2, len(chunk)))
		args := make([]any, 0, len(chunk)+1)
		args = append(args, entity)
		for _, id := range chunk {
			args = append(args, id)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to replace %s ids: %w", entity, s.dialect.Classify(err))
		}
	}

	columns := []string{"entity", "legacy_id", "new_id"}
	for _, chunk := range chunkIDs(legacyIDs, s.chunkSize(len(columns))) {
		args := make([]any, 0, len(chunk)*len(columns))
		for _, id := range chunk {
			args = append(args, entity, id, encoded[id])
		}
		query := dialect.InsertRows(s.dialect, s.idMapTable, columns, len(chunk))
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to record %s ids: %w", entity, s.dialect.Classify(err))
		}
	}

	return nil
}

// RecordBatch appends an audit record.
func (s *Store) RecordBatch(ctx context.Context, q store.Querier, rec etl.BatchRecord) error {
	if rec.Table == "" {
		return store.ErrEmptyTable
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = s.now()
	}

	columns := []string{"run_id", "table_name", "cursor_from", "cursor_to", "rows_extracted", "rows_loaded", "loaded_at"}
	query := dialect.InsertRows(s.dialect, s.batchTable, columns, 1)
	_, err := q.ExecContext(ctx, query,
		rec.RunID, rec.Table, rec.CursorFrom, rec.CursorTo, rec.RowsExtracted, rec.RowsLoaded, rec.LoadedAt)
	if err != nil {
		return fmt.Errorf("failed to record batch for %s: %w", rec.Table, s.dialect.Classify(err))
	}

	return nil
}

// ListBatches returns the most recent records of a table, newest first.
// A limit of 0 returns every record.
func (s *Store) ListBatches(ctx context.Context, q store.Querier, table string, limit int) ([]etl.BatchRecord, error) {
	columns := "run_id, table_name, cursor_from, cursor_to, rows_extracted, rows_loaded, loaded_at"
	from := s.dialect.Quote(s.batchTable)
	where := "table_name = " + s.dialect.Placeholder(1)
	orderBy := "loaded_at DESC, cursor_to DESC"

	var query string
	if limit > 0 {
		query = s.dialect.BoundedSelect(columns, from, where, orderBy, limit)
	} else {
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", columns, from, where, orderBy)
	}

	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for %s: %w", table, s.dialect.Classify(err))
	}
	defer rows.Close()

	records := []etl.BatchRecord{}
	for rows.Next() {
		var r etl.BatchRecord
		if err := rows.Scan(&r.RunID, &r.Table, &r.CursorFrom, &r.CursorTo, &r.RowsExtracted, &r.RowsLoaded, &r.LoadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch records: %w", s.dialect.Classify(err))
	}

	return records, nil
}

// chunkSize returns how many IDs fit in one statement next to reserved extra parameters.
func (s *Store) chunkSize(width int) int {
	n := dialect.RowsPerStatement(s.dialect, width)
	if width == 1 && n >= s.dialect.MaxParams() {
		n = s.dialect.MaxParams() - 1
	}
	return n
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func chunkIDs(ids []int64, size int) [][]int64 {
	if size < 1 {
		size = 1
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

var _ store.Store = (*Store)(nil)
