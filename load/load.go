// Package load appends transformed batches to the target and advances their
// cursor in the same transaction.
package load

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
	"github.com/getpup/pupsourcing/es"
	"github.com/google/uuid"
)

// Config configures a Loader.
type Config struct {
	// DB is the target database (required). Every batch runs in its own transaction.
	DB *sql.DB

	// Dialect renders the target SQL (required).
	Dialect dialect.Dialect

	// Table is the descriptor of the loaded table (required).
	Table *mapping.Table

	// Store holds the cursor, the ID map and the batch log (required). It must
	// write through the transaction it is given for loads to be atomic.
	Store store.Store

	// RunID tags the batch log entries written by this loader.
	RunID string

	// Now stamps batch log entries (default: time.Now in UTC).
	Now func() time.Time

	// Logger is an optional logger for observability.
	Logger es.Logger
}

// Loader implements etl.Loader.
type Loader struct {
	config Config
}

// Compile-time check that Loader implements etl.Loader.
var _ etl.Loader = (*Loader)(nil)

// New creates a Loader.
func New(cfg Config) *Loader {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Loader{
		config: cfg,
	}
}

// Load ensures the legacy ID column exists, appends the batch rows, records
// their IDs, advances the cursor to batch.MaxKey and logs the batch, all in
// one transaction. Nothing is written when any step fails.
//
// The cursor stored in the target must still equal batch.Cursor and may only
// move forward; otherwise Load fails with etl.ErrCorruption.
func (l *Loader) Load(ctx context.Context, batch *etl.Batch) (etl.LoadResult, error) {
	table := l.config.Table
	cursorKey := table.CursorKey()

	if batch.MaxKey < batch.Cursor {
		return etl.LoadResult{}, fmt.Errorf("%w: %s cursor would move back from %d to %d",
			etl.ErrCorruption, cursorKey, batch.Cursor, batch.MaxKey)
	}

	// Dialects that commit DDL implicitly get the column outside the batch
	// transaction so a failed batch leaves nothing half applied.
	if !l.config.Dialect.TransactionalDDL() {
		if err := l.ensureLegacyColumn(ctx, l.config.DB); err != nil {
			return etl.LoadResult{}, err
		}
	}

	tx, err := l.config.DB.BeginTx(ctx, nil)
	if err != nil {
		return etl.LoadResult{}, fmt.Errorf("load %s: begin transaction: %w", table.Name, l.config.Dialect.Classify(err))
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := l.load(ctx, tx, batch)
	if err != nil {
		return etl.LoadResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return etl.LoadResult{}, fmt.Errorf("load %s: commit: %w", table.Name, l.config.Dialect.Classify(err))
	}

	if l.config.Logger != nil {
		l.config.Logger.Info(ctx, "batch loaded",
			"table", table.Name, "rows_inserted", result.RowsInserted, "rows_skipped", result.RowsSkipped,
			"ids_mapped", result.IDsMapped, "cursor", result.Cursor)
	}

	return result, nil
}

func (l *Loader) load(ctx context.Context, tx *sql.Tx, batch *etl.Batch) (etl.LoadResult, error) {
	table := l.config.Table
	cursorKey := table.CursorKey()

	current, err := l.config.Store.GetCursor(ctx, tx, cursorKey)
	if err != nil {
		return etl.LoadResult{}, fmt.Errorf("load %s: %w", table.Name, err)
	}
	if current != batch.Cursor {
		return etl.LoadResult{}, fmt.Errorf("%w: %s cursor is %d but the batch was extracted after %d",
			etl.ErrCorruption, cursorKey, current, batch.Cursor)
	}

	if l.config.Dialect.TransactionalDDL() {
		if err := l.ensureLegacyColumn(ctx, tx); err != nil {
			return etl.LoadResult{}, err
		}
	}

	plan, err := l.plan(ctx, tx, batch)
	if err != nil {
		return etl.LoadResult{}, err
	}

	if err := l.insert(ctx, tx, plan.columns, plan.rows); err != nil {
		return etl.LoadResult{}, err
	}

	ids, err := l.newIDs(ctx, tx, batch, plan)
	if err != nil {
		return etl.LoadResult{}, err
	}
	if len(ids) > 0 {
		if err := l.config.Store.RecordIDs(ctx, tx, table.Name, ids); err != nil {
			return etl.LoadResult{}, fmt.Errorf("load %s: %w", table.Name, err)
		}
	}

	if err := l.config.Store.AdvanceCursor(ctx, tx, cursorKey, batch.MaxKey); err != nil {
		return etl.LoadResult{}, fmt.Errorf("load %s: %w", table.Name, err)
	}

	err = l.config.Store.RecordBatch(ctx, tx, etl.BatchRecord{
		RunID:         l.config.RunID,
		Table:         cursorKey,
		CursorFrom:    batch.Cursor,
		CursorTo:      batch.MaxKey,
		RowsExtracted: batch.Extracted,
		RowsLoaded:    len(plan.rows),
		LoadedAt:      l.config.Now(),
	})
	if err != nil {
		return etl.LoadResult{}, fmt.Errorf("load %s: %w", table.Name, err)
	}

	return etl.LoadResult{
		RowsInserted: len(plan.rows),
		RowsSkipped:  batch.Len() - len(plan.rows),
		IDsMapped:    len(ids),
		Cursor:       batch.MaxKey,
	}, nil
}

// ensureLegacyColumn adds the nullable legacy ID column when the target lacks it.
func (l *Loader) ensureLegacyColumn(ctx context.Context, q store.Querier) error {
	target := l.config.Table.Target
	if target.LegacyColumn == "" {
		return nil
	}
	d := l.config.Dialect

	query, args := d.ColumnExists(target.Table, target.LegacyColumn)
	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return fmt.Errorf("load %s: check column %s: %w", l.config.Table.Name, target.LegacyColumn, d.Classify(err))
	}
	if count > 0 {
		return nil
	}

	stmt := d.AddColumn(target.Table, target.LegacyColumn, d.Types().BigInt+" NULL")
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("load %s: add column %s: %w", l.config.Table.Name, target.LegacyColumn, d.Classify(err))
	}

	if l.config.Logger != nil {
		l.config.Logger.Info(ctx, "legacy id column added",
			"table", target.Table, "column", target.LegacyColumn)
	}
	return nil
}

// insert appends rows with multi-row statements sized to the dialect's
// parameter limit.
func (l *Loader) insert(ctx context.Context, tx *sql.Tx, columns []string, rows []etl.Row) error {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}
	d := l.config.Dialect
	target := l.config.Table.Target.Table
	per := dialect.RowsPerStatement(d, len(columns))

	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(columns))
		for _, row := range chunk {
			for _, c := range columns {
				args = append(args, row[c])
			}
		}
		if _, err := tx.ExecContext(ctx, dialect.InsertRows(d, target, columns, len(chunk)), args...); err != nil {
			return fmt.Errorf("load %s: insert into %s: %w", l.config.Table.Name, target, d.Classify(err))
		}
	}
	return nil
}

// newIDs maps every batch row's legacy ID to the ID of its target row.
func (l *Loader) newIDs(ctx context.Context, tx *sql.Tx, batch *etl.Batch, p *plan) (map[int64]any, error) {
	table := l.config.Table
	target := table.Target

	switch {
	case len(target.MatchOn) > 0:
		existing, err := l.naturalKeys(ctx, tx, batch.Rows)
		if err != nil {
			return nil, err
		}
		ids := make(map[int64]any, batch.Len())
		for _, row := range batch.Rows {
			legacy, ok := etl.AsInt64(row[batch.KeyColumn])
			if !ok {
				continue
			}
			id, ok := existing[naturalKey(row, target.MatchOn)]
			if !ok {
				return nil, fmt.Errorf("%w: %s row %d not found by %s after insert",
					etl.ErrDataIntegrity, table.Name, legacy, strings.Join(target.MatchOn, ", "))
			}
			ids[legacy] = id
		}
		return ids, nil

	case target.GenerateID:
		ids := make(map[int64]any, len(p.rows))
		for _, row := range p.rows {
			if legacy, ok := etl.AsInt64(row[batch.KeyColumn]); ok {
				ids[legacy] = row[target.IDColumn]
			}
		}
		return ids, nil

	default:
		legacy := make([]any, 0, len(p.rows))
		for _, row := range p.rows {
			if row[target.LegacyColumn] != nil {
				legacy = append(legacy, row[target.LegacyColumn])
			}
		}
		found, err := l.selectBy(ctx, tx, []string{target.IDColumn, target.LegacyColumn}, target.LegacyColumn, legacy, false)
		if err != nil {
			return nil, err
		}
		ids := make(map[int64]any, len(found))
		for _, values := range found {
			if id, ok := etl.AsInt64(values[1]); ok && values[0] != nil {
				ids[id] = values[0]
			}
		}
		return ids, nil
	}
}

// naturalKeys returns the target IDs of the rows sharing a natural key with
// any of rows, keyed by naturalKey.
func (l *Loader) naturalKeys(ctx context.Context, tx *sql.Tx, rows []etl.Row) (map[string]any, error) {
	target := l.config.Table.Target
	first := target.MatchOn[0]

	var values []any
	seen := make(map[string]bool)
	withNull := false
	for _, row := range rows {
		v := row[first]
		if v == nil {
			withNull = true
			continue
		}
		k := keyPart(v)
		if !seen[k] {
			seen[k] = true
			values = append(values, v)
		}
	}

	columns := append([]string{target.IDColumn}, target.MatchOn...)
	found, err := l.selectBy(ctx, tx, columns, first, values, withNull)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]any, len(found))
	for _, values := range found {
		row := make(etl.Row, len(target.MatchOn))
		for i, c := range target.MatchOn {
			row[c] = values[i+1]
		}
		k := naturalKey(row, target.MatchOn)
		if _, dup := keys[k]; !dup {
			keys[k] = values[0]
		}
	}
	return keys, nil
}

// selectBy reads columns of the target rows whose column matches one of
// values, or is null when withNull is set.
func (l *Loader) selectBy(ctx context.Context, tx *sql.Tx, columns []string, column string, values []any, withNull bool) ([][]any, error) {
	d := l.config.Dialect
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}
	base := fmt.Sprintf("SELECT %s FROM %s WHERE ", strings.Join(quoted, ", "), d.Quote(l.config.Table.Target.Table))

	var queries []string
	var params [][]any
	per := d.MaxParams()
	for start := 0; start < len(values); start += per {
		end := start + per
		if end > len(values) {
			end = len(values)
		}
		queries = append(queries, base+dialect.InList(d, d.Quote(column), 1, end-start))
		params = append(params, values[start:end])
	}
	if withNull {
		queries = append(queries, base+d.Quote(column)+" IS NULL")
		params = append(params, nil)
	}

	var out [][]any
	for i, query := range queries {
		found, err := scanAll(ctx, tx, query, params[i], len(columns))
		if err != nil {
			return nil, fmt.Errorf("load %s: read back %s: %w", l.config.Table.Name, l.config.Table.Target.Table, d.Classify(err))
		}
		out = append(out, found...)
	}
	return out, nil
}

func scanAll(ctx context.Context, tx *sql.Tx, query string, args []any, width int) ([][]any, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// newID returns a random identifier for targets that do not generate keys.
func newID() string {
	return uuid.NewString()
}
