// Package extract reads bounded batches of legacy rows past a cursor.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/getpup/pupsourcing/es"
)

// Config configures an Extractor.
type Config struct {
	// DB is the source database (required). It is only read.
	DB store.Querier

	// Dialect renders the source SQL (required).
	Dialect dialect.Dialect

	// Table is the descriptor of the extracted table (required).
	Table *mapping.Table

	// BatchSize overrides the descriptor's row cap when positive.
	// Values above mapping.MaxBatchSize are capped.
	BatchSize int

	// Logger is an optional logger for observability.
	Logger es.Logger
}

// Extractor implements etl.Extractor with a keyset-paginated SELECT.
type Extractor struct {
	config Config
	query  string
}

// Compile-time check that Extractor implements etl.Extractor.
var _ etl.Extractor = (*Extractor)(nil)

// New creates an Extractor and renders its query once.
func New(cfg Config) *Extractor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Table.BatchSize()
	}
	if cfg.BatchSize > mapping.MaxBatchSize {
		cfg.BatchSize = mapping.MaxBatchSize
	}

	return &Extractor{
		config: cfg,
		query:  Query(cfg.Dialect, cfg.Table, cfg.BatchSize),
	}
}

// Query renders the extraction statement of a table:
//
//	SELECT {select} FROM {from} WHERE {key} > ? [AND ({filter})] ORDER BY {key}
//
// bounded by limit rows. The cursor is the only parameter.
func Query(d dialect.Dialect, t *mapping.Table, limit int) string {
	columns := "*"
	if len(t.Source.Select) > 0 {
		columns = strings.Join(t.Source.Select, ", ")
	}
	from := t.Source.From
	if from == "" {
		from = d.Quote(t.Source.Table)
	}
	key := d.Quote(t.Source.Key)
	where := fmt.Sprintf("%s > %s", key, d.Placeholder(1))
	if t.Source.Filter != "" {
		where += fmt.Sprintf(" AND (%s)", t.Source.Filter)
	}
	return d.BoundedSelect(columns, from, where, key, limit)
}

// Extract returns the rows whose key is greater than after, in key order.
// The batch is empty once the source is drained.
func (e *Extractor) Extract(ctx context.Context, after int64) (*etl.Batch, error) {
	table := e.config.Table
	batch := &etl.Batch{
		Table:     table.CursorKey(),
		KeyColumn: table.SourceKeyColumn(),
		Cursor:    after,
		MaxKey:    after,
	}

	rows, err := e.config.DB.QueryContext(ctx, e.query, after)
	if err != nil {
		return nil, fmt.Errorf("extract %s after %d: %w", table.Source.Table, after, e.config.Dialect.Classify(err))
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("extract %s: read columns: %w", table.Source.Table, err)
	}
	batch.Columns = make([]string, len(types))
	for i, ct := range types {
		batch.Columns[i] = ct.Name()
	}
	key, err := keyColumn(batch.Columns, batch.KeyColumn)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", table.Source.Table, err)
	}
	batch.KeyColumn = key

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("extract %s: scan row: %w", table.Source.Table, err)
		}

		row := make(etl.Row, len(types))
		for i, ct := range types {
			row[ct.Name()] = normalizeValue(ct, values[i])
		}

		id, ok := etl.AsInt64(row[key])
		if !ok {
			return nil, fmt.Errorf("extract %s: key %s value %v is not an integer", table.Source.Table, key, row[key])
		}
		if id > batch.MaxKey {
			batch.MaxKey = id
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("extract %s after %d: %w", table.Source.Table, after, e.config.Dialect.Classify(err))
	}
	batch.Extracted = len(batch.Rows)

	if e.config.Logger != nil {
		e.config.Logger.Debug(ctx, "batch extracted",
			"table", batch.Table, "after", after, "rows", batch.Len(), "max_key", batch.MaxKey)
	}

	return batch, nil
}

// keyColumn finds the result-set column carrying the key, ignoring case.
func keyColumn(columns []string, key string) (string, error) {
	for _, c := range columns {
		if c == key {
			return c, nil
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, key) {
			return c, nil
		}
	}
	return "", fmt.Errorf("key column %s missing from result set", key)
}

// normalizeValue converts driver values to the row value set: raw bytes
// become strings and SQL Server GUIDs their canonical text.
func normalizeValue(ct *sql.ColumnType, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if strings.EqualFold(ct.DatabaseTypeName(), "UNIQUEIDENTIFIER") && len(b) == 16 {
		var id mssql.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
	}
	return string(b)
}
