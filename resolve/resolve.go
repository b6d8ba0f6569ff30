// Package resolve maps legacy foreign keys to the IDs of already-migrated
// target rows.
package resolve

import (
	"context"
	"fmt"
	"sort"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
	"github.com/GARAGE-POS/data-migration-etl-scripts/transform"
	"github.com/getpup/pupsourcing/es"
)

// Config configures a Resolver.
type Config struct {
	// DB is the target database (required).
	DB store.Querier

	// Dialect renders the attribute queries (required).
	Dialect dialect.Dialect

	// Table is the descriptor whose references are resolved (required).
	Table *mapping.Table

	// Catalog locates the target tables of attribute references.
	// Required only when the descriptor has one.
	Catalog *mapping.Catalog

	// IDs is the ID map the references are resolved against (required).
	IDs store.IDMapStore

	// Logger is an optional logger for observability.
	Logger es.Logger
}

// Resolver implements etl.Resolver.
type Resolver struct {
	config Config
}

// Compile-time check that Resolver implements etl.Resolver.
var _ etl.Resolver = (*Resolver)(nil)

// New creates a Resolver.
func New(cfg Config) *Resolver {
	return &Resolver{
		config: cfg,
	}
}

// Resolve writes the resolved value of every reference into its target
// column. A required reference with unresolved keys rejects the whole batch
// with a *etl.DependencyError. Optional references fall back to their default.
// Rows with a null key are dropped when the reference skips nulls and keep a
// null value otherwise. The input batch is not modified.
func (r *Resolver) Resolve(ctx context.Context, batch *etl.Batch) (*etl.Batch, error) {
	table := r.config.Table
	rows := make([]etl.Row, len(batch.Rows))
	for i, row := range batch.Rows {
		rows[i] = row.Clone()
	}
	out := batch.WithRows(rows)

	for _, ref := range table.References {
		resolved, err := r.resolveReference(ctx, ref, out.Rows)
		if err != nil {
			return nil, err
		}

		kept := out.Rows[:0]
		for _, row := range out.Rows {
			v := row[ref.Column]
			if v == nil {
				if ref.SkipNull {
					continue
				}
				row[ref.Target] = nil
			} else {
				id, _ := etl.AsInt64(v)
				if value, ok := resolved[id]; ok {
					row[ref.Target] = value
				} else {
					row[ref.Target] = transform.Literal(ref.Default)
				}
			}
			if dropsColumn(ref, out.KeyColumn) {
				delete(row, ref.Column)
			}
			kept = append(kept, row)
		}
		if dropped := len(out.Rows) - len(kept); dropped > 0 && r.config.Logger != nil {
			r.config.Logger.Debug(ctx, "rows without reference skipped",
				"table", table.Name, "column", ref.Column, "rows", dropped)
		}
		out.Rows = kept

		out.Columns = withColumn(out.Columns, ref.Target)
		if dropsColumn(ref, out.KeyColumn) {
			out.Columns = withoutColumn(out.Columns, ref.Column)
		}
	}

	return out, nil
}

// resolveReference returns the resolved value of every non-null legacy key of
// one reference. It fails when a required key does not resolve.
func (r *Resolver) resolveReference(ctx context.Context, ref mapping.Reference, rows []etl.Row) (map[int64]any, error) {
	table := r.config.Table

	var legacy []int64
	seen := make(map[int64]bool)
	for _, row := range rows {
		v := row[ref.Column]
		if v == nil {
			continue
		}
		id, ok := etl.AsInt64(v)
		if !ok {
			return nil, fmt.Errorf("resolve %s.%s: legacy key %v is not an integer", table.Name, ref.Column, v)
		}
		if !seen[id] {
			seen[id] = true
			legacy = append(legacy, id)
		}
	}
	if len(legacy) == 0 {
		return map[int64]any{}, nil
	}

	resolved, err := r.config.IDs.LookupIDs(ctx, r.config.DB, ref.Entity, legacy)
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s against %s: %w", table.Name, ref.Column, ref.Entity, err)
	}
	if ref.Attribute != "" {
		resolved, err = r.attributes(ctx, ref, resolved)
		if err != nil {
			return nil, err
		}
	}

	var missing []int64
	for _, id := range legacy {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}

	if r.config.Logger != nil {
		r.config.Logger.Debug(ctx, "reference resolved",
			"table", table.Name, "column", ref.Column, "entity", ref.Entity,
			"keys", len(legacy), "missing", len(missing))
	}

	if len(missing) > 0 && ref.Required {
		return nil, etl.NewDependencyError(table.Name, ref.Entity, ref.Column, missing)
	}
	return resolved, nil
}

// attributes replaces every resolved new ID by the referenced target row's
// attribute value. Legacy IDs whose target row is gone are left unresolved.
func (r *Resolver) attributes(ctx context.Context, ref mapping.Reference, ids map[int64]any) (map[int64]any, error) {
	if r.config.Catalog == nil {
		return nil, fmt.Errorf("resolve %s.%s: attribute references need a catalog", r.config.Table.Name, ref.Column)
	}
	upstream, err := r.config.Catalog.Table(ref.Entity)
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s: %w", r.config.Table.Name, ref.Column, err)
	}

	keys := make([]string, 0, len(ids))
	args := make(map[string]any, len(ids))
	for _, newID := range ids {
		key, err := store.EncodeID(newID)
		if err != nil {
			return nil, err
		}
		if _, ok := args[key]; !ok {
			keys = append(keys, key)
			args[key] = newID
		}
	}
	sort.Strings(keys)

	d := r.config.Dialect
	idColumn := d.Quote(upstream.Target.IDColumn)
	values := make(map[string]any, len(keys))
	for _, chunk := range chunk(keys, d.MaxParams()) {
		params := make([]any, len(chunk))
		for i, key := range chunk {
			params[i] = args[key]
		}
		query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s",
			idColumn, d.Quote(ref.Attribute), d.Quote(upstream.Target.Table),
			dialect.InList(d, idColumn, 1, len(chunk)))

		if err := r.scanAttributes(ctx, query, params, values); err != nil {
			return nil, fmt.Errorf("resolve %s.%s: read %s.%s: %w",
				r.config.Table.Name, ref.Column, upstream.Target.Table, ref.Attribute, d.Classify(err))
		}
	}

	out := make(map[int64]any, len(ids))
	for legacy, newID := range ids {
		key, _ := store.EncodeID(newID)
		if v, ok := values[key]; ok {
			out[legacy] = v
		}
	}
	return out, nil
}

func (r *Resolver) scanAttributes(ctx context.Context, query string, params []any, values map[string]any) error {
	rows, err := r.config.DB.QueryContext(ctx, query, params...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, value any
		if err := rows.Scan(&id, &value); err != nil {
			return err
		}
		key, err := store.EncodeID(id)
		if err != nil {
			return err
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		values[key] = value
	}
	return rows.Err()
}

// dropsColumn reports whether resolution removes the legacy column.
func dropsColumn(ref mapping.Reference, keyColumn string) bool {
	return !ref.Keep && ref.Column != keyColumn && ref.Column != ref.Target
}

func withColumn(columns []string, name string) []string {
	for _, c := range columns {
		if c == name {
			return columns
		}
	}
	return append(columns, name)
}

func withoutColumn(columns []string, name string) []string {
	out := columns[:0]
	for _, c := range columns {
		if c != name {
			out = append(out, c)
		}
	}
	return out
}

func chunk(keys []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
