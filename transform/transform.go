// Package transform turns extracted legacy rows into the target shape
// described by a table descriptor.
//
// Transform runs Project (select, rename, constants and value maps), then
// Normalize (per-kind cleaning, defaults, derived columns and the timestamp
// fill policy) and finally removes the descriptor's helper columns. Normalize
// is idempotent: applying it to its own output changes nothing.
package transform

import (
	"context"
	"strings"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/getpup/pupsourcing/es"
)

// Config configures a Transformer.
type Config struct {
	// Table is the descriptor driving the transformation (required).
	Table *mapping.Table

	// Now supplies the fill value of missing timestamps (default: time.Now).
	Now func() time.Time

	// Logger is an optional logger for observability.
	Logger es.Logger
}

// Transformer implements etl.Transformer for one table descriptor.
type Transformer struct {
	config Config
}

// Compile-time check that Transformer implements etl.Transformer.
var _ etl.Transformer = (*Transformer)(nil)

// New creates a Transformer. It applies time.Now when Now is nil.
func New(cfg Config) *Transformer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Transformer{
		config: cfg,
	}
}

// Transform projects, normalizes and drops helper columns. The input batch is
// not modified. Batch.MaxKey is carried through unchanged.
func (t *Transformer) Transform(ctx context.Context, batch *etl.Batch) (*etl.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := t.Drop(t.Normalize(t.Project(batch)))

	if t.config.Logger != nil {
		t.config.Logger.Debug(ctx, "batch transformed",
			"table", batch.Table, "rows", out.Len(), "columns", len(out.Columns))
	}

	return out, nil
}

// Project selects and renames the descriptor's columns, sets constants and
// maps lookup values. Derived and timestamp columns are added to the shape
// but filled by Normalize.
func (t *Transformer) Project(batch *etl.Batch) *etl.Batch {
	table := t.config.Table
	out := batch.WithRows(make([]etl.Row, 0, batch.Len()))
	out.KeyColumn = table.KeyColumn()
	out.Columns = t.columns()

	for _, src := range batch.Rows {
		row := make(etl.Row, len(out.Columns))
		for _, c := range table.Columns {
			switch c.EffectiveKind() {
			case mapping.KindConst:
				row[c.TargetName()] = Literal(c.Value)
			case mapping.KindLookup:
				row[c.TargetName()] = lookup(c, src[c.Source])
			case mapping.KindUpper, mapping.KindLower, mapping.KindJoin:
				row[c.TargetName()] = nil
			default:
				row[c.TargetName()] = src[c.Source]
			}
		}
		for _, ts := range []string{table.Timestamps.Created, table.Timestamps.Updated} {
			if _, ok := row[ts]; ts != "" && !ok {
				row[ts] = nil
			}
		}
		out.Rows = append(out.Rows, row)
	}

	return out
}

// Normalize cleans every column according to its kind, fills defaults,
// computes derived columns and applies the timestamp policy. Columns unknown
// to the descriptor pass through untouched.
func (t *Transformer) Normalize(batch *etl.Batch) *etl.Batch {
	table := t.config.Table
	out := batch.WithRows(make([]etl.Row, 0, batch.Len()))
	now := t.config.Now()

	for _, src := range batch.Rows {
		row := src.Clone()
		for _, c := range table.Columns {
			if c.Derived() {
				continue
			}
			name := c.TargetName()
			if _, ok := row[name]; !ok {
				continue
			}
			row[name] = withDefault(c, clean(c, row[name]))
		}
		for _, c := range table.Columns {
			if c.Derived() {
				row[c.TargetName()] = withDefault(c, derive(c, row))
			}
		}
		fillTimestamps(row, table.Timestamps, now)
		out.Rows = append(out.Rows, row)
	}

	return out
}

// Drop removes the descriptor's helper columns.
func (t *Transformer) Drop(batch *etl.Batch) *etl.Batch {
	drop := t.config.Table.Drop
	if len(drop) == 0 {
		return batch
	}

	dropped := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropped[d] = true
	}

	out := batch.WithRows(make([]etl.Row, 0, batch.Len()))
	out.Columns = out.Columns[:0]
	for _, c := range batch.Columns {
		if !dropped[c] {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, src := range batch.Rows {
		row := src.Clone()
		for d := range dropped {
			delete(row, d)
		}
		out.Rows = append(out.Rows, row)
	}

	return out
}

func (t *Transformer) columns() []string {
	table := t.config.Table
	columns := make([]string, 0, len(table.Columns)+2)
	seen := make(map[string]bool, len(table.Columns)+2)
	for _, c := range table.Columns {
		name := c.TargetName()
		if !seen[name] {
			seen[name] = true
			columns = append(columns, name)
		}
	}
	for _, ts := range []string{table.Timestamps.Created, table.Timestamps.Updated} {
		if ts != "" && !seen[ts] {
			seen[ts] = true
			columns = append(columns, ts)
		}
	}
	return columns
}

func clean(c mapping.Column, v any) any {
	if isNullToken(v, c.NullTokens) {
		v = nil
	}
	switch c.EffectiveKind() {
	case mapping.KindDisplay:
		return CleanDisplay(v, c.MaxLen)
	case mapping.KindPhone:
		return CleanPhone(v)
	case mapping.KindInt:
		return CleanInt(v)
	case mapping.KindDecimal:
		return CleanDecimal(v, c.Round, c.MaxAbs)
	case mapping.KindBool:
		return CleanBool(v)
	case mapping.KindTime:
		if ts, ok := ParseTime(v); ok {
			return ts
		}
		return nil
	case mapping.KindClock:
		return CleanClock(v)
	case mapping.KindConst:
		return Literal(c.Value)
	case mapping.KindLookup:
		return v
	default:
		return CleanString(v, c.NullTokens, c.MaxLen)
	}
}

func lookup(c mapping.Column, v any) any {
	if key, ok := LookupKey(v); ok {
		for k, mapped := range c.Values {
			if strings.EqualFold(strings.ReplaceAll(k, " ", ""), key) {
				return Literal(mapped)
			}
		}
	}
	if c.Passthrough {
		if s, ok := asString(v); ok {
			return s
		}
	}
	return Literal(c.Default)
}

func isNullToken(v any, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	s, ok := asString(v)
	if !ok {
		return false
	}
	for _, token := range tokens {
		if s == token {
			return true
		}
	}
	return false
}

func derive(c mapping.Column, row etl.Row) any {
	switch c.EffectiveKind() {
	case mapping.KindUpper, mapping.KindLower:
		s, ok := asString(row[c.From[0]])
		if !ok {
			return nil
		}
		if c.EffectiveKind() == mapping.KindUpper {
			return strings.ToUpper(s)
		}
		return strings.ToLower(s)
	case mapping.KindJoin:
		sep := c.Separator
		if sep == "" && len(c.From) > 1 {
			sep = "-"
		}
		parts := make([]string, len(c.From))
		for i, in := range c.From {
			s, ok := asString(row[in])
			if !ok {
				return nil
			}
			parts[i] = s
		}
		return strings.Join(parts, sep)
	}
	return nil
}

// withDefault fills a missing value with the column default, cleaned like an
// extracted value so a second pass yields the same type.
func withDefault(c mapping.Column, v any) any {
	if v != nil || c.Default == nil {
		return v
	}
	def := Literal(c.Default)
	if cleaned := clean(c, def); cleaned != nil {
		return cleaned
	}
	return def
}

// fillTimestamps sets both columns to now when both are missing and otherwise
// copies the present one into the missing one.
func fillTimestamps(row etl.Row, ts mapping.Timestamps, now time.Time) {
	if ts.Created == "" || ts.Updated == "" {
		return
	}
	created, updated := row[ts.Created], row[ts.Updated]
	switch {
	case created == nil && updated == nil:
		row[ts.Created] = now
		row[ts.Updated] = now
	case created == nil:
		row[ts.Created] = updated
	case updated == nil:
		row[ts.Updated] = created
	}
}
