// Package mapping holds the declarative per-table descriptors that drive the
// migration pipeline: where rows come from, how their columns are renamed and
// cleaned, which legacy foreign keys they carry and how migrated rows are
// identified in the target.
package mapping

import (
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
)

const (
	// DefaultBatchSize is the extraction row cap used when a descriptor sets none.
	DefaultBatchSize = 1000

	// MaxBatchSize is the largest accepted extraction row cap.
	MaxBatchSize = 15000
)

// Column kinds.
const (
	KindString  = "string"
	KindDisplay = "display"
	KindPhone   = "phone"
	KindInt     = "int"
	KindDecimal = "decimal"
	KindBool    = "bool"
	KindTime    = "time"
	KindClock   = "clock"
	KindConst   = "const"
	KindLookup  = "lookup"
	KindUpper   = "upper"
	KindLower   = "lower"
	KindJoin    = "join"
)

// Table describes the migration of one legacy table.
type Table struct {
	// Name identifies the table on the command line and is the ID-map entity
	// name other tables reference.
	Name string `yaml:"name"`

	// Description is free text shown by the tables command.
	Description string `yaml:"description"`

	// Cursor is the cursor key; defaults to Source.Table.
	Cursor string `yaml:"cursor"`

	Source     Source      `yaml:"source"`
	Target     Target      `yaml:"target"`
	Columns    []Column    `yaml:"columns"`
	Timestamps Timestamps  `yaml:"timestamps"`
	References []Reference `yaml:"references"`

	// Drop lists helper columns removed after normalization.
	Drop []string `yaml:"drop"`
}

// Source describes the legacy rows to extract.
type Source struct {
	// Table is the legacy table, e.g. dbo.Locations.
	Table string `yaml:"table"`

	// From overrides the FROM clause, e.g. to join a parent table.
	From string `yaml:"from"`

	// Select lists the selected expressions; defaults to "*".
	Select []string `yaml:"select"`

	// Key is the legacy primary-key expression used for the cursor filter and ordering.
	Key string `yaml:"key"`

	// Filter is an optional static predicate ANDed to the cursor filter.
	Filter string `yaml:"filter"`

	// BatchSize caps the rows extracted per batch.
	BatchSize int `yaml:"batch_size"`
}

// Target describes where migrated rows go and how they are identified.
type Target struct {
	// Table is the target table, e.g. app.Locations.
	Table string `yaml:"table"`

	// IDColumn is the new primary key generated by the target.
	IDColumn string `yaml:"id_column"`

	// LegacyColumn carries the legacy ID on target rows. It is added to the
	// table on first load when missing.
	LegacyColumn string `yaml:"legacy_column"`

	// MatchOn identifies rows by natural key instead of a legacy column. Rows
	// whose key already exists are not inserted again but still mapped.
	MatchOn []string `yaml:"match_on"`

	// GenerateID fills IDColumn with a random UUID string on insert, for
	// targets whose key is not generated by the database.
	GenerateID bool `yaml:"generate_id"`

	// Prefer orders rows sharing a natural key; the first one wins. A leading
	// "-" sorts descending.
	Prefer []string `yaml:"prefer"`
}

// Column maps one target column.
type Column struct {
	// Source is the legacy column read by projection.
	Source string `yaml:"source"`

	// Target is the output column; defaults to Source.
	Target string `yaml:"target"`

	// Kind selects the cleaning rule; defaults to string.
	Kind string `yaml:"kind"`

	// Default fills nulls after cleaning.
	Default any `yaml:"default"`

	// Value is the constant for const columns.
	Value any `yaml:"value"`

	// Round is the number of decimals kept by decimal columns.
	Round *int `yaml:"round"`

	// MaxAbs nulls decimal values whose magnitude exceeds it.
	MaxAbs float64 `yaml:"max_abs"`

	// MaxLen truncates string values.
	MaxLen int `yaml:"max_len"`

	// NullTokens are values treated as null before cleaning, e.g. "NULL" or "0".
	NullTokens []string `yaml:"null_tokens"`

	// Values maps normalized source strings for lookup columns.
	Values map[string]any `yaml:"values"`

	// Passthrough keeps unmapped lookup inputs, trimmed, instead of the default.
	Passthrough bool `yaml:"passthrough"`

	// From lists the input columns of derived kinds (upper, lower, join).
	From []string `yaml:"from"`

	// Separator joins the inputs of join columns.
	Separator string `yaml:"separator"`
}

// Timestamps names the created/updated pair governed by the timestamp fill policy.
type Timestamps struct {
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
}

// Reference is a legacy foreign key resolved against an already-migrated table.
type Reference struct {
	// Column holds the legacy ID after projection.
	Column string `yaml:"column"`

	// Entity is the Name of the referenced table descriptor.
	Entity string `yaml:"entity"`

	// Target receives the resolved value.
	Target string `yaml:"target"`

	// Attribute reads this column of the referenced target row instead of its
	// new ID, e.g. a location's AccountID.
	Attribute string `yaml:"attribute"`

	// Required rejects the whole batch when any key does not resolve.
	Required bool `yaml:"required"`

	// Default is used for unresolved optional keys.
	Default any `yaml:"default"`

	// SkipNull drops rows whose legacy key is null.
	SkipNull bool `yaml:"skip_null"`

	// Keep retains the legacy column after resolution.
	Keep bool `yaml:"keep"`
}

// CursorKey returns the key the table's cursor is stored under.
func (t *Table) CursorKey() string {
	if t.Cursor != "" {
		return t.Cursor
	}
	return t.Source.Table
}

// BatchSize returns the extraction row cap with the default applied.
func (t *Table) BatchSize() int {
	if t.Source.BatchSize == 0 {
		return DefaultBatchSize
	}
	return t.Source.BatchSize
}

// SourceKeyColumn returns the result-set name of the source key.
func (t *Table) SourceKeyColumn() string {
	return dialect.ColumnName(t.Source.Key)
}

// KeyColumn returns the name the legacy ID carries after projection.
func (t *Table) KeyColumn() string {
	key := t.SourceKeyColumn()
	for _, c := range t.Columns {
		if c.Source == key && c.EffectiveKind() != KindConst && c.EffectiveKind() != KindLookup {
			return c.TargetName()
		}
	}
	return key
}

// Dependencies returns the referenced entities in declaration order without duplicates.
func (t *Table) Dependencies() []string {
	var deps []string
	seen := make(map[string]bool)
	for _, r := range t.References {
		if !seen[r.Entity] {
			seen[r.Entity] = true
			deps = append(deps, r.Entity)
		}
	}
	return deps
}

// TargetName returns the output column name.
func (c Column) TargetName() string {
	if c.Target != "" {
		return c.Target
	}
	return c.Source
}

// EffectiveKind returns the column kind with the string default applied.
func (c Column) EffectiveKind() string {
	if c.Kind == "" {
		return KindString
	}
	return c.Kind
}

// Derived reports whether the column is computed from other target columns.
func (c Column) Derived() bool {
	switch c.EffectiveKind() {
	case KindUpper, KindLower, KindJoin:
		return true
	}
	return false
}
