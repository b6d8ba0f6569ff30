package dialect

import (
	"fmt"
	"strings"
)

// Postgres renders SQL for PostgreSQL.
type Postgres struct{}

var _ Dialect = Postgres{}

func (Postgres) Name() string { return "postgres" }
func (Postgres) DriverName() string { return "postgres" }
func (Postgres) TransactionalDDL() bool { return true }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) Quote(ident string) string { return quoteParts(ident, `"`, `"`) }

func (Postgres) BoundedSelect(columns, from, where, orderBy string, limit int) string {
	return limitSelect(columns, from, where, orderBy, limit)
}

func (d Postgres) Upsert(table string, columns, keyColumns []string) string {
	return onConflictUpsert(d, table, columns, keyColumns)
}

func (Postgres) ColumnExists(table, column string) (string, []any) {
	schema, name := SplitTable(table)
	return `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema()) AND table_name = $2 AND column_name = $3`,
		[]any{schema, name, column}
}

func (d Postgres) AddColumn(table, column, sqlType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(table), d.Quote(column), sqlType)
}

func (Postgres) MaxParams() int { return 65535 }

func (Postgres) Types() Types {
	return Types{
		BigInt:    "BIGINT",
		Int:       "INTEGER",
		Key:       "TEXT",
		Text:      "TEXT",
		Timestamp: "TIMESTAMPTZ",
		Now:       "NOW()",
	}
}

func limitSelect(columns, from, where, orderBy string, limit int) string {
	q := fmt.Sprintf("SELECT %s FROM %s", columns, from)
	if where != "" {
		q += " WHERE " + where
	}
	if orderBy != "" {
		q += " ORDER BY " + orderBy
	}
	return q + fmt.Sprintf(" LIMIT %d", limit)
}

// onConflictUpsert renders INSERT ... ON CONFLICT, shared by PostgreSQL and SQLite.
func onConflictUpsert(d Dialect, table string, columns, keyColumns []string) string {
	var set []string
	for _, c := range columns {
		if !contains(keyColumns, c) {
			set = append(set, fmt.Sprintf("%s = excluded.%s", d.Quote(c), d.Quote(c)))
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		d.Quote(table), quoteAll(d, columns), placeholders(d, 1, len(columns)), quoteAll(d, keyColumns))
	if len(set) == 0 {
		return q + " DO NOTHING"
	}
	return q + " DO UPDATE SET " + strings.Join(set, ", ")
}
