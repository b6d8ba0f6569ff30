package dialect

import "fmt"

// SQLite renders SQL for SQLite. A schema qualifier names an attached database.
type SQLite struct{}

var _ Dialect = SQLite{}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite3" }
func (SQLite) TransactionalDDL() bool { return true }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Quote(ident string) string { return quoteParts(ident, `"`, `"`) }

func (SQLite) BoundedSelect(columns, from, where, orderBy string, limit int) string {
	return limitSelect(columns, from, where, orderBy, limit)
}

func (d SQLite) Upsert(table string, columns, keyColumns []string) string {
	return onConflictUpsert(d, table, columns, keyColumns)
}

func (SQLite) ColumnExists(table, column string) (string, []any) {
	schema, name := SplitTable(table)
	if schema == "" {
		schema = "main"
	}
	return "SELECT COUNT(*) FROM pragma_table_info(?, ?) WHERE name = ?", []any{name, schema, column}
}

func (d SQLite) AddColumn(table, column, sqlType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(table), d.Quote(column), sqlType)
}

func (SQLite) MaxParams() int { return 32766 }

func (SQLite) Types() Types {
	return Types{
		BigInt:    "INTEGER",
		Int:       "INTEGER",
		Key:       "TEXT",
		Text:      "TEXT",
		Timestamp: "TIMESTAMP",
		Now:       "CURRENT_TIMESTAMP",
	}
}
