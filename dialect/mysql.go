package dialect

import (
	"fmt"
	"strings"
)

// MySQL renders SQL for MySQL and MariaDB.
//
// MySQL commits DDL implicitly, so the loader adds the legacy column before
// it opens the batch transaction.
type MySQL struct{}

var _ Dialect = MySQL{}

func (MySQL) Name() string { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }
func (MySQL) TransactionalDDL() bool { return false }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) Quote(ident string) string { return quoteParts(ident, "`", "`") }

func (MySQL) BoundedSelect(columns, from, where, orderBy string, limit int) string {
	return limitSelect(columns, from, where, orderBy, limit)
}

func (d MySQL) Upsert(table string, columns, keyColumns []string) string {
	var set []string
	for _, c := range columns {
		if !contains(keyColumns, c) {
			set = append(set, fmt.Sprintf("%s = VALUES(%s)", d.Quote(c), d.Quote(c)))
		}
	}
	if len(set) == 0 {
		set = append(set, fmt.Sprintf("%s = %s", d.Quote(keyColumns[0]), d.Quote(keyColumns[0])))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		d.Quote(table), quoteAll(d, columns), placeholders(d, 1, len(columns)), strings.Join(set, ", "))
}

func (MySQL) ColumnExists(table, column string) (string, []any) {
	schema, name := SplitTable(table)
	return `SELECT COUNT(*) FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		[]any{schema, name, column}
}

func (d MySQL) AddColumn(table, column, sqlType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(table), d.Quote(column), sqlType)
}

func (MySQL) MaxParams() int { return 65535 }

func (MySQL) Types() Types {
	return Types{
		BigInt:    "BIGINT",
		Int:       "INT",
		Key:       "VARCHAR(255)",
		Text:      "TEXT",
		Timestamp: "TIMESTAMP(6)",
		Now:       "CURRENT_TIMESTAMP(6)",
	}
}
