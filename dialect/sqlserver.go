package dialect

import (
	"fmt"
	"strings"
)

// SQLServer renders T-SQL for Microsoft SQL Server and Azure SQL.
type SQLServer struct{}

var _ Dialect = SQLServer{}

func (SQLServer) Name() string { return "sqlserver" }
func (SQLServer) DriverName() string { return "sqlserver" }
func (SQLServer) TransactionalDDL() bool { return true }

func (SQLServer) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (SQLServer) Quote(ident string) string { return quoteParts(ident, "[", "]") }

func (SQLServer) BoundedSelect(columns, from, where, orderBy string, limit int) string {
	q := fmt.Sprintf("SELECT TOP (%d) %s FROM %s", limit, columns, from)
	if where != "" {
		q += " WHERE " + where
	}
	if orderBy != "" {
		q += " ORDER BY " + orderBy
	}
	return q
}

func (d SQLServer) Upsert(table string, columns, keyColumns []string) string {
	source := make([]string, len(columns))
	insertVals := make([]string, len(columns))
	for i, c := range columns {
		source[i] = fmt.Sprintf("%s AS %s", d.Placeholder(i+1), d.Quote(c))
		insertVals[i] = "source." + d.Quote(c)
	}
	on := make([]string, len(keyColumns))
	for i, k := range keyColumns {
		on[i] = fmt.Sprintf("target.%s = source.%s", d.Quote(k), d.Quote(k))
	}
	var set []string
	for _, c := range columns {
		if !contains(keyColumns, c) {
			set = append(set, fmt.Sprintf("target.%s = source.%s", d.Quote(c), d.Quote(c)))
		}
	}
	q := fmt.Sprintf("MERGE %s AS target USING (SELECT %s) AS source ON %s",
		d.Quote(table), strings.Join(source, ", "), strings.Join(on, " AND "))
	if len(set) > 0 {
		q += " WHEN MATCHED THEN UPDATE SET " + strings.Join(set, ", ")
	}
	q += fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		quoteAll(d, columns), strings.Join(insertVals, ", "))
	return q
}

func (SQLServer) ColumnExists(table, column string) (string, []any) {
	return "SELECT COUNT(*) FROM sys.columns WHERE Name = @p1 AND Object_ID = Object_ID(@p2)", []any{column, table}
}

func (d SQLServer) AddColumn(table, column, sqlType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s", d.Quote(table), d.Quote(column), sqlType)
}

// MaxParams stays below the 2100 parameter ceiling of an RPC request.
func (SQLServer) MaxParams() int { return 2000 }

func (SQLServer) Types() Types {
	return Types{
		BigInt:    "BIGINT",
		Int:       "INT",
		Key:       "NVARCHAR(255)",
		Text:      "NVARCHAR(MAX)",
		Timestamp: "DATETIME2",
		Now:       "SYSUTCDATETIME()",
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
