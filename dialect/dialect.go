// Package dialect isolates the SQL differences between the supported source
// and target engines: SQL Server, PostgreSQL, MySQL/MariaDB and SQLite.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Dialect renders engine-specific SQL. Every runtime value is passed as a bound
// parameter; identifiers come from validated descriptors only.
type Dialect interface {
	// Name is the canonical dialect name.
	Name() string

	// DriverName is the database/sql driver registered for the dialect.
	DriverName() string

	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// Quote quotes a possibly schema-qualified identifier.
	Quote(ident string) string

	// BoundedSelect renders a SELECT returning at most limit rows.
	BoundedSelect(columns, from, where, orderBy string, limit int) string

	// Upsert renders an insert-or-update of one row keyed by keyColumns.
	// Parameters are bound in the order of columns.
	Upsert(table string, columns, keyColumns []string) string

	// ColumnExists renders a query returning a positive count when the column exists.
	ColumnExists(table, column string) (string, []any)

	// AddColumn renders the statement adding a nullable column.
	AddColumn(table, column, sqlType string) string

	// TransactionalDDL reports whether schema changes roll back with the
	// transaction that made them.
	TransactionalDDL() bool

	// MaxParams is the number of bind parameters one statement may carry.
	MaxParams() int

	// Types returns the column types used for bookkeeping DDL.
	Types() Types

	// Classify maps a driver error onto the etl error taxonomy.
	Classify(err error) error
}

// Types names the column types used by the bookkeeping tables.
type Types struct {
	BigInt    string
	Int       string
	Key       string
	Text      string
	Timestamp string
	Now       string
}

var identifierPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier ensures a possibly schema-qualified identifier only
// contains characters that are safe to splice into SQL.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	for _, part := range strings.Split(name, ".") {
		if !identifierPart.MatchString(part) {
			return fmt.Errorf("identifier %q must be dot-separated parts starting with a letter or underscore and containing only letters, numbers and underscores", name)
		}
	}
	return nil
}

// SplitTable splits "schema.table" into its parts. Schema is empty when the
// name is unqualified.
func SplitTable(name string) (schema, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// ColumnName returns the result-set name of a possibly qualified column
// expression such as "i.ItemID".
func ColumnName(expr string) string {
	_, name := SplitTable(expr)
	return name
}

func quoteParts(ident, lq, rq string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		p = strings.ReplaceAll(p, rq, rq+rq)
		parts[i] = lq + p + rq
	}
	return strings.Join(parts, ".")
}

func placeholders(d Dialect, from, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(from + i)
	}
	return strings.Join(marks, ", ")
}

func quoteAll(d Dialect, idents []string) string {
	quoted := make([]string, len(idents))
	for i, c := range idents {
		quoted[i] = d.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

// InsertRows renders a multi-row INSERT for rows rows of the given columns.
// Parameters are bound row-major.
func InsertRows(d Dialect, table string, columns []string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.Quote(table), quoteAll(d, columns))
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(placeholders(d, r*len(columns)+1, len(columns)))
		b.WriteString(")")
	}
	return b.String()
}

// InList renders "column IN (...)" with n placeholders starting at from.
func InList(d Dialect, column string, from, n int) string {
	return fmt.Sprintf("%s IN (%s)", column, placeholders(d, from, n))
}

// RowsPerStatement returns how many rows of width columns fit in one statement.
func RowsPerStatement(d Dialect, columns int) int {
	if columns <= 0 {
		return 1
	}
	n := d.MaxParams() / columns
	if n < 1 {
		return 1
	}
	if n > 1000 {
		// SQL Server caps a VALUES list at 1000 rows; keep every dialect aligned.
		n = 1000
	}
	return n
}

var registry = map[string]Dialect{
	"sqlserver":  SQLServer{},
	"mssql":      SQLServer{},
	"postgres":   Postgres{},
	"postgresql": Postgres{},
	"mysql":      MySQL{},
	"mariadb":    MySQL{},
	"sqlite":     SQLite{},
	"sqlite3":    SQLite{},
}

// Get returns the dialect registered under name (aliases included).
func Get(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q: supported dialects are sqlserver, postgres, mysql, sqlite", name)
	}
	return d, nil
}

// Open opens and pings a database for the named dialect.
func Open(ctx context.Context, name, dsn string) (*sql.DB, Dialect, error) {
	d, err := Get(name)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", d.Name(), err)
	}
	if d.Name() == "sqlite" {
		// SQLite serializes writers; a single connection keeps transactions simple.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping %s database: %w", d.Name(), d.Classify(err))
	}
	return db, d, nil
}
