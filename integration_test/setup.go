//go:build integration

package integration_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	_ "github.com/lib/pq"
)

var pg = dialect.Postgres{}

// getTestDB returns a PostgreSQL target for integration tests.
// It reads the DATABASE_URL environment variable and skips the test if not set.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

// setupTables recreates the bookkeeping tables using the default configuration.
func setupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := sqlstore.DefaultTableConfig()

	for _, stmt := range sqlstore.MigrationDown(pg, config) {
		if _, err := db.Exec(stmt); err != nil {
			t.Logf("warning: failed to drop table (may not exist): %v", err)
		}
	}
	for _, stmt := range sqlstore.MigrationUp(pg, config) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create tables: %v", err)
		}
	}
}

// cleanupTables empties the bookkeeping tables.
// Errors are logged but don't fail the test (cleanup is best-effort).
func cleanupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := sqlstore.DefaultTableConfig()
	for _, table := range []string{config.BatchTable, config.IDMapTable, config.CursorTable} {
		if _, err := db.Exec("TRUNCATE " + pg.Quote(table)); err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// teardownTables drops the bookkeeping tables.
// Errors are logged but don't fail the test.
func teardownTables(t *testing.T, db *sql.DB) {
	t.Helper()

	for _, stmt := range sqlstore.MigrationDown(pg, sqlstore.DefaultTableConfig()) {
		if _, err := db.Exec(stmt); err != nil {
			t.Logf("warning: failed to drop table: %v", err)
		}
	}
}

// execAll runs statements and fails the test on the first error.
func execAll(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}
