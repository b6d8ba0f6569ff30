package migrator

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/memory"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const descriptors = `
name: accounts
source: {table: Users, key: UserID, batch_size: 2}
target: {table: Accounts, id_column: AccountID, legacy_column: OldUserID}
columns:
  - {source: UserID, target: OldUserID, kind: int}
  - {source: Company, target: CompanyName, kind: display}
  - {source: ContactNo, kind: phone}
  - {source: StatusID, kind: int, default: 1}
  - {source: LastUpdatedDate, target: UpdatedAt, kind: time}
timestamps: {created: CreatedAt, updated: UpdatedAt}
---
name: locations
source: {table: Locations, key: LocationID, batch_size: 2}
target: {table: Branches, id_column: BranchID, legacy_column: OldLocationID}
columns:
  - {source: LocationID, target: OldLocationID, kind: int}
  - {source: UserID, target: OldUserID, kind: int}
  - {source: Name, kind: display}
references:
  - {column: OldUserID, entity: accounts, target: AccountID, required: true}
`

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	source *sql.DB
	target *sql.DB
	m      *Migrator
}

func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func exec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()

	source := openSQLite(t, filepath.Join(dir, "legacy.db"))
	exec(t, source,
		`CREATE TABLE Users (UserID INTEGER PRIMARY KEY, Company TEXT, ContactNo TEXT, StatusID INTEGER, LastUpdatedDate TEXT)`,
		`CREATE TABLE Locations (LocationID INTEGER PRIMARY KEY, UserID INTEGER, Name TEXT)`,
	)

	target := openSQLite(t, filepath.Join(dir, "target.db"))
	exec(t, target,
		`CREATE TABLE Accounts (AccountID INTEGER PRIMARY KEY AUTOINCREMENT, CompanyName TEXT NOT NULL,
			ContactNo TEXT, StatusID INTEGER, CreatedAt TIMESTAMP, UpdatedAt TIMESTAMP)`,
		`CREATE TABLE Branches (BranchID INTEGER PRIMARY KEY AUTOINCREMENT, Name TEXT, AccountID INTEGER NOT NULL)`,
	)
	require.NoError(t, RunMigrations(context.Background(), target, dialect.SQLite{}))

	tables, err := mapping.Parse([]byte(descriptors))
	require.NoError(t, err)
	catalog, err := mapping.NewCatalog(tables)
	require.NoError(t, err)

	m, err := New(append([]Option{
		WithSource(source, dialect.SQLite{}),
		WithTarget(target, dialect.SQLite{}),
		WithCatalog(catalog),
		WithClock(func() time.Time { return now }),
		WithRunID("run-1"),
		WithMetricsEnabled(false),
	}, opts...)...)
	require.NoError(t, err)

	return &fixture{source: source, target: target, m: m}
}

func (f *fixture) count(t *testing.T, query string) int {
	t.Helper()
	var n int
	require.NoError(t, f.target.QueryRow(query).Scan(&n))
	return n
}

func (f *fixture) cursor(t *testing.T, table string) int64 {
	t.Helper()
	var cursor int64
	err := f.target.QueryRow(`SELECT max_index FROM etl_cdc WHERE table_name = ?`, table).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	}
	require.NoError(t, err)
	return cursor
}

func TestNew_Validation(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"missing source", []Option{WithTarget(db, dialect.SQLite{})}, "source database is required"},
		{"missing target", []Option{WithSource(db, dialect.SQLite{})}, "target database is required"},
		{"batch size", []Option{WithSource(db, dialect.SQLite{}), WithTarget(db, dialect.SQLite{}), WithBatchSize(20000)}, "batch size"},
		{"max batches", []Option{WithSource(db, dialect.SQLite{}), WithTarget(db, dialect.SQLite{}), WithMaxBatches(-1)}, "max batches"},
		{"table names", []Option{WithSource(db, dialect.SQLite{}), WithTarget(db, dialect.SQLite{}), WithTableNames("etl cdc", "m", "b")}, "invalid bookkeeping table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	m, err := New(WithSource(db, dialect.SQLServer{}), WithTarget(db, dialect.SQLServer{}))
	require.NoError(t, err)

	assert.NotEmpty(t, m.RunID())
	assert.Contains(t, m.Catalog().Names(), "locations")

	p, err := m.Pipeline("dbo.Locations")
	require.NoError(t, err)
	assert.Equal(t, m.RunID(), p.RunID())

	_, err = m.Pipeline("nope")
	assert.ErrorIs(t, err, etl.ErrTableNotFound)
}

func TestRun_MigratesNewRowsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	exec(t, f.source,
		`INSERT INTO Users VALUES (12, ' Garage C ', '0512345678', NULL, 'May 29 2020 8:39AM'), (5, 'Garage A', '00', 2, NULL), (9, NULL, '971501234567', 1, NULL)`,
	)

	summaries, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)

	require.Len(t, summaries, 1)
	assert.Equal(t, etl.Summary{
		RunID: "run-1", Table: "accounts", Batches: 2, RowsLoaded: 3, StartCursor: 0, FinalCursor: 12,
		Duration: summaries[0].Duration,
	}, summaries[0])
	assert.Equal(t, int64(12), f.cursor(t, "Users"))

	var name, phone string
	var status int64
	require.NoError(t, f.target.QueryRow(
		`SELECT CompanyName, ContactNo, StatusID FROM Accounts WHERE OldUserID = 12`).Scan(&name, &phone, &status))
	assert.Equal(t, "Garage C", name)
	assert.Equal(t, "+966512345678", phone)
	assert.Equal(t, int64(1), status)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM Accounts WHERE OldUserID = 5 AND ContactNo IS NULL AND StatusID = 2`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM Accounts WHERE OldUserID = 9 AND CompanyName = '' AND ContactNo = '+971501234567'`))

	again, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, 0, again[0].Batches)
	assert.Equal(t, int64(12), again[0].FinalCursor)
	assert.Equal(t, 3, f.count(t, `SELECT COUNT(*) FROM Accounts`))
	assert.Equal(t, 2, f.count(t, `SELECT COUNT(*) FROM etl_batches`))

	exec(t, f.source, `INSERT INTO Users VALUES (20, 'Garage D', NULL, 1, NULL)`)
	later, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)
	assert.Equal(t, int64(12), later[0].StartCursor)
	assert.Equal(t, int64(20), f.cursor(t, "Users"))
}

func TestRun_UnmigratedParentRejectsBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	exec(t, f.source,
		`INSERT INTO Users VALUES (5, 'Garage A', NULL, 1, NULL)`,
		`INSERT INTO Locations VALUES (1, 5, 'Main'), (2, 40, 'Second')`,
	)

	_, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)

	summaries, err := f.m.Run(ctx, "locations")
	require.Error(t, err)
	assert.True(t, etl.IsMissingDependency(err))
	var depErr *etl.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "accounts", depErr.Upstream)
	assert.Equal(t, []int64{40}, depErr.Missing)
	assert.Equal(t, 0, summaries[0].Batches)

	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM Branches`))
	assert.Equal(t, int64(0), f.cursor(t, "Locations"))

	exec(t, f.source, `INSERT INTO Users VALUES (40, 'Garage B', NULL, 1, NULL)`)
	_, err = f.m.Run(ctx, "accounts", "locations")
	require.NoError(t, err)

	assert.Equal(t, 2, f.count(t, `SELECT COUNT(*) FROM Branches`))
	assert.Equal(t, 1, f.count(t, `
		SELECT COUNT(*) FROM Branches b JOIN Accounts a ON a.AccountID = b.AccountID
		WHERE b.OldLocationID = 2 AND a.OldUserID = 40`))
	assert.Equal(t, int64(2), f.cursor(t, "Locations"))
}

func TestRun_StopsAtFirstFailedTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	exec(t, f.source,
		`INSERT INTO Users VALUES (5, 'Garage A', NULL, 1, NULL)`,
		`INSERT INTO Locations VALUES (1, 5, 'Main')`,
	)

	summaries, err := f.m.Run(ctx, "locations", "accounts")

	assert.True(t, etl.IsMissingDependency(err))
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(0), f.cursor(t, "Users"))
}

func TestRun_UnknownTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.m.Run(context.Background(), "accounts", "nope")

	assert.ErrorIs(t, err, etl.ErrTableNotFound)
	assert.Equal(t, int64(0), f.cursor(t, "Users"))
}

func TestRun_MaxBatchesAndBatchSize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithBatchSize(1), WithMaxBatches(2))
	exec(t, f.source, `INSERT INTO Users (UserID, Company) VALUES (1, 'a'), (2, 'b'), (3, 'c')`)

	summaries, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)

	assert.Equal(t, 2, summaries[0].Batches)
	assert.Equal(t, int64(2), f.cursor(t, "Users"))
}

func TestStatusAndHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	exec(t, f.source, `INSERT INTO Users (UserID, Company) VALUES (1, 'a'), (2, 'b'), (3, 'c')`)
	_, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)

	cursors, err := f.m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, cursors, 1)
	assert.Equal(t, "Users", cursors[0].Table)
	assert.Equal(t, int64(3), cursors[0].MaxIndex)

	history, err := f.m.History(ctx, "accounts", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].CursorTo)
	assert.Equal(t, int64(2), history[1].CursorTo)
	assert.Equal(t, "run-1", history[0].RunID)

	_, err = f.m.History(ctx, "nope", 0)
	assert.ErrorIs(t, err, etl.ErrTableNotFound)
}

func TestWithStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.AdvanceCursor(ctx, nil, "Users", 2))
	f := newFixture(t, WithStore(s))
	exec(t, f.source, `INSERT INTO Users (UserID, Company) VALUES (1, 'a'), (2, 'b'), (3, 'c')`)

	summaries, err := f.m.Run(ctx, "accounts")
	require.NoError(t, err)

	assert.Equal(t, int64(2), summaries[0].StartCursor)
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM Accounts`))
	cursor, err := s.GetCursor(ctx, nil, "Users")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cursor)
}

func TestRunMigrationsWithTableNames(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t, filepath.Join(t.TempDir(), "target.db"))

	require.NoError(t, RunMigrationsWithTableNames(ctx, db, dialect.SQLite{}, sqlstoreConfig("cdc", "id_map", "batches")))
	require.NoError(t, RunMigrationsWithTableNames(ctx, db, dialect.SQLite{}, sqlstoreConfig("cdc", "id_map", "batches")))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('cdc', 'id_map', 'batches')`).Scan(&n))
	assert.Equal(t, 3, n)

	assert.Error(t, RunMigrationsWithTableNames(ctx, db, dialect.SQLite{}, sqlstoreConfig("", "id_map", "batches")))
}

func sqlstoreConfig(cursor, idMap, batches string) sqlstore.TableConfig {
	return sqlstore.TableConfig{CursorTable: cursor, IDMapTable: idMap, BatchTable: batches}
}
