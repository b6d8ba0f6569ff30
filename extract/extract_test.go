package extract

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSource(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "source.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE Locations (LocationID INTEGER PRIMARY KEY, Name TEXT, Logo BLOB, StatusID INTEGER)`,
		`INSERT INTO Locations VALUES (12, 'C', NULL, 1), (5, 'A', X'6869', 1), (9, 'B', NULL, 2)`,
		`CREATE TABLE SubCategory (SubCategoryID INTEGER PRIMARY KEY, CategoryID INTEGER)`,
		`CREATE TABLE Items (ItemID INTEGER PRIMARY KEY, SubCatID INTEGER, Name TEXT)`,
		`INSERT INTO SubCategory VALUES (1, 70), (2, 80)`,
		`INSERT INTO Items VALUES (1, 1, 'Oil'), (2, 2, 'Filter'), (3, NULL, 'Loose')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

func locations(batchSize int) *mapping.Table {
	return &mapping.Table{
		Name:   "locations",
		Source: mapping.Source{Table: "Locations", Key: "LocationID", BatchSize: batchSize},
		Target: mapping.Target{Table: "app.Locations", IDColumn: "LocationID", LegacyColumn: "OldLocationID"},
	}
}

func TestQuery(t *testing.T) {
	items := &mapping.Table{
		Source: mapping.Source{
			Table:  "dbo.Items",
			From:   "dbo.Items i LEFT JOIN dbo.SubCategory s ON s.SubCategoryID = i.SubCatID",
			Select: []string{"i.*", "s.CategoryID AS LegacyCategoryID"},
			Key:    "i.ItemID",
			Filter: "i.StatusID <> 3",
		},
	}

	tests := []struct {
		name    string
		dialect dialect.Dialect
		table   *mapping.Table
		want    string
	}{
		{
			name:    "sqlserver plain table",
			dialect: dialect.SQLServer{},
			table:   &mapping.Table{Source: mapping.Source{Table: "dbo.Locations", Key: "LocationID"}},
			want:    "SELECT TOP (100) * FROM [dbo].[Locations] WHERE [LocationID] > @p1 ORDER BY [LocationID]",
		},
		{
			name:    "sqlserver join with filter",
			dialect: dialect.SQLServer{},
			table:   items,
			want: "SELECT TOP (100) i.*, s.CategoryID AS LegacyCategoryID " +
				"FROM dbo.Items i LEFT JOIN dbo.SubCategory s ON s.SubCategoryID = i.SubCatID " +
				"WHERE [i].[ItemID] > @p1 AND (i.StatusID <> 3) ORDER BY [i].[ItemID]",
		},
		{
			name:    "postgres",
			dialect: dialect.Postgres{},
			table:   &mapping.Table{Source: mapping.Source{Table: "public.locations", Key: "id", Filter: "deleted = false"}},
			want:    `SELECT * FROM "public"."locations" WHERE "id" > $1 AND (deleted = false) ORDER BY "id" LIMIT 100`,
		},
		{
			name:    "mysql",
			dialect: dialect.MySQL{},
			table:   &mapping.Table{Source: mapping.Source{Table: "locations", Key: "id"}},
			want:    "SELECT * FROM `locations` WHERE `id` > ? ORDER BY `id` LIMIT 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Query(tt.dialect, tt.table, 100))
		})
	}
}

func TestNew_BatchSize(t *testing.T) {
	t.Run("descriptor default", func(t *testing.T) {
		e := New(Config{Dialect: dialect.SQLite{}, Table: locations(0)})
		assert.Equal(t, mapping.DefaultBatchSize, e.config.BatchSize)
	})

	t.Run("override", func(t *testing.T) {
		e := New(Config{Dialect: dialect.SQLite{}, Table: locations(50), BatchSize: 7})
		assert.Equal(t, 7, e.config.BatchSize)
		assert.Contains(t, e.query, "LIMIT 7")
	})

	t.Run("capped", func(t *testing.T) {
		e := New(Config{Dialect: dialect.SQLite{}, Table: locations(0), BatchSize: 50000})
		assert.Equal(t, mapping.MaxBatchSize, e.config.BatchSize)
	})
}

func TestExtract_PagesByKey(t *testing.T) {
	ctx := context.Background()
	e := New(Config{DB: openSource(t), Dialect: dialect.SQLite{}, Table: locations(2)})

	first, err := e.Extract(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, first.Len())
	assert.Equal(t, "Locations", first.Table)
	assert.Equal(t, "LocationID", first.KeyColumn)
	assert.Equal(t, []string{"LocationID", "Name", "Logo", "StatusID"}, first.Columns)
	assert.Equal(t, int64(0), first.Cursor)
	assert.Equal(t, int64(9), first.MaxKey)
	assert.Equal(t, 2, first.Extracted)
	assert.Equal(t, int64(5), first.Rows[0]["LocationID"])
	assert.Equal(t, "A", first.Rows[0]["Name"])
	assert.Equal(t, "hi", first.Rows[0]["Logo"])
	assert.Nil(t, first.Rows[1]["Logo"])
	assert.Equal(t, int64(9), first.Rows[1]["LocationID"])

	second, err := e.Extract(ctx, first.MaxKey)
	require.NoError(t, err)
	require.Equal(t, 1, second.Len())
	assert.Equal(t, int64(12), second.MaxKey)
	assert.Equal(t, int64(9), second.Cursor)

	drained, err := e.Extract(ctx, second.MaxKey)
	require.NoError(t, err)
	assert.True(t, drained.Empty())
	assert.Equal(t, int64(12), drained.MaxKey)
}

func TestExtract_Filter(t *testing.T) {
	table := locations(10)
	table.Source.Filter = "StatusID <> 2"
	e := New(Config{DB: openSource(t), Dialect: dialect.SQLite{}, Table: table})

	batch, err := e.Extract(context.Background(), 0)
	require.NoError(t, err)

	require.Equal(t, 2, batch.Len())
	assert.Equal(t, int64(5), batch.Rows[0]["LocationID"])
	assert.Equal(t, int64(12), batch.Rows[1]["LocationID"])
}

func TestExtract_JoinedSource(t *testing.T) {
	table := &mapping.Table{
		Name: "items",
		Source: mapping.Source{
			Table:  "Items",
			From:   "Items i LEFT JOIN SubCategory s ON s.SubCategoryID = i.SubCatID",
			Select: []string{"i.*", "s.CategoryID AS LegacyCategoryID"},
			Key:    "i.ItemID",
		},
		Target: mapping.Target{Table: "app.Items", IDColumn: "ItemID", MatchOn: []string{"Name"}},
	}
	e := New(Config{DB: openSource(t), Dialect: dialect.SQLite{}, Table: table})

	batch, err := e.Extract(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "ItemID", batch.KeyColumn)
	require.Equal(t, 2, batch.Len())
	assert.Equal(t, int64(80), batch.Rows[0]["LegacyCategoryID"])
	assert.Nil(t, batch.Rows[1]["LegacyCategoryID"])
	assert.Equal(t, int64(3), batch.MaxKey)
}

func TestExtract_Errors(t *testing.T) {
	t.Run("missing table", func(t *testing.T) {
		table := locations(10)
		table.Source.Table = "Nope"
		e := New(Config{DB: openSource(t), Dialect: dialect.SQLite{}, Table: table})

		_, err := e.Extract(context.Background(), 0)
		assert.ErrorContains(t, err, "extract Nope after 0")
	})

	t.Run("non-integer key", func(t *testing.T) {
		table := locations(10)
		table.Source.Key = "Name"
		e := New(Config{DB: openSource(t), Dialect: dialect.SQLite{}, Table: table})

		_, err := e.Extract(context.Background(), 0)
		assert.ErrorContains(t, err, "is not an integer")
	})

	t.Run("cancelled context", func(t *testing.T) {
		e := New(Config{DB: openSource(t), Dialect: dialect.SQLite{}, Table: locations(10)})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.Extract(ctx, 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestKeyColumn(t *testing.T) {
	key, err := keyColumn([]string{"locationid", "Name"}, "LocationID")
	require.NoError(t, err)
	assert.Equal(t, "locationid", key)

	_, err = keyColumn([]string{"Name"}, "LocationID")
	assert.Error(t, err)
}
