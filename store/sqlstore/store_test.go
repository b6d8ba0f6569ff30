package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*sql.DB, *Store) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(dialect.SQLite{})
	require.NoError(t, s.Migrate(context.Background(), db))
	return db, s
}

func TestNewWithConfig(t *testing.T) {
	t.Run("default table names", func(t *testing.T) {
		s := New(dialect.SQLite{})

		assert.Equal(t, "etl_cdc", s.cursorTable)
		assert.Equal(t, "etl_id_map", s.idMapTable)
		assert.Equal(t, "etl_batches", s.batchTable)
	})

	t.Run("custom table names are used", func(t *testing.T) {
		s := NewWithConfig(dialect.SQLServer{}, TableConfig{
			CursorTable: "app.EtlCDC",
			IDMapTable:  "app.EtlIDMap",
			BatchTable:  "app.EtlBatches",
		})

		assert.Equal(t, "app.EtlCDC", s.cursorTable)
		assert.Equal(t, "app.EtlIDMap", s.idMapTable)
		assert.Equal(t, "app.EtlBatches", s.batchTable)
	})
}

func TestTableConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultTableConfig().Validate())

	config := DefaultTableConfig()
	config.IDMapTable = "etl id map"
	assert.Error(t, config.Validate())
}

func TestMigrate_Idempotent(t *testing.T) {
	db, s := openTestDB(t)

	require.NoError(t, s.Migrate(context.Background(), db))
}

func TestCursor(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	cursor, err := s.GetCursor(ctx, db, "dbo.Locations")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)

	require.NoError(t, s.AdvanceCursor(ctx, db, "dbo.Locations", 9))
	require.NoError(t, s.AdvanceCursor(ctx, db, "dbo.Locations", 12))
	require.NoError(t, s.AdvanceCursor(ctx, db, "dbo.Bay", 4))

	cursor, err = s.GetCursor(ctx, db, "dbo.Locations")
	require.NoError(t, err)
	assert.Equal(t, int64(12), cursor)

	cursors, err := s.ListCursors(ctx, db)
	require.NoError(t, err)
	require.Len(t, cursors, 2)
	assert.Equal(t, "dbo.Bay", cursors[0].Table)
	assert.Equal(t, int64(4), cursors[0].MaxIndex)
	assert.Equal(t, "dbo.Locations", cursors[1].Table)
	assert.WithinDuration(t, time.Now(), cursors[1].UpdatedAt, time.Minute)
}

func TestCursor_RolledBackWithTransaction(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.AdvanceCursor(ctx, tx, "dbo.Locations", 50))
	require.NoError(t, tx.Rollback())

	cursor, err := s.GetCursor(ctx, db, "dbo.Locations")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)
}

func TestIDMap_RoundTrip(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	err := s.RecordIDs(ctx, db, "customers", map[int64]any{
		1: "4f1c2f9e-6a55-4d7f-9f6b-1f0a3c1e2b7d",
		2: int64(200),
		3: 300,
	})
	require.NoError(t, err)

	found, err := s.LookupIDs(ctx, db, "customers", []int64{1, 2, 3, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, map[int64]any{
		1: "4f1c2f9e-6a55-4d7f-9f6b-1f0a3c1e2b7d",
		2: int64(200),
		3: int64(300),
	}, found)

	other, err := s.LookupIDs(ctx, db, "accounts", []int64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestIDMap_ReplacesExisting(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.RecordIDs(ctx, db, "units", map[int64]any{5: 50}))
	require.NoError(t, s.RecordIDs(ctx, db, "units", map[int64]any{5: 51, 6: 60}))

	found, err := s.LookupIDs(ctx, db, "units", []int64{5, 6})
	require.NoError(t, err)
	assert.Equal(t, map[int64]any{5: int64(51), 6: int64(60)}, found)
}

func TestIDMap_ChunksLargeSets(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	ids := make(map[int64]any, 2500)
	legacy := make([]int64, 0, 2500)
	for i := int64(1); i <= 2500; i++ {
		ids[i] = i + 100000
		legacy = append(legacy, i)
	}
	require.NoError(t, s.RecordIDs(ctx, db, "items", ids))

	found, err := s.LookupIDs(ctx, db, "items", legacy)
	require.NoError(t, err)
	assert.Len(t, found, 2500)
	assert.Equal(t, int64(102500), found[2500])
}

func TestIDMap_RejectsInvalidIDs(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	err := s.RecordIDs(ctx, db, "units", map[int64]any{1: nil})
	assert.ErrorIs(t, err, store.ErrInvalidNewID)

	_, err = s.LookupIDs(ctx, db, "", []int64{1})
	assert.ErrorIs(t, err, store.ErrEmptyEntity)
}

func TestBatchLog(t *testing.T) {
	db, s := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 3, 13, 28, 20, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.RecordBatch(ctx, db, etl.BatchRecord{
			RunID:         "run-1",
			Table:         "dbo.Locations",
			CursorFrom:    (i - 1) * 100,
			CursorTo:      i * 100,
			RowsExtracted: 100,
			RowsLoaded:    int(90 + i),
			LoadedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.RecordBatch(ctx, db, etl.BatchRecord{RunID: "run-1", Table: "dbo.Bay", CursorTo: 7}))

	records, err := s.ListBatches(ctx, db, "dbo.Locations", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(300), records[0].CursorTo)
	assert.Equal(t, 93, records[0].RowsLoaded)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.True(t, base.Add(3*time.Minute).Equal(records[0].LoadedAt))
	assert.Equal(t, int64(200), records[1].CursorTo)

	all, err := s.ListBatches(ctx, db, "dbo.Locations", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bays, err := s.ListBatches(ctx, db, "dbo.Bay", 0)
	require.NoError(t, err)
	require.Len(t, bays, 1)
	assert.False(t, bays[0].LoadedAt.IsZero())
}

func TestErrorsAreClassified(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	// No bookkeeping tables: the failure is neither integrity nor transient.
	_, err = New(dialect.SQLite{}).GetCursor(context.Background(), db, "dbo.Locations")
	require.Error(t, err)
	assert.NotErrorIs(t, err, etl.ErrDataIntegrity)
	assert.NotErrorIs(t, err, etl.ErrTransientIO)
}
