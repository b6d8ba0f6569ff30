package sqlstore

import (
	"fmt"
	"strings"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
)

// TableConfig configures the bookkeeping table names.
type TableConfig struct {
	// CursorTable stores one high-water mark per migrated table.
	CursorTable string

	// IDMapTable stores legacy ID to new ID mappings per entity.
	IDMapTable string

	// BatchTable stores one audit record per loaded batch.
	BatchTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		CursorTable: "etl_cdc",
		IDMapTable:  "etl_id_map",
		BatchTable:  "etl_batches",
	}
}

// Validate checks that every table name is a safe identifier.
func (c TableConfig) Validate() error {
	for _, name := range []string{c.CursorTable, c.IDMapTable, c.BatchTable} {
		if err := dialect.ValidateIdentifier(name); err != nil {
			return fmt.Errorf("invalid bookkeeping table: %w", err)
		}
	}
	return nil
}

// MigrationUp returns the statements creating the bookkeeping tables. Each
// statement is safe to run again on an existing schema.
func MigrationUp(d dialect.Dialect, config TableConfig) []string {
	ty := d.Types()
	cursor := d.Quote(config.CursorTable)
	idMap := d.Quote(config.IDMapTable)
	batches := d.Quote(config.BatchTable)
	batchIndex := indexName(config.BatchTable, "table_loaded")

	cursorCols := fmt.Sprintf(`(
    table_name %s NOT NULL PRIMARY KEY,
    max_index %s NOT NULL DEFAULT 0,
    updated_at %s NOT NULL DEFAULT %s
)`, ty.Key, ty.BigInt, ty.Timestamp, ty.Now)

	idMapCols := fmt.Sprintf(`(
    entity %s NOT NULL,
    legacy_id %s NOT NULL,
    new_id %s NOT NULL,
    PRIMARY KEY (entity, legacy_id)
)`, ty.Key, ty.BigInt, ty.Key)

	batchCols := fmt.Sprintf(`(
    run_id %s NOT NULL,
    table_name %s NOT NULL,
    cursor_from %s NOT NULL,
    cursor_to %s NOT NULL,
    rows_extracted %s NOT NULL,
    rows_loaded %s NOT NULL,
    loaded_at %s NOT NULL DEFAULT %s
)`, ty.Key, ty.Key, ty.BigInt, ty.BigInt, ty.Int, ty.Int, ty.Timestamp, ty.Now)

	switch d.Name() {
	case "sqlserver":
		return []string{
			fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s %s", config.CursorTable, cursor, cursorCols),
			fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s %s", config.IDMapTable, idMap, idMapCols),
			fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s %s", config.BatchTable, batches, batchCols),
			fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s') CREATE INDEX %s ON %s (table_name, loaded_at)",
				batchIndex, d.Quote(batchIndex), batches),
		}
	case "mysql":
		// MySQL has no CREATE INDEX IF NOT EXISTS; the index is declared inline.
		batchCols = strings.TrimSuffix(batchCols, "\n)") + fmt.Sprintf(",\n    INDEX %s (table_name, loaded_at)\n)", d.Quote(batchIndex))
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", cursor, cursorCols),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", idMap, idMapCols),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", batches, batchCols),
		}
	default:
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", cursor, cursorCols),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", idMap, idMapCols),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", batches, batchCols),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (table_name, loaded_at)", d.Quote(batchIndex), batches),
		}
	}
}

// MigrationDown returns the statements dropping the bookkeeping tables.
func MigrationDown(d dialect.Dialect, config TableConfig) []string {
	tables := []string{config.BatchTable, config.IDMapTable, config.CursorTable}
	stmts := make([]string, len(tables))
	for i, table := range tables {
		if d.Name() == "sqlserver" {
			stmts[i] = fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s", table, d.Quote(table))
			continue
		}
		stmts[i] = fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Quote(table))
	}
	return stmts
}

// Script joins statements into one SQL script.
func Script(stmts []string) string {
	var b strings.Builder
	for _, stmt := range stmts {
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	return b.String()
}

func indexName(table, suffix string) string {
	_, name := dialect.SplitTable(table)
	return "idx_" + name + "_" + suffix
}
