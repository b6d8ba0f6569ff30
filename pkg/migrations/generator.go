package migrations

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/spf13/afero"
)

// Config configures migration generation for the bookkeeping tables.
type Config struct {
	// Fs is the filesystem the migration file is written to. Defaults to the OS filesystem.
	Fs afero.Fs

	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// Dialect names the target engine: sqlserver, postgres, mysql or sqlite.
	Dialect string

	// Tables names the bookkeeping tables.
	Tables sqlstore.TableConfig

	// Down also writes a <name>.down.sql file dropping the tables.
	Down bool
}

// DefaultConfig returns the default configuration for bookkeeping migrations.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		Fs:             afero.NewOsFs(),
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_etl_bookkeeping.sql", timestamp),
		Dialect:        "sqlserver",
		Tables:         sqlstore.DefaultTableConfig(),
	}
}

// Generate renders the migration for config.Dialect and writes it to
// OutputFolder/OutputFilename.
func Generate(config *Config) error {
	d, err := dialect.Get(config.Dialect)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Tables.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if config.OutputFilename == "" {
		return fmt.Errorf("invalid configuration: output filename cannot be empty")
	}

	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	up := render(d, "up", sqlstore.MigrationUp(d, config.Tables))
	if err := afero.WriteFile(fs, outputPath, []byte(up), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	if config.Down {
		downPath := DownFilename(outputPath)
		down := render(d, "down", sqlstore.MigrationDown(d, config.Tables))
		if err := afero.WriteFile(fs, downPath, []byte(down), 0o600); err != nil {
			return fmt.Errorf("failed to write down migration file: %w", err)
		}
	}

	return nil
}

// DownFilename returns the down migration path paired with an up migration path.
func DownFilename(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".down" + ext
}

func render(d dialect.Dialect, direction string, stmts []string) string {
	header := fmt.Sprintf(`-- ETL Bookkeeping Migration (%s)
-- Generated: %s
-- Database: %s
--
-- Cursor table: one high-water mark per migrated legacy table.
-- ID map table: legacy ID to new ID per migrated entity.
-- Batch table: one audit row per committed batch.

`, direction, time.Now().Format(time.RFC3339), d.Name())
	return header + sqlstore.Script(stmts)
}
