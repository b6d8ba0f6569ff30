// Package migrator is the entry point for running table migrations from Go
// code. It assembles the extract, transform, resolve and load stages of every
// table from its descriptor.
//
// Example:
//
//	m, err := migrator.New(
//	    migrator.WithSource(legacyDB, dialect.SQLServer{}),
//	    migrator.WithTarget(targetDB, dialect.SQLServer{}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summaries, err := m.Run(ctx, "accounts", "locations")
package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/extract"
	"github.com/GARAGE-POS/data-migration-etl-scripts/load"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/pipeline"
	"github.com/GARAGE-POS/data-migration-etl-scripts/resolve"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/GARAGE-POS/data-migration-etl-scripts/transform"
	"github.com/google/uuid"
)

// Migrator builds and runs table pipelines.
type Migrator struct {
	config *config
}

// New creates a new Migrator with the given options.
//
// Required options:
//   - WithSource: legacy database and dialect
//   - WithTarget: target database and dialect
//
// Optional configuration (with defaults):
//   - WithCatalog: table descriptors (default: built-in catalog)
//   - WithStore: bookkeeping store (default: SQL store on the target)
//   - WithTableNames: bookkeeping table names (default: etl_cdc, etl_id_map, etl_batches)
//   - WithBatchSize: extraction row cap (default: per descriptor)
//   - WithMaxBatches: batches per table run (default: unlimited)
//   - WithRunID: run identifier (default: random UUID)
//   - WithClock: clock (default: time.Now)
//   - WithLogger: logger for observability (default: nil)
//   - WithMetricsEnabled: enable Prometheus metrics (default: true)
//
// Returns an error if any required option is missing.
func New(opts ...Option) (*Migrator, error) {
	cfg := &config{
		tableConfig: sqlstore.DefaultTableConfig(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.source == nil || cfg.sourceDialect == nil {
		return nil, fmt.Errorf("source database is required: use WithSource option")
	}
	if cfg.target == nil || cfg.targetDialect == nil {
		return nil, fmt.Errorf("target database is required: use WithTarget option")
	}
	if cfg.batchSize < 0 || cfg.batchSize > mapping.MaxBatchSize {
		return nil, fmt.Errorf("batch size must be between 1 and %d (got %d)", mapping.MaxBatchSize, cfg.batchSize)
	}
	if cfg.maxBatches < 0 {
		return nil, fmt.Errorf("max batches cannot be negative (got %d)", cfg.maxBatches)
	}

	if cfg.catalog == nil {
		catalog, err := mapping.Builtin()
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in tables: %w", err)
		}
		cfg.catalog = catalog
	}

	if cfg.store == nil {
		if err := cfg.tableConfig.Validate(); err != nil {
			return nil, err
		}
		cfg.store = sqlstore.NewWithConfig(cfg.targetDialect, cfg.tableConfig)
	}

	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}

	return &Migrator{config: cfg}, nil
}

// Catalog returns the table descriptors.
func (m *Migrator) Catalog() *mapping.Catalog {
	return m.config.catalog
}

// RunID returns the identifier shared by every table run of this Migrator.
func (m *Migrator) RunID() string {
	return m.config.runID
}

// Pipeline assembles the migration of one table.
func (m *Migrator) Pipeline(name string) (*pipeline.Pipeline, error) {
	table, err := m.config.catalog.Table(name)
	if err != nil {
		return nil, err
	}
	return m.pipeline(table), nil
}

func (m *Migrator) pipeline(table *mapping.Table) *pipeline.Pipeline {
	cfg := m.config
	utc := func() time.Time { return cfg.now().UTC() }

	return pipeline.New(pipeline.Config{
		Table:   table,
		DB:      cfg.target,
		Cursors: cfg.store,
		Extractor: extract.New(extract.Config{
			DB:        cfg.source,
			Dialect:   cfg.sourceDialect,
			Table:     table,
			BatchSize: cfg.batchSize,
			Logger:    cfg.logger,
		}),
		Transformer: transform.New(transform.Config{
			Table:  table,
			Now:    utc,
			Logger: cfg.logger,
		}),
		Resolver: resolve.New(resolve.Config{
			DB:      cfg.target,
			Dialect: cfg.targetDialect,
			Table:   table,
			Catalog: cfg.catalog,
			IDs:     cfg.store,
			Logger:  cfg.logger,
		}),
		Loader: load.New(load.Config{
			DB:      cfg.target,
			Dialect: cfg.targetDialect,
			Table:   table,
			Store:   cfg.store,
			RunID:   cfg.runID,
			Now:     utc,
			Logger:  cfg.logger,
		}),
		MaxBatches:     cfg.maxBatches,
		RunID:          cfg.runID,
		Logger:         cfg.logger,
		MetricsEnabled: cfg.metricsEnabled,
	})
}

// Run migrates the named tables one after the other, in the given order, and
// stops at the first failure. The summaries of the finished runs are returned
// along with the error.
func (m *Migrator) Run(ctx context.Context, names ...string) ([]etl.Summary, error) {
	tables, err := m.config.catalog.Select(names...)
	if err != nil {
		return nil, err
	}

	migrators := make([]etl.Migrator, len(tables))
	for i, table := range tables {
		migrators[i] = m.pipeline(table)
	}
	return pipeline.NewRunner(migrators...).Run(ctx)
}

// Status returns every stored cursor.
func (m *Migrator) Status(ctx context.Context) ([]etl.Cursor, error) {
	return m.config.store.ListCursors(ctx, m.config.target)
}

// History returns the most recent batch log entries of a table, newest first.
func (m *Migrator) History(ctx context.Context, name string, limit int) ([]etl.BatchRecord, error) {
	table, err := m.config.catalog.Table(name)
	if err != nil {
		return nil, err
	}
	return m.config.store.ListBatches(ctx, m.config.target, table.CursorKey(), limit)
}

// RunMigrations creates the bookkeeping tables on the target when missing.
//
// This should typically be run once before the first migration.
//
// To run migrations with custom table names, use RunMigrationsWithTableNames.
func RunMigrations(ctx context.Context, db *sql.DB, d dialect.Dialect) error {
	return RunMigrationsWithTableNames(ctx, db, d, sqlstore.DefaultTableConfig())
}

// RunMigrationsWithTableNames creates the bookkeeping tables with custom names.
// Use this if you specified custom table names via WithTableNames option.
func RunMigrationsWithTableNames(ctx context.Context, db *sql.DB, d dialect.Dialect, config sqlstore.TableConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	return sqlstore.NewWithConfig(d, config).Migrate(ctx, db)
}
