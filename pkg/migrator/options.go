package migrator

import (
	"database/sql"
	"time"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/getpup/pupsourcing/es"
)

// Option configures a Migrator.
type Option func(*config)

// config holds the internal configuration for creating a Migrator.
type config struct {
	source         *sql.DB
	sourceDialect  dialect.Dialect
	target         *sql.DB
	targetDialect  dialect.Dialect
	catalog        *mapping.Catalog
	store          store.Store
	tableConfig    sqlstore.TableConfig
	batchSize      int
	maxBatches     int
	runID          string
	now            func() time.Time
	logger         es.Logger
	metricsEnabled *bool
}

// WithSource sets the legacy database rows are extracted from.
func WithSource(db *sql.DB, d dialect.Dialect) Option {
	return func(c *config) {
		c.source = db
		c.sourceDialect = d
	}
}

// WithTarget sets the database rows are loaded into. The bookkeeping tables
// live there too.
func WithTarget(db *sql.DB, d dialect.Dialect) Option {
	return func(c *config) {
		c.target = db
		c.targetDialect = d
	}
}

// WithCatalog sets the table descriptors (default: the built-in catalog).
func WithCatalog(catalog *mapping.Catalog) Option {
	return func(c *config) {
		c.catalog = catalog
	}
}

// WithStore sets a custom bookkeeping store.
// Use this if you want to provide your own implementation of store.Store.
// Loads are only atomic when the store writes through the transaction it is given.
func WithStore(s store.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithTableNames sets custom table names for the bookkeeping store.
// This allows you to use custom table names instead of the defaults:
//   - cursorTable: default is "etl_cdc"
//   - idMapTable: default is "etl_id_map"
//   - batchTable: default is "etl_batches"
func WithTableNames(cursorTable, idMapTable, batchTable string) Option {
	return func(c *config) {
		c.tableConfig = sqlstore.TableConfig{
			CursorTable: cursorTable,
			IDMapTable:  idMapTable,
			BatchTable:  batchTable,
		}
	}
}

// WithBatchSize overrides the descriptors' extraction row cap.
func WithBatchSize(size int) Option {
	return func(c *config) {
		c.batchSize = size
	}
}

// WithMaxBatches stops every table run after this many batches (default: 0, unlimited).
func WithMaxBatches(n int) Option {
	return func(c *config) {
		c.maxBatches = n
	}
}

// WithRunID sets the run identifier written to logs and the batch log (default: a random UUID).
func WithRunID(runID string) Option {
	return func(c *config) {
		c.runID = runID
	}
}

// WithClock sets the clock used for timestamp fill and the batch log (default: time.Now).
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithLogger sets the logger for observability.
func WithLogger(logger es.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetricsEnabled enables or disables Prometheus metrics collection.
func WithMetricsEnabled(enabled bool) Option {
	return func(c *config) {
		c.metricsEnabled = &enabled
	}
}
