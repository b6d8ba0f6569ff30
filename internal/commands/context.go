package commands

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/GARAGE-POS/data-migration-etl-scripts/config"
	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/internal/logging"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// ExecutionContext carries the state shared by every command of one
// invocation. Prepare fills Config and Logger from flags, environment and the
// envfile.
type ExecutionContext struct {
	// Viper holds the flag bindings of this invocation.
	Viper *viper.Viper

	// Config is the resolved configuration.
	Config *config.Config

	// Logger receives the migration logs.
	Logger *logging.Logger

	// Fs is the filesystem descriptor directories are read from.
	Fs afero.Fs

	// Envfile is the .env file loaded before the configuration is read.
	Envfile string

	Stdout io.Writer
	Stderr io.Writer
}

// NewExecutionContext returns an ExecutionContext on the OS filesystem and
// standard streams.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Viper:   viper.New(),
		Fs:      afero.NewOsFs(),
		Envfile: config.DefaultEnvfile,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Prepare loads the envfile, the configuration and the logger.
func (ec *ExecutionContext) Prepare() error {
	if err := config.LoadEnvfile(ec.Envfile); err != nil {
		return err
	}

	cfg, err := config.Load(ec.Viper)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	ec.Config = cfg

	logger, err := logging.New(ec.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return errors.Wrap(err, "cannot set up logging")
	}
	ec.Logger = logger
	return nil
}

// Catalog returns the descriptors from the configured directory, or the
// built-in ones when none is configured.
func (ec *ExecutionContext) Catalog() (*mapping.Catalog, error) {
	if ec.Config.TablesDir == "" {
		return mapping.Builtin()
	}
	catalog, err := mapping.Load(ec.Fs, ec.Config.TablesDir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load table descriptors from %s", ec.Config.TablesDir)
	}
	return catalog, nil
}

// OpenSource connects to the legacy database.
func (ec *ExecutionContext) OpenSource(ctx context.Context) (*sql.DB, dialect.Dialect, error) {
	return open(ctx, "source", ec.Config.Source)
}

// OpenTarget connects to the target database.
func (ec *ExecutionContext) OpenTarget(ctx context.Context) (*sql.DB, dialect.Dialect, error) {
	return open(ctx, "target", ec.Config.Target)
}

func open(ctx context.Context, name string, cfg config.DBConfig) (*sql.DB, dialect.Dialect, error) {
	dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s database", name)
	}
	db, d, err := dialect.Open(ctx, cfg.Dialect, dsn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot connect to %s database", name)
	}
	return db, d, nil
}
