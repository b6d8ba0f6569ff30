// Package config assembles the command line configuration from flags,
// environment variables and an optional .env file.
//
// Every key can be set through the environment with the ETL_ prefix and dots
// replaced by underscores, e.g. source.dsn is read from ETL_SOURCE_DSN.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "ETL"

// EnvReplacer maps configuration keys to environment variable names.
var EnvReplacer = strings.NewReplacer(".", "_", "-", "_")

// DefaultEnvfile is loaded when present; other envfiles must exist.
const DefaultEnvfile = ".env"

// DBConfig describes one database connection. DSN wins over the parts; the
// parts only build SQL Server connection strings.
type DBConfig struct {
	Dialect  string
	DSN      string
	Server   string
	Port     int
	Database string
	User     string
	Password string
	Encrypt  string
}

// Config is the resolved command line configuration.
type Config struct {
	Source      DBConfig
	Target      DBConfig
	Tables      sqlstore.TableConfig
	TablesDir   string
	MetricsAddr string
	LogLevel    string
	LogFormat   string
	BatchSize   int
	MaxBatches  int
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	tables := sqlstore.DefaultTableConfig()

	v.SetDefault("source.dialect", "sqlserver")
	v.SetDefault("target.dialect", "sqlserver")
	v.SetDefault("source.encrypt", "true")
	v.SetDefault("target.encrypt", "true")
	v.SetDefault("tables.cursor", tables.CursorTable)
	v.SetDefault("tables.id_map", tables.IDMapTable)
	v.SetDefault("tables.batches", tables.BatchTable)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindPFlag binds a flag to a key and documents the matching environment
// variable in the flag usage.
func BindPFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		fmt.Fprintf(os.Stderr, "viper failed binding pflag: %v with error: %v \n", key, err)
	}
	f.Usage = f.Usage + fmt.Sprintf(` (env "%s")`, EnvName(key))
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return strings.ToUpper(EnvPrefix + "_" + EnvReplacer.Replace(key))
}

// LoadEnvfile loads variables from path into the environment. Variables that
// are already set win. A missing file is only an error when it is not the
// default one.
func LoadEnvfile(path string) error {
	err := gotenv.Load(path)
	if err == nil || (path == DefaultEnvfile && os.IsNotExist(err)) {
		return nil
	}
	return fmt.Errorf("failed to load envfile %s: %w", path, err)
}

// Load reads the configuration from v, whose flags are already bound, and
// the environment.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvReplacer)
	v.AutomaticEnv()
	SetDefaults(v)

	cfg := &Config{
		Source: dbConfig(v, "source"),
		Target: dbConfig(v, "target"),
		Tables: sqlstore.TableConfig{
			CursorTable: v.GetString("tables.cursor"),
			IDMapTable:  v.GetString("tables.id_map"),
			BatchTable:  v.GetString("tables.batches"),
		},
		TablesDir:   v.GetString("tables_dir"),
		MetricsAddr: v.GetString("metrics_addr"),
		LogLevel:    v.GetString("log.level"),
		LogFormat:   v.GetString("log.format"),
		BatchSize:   v.GetInt("batch_size"),
		MaxBatches:  v.GetInt("max_batches"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func dbConfig(v *viper.Viper, prefix string) DBConfig {
	return DBConfig{
		Dialect:  v.GetString(prefix + ".dialect"),
		DSN:      v.GetString(prefix + ".dsn"),
		Server:   v.GetString(prefix + ".server"),
		Port:     v.GetInt(prefix + ".port"),
		Database: v.GetString(prefix + ".database"),
		User:     v.GetString(prefix + ".user"),
		Password: v.GetString(prefix + ".password"),
		Encrypt:  v.GetString(prefix + ".encrypt"),
	}
}

// Validate reports every invalid setting. Missing connections are not
// errors here: commands that need a database check with ConnectionString.
func (c *Config) Validate() error {
	var result *multierror.Error

	for _, db := range []struct {
		name string
		cfg  DBConfig
	}{{"source", c.Source}, {"target", c.Target}} {
		if _, err := dialect.Get(db.cfg.Dialect); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", db.name, err))
		}
		if db.cfg.Port < 0 || db.cfg.Port > 65535 {
			result = multierror.Append(result, fmt.Errorf("%s: invalid port %d", db.name, db.cfg.Port))
		}
	}
	if err := c.Tables.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.BatchSize < 0 || c.BatchSize > mapping.MaxBatchSize {
		result = multierror.Append(result, fmt.Errorf("batch size must be between 1 and %d (got %d)", mapping.MaxBatchSize, c.BatchSize))
	}
	if c.MaxBatches < 0 {
		result = multierror.Append(result, fmt.Errorf("max batches cannot be negative (got %d)", c.MaxBatches))
	}

	return result.ErrorOrNil()
}

// ConnectionString returns the DSN, building a SQL Server URL from the parts
// when no DSN is set.
func (c DBConfig) ConnectionString() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	d, err := dialect.Get(c.Dialect)
	if err != nil {
		return "", err
	}
	if d.Name() != "sqlserver" {
		return "", fmt.Errorf("%s connections need a dsn", d.Name())
	}
	if c.Server == "" || c.Database == "" {
		return "", fmt.Errorf("sqlserver connections need a dsn or a server and database")
	}

	host := c.Server
	if c.Port > 0 {
		host = net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
	}
	query := url.Values{}
	query.Set("database", c.Database)
	if c.Encrypt != "" {
		query.Set("encrypt", c.Encrypt)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     host,
		RawQuery: query.Encode(),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String(), nil
}
