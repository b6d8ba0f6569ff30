// Package commands contains the etl command line.
package commands

import (
	"context"
	"io"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/config"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitMissingDependency = 2
)

// NewRootCmd returns the etl command with every subcommand attached to ec.
func NewRootCmd(ec *ExecutionContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "etl",
		Short: "Incremental migration of legacy tables into the target schema",
		Long: `etl copies legacy rows into the target schema table by table. Each run
resumes after the last committed key, so rerunning is always safe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ec.Prepare()
		},
	}

	rootCmd.AddCommand(
		newRunCmd(ec),
		newStatusCmd(ec),
		newInitCmd(ec),
		newTablesCmd(ec),
		newHistoryCmd(ec),
	)
	rootCmd.SetOut(ec.Stdout)
	rootCmd.SetErr(ec.Stderr)

	v := ec.Viper
	f := rootCmd.PersistentFlags()
	f.StringVar(&ec.Envfile, "envfile", config.DefaultEnvfile, ".env filename to load ENV vars from")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "text", "log format (text, json)")
	f.String("tables-dir", "", "directory of table descriptor files (default: built-in tables)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address while migrating, e.g. :9090")
	f.String("source-dialect", "sqlserver", "legacy database engine")
	f.String("source-dsn", "", "legacy database connection string")
	f.String("target-dialect", "sqlserver", "target database engine")
	f.String("target-dsn", "", "target database connection string")

	config.BindPFlag(v, "log.level", f.Lookup("log-level"))
	config.BindPFlag(v, "log.format", f.Lookup("log-format"))
	config.BindPFlag(v, "tables_dir", f.Lookup("tables-dir"))
	config.BindPFlag(v, "metrics_addr", f.Lookup("metrics-addr"))
	config.BindPFlag(v, "source.dialect", f.Lookup("source-dialect"))
	config.BindPFlag(v, "source.dsn", f.Lookup("source-dsn"))
	config.BindPFlag(v, "target.dialect", f.Lookup("target-dialect"))
	config.BindPFlag(v, "target.dsn", f.Lookup("target-dsn"))

	return rootCmd
}

// Execute runs the command line with args and returns the error of the
// command that ran.
func Execute(ctx context.Context, ec *ExecutionContext, args []string) error {
	rootCmd := NewRootCmd(ec)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to the process exit code. Missing upstream
// rows get their own code so wrappers can run the parent table and retry.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case etl.IsMissingDependency(err):
		return ExitMissingDependency
	default:
		return ExitFailure
	}
}

func newTableWriter(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetRowSeparator("")
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")

	return table
}
