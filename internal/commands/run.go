package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/config"
	"github.com/GARAGE-POS/data-migration-etl-scripts/metrics"
	"github.com/GARAGE-POS/data-migration-etl-scripts/pkg/migrator"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRunCmd(ec *ExecutionContext) *cobra.Command {
	opts := &runOptions{EC: ec}

	runCmd := &cobra.Command{
		Use:   "run [table...]",
		Short: "Migrate new legacy rows of the given tables, in the given order",
		Example: `  # Migrate accounts, then the locations that reference them:
  etl run accounts locations

  # Migrate every table in catalog order:
  etl run --all

  # Move at most 5 batches of 500 rows:
  etl run items --batch-size 500 --max-batches 5`,
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All && len(args) > 0 {
				return errors.New("--all cannot be combined with table names")
			}
			if !opts.All && len(args) == 0 {
				return errors.New("requires at least one table name or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Tables = args
			return opts.run(cmd.Context())
		},
	}

	f := runCmd.Flags()
	f.BoolVar(&opts.All, "all", false, "migrate every table in catalog order")
	f.StringVar(&opts.RunID, "run-id", "", "run identifier for logs and the batch log (default: random)")
	f.Int("batch-size", 0, "rows per batch (default: per table)")
	f.Int("max-batches", 0, "stop each table after this many batches (default: until drained)")

	config.BindPFlag(ec.Viper, "batch_size", f.Lookup("batch-size"))
	config.BindPFlag(ec.Viper, "max_batches", f.Lookup("max-batches"))

	return runCmd
}

type runOptions struct {
	EC *ExecutionContext

	Tables []string
	All    bool
	RunID  string
}

func (o *runOptions) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := o.EC.Config
	catalog, err := o.EC.Catalog()
	if err != nil {
		return err
	}
	if o.All {
		o.Tables = catalog.Names()
	}
	if _, err := catalog.Select(o.Tables...); err != nil {
		return err
	}

	source, sourceDialect, err := o.EC.OpenSource(ctx)
	if err != nil {
		return err
	}
	defer source.Close()

	target, targetDialect, err := o.EC.OpenTarget(ctx)
	if err != nil {
		return err
	}
	defer target.Close()

	m, err := migrator.New(
		migrator.WithSource(source, sourceDialect),
		migrator.WithTarget(target, targetDialect),
		migrator.WithCatalog(catalog),
		migrator.WithTableNames(cfg.Tables.CursorTable, cfg.Tables.IDMapTable, cfg.Tables.BatchTable),
		migrator.WithBatchSize(cfg.BatchSize),
		migrator.WithMaxBatches(cfg.MaxBatches),
		migrator.WithRunID(o.RunID),
		migrator.WithLogger(o.EC.Logger),
	)
	if err != nil {
		return errors.Wrap(err, "cannot create migrator")
	}

	if cfg.MetricsAddr != "" {
		server, err := metrics.Serve(ctx, cfg.MetricsAddr, nil)
		if err != nil {
			return errors.Wrap(err, "cannot serve metrics")
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Close(closeCtx); err != nil {
				o.EC.Logger.Error(ctx, "metrics server stopped with error", "error", err)
			}
		}()
		o.EC.Logger.Info(ctx, "serving metrics", "addr", server.Addr())
	}

	summaries, err := m.Run(ctx, o.Tables...)
	printSummaries(o.EC, summaries)
	if err != nil {
		return errors.Wrapf(err, "run %s", m.RunID())
	}
	return nil
}

func printSummaries(ec *ExecutionContext, summaries []etl.Summary) {
	if len(summaries) == 0 {
		return
	}
	table := newTableWriter(ec.Stdout)
	table.SetHeader([]string{"TABLE", "BATCHES", "LOADED", "SKIPPED", "FROM", "TO", "DURATION"})
	for _, s := range summaries {
		table.Append([]string{
			s.Table,
			fmt.Sprint(s.Batches),
			fmt.Sprint(s.RowsLoaded),
			fmt.Sprint(s.RowsSkipped),
			fmt.Sprint(s.StartCursor),
			fmt.Sprint(s.FinalCursor),
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}
