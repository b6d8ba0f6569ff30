package commands

import (
	"fmt"

	"github.com/GARAGE-POS/data-migration-etl-scripts/dialect"
	"github.com/GARAGE-POS/data-migration-etl-scripts/pkg/migrator"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInitCmd(ec *ExecutionContext) *cobra.Command {
	var dryRun bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the bookkeeping tables on the target database",
		Example: `  # Create the cursor, id map and batch log tables:
  etl init

  # Print the statements instead of running them:
  etl init --dry-run --target-dialect postgres`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := ec.Config.Tables
			if dryRun {
				d, err := dialect.Get(ec.Config.Target.Dialect)
				if err != nil {
					return err
				}
				fmt.Fprint(ec.Stdout, sqlstore.Script(sqlstore.MigrationUp(d, tables)))
				return nil
			}

			ctx := cmd.Context()
			db, d, err := ec.OpenTarget(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrator.RunMigrationsWithTableNames(ctx, db, d, tables); err != nil {
				return errors.Wrap(err, "cannot create bookkeeping tables")
			}
			ec.Logger.Info(ctx, "bookkeeping tables ready",
				"cursor", tables.CursorTable, "idMap", tables.IDMapTable, "batches", tables.BatchTable)
			return nil
		},
	}

	initCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements instead of running them")

	return initCmd
}
