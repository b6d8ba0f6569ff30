package commands

import (
	"fmt"

	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newStatusCmd(ec *ExecutionContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the committed cursor of every migrated table",
		Example: `  # Show how far each legacy table has been migrated:
  etl status --target-dsn "sqlserver://etl@localhost?database=app"`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, d, err := ec.OpenTarget(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			cursors, err := sqlstore.NewWithConfig(d, ec.Config.Tables).ListCursors(ctx, db)
			if err != nil {
				return errors.Wrap(err, "cannot fetch cursors")
			}

			table := newTableWriter(ec.Stdout)
			table.SetHeader([]string{"TABLE", "CURSOR", "UPDATED AT"})
			for _, c := range cursors {
				table.Append([]string{c.Table, fmt.Sprint(c.MaxIndex), formatTime(c.UpdatedAt)})
			}
			table.Render()
			return nil
		},
	}
}
