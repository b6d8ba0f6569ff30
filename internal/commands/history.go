package commands

import (
	"fmt"
	"time"

	"github.com/GARAGE-POS/data-migration-etl-scripts/store/sqlstore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newHistoryCmd(ec *ExecutionContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history <table>",
		Short: "Show the most recent committed batches of a table",
		Example: `  # Show the last 20 batches of locations:
  etl history locations

  # Show every batch:
  etl history locations --limit 0`,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog, err := ec.Catalog()
			if err != nil {
				return err
			}
			t, err := catalog.Table(args[0])
			if err != nil {
				return err
			}

			db, d, err := ec.OpenTarget(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := sqlstore.NewWithConfig(d, ec.Config.Tables).ListBatches(ctx, db, t.CursorKey(), limit)
			if err != nil {
				return errors.Wrapf(err, "cannot fetch history of %s", t.Name)
			}

			table := newTableWriter(ec.Stdout)
			table.SetHeader([]string{"RUN", "FROM", "TO", "EXTRACTED", "LOADED", "LOADED AT"})
			for _, r := range records {
				table.Append([]string{
					r.RunID,
					fmt.Sprint(r.CursorFrom),
					fmt.Sprint(r.CursorTo),
					fmt.Sprint(r.RowsExtracted),
					fmt.Sprint(r.RowsLoaded),
					formatTime(r.LoadedAt),
				})
			}
			table.Render()
			return nil
		},
	}

	historyCmd.Flags().IntVar(&limit, "limit", 20, "number of batches to show (0 shows all)")

	return historyCmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
