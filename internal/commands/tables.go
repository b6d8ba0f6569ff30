package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTablesCmd(ec *ExecutionContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the migratable tables in catalog order",
		Example: `  # List the built-in tables:
  etl tables

  # List the tables of a descriptor directory:
  etl tables --tables-dir ./tables`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ec.Catalog()
			if err != nil {
				return err
			}

			table := newTableWriter(ec.Stdout)
			table.SetHeader([]string{"NAME", "SOURCE", "TARGET", "CURSOR", "BATCH SIZE", "DEPENDS ON"})
			for _, t := range catalog.Tables() {
				deps := "-"
				if d := t.Dependencies(); len(d) > 0 {
					deps = strings.Join(d, ", ")
				}
				table.Append([]string{
					t.Name,
					t.Source.Table,
					t.Target.Table,
					t.CursorKey(),
					fmt.Sprint(t.BatchSize()),
					deps,
				})
			}
			table.Render()
			return nil
		},
	}
}
