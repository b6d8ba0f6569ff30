// Command migrate-gen generates SQL migration files for the ETL bookkeeping tables.
//
// Usage:
//
//	go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --output migrations --filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --output migrations
//
// Generate migrations for different target engines:
//
//	go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --dialect sqlserver --output migrations
//	go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --dialect postgres --output migrations
//	go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --dialect mysql --output migrations
//	go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --dialect sqlite --output migrations
//
// Customize table names:
//
//	go run github.com/GARAGE-POS/data-migration-etl-scripts/cmd/migrate-gen --cursor-table app.EtlCDC --output migrations
package main

import (
	"fmt"
	"os"

	"github.com/GARAGE-POS/data-migration-etl-scripts/pkg/migrations"
	flag "github.com/spf13/pflag"
)

func main() {
	defaults := migrations.DefaultConfig()

	var (
		dialectName    = flag.String("dialect", defaults.Dialect, "Target engine: sqlserver, postgres, mysql or sqlite")
		outputFolder   = flag.String("output", defaults.OutputFolder, "Output folder for migration file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		cursorTable    = flag.String("cursor-table", defaults.Tables.CursorTable, "Name of the cursor table")
		idMapTable     = flag.String("id-map-table", defaults.Tables.IDMapTable, "Name of the ID map table")
		batchTable     = flag.String("batch-table", defaults.Tables.BatchTable, "Name of the batch log table")
		down           = flag.Bool("down", false, "Also write a .down.sql file dropping the tables")
	)

	flag.Parse()

	config := defaults
	config.Dialect = *dialectName
	config.OutputFolder = *outputFolder
	config.Tables.CursorTable = *cursorTable
	config.Tables.IDMapTable = *idMapTable
	config.Tables.BatchTable = *batchTable
	config.Down = *down

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	if err := migrations.Generate(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", config.Dialect, config.OutputFolder, config.OutputFilename)
}
