// Command etl migrates legacy tables into the target schema.
//
// Usage:
//
//	etl init
//	etl run accounts locations
//	etl status
//	etl history locations
//
// Connections come from flags or the environment, e.g. ETL_SOURCE_SERVER,
// ETL_SOURCE_DATABASE, ETL_SOURCE_USER, ETL_SOURCE_PASSWORD and ETL_TARGET_DSN.
// A .env file in the working directory is loaded first.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GARAGE-POS/data-migration-etl-scripts/internal/commands"
)

func main() {
	err := commands.Execute(context.Background(), commands.NewExecutionContext(), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(commands.ExitCode(err))
}
