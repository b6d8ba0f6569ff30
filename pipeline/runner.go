package pipeline

import (
	"context"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
)

// Runner runs table migrations one after the other in the given order. It
// never reorders tables: dependency order is the operator's choice.
type Runner struct {
	migrators []etl.Migrator
}

// NewRunner creates a Runner over migrators.
func NewRunner(migrators ...etl.Migrator) *Runner {
	return &Runner{migrators: migrators}
}

// Run runs every migrator and stops at the first failure. The summaries of
// the finished runs are returned, the failed one included.
func (r *Runner) Run(ctx context.Context) ([]etl.Summary, error) {
	summaries := make([]etl.Summary, 0, len(r.migrators))
	for _, m := range r.migrators {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		summary, err := m.Run(ctx)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}
