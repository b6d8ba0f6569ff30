// Package pipeline drives a table migration: it repeatedly extracts the rows
// past the table's cursor, transforms them, resolves their references and
// loads them until the source is drained.
package pipeline

import (
	"context"
	"fmt"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/mapping"
	"github.com/GARAGE-POS/data-migration-etl-scripts/metrics"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
	"github.com/getpup/pupsourcing/es"
	"github.com/google/uuid"
)

// Config holds configuration for a table Pipeline.
type Config struct {
	// Table is the descriptor of the migrated table (required).
	Table *mapping.Table

	// DB is the target database the cursor is read from (required).
	DB store.Querier

	// Cursors reads the table's cursor before every batch (required).
	Cursors store.CursorStore

	// Extractor, Transformer, Resolver and Loader are the pipeline stages (required).
	Extractor   etl.Extractor
	Transformer etl.Transformer
	Resolver    etl.Resolver
	Loader      etl.Loader

	// MaxBatches stops the run after this many committed batches (default: 0, unlimited).
	MaxBatches int

	// RunID identifies the run in logs (default: a random UUID).
	RunID string

	// Logger is for observability (optional).
	Logger es.Logger

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	// Set to false explicitly to disable metrics.
	MetricsEnabled *bool
}

// Pipeline migrates one table. It implements etl.Migrator.
type Pipeline struct {
	config    Config
	collector *metrics.Collector
}

// Compile-time check that Pipeline implements etl.Migrator.
var _ etl.Migrator = (*Pipeline)(nil)

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	var collector *metrics.Collector
	metricsEnabled := true
	if cfg.MetricsEnabled != nil {
		metricsEnabled = *cfg.MetricsEnabled
	}
	if metricsEnabled {
		collector = metrics.NewCollector(cfg.Table.Name)
	}

	return &Pipeline{
		config:    cfg,
		collector: collector,
	}
}

// RunID returns the identifier of the run.
func (p *Pipeline) RunID() string {
	return p.config.RunID
}

// Run loads batches until an extract comes back empty or MaxBatches batches
// are committed. Every batch re-reads the stored cursor, so a run always
// resumes from the last committed batch. The first failure stops the run and
// is returned unchanged along with the progress made so far.
func (p *Pipeline) Run(ctx context.Context) (etl.Summary, error) {
	table := p.config.Table
	start := time.Now()
	summary := etl.Summary{
		RunID: p.config.RunID,
		Table: table.Name,
	}

	p.setState(metrics.StateRunning)
	if p.config.Logger != nil {
		p.config.Logger.Info(ctx, "migration started", "table", table.Name, "runID", p.config.RunID)
	}

	first := true
	for p.config.MaxBatches == 0 || summary.Batches < p.config.MaxBatches {
		cursor, err := p.config.Cursors.GetCursor(ctx, p.config.DB, table.CursorKey())
		if err != nil {
			return p.fail(ctx, summary, start, fmt.Errorf("read cursor of %s: %w", table.Name, err))
		}
		if first {
			summary.StartCursor = cursor
			first = false
		}
		summary.FinalCursor = cursor

		extracted, result, err := p.runBatch(ctx, cursor)
		if err != nil {
			return p.fail(ctx, summary, start, err)
		}
		if extracted == 0 {
			p.setState(metrics.StateDrained)
			summary.Duration = time.Since(start)
			if p.config.Logger != nil {
				p.config.Logger.Info(ctx, "migration drained",
					"table", table.Name, "runID", p.config.RunID, "batches", summary.Batches,
					"rowsLoaded", summary.RowsLoaded, "cursor", summary.FinalCursor)
			}
			return summary, nil
		}

		summary.Batches++
		summary.RowsLoaded += result.RowsInserted
		summary.RowsSkipped += result.RowsSkipped
		summary.FinalCursor = result.Cursor
	}

	summary.Duration = time.Since(start)
	if p.config.Logger != nil {
		p.config.Logger.Info(ctx, "batch limit reached",
			"table", table.Name, "runID", p.config.RunID, "batches", summary.Batches, "cursor", summary.FinalCursor)
	}
	return summary, nil
}

// runBatch runs one extract → transform → resolve → load pass after cursor.
// It returns zero extracted rows when the source is drained.
func (p *Pipeline) runBatch(ctx context.Context, cursor int64) (int, etl.LoadResult, error) {
	started := time.Now()

	stageStart := time.Now()
	batch, err := p.config.Extractor.Extract(ctx, cursor)
	if err != nil {
		return 0, etl.LoadResult{}, err
	}
	p.observeStage(metrics.StageExtract, stageStart)
	if batch.Empty() {
		return 0, etl.LoadResult{}, nil
	}
	extracted := batch.Len()

	stageStart = time.Now()
	batch, err = p.config.Transformer.Transform(ctx, batch)
	if err != nil {
		return 0, etl.LoadResult{}, err
	}
	p.observeStage(metrics.StageTransform, stageStart)

	stageStart = time.Now()
	batch, err = p.config.Resolver.Resolve(ctx, batch)
	if err != nil {
		return 0, etl.LoadResult{}, err
	}
	p.observeStage(metrics.StageResolve, stageStart)

	stageStart = time.Now()
	result, err := p.config.Loader.Load(ctx, batch)
	if err != nil {
		return 0, etl.LoadResult{}, err
	}
	p.observeStage(metrics.StageLoad, stageStart)

	if p.collector != nil {
		p.collector.ObserveBatch(extracted, result, time.Since(started).Seconds())
	}
	if p.config.Logger != nil {
		p.config.Logger.Debug(ctx, "batch committed",
			"table", p.config.Table.Name, "runID", p.config.RunID, "from", cursor, "to", result.Cursor,
			"extracted", extracted, "inserted", result.RowsInserted, "skipped", result.RowsSkipped)
	}

	return extracted, result, nil
}

func (p *Pipeline) fail(ctx context.Context, summary etl.Summary, start time.Time, err error) (etl.Summary, error) {
	summary.Duration = time.Since(start)
	if p.collector != nil {
		p.collector.IncErrors(err)
		p.collector.SetState(metrics.StateFailed)
	}
	if p.config.Logger != nil {
		p.config.Logger.Error(ctx, "migration failed",
			"table", p.config.Table.Name, "runID", p.config.RunID, "cursor", summary.FinalCursor,
			"kind", metrics.ErrorKind(err), "error", err)
	}
	return summary, err
}

func (p *Pipeline) setState(state string) {
	if p.collector != nil {
		p.collector.SetState(state)
	}
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.collector != nil {
		p.collector.ObserveStage(stage, time.Since(start).Seconds())
	}
}
