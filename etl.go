// Package etl migrates rows from a legacy relational schema into a redesigned
// target schema, one table at a time, using an incremental checkpointed
// pipeline: extract rows past a persisted cursor, transform them into the
// target shape, resolve legacy foreign keys against already-migrated tables,
// then append the batch and advance the cursor in one transaction.
package etl

import "context"

// Extractor pulls the next bounded batch of source rows after a cursor.
// An empty batch signals that the source is drained.
type Extractor interface {
	Extract(ctx context.Context, after int64) (*Batch, error)
}

// Transformer renames, cleans and derives columns into the target shape.
// It performs no writes.
type Transformer interface {
	Transform(ctx context.Context, batch *Batch) (*Batch, error)
}

// Resolver maps legacy foreign keys to target-side IDs. It fails the whole
// batch with a *DependencyError when a required key is not migrated yet.
type Resolver interface {
	Resolve(ctx context.Context, batch *Batch) (*Batch, error)
}

// Loader appends a batch and advances its cursor atomically.
type Loader interface {
	Load(ctx context.Context, batch *Batch) (LoadResult, error)
}

// Migrator drives one table's migration until the source is drained.
//
// Run returns nil once an extract comes back empty. Any failure aborts the
// current batch's transaction and is returned unchanged; the cursor stays at
// the last committed batch so re-running resumes from there.
type Migrator interface {
	Run(ctx context.Context) (Summary, error)
}
