package etl

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMissingDependency indicates a required foreign key references a legacy
	// row that has not been migrated yet. The operator runs the upstream table's
	// migration and retries.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrTransientIO indicates a database connectivity failure or timeout.
	// Nothing is retried; the caller re-invokes the run.
	ErrTransientIO = errors.New("transient io failure")

	// ErrDataIntegrity indicates the target rejected the batch, e.g. a duplicate key on append.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrCorruption indicates the stored cursor no longer matches the batch being
	// loaded: another writer moved it since extraction, or the batch would move
	// it backward.
	ErrCorruption = errors.New("cursor corruption")

	// ErrTableNotFound indicates no descriptor exists for the requested table.
	ErrTableNotFound = errors.New("table not found")
)

// DependencyError is raised by the dependency resolver when a required foreign
// key does not resolve to an already-migrated target row.
type DependencyError struct {
	// Table is the table whose batch was rejected.
	Table string

	// Upstream is the entity that must be migrated further before retrying.
	Upstream string

	// Column is the foreign-key column that failed to resolve.
	Column string

	// Missing lists the unresolved legacy IDs in ascending order.
	Missing []int64
}

// NewDependencyError builds a DependencyError with the missing IDs sorted.
func NewDependencyError(table, upstream, column string, missing []int64) *DependencyError {
	ids := append([]int64(nil), missing...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &DependencyError{
		Table:    table,
		Upstream: upstream,
		Column:   column,
		Missing:  ids,
	}
}

func (e *DependencyError) Error() string {
	shown := e.Missing
	suffix := ""
	if len(shown) > 10 {
		shown = shown[:10]
		suffix = fmt.Sprintf(", ... (%d total)", len(e.Missing))
	}
	parts := make([]string, len(shown))
	for i, id := range shown {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s: %s.%s references %s rows not migrated yet [%s%s]; update %s first",
		ErrMissingDependency, e.Table, e.Column, e.Upstream, strings.Join(parts, ", "), suffix, e.Upstream)
}

// Unwrap lets errors.Is match ErrMissingDependency.
func (e *DependencyError) Unwrap() error {
	return ErrMissingDependency
}

// IsMissingDependency reports whether err is (or wraps) a missing-dependency failure.
func IsMissingDependency(err error) bool {
	return errors.Is(err, ErrMissingDependency)
}
