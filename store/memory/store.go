package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	"github.com/GARAGE-POS/data-migration-etl-scripts/store"
)

// Store is an in-memory implementation of store.Store for testing.
// It provides thread-safe access using a sync.RWMutex. The Querier argument
// is ignored, so writes are not rolled back with the caller's transaction.
type Store struct {
	mu      sync.RWMutex
	cursors map[string]etl.Cursor       // table -> cursor
	ids     map[string]map[int64]string // entity -> legacy ID -> encoded new ID
	batches []etl.BatchRecord           // in insertion order
	now     func() time.Time
}

// New creates a new in-memory store with initialized maps.
func New() *Store {
	return &Store{
		cursors: make(map[string]etl.Cursor),
		ids:     make(map[string]map[int64]string),
		now:     time.Now,
	}
}

// GetCursor returns the last committed legacy ID for a table, or 0.
func (s *Store) GetCursor(ctx context.Context, _ store.Querier, table string) (int64, error) {
	if table == "" {
		return 0, store.ErrEmptyTable
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[table].MaxIndex, nil
}

// AdvanceCursor upserts the cursor of a table.
func (s *Store) AdvanceCursor(ctx context.Context, _ store.Querier, table string, maxIndex int64) error {
	if table == "" {
		return store.ErrEmptyTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[table] = etl.Cursor{
		Table:     table,
		MaxIndex:  maxIndex,
		UpdatedAt: s.now(),
	}

	return nil
}

// ListCursors returns every stored cursor ordered by table.
func (s *Store) ListCursors(ctx context.Context, _ store.Querier) ([]etl.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursors := make([]etl.Cursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		cursors = append(cursors, c)
	}
	sort.Slice(cursors, func(i, j int) bool {
		return cursors[i].Table < cursors[j].Table
	})

	return cursors, nil
}

// LookupIDs returns the new IDs of the mapped legacy IDs.
func (s *Store) LookupIDs(ctx context.Context, _ store.Querier, entity string, legacyIDs []int64) (map[int64]any, error) {
	if entity == "" {
		return nil, store.ErrEmptyEntity
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[int64]any)
	mapped := s.ids[entity]
	for _, id := range legacyIDs {
		if newID, ok := mapped[id]; ok {
			found[id] = store.DecodeID(newID)
		}
	}

	return found, nil
}

// RecordIDs stores mappings, replacing existing ones.
func (s *Store) RecordIDs(ctx context.Context, _ store.Querier, entity string, ids map[int64]any) error {
	if entity == "" {
		return store.ErrEmptyEntity
	}

	encoded := make(map[int64]string, len(ids))
	for legacyID, newID := range ids {
		v, err := store.EncodeID(newID)
		if err != nil {
			return err
		}
		encoded[legacyID] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mapped, ok := s.ids[entity]
	if !ok {
		mapped = make(map[int64]string, len(encoded))
		s.ids[entity] = mapped
	}
	for legacyID, v := range encoded {
		mapped[legacyID] = v
	}

	return nil
}

// RecordBatch appends an audit record.
func (s *Store) RecordBatch(ctx context.Context, _ store.Querier, rec etl.BatchRecord) error {
	if rec.Table == "" {
		return store.ErrEmptyTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = s.now()
	}
	s.batches = append(s.batches, rec)

	return nil
}

// ListBatches returns the most recent records of a table, newest first.
func (s *Store) ListBatches(ctx context.Context, _ store.Querier, table string, limit int) ([]etl.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []etl.BatchRecord
	for i := len(s.batches) - 1; i >= 0; i-- {
		if s.batches[i].Table != table {
			continue
		}
		records = append(records, s.batches[i])
		if limit > 0 && len(records) == limit {
			break
		}
	}
	if records == nil {
		records = []etl.BatchRecord{}
	}

	return records, nil
}

var _ store.Store = (*Store)(nil)
