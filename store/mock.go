package store

import (
	"context"
	"sync"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
)

// MockStore is a configurable mock implementation of Store for use in tests.
// It allows setting up expected return values, tracking method calls, and
// injecting errors for testing error paths.
type MockStore struct {
	mu sync.RWMutex

	// GetCursorFunc is called by GetCursor if set.
	GetCursorFunc func(ctx context.Context, q Querier, table string) (int64, error)

	// AdvanceCursorFunc is called by AdvanceCursor if set.
	AdvanceCursorFunc func(ctx context.Context, q Querier, table string, maxIndex int64) error

	// ListCursorsFunc is called by ListCursors if set.
	ListCursorsFunc func(ctx context.Context, q Querier) ([]etl.Cursor, error)

	// LookupIDsFunc is called by LookupIDs if set.
	LookupIDsFunc func(ctx context.Context, q Querier, entity string, legacyIDs []int64) (map[int64]any, error)

	// RecordIDsFunc is called by RecordIDs if set.
	RecordIDsFunc func(ctx context.Context, q Querier, entity string, ids map[int64]any) error

	// RecordBatchFunc is called by RecordBatch if set.
	RecordBatchFunc func(ctx context.Context, q Querier, rec etl.BatchRecord) error

	// ListBatchesFunc is called by ListBatches if set.
	ListBatchesFunc func(ctx context.Context, q Querier, table string, limit int) ([]etl.BatchRecord, error)

	// Call tracking
	GetCursorCalls     []GetCursorCall
	AdvanceCursorCalls []AdvanceCursorCall
	ListCursorsCalls   int
	LookupIDsCalls     []LookupIDsCall
	RecordIDsCalls     []RecordIDsCall
	RecordBatchCalls   []etl.BatchRecord
	ListBatchesCalls   []ListBatchesCall
}

// Call tracking structs
type GetCursorCall struct {
	Table string
}

type AdvanceCursorCall struct {
	Table    string
	MaxIndex int64
}

type LookupIDsCall struct {
	Entity    string
	LegacyIDs []int64
}

type RecordIDsCall struct {
	Entity string
	IDs    map[int64]any
}

type ListBatchesCall struct {
	Table string
	Limit int
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// GetCursor implements CursorStore.
func (m *MockStore) GetCursor(ctx context.Context, q Querier, table string) (int64, error) {
	m.mu.Lock()
	m.GetCursorCalls = append(m.GetCursorCalls, GetCursorCall{Table: table})
	m.mu.Unlock()

	if m.GetCursorFunc != nil {
		return m.GetCursorFunc(ctx, q, table)
	}

	return 0, nil
}

// AdvanceCursor implements CursorStore.
func (m *MockStore) AdvanceCursor(ctx context.Context, q Querier, table string, maxIndex int64) error {
	m.mu.Lock()
	m.AdvanceCursorCalls = append(m.AdvanceCursorCalls, AdvanceCursorCall{
		Table:    table,
		MaxIndex: maxIndex,
	})
	m.mu.Unlock()

	if m.AdvanceCursorFunc != nil {
		return m.AdvanceCursorFunc(ctx, q, table, maxIndex)
	}

	return nil
}

// ListCursors implements CursorStore.
func (m *MockStore) ListCursors(ctx context.Context, q Querier) ([]etl.Cursor, error) {
	m.mu.Lock()
	m.ListCursorsCalls++
	m.mu.Unlock()

	if m.ListCursorsFunc != nil {
		return m.ListCursorsFunc(ctx, q)
	}

	return []etl.Cursor{}, nil
}

// LookupIDs implements IDMapStore.
func (m *MockStore) LookupIDs(ctx context.Context, q Querier, entity string, legacyIDs []int64) (map[int64]any, error) {
	m.mu.Lock()
	m.LookupIDsCalls = append(m.LookupIDsCalls, LookupIDsCall{
		Entity:    entity,
		LegacyIDs: append([]int64(nil), legacyIDs...),
	})
	m.mu.Unlock()

	if m.LookupIDsFunc != nil {
		return m.LookupIDsFunc(ctx, q, entity, legacyIDs)
	}

	return map[int64]any{}, nil
}

// RecordIDs implements IDMapStore.
func (m *MockStore) RecordIDs(ctx context.Context, q Querier, entity string, ids map[int64]any) error {
	copied := make(map[int64]any, len(ids))
	for k, v := range ids {
		copied[k] = v
	}

	m.mu.Lock()
	m.RecordIDsCalls = append(m.RecordIDsCalls, RecordIDsCall{
		Entity: entity,
		IDs:    copied,
	})
	m.mu.Unlock()

	if m.RecordIDsFunc != nil {
		return m.RecordIDsFunc(ctx, q, entity, ids)
	}

	return nil
}

// RecordBatch implements BatchLog.
func (m *MockStore) RecordBatch(ctx context.Context, q Querier, rec etl.BatchRecord) error {
	m.mu.Lock()
	m.RecordBatchCalls = append(m.RecordBatchCalls, rec)
	m.mu.Unlock()

	if m.RecordBatchFunc != nil {
		return m.RecordBatchFunc(ctx, q, rec)
	}

	return nil
}

// ListBatches implements BatchLog.
func (m *MockStore) ListBatches(ctx context.Context, q Querier, table string, limit int) ([]etl.BatchRecord, error) {
	m.mu.Lock()
	m.ListBatchesCalls = append(m.ListBatchesCalls, ListBatchesCall{
		Table: table,
		Limit: limit,
	})
	m.mu.Unlock()

	if m.ListBatchesFunc != nil {
		return m.ListBatchesFunc(ctx, q, table, limit)
	}

	return []etl.BatchRecord{}, nil
}

// Reset clears all call tracking data.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCursorCalls = nil
	m.AdvanceCursorCalls = nil
	m.ListCursorsCalls = 0
	m.LookupIDsCalls = nil
	m.RecordIDsCalls = nil
	m.RecordBatchCalls = nil
	m.ListBatchesCalls = nil
}

var _ Store = (*MockStore)(nil)
