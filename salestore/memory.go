package salestore

import (
	"context"
	"sync"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

// MemoryStore is a Store kept entirely in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	snap    *Snapshot
	records []*sale.PurchaseRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveState overwrites the persisted snapshot.
func (m *MemoryStore) SaveState(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	return nil
}

// LoadState returns the persisted snapshot, or ErrNoState.
func (m *MemoryStore) LoadState(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return Snapshot{}, ErrNoState
	}
	return *m.snap, nil
}

// AppendRecord appends a purchase record.
func (m *MemoryStore) AppendRecord(_ context.Context, rec *sale.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns all records in append order.
func (m *MemoryStore) Records(_ context.Context) ([]*sale.PurchaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*sale.PurchaseRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
