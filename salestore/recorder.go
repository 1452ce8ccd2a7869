package salestore

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

// Recorder bridges a sale ledger to a Store: registered as an
// observer, it appends every purchase record and keeps the persisted
// snapshot current. Observer callbacks carry no context and cannot
// return errors, so store failures are retained and exposed via Err.
type Recorder struct {
	store Store

	mu        sync.Mutex
	unitsSold uint64
	err       error
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// PurchaseMade implements sale.Observer.
func (r *Recorder) PurchaseMade(rec *sale.PurchaseRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unitsSold = rec.UnitsSold

	ctx := context.Background()
	if err := r.store.AppendRecord(ctx, rec); err != nil {
		r.err = err
		return
	}
	if err := r.store.SaveState(ctx, Snapshot{UnitsSold: rec.UnitsSold, Status: sale.StatusActive}); err != nil {
		r.err = err
	}
}

// StatusChanged implements sale.Observer, keeping the persisted status
// current across pause and resume so a restart rehydrates the sale in
// the state the owner left it.
func (r *Recorder) StatusChanged(status sale.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.SaveState(context.Background(), Snapshot{UnitsSold: r.unitsSold, Status: status}); err != nil {
		r.err = err
	}
}

// SaleCompleted implements sale.Observer.
func (r *Recorder) SaleCompleted(_ *uint256.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.SaveState(context.Background(), Snapshot{UnitsSold: r.unitsSold, Status: sale.StatusCompleted}); err != nil {
		r.err = err
	}
}

// Err returns the first store failure observed since the last call and
// clears it.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.err = nil
	return err
}

var _ sale.Observer = (*Recorder)(nil)
