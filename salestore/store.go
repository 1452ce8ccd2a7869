// Package salestore persists the durable sale state: the
// {unitsSold, status} snapshot and the append-only purchase record
// stream. Two backends are provided, an in-memory store for tests and
// tooling and a SQLite store for real deployments. Writes happen from
// inside the sale's critical section (via Recorder), so reads through a
// Store are linearizable with the sale's mutation boundary.
package salestore

import (
	"context"
	"errors"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

// ErrNoState is returned by LoadState when no snapshot has been saved.
var ErrNoState = errors.New("salestore: no saved state")

// Snapshot is the persisted mutable state of a sale instance.
type Snapshot struct {
	UnitsSold uint64
	Status    sale.Status
}

// Store persists sale snapshots and purchase records.
type Store interface {
	// SaveState overwrites the persisted snapshot.
	SaveState(ctx context.Context, snap Snapshot) error

	// LoadState returns the persisted snapshot, or ErrNoState.
	LoadState(ctx context.Context) (Snapshot, error)

	// AppendRecord appends a purchase record to the durable log.
	AppendRecord(ctx context.Context, rec *sale.PurchaseRecord) error

	// Records returns all persisted records in append order.
	Records(ctx context.Context) ([]*sale.PurchaseRecord, error)

	// Close releases the underlying resources.
	Close() error
}
