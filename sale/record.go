package sale

import (
	"time"

	"github.com/holiman/uint256"
)

// PurchaseRecord is the immutable record emitted for every successful
// purchase. UnitsSold is the cumulative total after this purchase.
type PurchaseRecord struct {
	ID          string
	Buyer       string
	Units       uint64
	TokenCost   *uint256.Int
	PlatformFee *uint256.Int
	UnitsSold   uint64
	Timestamp   time.Time
}

// Total returns the full amount the buyer paid, cost plus fee.
func (r *PurchaseRecord) Total() *uint256.Int {
	return new(uint256.Int).Add(r.TokenCost, r.PlatformFee)
}

// Observer receives sale lifecycle notifications. Observers are invoked
// inside the sale's critical section, in registration order, so a
// notification always reflects a consistent snapshot; observers must
// not call back into the ledger.
type Observer interface {
	// PurchaseMade is called once per successful purchase.
	PurchaseMade(rec *PurchaseRecord)

	// StatusChanged is called after a pause or resume transition.
	// Completion is reported through SaleCompleted instead.
	StatusChanged(status Status)

	// SaleCompleted is called once when the sale completes, with the
	// final curve price at the completed sold level.
	SaleCompleted(finalPrice *uint256.Int)
}
