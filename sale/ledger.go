// Package sale implements the sale-accounting core of a fixed-supply
// primary issuance: the purchase protocol, the
// active/paused/completed state machine, and the transfer gate that
// locks secondary movement of issued units until the sale concludes.
//
// All state-mutating operations on a Ledger are serialized by a single
// mutex, reproducing a run-to-completion execution model: two
// purchases racing for the last units are fully ordered, and the loser
// observes the already-updated sold count. Reads take a shared lock and
// always see a consistent snapshot.
package sale

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/curve"
)

// Ledger owns the mutable state of one sale instance.
type Ledger struct {
	cfg Config

	mu           sync.RWMutex
	unitsSold    uint64
	status       Status
	feeRecipient string
	feeOwed      *uint256.Int
	observers    []Observer

	now   func() time.Time
	newID func() string
}

// NewLedger creates a sale ledger with zero units sold and active
// status.
func NewLedger(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		cfg:          cfg,
		status:       StatusActive,
		feeRecipient: cfg.FeeRecipient,
		feeOwed:      new(uint256.Int),
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// AddObserver registers an observer for purchase, status-change, and
// completion notifications. Not safe to call concurrently with purchases; register
// observers during setup.
func (l *Ledger) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

// Purchase executes the full purchase protocol for the buyer: price the
// batch on the curve, pull cost plus fee from the payment ledger into
// custody, credit the units, pay out the fee, and emit a record. A
// precondition failure or a failed debit or credit aborts with no state
// change; a failed unit credit refunds the debit before returning. A
// failed fee payout does not abort: the purchase stands, and the owed
// fee accrues in custody until a later payout succeeds (see
// AccruedFees).
//
// The purchase that exactly exhausts supply succeeds and flips the sale
// to completed in the same critical section, so no caller can buy
// between "full" and "closed".
func (l *Ledger) Purchase(buyer string, quantity uint64) (*PurchaseRecord, error) {
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != StatusActive {
		return nil, fmt.Errorf("%w: status %s", ErrSaleNotActive, l.status)
	}
	remaining := l.cfg.Curve.TotalSupply - l.unitsSold
	if quantity > remaining {
		return nil, fmt.Errorf("%w: %d requested, %d remaining", ErrSupplyExceeded, quantity, remaining)
	}

	cost, fee, err := l.cfg.Curve.PurchaseCost(l.unitsSold, quantity, l.cfg.FeeBps)
	if err != nil {
		return nil, err
	}
	total := new(uint256.Int).Add(cost, fee)

	if l.cfg.Payment.AuthorizedAmount(buyer).Lt(total) {
		return nil, fmt.Errorf("%w: need %s", ErrInsufficientAuthorization, total.Dec())
	}
	if l.cfg.Payment.BalanceOf(buyer).Lt(total) {
		return nil, fmt.Errorf("%w: need %s", ErrInsufficientFunds, total.Dec())
	}

	if err := l.cfg.Payment.Debit(buyer, total); err != nil {
		return nil, fmt.Errorf("sale: payment debit failed: %w", err)
	}
	if err := l.cfg.Issuance.Credit(buyer, quantity); err != nil {
		// Funds were pulled but no units issued; refund the debit so the
		// whole operation is a no-op.
		if rbErr := l.cfg.Payment.TransferOut(buyer, total); rbErr != nil {
			return nil, fmt.Errorf("sale: unit credit failed (%v), debit rollback failed: %w", err, rbErr)
		}
		return nil, fmt.Errorf("sale: unit credit failed: %w", err)
	}

	l.unitsSold += quantity

	// The purchase is committed once the units are credited: a fee
	// payout failure does not fail the purchase. Custody holds cost+fee
	// from the debit above, so the only way the payout can fail is a
	// broken payment ledger; the owed amount accrues and is retried on
	// the next purchase, and any residue stays in custody where the
	// owner can withdraw it after completion.
	l.feeOwed.Add(l.feeOwed, fee)
	if !l.feeOwed.IsZero() {
		if err := l.cfg.Payment.TransferOut(l.feeRecipient, l.feeOwed); err == nil {
			l.feeOwed = new(uint256.Int)
		}
	}

	rec := &PurchaseRecord{
		ID:          l.newID(),
		Buyer:       buyer,
		Units:       quantity,
		TokenCost:   cost,
		PlatformFee: fee,
		UnitsSold:   l.unitsSold,
		Timestamp:   l.now(),
	}
	for _, o := range l.observers {
		o.PurchaseMade(rec)
	}

	if l.unitsSold == l.cfg.Curve.TotalSupply {
		l.complete()
	}
	return rec, nil
}

// complete flips the status and notifies observers with the final curve
// price. Caller holds the write lock.
func (l *Ledger) complete() {
	l.status = StatusCompleted
	final := l.cfg.Curve.Ceiling()
	if l.unitsSold < l.cfg.Curve.TotalSupply {
		final, _ = l.cfg.Curve.PriceAt(l.unitsSold)
	}
	for _, o := range l.observers {
		o.SaleCompleted(final)
	}
}

// Pause suspends purchases. Owner-gated; only an active sale can pause.
func (l *Ledger) Pause(caller string) error {
	if caller != l.cfg.Owner {
		return ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusActive {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, l.status)
	}
	l.status = StatusPaused
	for _, o := range l.observers {
		o.StatusChanged(l.status)
	}
	return nil
}

// Resume reopens a paused sale. Rejected when nothing remains to sell.
func (l *Ledger) Resume(caller string) error {
	if caller != l.cfg.Owner {
		return ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusPaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, l.status)
	}
	if l.unitsSold == l.cfg.Curve.TotalSupply {
		return fmt.Errorf("%w: no supply left to sell", ErrSupplyExceeded)
	}
	l.status = StatusActive
	for _, o := range l.observers {
		o.StatusChanged(l.status)
	}
	return nil
}

// CompleteManually closes the sale early. Allowed from active or
// paused; rejected once completed.
func (l *Ledger) CompleteManually(caller string) error {
	if caller != l.cfg.Owner {
		return ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == StatusCompleted {
		return fmt.Errorf("%w: already completed", ErrInvalidTransition)
	}
	l.complete()
	return nil
}

// SetFeeRecipient redirects future fee payouts. Owner-gated.
func (l *Ledger) SetFeeRecipient(caller, recipient string) error {
	if caller != l.cfg.Owner {
		return ErrUnauthorized
	}
	if recipient == "" {
		return fmt.Errorf("%w: fee recipient is required", ErrInvalidConfig)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeRecipient = recipient
	return nil
}

// Withdraw moves amount from sale custody to the owner. Withdrawal is
// only permitted once the sale has completed; the stricter
// post-completion rule is the deliberate choice here, so residual
// custody funds stay locked while a sale is live or paused.
func (l *Ledger) Withdraw(caller string, amount *uint256.Int) error {
	if caller != l.cfg.Owner {
		return ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusCompleted {
		return fmt.Errorf("%w: withdraw requires a completed sale, status %s", ErrInvalidTransition, l.status)
	}
	return l.cfg.Payment.TransferOut(l.cfg.Owner, amount)
}

// TransfersAllowed reports whether issued units may move between
// holders: true only once the sale has completed. Hand this to the
// issuance ledger as its transfer guard.
func (l *Ledger) TransfersAllowed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status == StatusCompleted
}

// Status returns the current lifecycle state.
func (l *Ledger) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// UnitsSold returns the cumulative units sold.
func (l *Ledger) UnitsSold() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unitsSold
}

// Remaining returns the unsold capacity.
func (l *Ledger) Remaining() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg.Curve.TotalSupply - l.unitsSold
}

// CurrentPrice returns the curve price at the current sold level.
func (l *Ledger) CurrentPrice() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	price, _ := l.cfg.Curve.PriceAt(l.unitsSold)
	return price
}

// Quote prices a prospective batch at the current sold level without
// side effects.
func (l *Ledger) Quote(quantity uint64) (cost, fee *uint256.Int, err error) {
	if quantity == 0 {
		return nil, nil, ErrInvalidQuantity
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	remaining := l.cfg.Curve.TotalSupply - l.unitsSold
	if quantity > remaining {
		return nil, nil, fmt.Errorf("%w: %d requested, %d remaining", ErrSupplyExceeded, quantity, remaining)
	}
	return l.cfg.Curve.PurchaseCost(l.unitsSold, quantity, l.cfg.FeeBps)
}

// AccruedFees returns the fee amount owed to the recipient but still
// held in custody after failed payouts. Zero in normal operation.
func (l *Ledger) AccruedFees() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feeOwed.Clone()
}

// FeeRecipient returns the current fee recipient.
func (l *Ledger) FeeRecipient() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feeRecipient
}

// Curve returns the immutable curve parameters.
func (l *Ledger) Curve() curve.Params { return l.cfg.Curve }

// FeeBps returns the platform fee rate in basis points.
func (l *Ledger) FeeBps() uint64 { return l.cfg.FeeBps }

// Owner returns the administrative owner identity.
func (l *Ledger) Owner() string { return l.cfg.Owner }

// Restore rehydrates the ledger from a persisted snapshot. It is
// intended for startup, before the ledger begins serving purchases.
func (l *Ledger) Restore(unitsSold uint64, status Status) error {
	if unitsSold > l.cfg.Curve.TotalSupply {
		return fmt.Errorf("%w: persisted units sold %d exceeds supply", ErrInvalidConfig, unitsSold)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unitsSold = unitsSold
	l.status = status
	return nil
}
