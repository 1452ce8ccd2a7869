package extledger

import (
	"sync"

	"github.com/holiman/uint256"
)

// MemoryPayment is an in-memory stable-token stand-in implementing
// PaymentLedger: balances, per-buyer authorizations granted to the
// sale, and a custody account the sale debits into.
type MemoryPayment struct {
	mu         sync.Mutex
	balances   map[string]*uint256.Int
	authorized map[string]*uint256.Int
	custody    *uint256.Int
}

// NewMemoryPayment creates an empty payment ledger.
func NewMemoryPayment() *MemoryPayment {
	return &MemoryPayment{
		balances:   make(map[string]*uint256.Int),
		authorized: make(map[string]*uint256.Int),
		custody:    new(uint256.Int),
	}
}

// Mint credits freshly created funds to a holder.
func (m *MemoryPayment) Mint(holder string, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[holder] = new(uint256.Int).Add(m.balance(holder), amount)
}

// Approve sets the amount the buyer authorizes the sale to pull.
func (m *MemoryPayment) Approve(buyer string, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized[buyer] = amount.Clone()
}

// AuthorizedAmount returns the buyer's remaining authorization.
func (m *MemoryPayment) AuthorizedAmount(buyer string) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.authorized[buyer]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// BalanceOf returns the holder's balance.
func (m *MemoryPayment) BalanceOf(holder string) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(holder).Clone()
}

// Custody returns the funds currently held by the sale.
func (m *MemoryPayment) Custody() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custody.Clone()
}

// Debit pulls amount from the buyer into sale custody, consuming the
// buyer's authorization. Fails without effect when the authorization or
// balance is too low.
func (m *MemoryPayment) Debit(buyer string, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	auth, ok := m.authorized[buyer]
	if !ok || auth.Lt(amount) {
		return ErrInsufficientAuthorization
	}
	bal := m.balance(buyer)
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}

	m.authorized[buyer] = new(uint256.Int).Sub(auth, amount)
	m.balances[buyer] = new(uint256.Int).Sub(bal, amount)
	m.custody.Add(m.custody, amount)
	return nil
}

// TransferOut moves amount from sale custody to a recipient.
func (m *MemoryPayment) TransferOut(recipient string, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.custody.Lt(amount) {
		return ErrInsufficientCustody
	}
	m.custody.Sub(m.custody, amount)
	m.balances[recipient] = new(uint256.Int).Add(m.balance(recipient), amount)
	return nil
}

// balance returns the stored balance without copying. Caller holds mu.
func (m *MemoryPayment) balance(holder string) *uint256.Int {
	if b, ok := m.balances[holder]; ok {
		return b
	}
	return new(uint256.Int)
}

var _ PaymentLedger = (*MemoryPayment)(nil)

// MemoryIssuance is an in-memory issuance ledger for sale units. The
// transfer guard is consulted on every Transfer attempt; while it
// reports false, holders cannot move units between each other.
type MemoryIssuance struct {
	mu       sync.Mutex
	balances map[string]uint64
	issued   uint64
	guard    TransferGuard
}

// NewMemoryIssuance creates an issuance ledger gated by guard. A nil
// guard permits transfers unconditionally.
func NewMemoryIssuance(guard TransferGuard) *MemoryIssuance {
	return &MemoryIssuance{
		balances: make(map[string]uint64),
		guard:    guard,
	}
}

// Credit mints quantity units to the buyer.
func (m *MemoryIssuance) Credit(buyer string, quantity uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[buyer] += quantity
	m.issued += quantity
	return nil
}

// BalanceOf returns the holder's unit balance.
func (m *MemoryIssuance) BalanceOf(holder string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[holder]
}

// TotalIssued returns the units credited so far.
func (m *MemoryIssuance) TotalIssued() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}

// Transfer moves quantity units between holders, subject to the guard.
func (m *MemoryIssuance) Transfer(from, to string, quantity uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.guard != nil && !m.guard() {
		return ErrTransferRestricted
	}
	if m.balances[from] < quantity {
		return ErrInsufficientBalance
	}
	m.balances[from] -= quantity
	m.balances[to] += quantity
	return nil
}

var _ IssuanceLedger = (*MemoryIssuance)(nil)
