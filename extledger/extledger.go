// Package extledger defines the external ledger collaborators of the
// sale engine: the payment ledger funds are pulled from and the
// issuance ledger sale units are credited to. The sale core never reads
// unit balances; it only instructs credits and consults the transfer
// gate through the guard handed to the issuance ledger.
package extledger

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a holder lacks the funds
	// or units a transfer requires.
	ErrInsufficientBalance = errors.New("extledger: insufficient balance")

	// ErrInsufficientAuthorization is returned when a buyer has not
	// approved enough payment-asset value to the sale.
	ErrInsufficientAuthorization = errors.New("extledger: insufficient authorization")

	// ErrInsufficientCustody is returned when a payout exceeds the funds
	// held in sale custody.
	ErrInsufficientCustody = errors.New("extledger: insufficient custody balance")

	// ErrTransferRestricted is returned for unit transfers attempted
	// before the sale completes.
	ErrTransferRestricted = errors.New("extledger: transfers restricted until sale completes")
)

// PaymentLedger is the custody and transfer mechanism for the payment
// asset. Debit moves buyer funds into sale custody; TransferOut moves
// custody funds to a recipient (fee payout, rollback refunds, owner
// withdrawal).
type PaymentLedger interface {
	AuthorizedAmount(buyer string) *uint256.Int
	BalanceOf(holder string) *uint256.Int
	Debit(buyer string, amount *uint256.Int) error
	TransferOut(recipient string, amount *uint256.Int) error
}

// IssuanceLedger is the balance-custody mechanism for the issued units.
type IssuanceLedger interface {
	Credit(buyer string, quantity uint64) error
	BalanceOf(holder string) uint64
}

// TransferGuard reports whether secondary transfer of issued units is
// currently permitted.
type TransferGuard func() bool
