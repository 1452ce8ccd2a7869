// Package curve implements the bonding-curve price function for a
// fixed-supply primary issuance sale.
//
// The unit price rises monotonically with cumulative units sold:
//
//	price(s) = base + base*f(s)/Scale
//	f(s)     = s*Scale / (remaining + smoothing)
//
// where remaining = totalSupply - s. The smoothing factor bounds the
// price spike as remaining supply approaches zero: at s = totalSupply
// the price is base + base*totalSupply/smoothing, a finite ceiling.
//
// All arithmetic is exact 256-bit integer math on holiman/uint256.
// Intermediate products cannot overflow for any uint64 parameters:
// the largest is base * (totalSupply*Scale/smoothing), well under 2^256.
package curve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	// ErrOutOfRange is returned when a pricing query falls outside
	// [0, TotalSupply].
	ErrOutOfRange = errors.New("curve: sold amount out of range")

	// ErrInvalidQuantity is returned for a non-positive purchase quantity.
	ErrInvalidQuantity = errors.New("curve: quantity must be positive")

	// ErrInvalidParams is returned when curve parameters fail validation.
	ErrInvalidParams = errors.New("curve: invalid parameters")
)

// Scale is the fixed-point scale for the curve factor (18 decimals).
const Scale = 1_000_000_000_000_000_000

// FeeDenominator is the basis-point denominator for platform fees.
const FeeDenominator = 10_000

// MaxQuote is the advisory per-call ceiling for PurchaseCost quantities.
// The per-unit sum is O(quantity); callers quoting larger batches should
// split them. The curve itself only enforces the supply bound.
const MaxQuote = 1 << 20

var scale = uint256.NewInt(Scale)

// Params are the immutable curve parameters.
type Params struct {
	// BasePrice is the price of the first unit, in the smallest unit of
	// the payment asset.
	BasePrice uint64

	// TotalSupply is the number of sellable units.
	TotalSupply uint64

	// SmoothingFactor bounds the price ceiling near full supply.
	SmoothingFactor uint64
}

// Validate checks the parameter invariants.
func (p Params) Validate() error {
	if p.BasePrice == 0 {
		return fmt.Errorf("%w: base price must be positive", ErrInvalidParams)
	}
	if p.TotalSupply == 0 {
		return fmt.Errorf("%w: total supply must be positive", ErrInvalidParams)
	}
	if p.SmoothingFactor == 0 {
		return fmt.Errorf("%w: smoothing factor must be positive", ErrInvalidParams)
	}
	return nil
}

// PriceAt returns the unit price with sold units already issued.
// sold must be in [0, TotalSupply].
func (p Params) PriceAt(sold uint64) (*uint256.Int, error) {
	if sold > p.TotalSupply {
		return nil, fmt.Errorf("%w: %d > total supply %d", ErrOutOfRange, sold, p.TotalSupply)
	}
	return p.priceAt(sold), nil
}

// priceAt computes the price without range checking.
func (p Params) priceAt(sold uint64) *uint256.Int {
	base := uint256.NewInt(p.BasePrice)
	if sold == 0 {
		return base
	}

	// factor = sold*Scale / (remaining + smoothing)
	// The denominator sum is done in 256 bits; remaining and smoothing
	// are both full-range uint64.
	den := new(uint256.Int).Add(
		uint256.NewInt(p.TotalSupply-sold),
		uint256.NewInt(p.SmoothingFactor),
	)
	factor := new(uint256.Int).Mul(uint256.NewInt(sold), scale)
	factor.Div(factor, den)

	bump := new(uint256.Int).Mul(base, factor)
	bump.Div(bump, scale)
	return bump.Add(bump, base)
}

// Ceiling returns the price at full supply,
// base + base*totalSupply/smoothing (subject to integer division).
func (p Params) Ceiling() *uint256.Int {
	return p.priceAt(p.TotalSupply)
}

// PurchaseCost prices a batch of quantity units starting at sold units
// already issued, each unit at its own exact position on the curve.
// The returned cost is the per-unit iterated sum; this step-summed
// integer value is the contract external callers validate against, so
// no closed-form shortcut is taken. feeBps is the platform fee in basis
// points; fee = floor(cost*feeBps/10000).
func (p Params) PurchaseCost(sold, quantity, feeBps uint64) (cost, fee *uint256.Int, err error) {
	if quantity == 0 {
		return nil, nil, ErrInvalidQuantity
	}
	if feeBps > FeeDenominator {
		return nil, nil, fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidParams, feeBps, FeeDenominator)
	}
	if sold > p.TotalSupply || quantity > p.TotalSupply-sold {
		return nil, nil, fmt.Errorf("%w: %d units from position %d exceeds total supply %d",
			ErrOutOfRange, quantity, sold, p.TotalSupply)
	}

	cost = new(uint256.Int)
	for i := uint64(0); i < quantity; i++ {
		cost.Add(cost, p.priceAt(sold+i))
	}

	fee = new(uint256.Int).Mul(cost, uint256.NewInt(feeBps))
	fee.Div(fee, uint256.NewInt(FeeDenominator))
	return cost, fee, nil
}
