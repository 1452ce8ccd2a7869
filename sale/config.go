package sale

import (
	"fmt"

	"github.com/curvesale-xyz/go-curvesale/curve"
	"github.com/curvesale-xyz/go-curvesale/extledger"
)

// Config is the immutable sale configuration. One Config describes one
// sale instance for one asset; a platform running many simultaneous
// sales instantiates one Ledger per asset.
type Config struct {
	// Curve holds the bonding-curve parameters.
	Curve curve.Params

	// FeeBps is the platform fee in basis points (0-10000).
	FeeBps uint64

	// FeeRecipient receives the platform fee on every purchase.
	FeeRecipient string

	// Owner gates the administrative surface.
	Owner string

	// Payment is the external ledger funds are pulled from.
	Payment extledger.PaymentLedger

	// Issuance is the external ledger sale units are credited to.
	Issuance extledger.IssuanceLedger
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if err := c.Curve.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.FeeBps > curve.FeeDenominator {
		return fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidConfig, c.FeeBps, curve.FeeDenominator)
	}
	if c.FeeRecipient == "" {
		return fmt.Errorf("%w: fee recipient is required", ErrInvalidConfig)
	}
	if c.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidConfig)
	}
	if c.Payment == nil {
		return fmt.Errorf("%w: payment ledger is required", ErrInvalidConfig)
	}
	if c.Issuance == nil {
		return fmt.Errorf("%w: issuance ledger is required", ErrInvalidConfig)
	}
	return nil
}
