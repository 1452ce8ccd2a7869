package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/curve"
)

func quote(args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	base := fs.Uint64("base", 30_000_000, "Base price per unit")
	supply := fs.Uint64("supply", 2_000_000, "Total sale supply in units")
	smoothing := fs.Uint64("smoothing", 200_000, "Curve smoothing factor")
	feeBps := fs.Uint64("fee", 300, "Platform fee in basis points")
	sold := fs.Uint64("sold", 0, "Units already sold")
	quantity := fs.Uint64("quantity", 1, "Units to price")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: curvesale quote [options]

Price a prospective purchase at a given sold level. Prints the spot
price, the exact batch cost, the platform fee, and the total charge.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Spot price and cost for one unit at the start of the sale
  curvesale quote

  # Batch of 100 after a million units sold
  curvesale quote --sold 1000000 --quantity 100
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	params := curve.Params{BasePrice: *base, TotalSupply: *supply, SmoothingFactor: *smoothing}
	if err := params.Validate(); err != nil {
		return err
	}

	price, err := params.PriceAt(*sold)
	if err != nil {
		return err
	}
	cost, fee, err := params.PurchaseCost(*sold, *quantity, *feeBps)
	if err != nil {
		return err
	}
	total := new(uint256.Int).Add(cost, fee)

	fmt.Printf("Spot price at %d sold: %s\n", *sold, price.Dec())
	fmt.Printf("Cost of %d units:     %s\n", *quantity, cost.Dec())
	fmt.Printf("Platform fee (%d bps): %s\n", *feeBps, fee.Dec())
	fmt.Printf("Total charge:          %s\n", total.Dec())
	return nil
}
