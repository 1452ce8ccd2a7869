package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/commit"
	"github.com/curvesale-xyz/go-curvesale/curve"
	"github.com/curvesale-xyz/go-curvesale/extledger"
	"github.com/curvesale-xyz/go-curvesale/recordlog"
	"github.com/curvesale-xyz/go-curvesale/sale"
)

func simulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	base := fs.Uint64("base", 100, "Base price per unit")
	supply := fs.Uint64("supply", 50, "Total sale supply in units")
	smoothing := fs.Uint64("smoothing", 10, "Curve smoothing factor")
	feeBps := fs.Uint64("fee", 300, "Platform fee in basis points")
	buyers := fs.Int("buyers", 8, "Number of simulated buyers")
	maxBatch := fs.Uint64("max-batch", 10, "Largest batch a buyer requests")
	seed := fs.Int64("seed", 1, "Random seed")
	output := fs.String("output", "", "Record log output file (.jsonl or .csv)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: curvesale simulate [options]

Run randomized purchases against in-memory payment and issuance
ledgers until the sale sells out, then print a summary and the
commitment head over the record log.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Small deterministic sellout
  curvesale simulate --seed 7

  # Reference parameters, log to JSONL
  curvesale simulate --base 30000000 --supply 2000000 --smoothing 200000 --max-batch 5000 --output records.jsonl
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	payment := extledger.NewMemoryPayment()
	ledger, err := sale.NewLedger(sale.Config{
		Curve:        curve.Params{BasePrice: *base, TotalSupply: *supply, SmoothingFactor: *smoothing},
		FeeBps:       *feeBps,
		FeeRecipient: "treasury",
		Owner:        "owner",
		Payment:      payment,
		Issuance:     extledger.NewMemoryIssuance(nil),
	})
	if err != nil {
		return err
	}

	log := recordlog.NewLog()
	chain := commit.NewChain()
	ledger.AddObserver(log)
	ledger.AddObserver(chain)

	// Every buyer gets enough funds to clear the whole sale alone.
	ceiling := ledger.Curve().Ceiling()
	bankroll := new(uint256.Int).Mul(ceiling, uint256.NewInt(*supply+1))
	names := make([]string, *buyers)
	for i := range names {
		names[i] = fmt.Sprintf("buyer-%02d", i+1)
		payment.Mint(names[i], bankroll)
		payment.Approve(names[i], bankroll)
	}

	rng := rand.New(rand.NewSource(*seed))
	batchCap := *maxBatch
	if batchCap == 0 {
		batchCap = 1
	}
	attempts := 0
	for ledger.Status() == sale.StatusActive {
		buyer := names[rng.Intn(len(names))]
		quantity := rng.Uint64()%batchCap + 1
		attempts++
		if _, err := ledger.Purchase(buyer, quantity); err != nil {
			if errors.Is(err, sale.ErrSupplyExceeded) {
				continue
			}
			if errors.Is(err, sale.ErrSaleNotActive) {
				break
			}
			return err
		}
	}

	summary := log.Summarize()
	fmt.Printf("Sale complete after %d attempts\n", attempts)
	fmt.Printf("  Purchases:   %d\n", summary.Records)
	fmt.Printf("  Units sold:  %d\n", summary.Units)
	fmt.Printf("  Gross:       %s\n", summary.Gross.Dec())
	fmt.Printf("  Fees:        %s\n", summary.Fees.Dec())
	fmt.Printf("  Buyers:      %d\n", summary.Buyers)
	fmt.Printf("  Final price: %s\n", log.FinalPrice().Dec())
	fmt.Printf("  Custody:     %s\n", payment.Custody().Dec())
	fmt.Printf("  Commit head: %s\n", chain.HeadHex())

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		if strings.HasSuffix(*output, ".csv") {
			err = recordlog.WriteCSV(f, log.Records())
		} else {
			err = recordlog.WriteJSONL(f, log.Records())
		}
		if err != nil {
			return fmt.Errorf("write record log: %w", err)
		}
		fmt.Printf("Record log written to %s\n", *output)
	}
	return nil
}
