package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/curvesale-xyz/go-curvesale/curve"
	"github.com/curvesale-xyz/go-curvesale/extledger"
	"github.com/curvesale-xyz/go-curvesale/httpapi"
	"github.com/curvesale-xyz/go-curvesale/sale"
	"github.com/curvesale-xyz/go-curvesale/salestore"
)

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "Listen address")
	base := fs.Uint64("base", 30_000_000, "Base price per unit")
	supply := fs.Uint64("supply", 2_000_000, "Total sale supply in units")
	smoothing := fs.Uint64("smoothing", 200_000, "Curve smoothing factor")
	feeBps := fs.Uint64("fee", 300, "Platform fee in basis points")
	owner := fs.String("owner", "owner", "Administrative owner identity")
	feeRecipient := fs.String("fee-recipient", "treasury", "Fee payout recipient")
	dbPath := fs.String("db", "", "SQLite database path (in-memory state when empty)")
	fund := fs.String("fund", "", "Pre-funded buyers (format: alice=1000000,bob=500000)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: curvesale serve [options]

Serve the sale over HTTP. With --db, sale state and purchase records
persist across restarts; the ledger is rehydrated on startup.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # In-memory demo sale with two funded buyers
  curvesale serve --base 100 --supply 50 --smoothing 10 --fund "alice=20000,bob=20000"

  # Persistent sale at the reference parameters
  curvesale serve --db sale.db
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	payment := extledger.NewMemoryPayment()
	if err := fundBuyers(payment, *fund); err != nil {
		return err
	}

	// The issuance guard closes over the ledger, which is created
	// after it; by the time any transfer is attempted the ledger is
	// set.
	var ledger *sale.Ledger
	issuance := extledger.NewMemoryIssuance(func() bool { return ledger.TransfersAllowed() })

	ledger, err = sale.NewLedger(sale.Config{
		Curve:        curve.Params{BasePrice: *base, TotalSupply: *supply, SmoothingFactor: *smoothing},
		FeeBps:       *feeBps,
		FeeRecipient: *feeRecipient,
		Owner:        *owner,
		Payment:      payment,
		Issuance:     issuance,
	})
	if err != nil {
		return err
	}

	var store salestore.Store
	if *dbPath != "" {
		store, err = salestore.NewSQLiteStore(*dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
	} else {
		store = salestore.NewMemoryStore()
	}

	snap, err := store.LoadState(context.Background())
	switch {
	case err == nil:
		if err := ledger.Restore(snap.UnitsSold, snap.Status); err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
		logger.Info("restored sale state",
			zap.Uint64("units_sold", snap.UnitsSold),
			zap.String("status", snap.Status.String()),
		)
	case errors.Is(err, salestore.ErrNoState):
	default:
		return fmt.Errorf("load state: %w", err)
	}

	ledger.AddObserver(salestore.NewRecorder(store))

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	httpapi.NewHandler(ledger, logger).Register(engine)

	logger.Info("serving sale",
		zap.String("addr", *addr),
		zap.Uint64("total_supply", ledger.Curve().TotalSupply),
		zap.String("status", ledger.Status().String()),
	)
	return engine.Run(*addr)
}

// fundBuyers mints and approves balances from a comma-separated
// buyer=amount list.
func fundBuyers(payment *extledger.MemoryPayment, spec string) error {
	if spec == "" {
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		name, amount, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --fund entry %q", pair)
		}
		value, err := uint256.FromDecimal(amount)
		if err != nil {
			return fmt.Errorf("invalid --fund amount %q: %w", amount, err)
		}
		payment.Mint(name, value)
		payment.Approve(name, value)
	}
	return nil
}
