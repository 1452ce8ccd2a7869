package sale

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/curve"
	"github.com/curvesale-xyz/go-curvesale/extledger"
)

// testParams keeps purchase sums small enough to reason about by hand:
// 50 units, base price 100, smoothing 10, 3% fee. Full sell-out costs
// 10485 with 314 total fees; the first 5 units cost 516 with fee 15.
var testParams = curve.Params{
	BasePrice:       100,
	TotalSupply:     50,
	SmoothingFactor: 10,
}

type fixture struct {
	ledger   *Ledger
	payment  *extledger.MemoryPayment
	issuance *extledger.MemoryIssuance
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	payment := extledger.NewMemoryPayment()
	f := &fixture{payment: payment}

	f.issuance = extledger.NewMemoryIssuance(func() bool {
		return f.ledger != nil && f.ledger.TransfersAllowed()
	})

	ledger, err := NewLedger(Config{
		Curve:        testParams,
		FeeBps:       300,
		FeeRecipient: "treasury",
		Owner:        "owner",
		Payment:      payment,
		Issuance:     f.issuance,
	})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	f.ledger = ledger
	return f
}

func (f *fixture) fund(buyer string, amount uint64) {
	f.payment.Mint(buyer, uint256.NewInt(amount))
	f.payment.Approve(buyer, uint256.NewInt(amount))
}

type captureObserver struct {
	records    []*PurchaseRecord
	statuses   []Status
	finalPrice *uint256.Int
}

func (c *captureObserver) PurchaseMade(rec *PurchaseRecord)      { c.records = append(c.records, rec) }
func (c *captureObserver) StatusChanged(status Status)           { c.statuses = append(c.statuses, status) }
func (c *captureObserver) SaleCompleted(finalPrice *uint256.Int) { c.finalPrice = finalPrice }

func TestNewLedgerValidation(t *testing.T) {
	payment := extledger.NewMemoryPayment()
	issuance := extledger.NewMemoryIssuance(nil)

	bad := []Config{
		{Curve: curve.Params{}, FeeBps: 300, FeeRecipient: "t", Owner: "o", Payment: payment, Issuance: issuance},
		{Curve: testParams, FeeBps: 10_001, FeeRecipient: "t", Owner: "o", Payment: payment, Issuance: issuance},
		{Curve: testParams, FeeBps: 300, FeeRecipient: "", Owner: "o", Payment: payment, Issuance: issuance},
		{Curve: testParams, FeeBps: 300, FeeRecipient: "t", Owner: "", Payment: payment, Issuance: issuance},
		{Curve: testParams, FeeBps: 300, FeeRecipient: "t", Owner: "o", Payment: nil, Issuance: issuance},
		{Curve: testParams, FeeBps: 300, FeeRecipient: "t", Owner: "o", Payment: payment, Issuance: nil},
	}
	for i, cfg := range bad {
		if _, err := NewLedger(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("config %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestPurchase(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	rec, err := f.ledger.Purchase("alice", 5)
	if err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}

	if rec.ID == "" {
		t.Error("record has empty ID")
	}
	if rec.Buyer != "alice" || rec.Units != 5 || rec.UnitsSold != 5 {
		t.Errorf("record = %+v, want alice/5/5", rec)
	}
	if !rec.TokenCost.Eq(uint256.NewInt(516)) {
		t.Errorf("cost = %s, want 516", rec.TokenCost.Dec())
	}
	if !rec.PlatformFee.Eq(uint256.NewInt(15)) {
		t.Errorf("fee = %s, want 15", rec.PlatformFee.Dec())
	}

	if got := f.issuance.BalanceOf("alice"); got != 5 {
		t.Errorf("alice unit balance = %d, want 5", got)
	}
	if got := f.payment.BalanceOf("alice"); !got.Eq(uint256.NewInt(100_000 - 531)) {
		t.Errorf("alice funds = %s, want %d", got.Dec(), 100_000-531)
	}
	if got := f.payment.BalanceOf("treasury"); !got.Eq(uint256.NewInt(15)) {
		t.Errorf("treasury funds = %s, want 15", got.Dec())
	}
	if got := f.payment.Custody(); !got.Eq(uint256.NewInt(516)) {
		t.Errorf("custody = %s, want 516", got.Dec())
	}
	if f.ledger.UnitsSold() != 5 || f.ledger.Remaining() != 45 {
		t.Errorf("sold/remaining = %d/%d, want 5/45", f.ledger.UnitsSold(), f.ledger.Remaining())
	}
}

func TestPurchaseRejections(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	if _, err := f.ledger.Purchase("alice", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero quantity: got %v", err)
	}
	if _, err := f.ledger.Purchase("alice", 51); !errors.Is(err, ErrSupplyExceeded) {
		t.Errorf("over supply: got %v", err)
	}
	if f.ledger.UnitsSold() != 0 {
		t.Errorf("failed purchase changed unitsSold to %d", f.ledger.UnitsSold())
	}

	// bob approved nothing
	f.payment.Mint("bob", uint256.NewInt(100_000))
	if _, err := f.ledger.Purchase("bob", 1); !errors.Is(err, ErrInsufficientAuthorization) {
		t.Errorf("no authorization: got %v", err)
	}
	// carol approved plenty but holds nothing
	f.payment.Approve("carol", uint256.NewInt(100_000))
	if _, err := f.ledger.Purchase("carol", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("no funds: got %v", err)
	}

	if err := f.ledger.Pause("owner"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if _, err := f.ledger.Purchase("alice", 1); !errors.Is(err, ErrSaleNotActive) {
		t.Errorf("paused: got %v", err)
	}
}

func TestNoOverselling(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	if _, err := f.ledger.Purchase("alice", 48); err != nil {
		t.Fatalf("Purchase(48) failed: %v", err)
	}
	if _, err := f.ledger.Purchase("alice", 3); !errors.Is(err, ErrSupplyExceeded) {
		t.Errorf("boundary crossing: got %v", err)
	}
	if f.ledger.UnitsSold() != 48 {
		t.Errorf("unitsSold = %d after rejected purchase, want 48", f.ledger.UnitsSold())
	}
	if _, err := f.ledger.Purchase("alice", 2); err != nil {
		t.Fatalf("final Purchase(2) failed: %v", err)
	}
	if f.ledger.UnitsSold() != 50 {
		t.Errorf("unitsSold = %d, want 50", f.ledger.UnitsSold())
	}
}

func TestAutoCompletion(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)
	obs := &captureObserver{}
	f.ledger.AddObserver(obs)

	rec, err := f.ledger.Purchase("alice", testParams.TotalSupply)
	if err != nil {
		t.Fatalf("sell-out purchase failed: %v", err)
	}
	if !rec.TokenCost.Eq(uint256.NewInt(10_485)) {
		t.Errorf("sell-out cost = %s, want 10485", rec.TokenCost.Dec())
	}
	if !rec.PlatformFee.Eq(uint256.NewInt(314)) {
		t.Errorf("sell-out fee = %s, want 314", rec.PlatformFee.Dec())
	}

	if f.ledger.Status() != StatusCompleted {
		t.Errorf("status = %s, want completed", f.ledger.Status())
	}
	if obs.finalPrice == nil || !obs.finalPrice.Eq(uint256.NewInt(600)) {
		t.Errorf("final price notice = %v, want 600", obs.finalPrice)
	}
	if len(obs.records) != 1 {
		t.Errorf("observer saw %d records, want 1", len(obs.records))
	}

	if _, err := f.ledger.Purchase("alice", 1); !errors.Is(err, ErrSaleNotActive) {
		t.Errorf("purchase after completion: got %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	obs := &captureObserver{}
	f.ledger.AddObserver(obs)

	if err := f.ledger.Pause("mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner pause: got %v", err)
	}
	if err := f.ledger.Resume("owner"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume while active: got %v", err)
	}
	if err := f.ledger.Pause("owner"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := f.ledger.Pause("owner"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double pause: got %v", err)
	}
	if err := f.ledger.Resume("owner"); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if f.ledger.Status() != StatusActive {
		t.Errorf("status = %s after resume, want active", f.ledger.Status())
	}

	// Only the two applied transitions notify; rejected attempts do not.
	want := []Status{StatusPaused, StatusActive}
	if len(obs.statuses) != len(want) {
		t.Fatalf("observed %d status changes, want %d", len(obs.statuses), len(want))
	}
	for i, s := range want {
		if obs.statuses[i] != s {
			t.Errorf("status change %d = %s, want %s", i, obs.statuses[i], s)
		}
	}
}

func TestResumeWithNoSupplyLeft(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Restore(testParams.TotalSupply, StatusPaused); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if err := f.ledger.Resume("owner"); !errors.Is(err, ErrSupplyExceeded) {
		t.Errorf("resume with exhausted supply: got %v", err)
	}
}

func TestCompleteManually(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)
	obs := &captureObserver{}
	f.ledger.AddObserver(obs)

	if _, err := f.ledger.Purchase("alice", 10); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if err := f.ledger.CompleteManually("mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner complete: got %v", err)
	}
	if err := f.ledger.CompleteManually("owner"); err != nil {
		t.Fatalf("CompleteManually failed: %v", err)
	}
	if f.ledger.Status() != StatusCompleted {
		t.Errorf("status = %s, want completed", f.ledger.Status())
	}
	// Completion notice carries the price at the sold level, not the ceiling.
	want, _ := testParams.PriceAt(10)
	if obs.finalPrice == nil || !obs.finalPrice.Eq(want) {
		t.Errorf("final price = %v, want %s", obs.finalPrice, want.Dec())
	}
	if err := f.ledger.CompleteManually("owner"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double complete: got %v", err)
	}
	if err := f.ledger.Resume("owner"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume after completion: got %v", err)
	}
}

func TestTransferGate(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	if _, err := f.ledger.Purchase("alice", 10); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if err := f.issuance.Transfer("alice", "bob", 4); !errors.Is(err, extledger.ErrTransferRestricted) {
		t.Errorf("transfer while active: got %v", err)
	}
	if err := f.ledger.Pause("owner"); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if err := f.issuance.Transfer("alice", "bob", 4); !errors.Is(err, extledger.ErrTransferRestricted) {
		t.Errorf("transfer while paused: got %v", err)
	}
	if err := f.ledger.CompleteManually("owner"); err != nil {
		t.Fatalf("CompleteManually failed: %v", err)
	}
	if err := f.issuance.Transfer("alice", "bob", 4); err != nil {
		t.Errorf("transfer after completion failed: %v", err)
	}
	if got := f.issuance.BalanceOf("bob"); got != 4 {
		t.Errorf("bob units = %d, want 4", got)
	}
}

type failingIssuance struct{}

func (failingIssuance) Credit(string, uint64) error { return fmt.Errorf("mint rejected") }
func (failingIssuance) BalanceOf(string) uint64     { return 0 }

func TestRollbackOnCreditFailure(t *testing.T) {
	payment := extledger.NewMemoryPayment()
	ledger, err := NewLedger(Config{
		Curve:        testParams,
		FeeBps:       300,
		FeeRecipient: "treasury",
		Owner:        "owner",
		Payment:      payment,
		Issuance:     failingIssuance{},
	})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	payment.Mint("alice", uint256.NewInt(100_000))
	payment.Approve("alice", uint256.NewInt(100_000))

	if _, err := ledger.Purchase("alice", 5); err == nil {
		t.Fatal("expected purchase to fail")
	}
	if ledger.UnitsSold() != 0 {
		t.Errorf("unitsSold = %d after rollback, want 0", ledger.UnitsSold())
	}
	if got := payment.BalanceOf("alice"); !got.Eq(uint256.NewInt(100_000)) {
		t.Errorf("alice funds = %s after rollback, want 100000", got.Dec())
	}
	if !payment.Custody().IsZero() {
		t.Errorf("custody = %s after rollback, want 0", payment.Custody().Dec())
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	if _, err := f.ledger.Purchase("alice", 50); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	// custody now holds the 10485 token cost; fee already paid out
	if err := f.ledger.Withdraw("mallory", uint256.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner withdraw: got %v", err)
	}
	if err := f.ledger.Withdraw("owner", uint256.NewInt(10_485)); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if got := f.payment.BalanceOf("owner"); !got.Eq(uint256.NewInt(10_485)) {
		t.Errorf("owner funds = %s, want 10485", got.Dec())
	}
	if err := f.ledger.Withdraw("owner", uint256.NewInt(1)); !errors.Is(err, extledger.ErrInsufficientCustody) {
		t.Errorf("over-withdraw: got %v", err)
	}
}

func TestWithdrawLockedBeforeCompletion(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)
	if _, err := f.ledger.Purchase("alice", 10); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if err := f.ledger.Withdraw("owner", uint256.NewInt(1)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("withdraw while active: got %v", err)
	}
}

func TestSetFeeRecipient(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	if err := f.ledger.SetFeeRecipient("mallory", "mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner redirect: got %v", err)
	}
	if err := f.ledger.SetFeeRecipient("owner", "treasury2"); err != nil {
		t.Fatalf("SetFeeRecipient failed: %v", err)
	}
	if _, err := f.ledger.Purchase("alice", 5); err != nil {
		t.Fatalf("Purchase failed: %v", err)
	}
	if got := f.payment.BalanceOf("treasury2"); !got.Eq(uint256.NewInt(15)) {
		t.Errorf("treasury2 funds = %s, want 15", got.Dec())
	}
	if !f.payment.BalanceOf("treasury").IsZero() {
		t.Error("old recipient still received fees")
	}
}

func TestQuoteHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.fund("alice", 100_000)

	cost, fee, err := f.ledger.Quote(5)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !cost.Eq(uint256.NewInt(516)) || !fee.Eq(uint256.NewInt(15)) {
		t.Errorf("quote = %s/%s, want 516/15", cost.Dec(), fee.Dec())
	}
	if f.ledger.UnitsSold() != 0 {
		t.Errorf("Quote mutated unitsSold to %d", f.ledger.UnitsSold())
	}
	if _, _, err := f.ledger.Quote(51); !errors.Is(err, ErrSupplyExceeded) {
		t.Errorf("oversized quote: got %v", err)
	}
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	f := newFixture(t)

	const buyers = 80 // more buyers than the 50 remaining units
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		name := fmt.Sprintf("buyer-%d", i)
		f.fund(name, 100_000)
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = f.ledger.Purchase(name, 1)
		}(i, name)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSupplyExceeded), errors.Is(err, ErrSaleNotActive):
			// Losers of the race see the updated supply or the completed
			// sale, depending on when they acquired the lock.
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != int(testParams.TotalSupply) {
		t.Errorf("%d purchases succeeded, want %d", ok, testParams.TotalSupply)
	}
	if f.ledger.UnitsSold() != testParams.TotalSupply {
		t.Errorf("unitsSold = %d, want %d", f.ledger.UnitsSold(), testParams.TotalSupply)
	}
	if f.ledger.Status() != StatusCompleted {
		t.Errorf("status = %s, want completed", f.ledger.Status())
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusPaused, StatusCompleted} {
		parsed, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%s) failed: %v", s, err)
		}
		if parsed != s {
			t.Errorf("round trip %s -> %s", s, parsed)
		}
	}
	if _, err := ParseStatus("closed"); err == nil {
		t.Error("expected error for unknown status")
	}
}

// flakyPayment fails TransferOut to one recipient a set number of
// times, then behaves normally.
type flakyPayment struct {
	*extledger.MemoryPayment
	failFor string
	fails   int
}

func (p *flakyPayment) TransferOut(recipient string, amount *uint256.Int) error {
	if recipient == p.failFor && p.fails > 0 {
		p.fails--
		return fmt.Errorf("payment ledger offline")
	}
	return p.MemoryPayment.TransferOut(recipient, amount)
}

func TestPurchaseSurvivesFeePayoutFailure(t *testing.T) {
	payment := &flakyPayment{
		MemoryPayment: extledger.NewMemoryPayment(),
		failFor:       "treasury",
		fails:         1,
	}
	issuance := extledger.NewMemoryIssuance(nil)
	ledger, err := NewLedger(Config{
		Curve:        testParams,
		FeeBps:       300,
		FeeRecipient: "treasury",
		Owner:        "owner",
		Payment:      payment,
		Issuance:     issuance,
	})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	obs := &captureObserver{}
	ledger.AddObserver(obs)
	payment.Mint("alice", uint256.NewInt(20_000))
	payment.Approve("alice", uint256.NewInt(20_000))

	// The payout fails but the purchase stands: units credited, record
	// emitted, fee retained in custody as accrued.
	rec, err := ledger.Purchase("alice", 5)
	if err != nil {
		t.Fatalf("purchase failed on fee payout: %v", err)
	}
	if !rec.PlatformFee.Eq(uint256.NewInt(15)) {
		t.Errorf("fee = %s, want 15", rec.PlatformFee.Dec())
	}
	if got := issuance.BalanceOf("alice"); got != 5 {
		t.Errorf("alice units = %d, want 5", got)
	}
	if len(obs.records) != 1 {
		t.Errorf("observed %d records, want 1", len(obs.records))
	}
	if !ledger.AccruedFees().Eq(uint256.NewInt(15)) {
		t.Errorf("accrued fees = %s, want 15", ledger.AccruedFees().Dec())
	}
	if !payment.BalanceOf("treasury").IsZero() {
		t.Errorf("treasury balance = %s, want 0", payment.BalanceOf("treasury").Dec())
	}

	// The next purchase pays out the backlog together with its own fee:
	// units 5-9 cost 565 with fee 16.
	rec2, err := ledger.Purchase("alice", 5)
	if err != nil {
		t.Fatalf("second purchase failed: %v", err)
	}
	if !rec2.TokenCost.Eq(uint256.NewInt(565)) || !rec2.PlatformFee.Eq(uint256.NewInt(16)) {
		t.Errorf("second purchase = %s/%s, want 565/16", rec2.TokenCost.Dec(), rec2.PlatformFee.Dec())
	}
	if !ledger.AccruedFees().IsZero() {
		t.Errorf("accrued fees = %s after retry, want 0", ledger.AccruedFees().Dec())
	}
	if got := payment.BalanceOf("treasury"); !got.Eq(uint256.NewInt(31)) {
		t.Errorf("treasury balance = %s, want 31", got.Dec())
	}
	if got := payment.Custody(); !got.Eq(uint256.NewInt(1081)) {
		t.Errorf("custody = %s, want 1081 (cost only)", got.Dec())
	}
}
