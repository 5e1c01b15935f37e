package lending

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type borrowActors struct {
	supplier common.Address
	user     common.Address
}

func borrowScenario(t *testing.T) (*testMarket, borrowActors) {
	t.Helper()
	market := twoAssetMarket(t)
	actors := borrowActors{supplier: testAddr(0x10), user: testAddr(0x11)}
	market.fund(testAddr(0x0B), actors.supplier, wadValue(2_000_000_000_000_000_000))
	market.deposit(testAddr(0x0B), actors.supplier, wadValue(2_000_000_000_000_000_000), false)
	market.fund(testAddr(0x0A), actors.user, wadValue(2_000_000_000_000_000_000))
	market.deposit(testAddr(0x0A), actors.user, wadValue(2_000_000_000_000_000_000), true)
	return market, actors
}

func TestBorrowReleasesUnderlyingAndMintsDebt(t *testing.T) {
	market, actors := borrowScenario(t)
	assetB := testAddr(0x0B)

	shares, err := market.ledger.Borrow(assetB, actors.user, wadValue(800_000_000_000_000_000))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if !shares.Eq(wadValue(800_000_000_000_000_000)) {
		t.Fatalf("bootstrap debt shares: got %s", shares.Dec())
	}
	if got := market.tokens[assetB].BalanceOf(actors.user); !got.Eq(wadValue(800_000_000_000_000_000)) {
		t.Fatalf("borrowed underlying: got %s", got.Dec())
	}
	debt, err := market.ledger.DebtOf(assetB, actors.user)
	if err != nil {
		t.Fatalf("debt of: %v", err)
	}
	if !debt.Eq(wadValue(800_000_000_000_000_000)) {
		t.Fatalf("debt: got %s", debt.Dec())
	}
	total, err := market.ledger.TotalDebtShares(assetB)
	if err != nil {
		t.Fatalf("total debt shares: %v", err)
	}
	if !total.Eq(shares) {
		t.Fatalf("total debt shares: got %s", total.Dec())
	}
}

func TestRepayKeepsOneUnitBuffer(t *testing.T) {
	market, actors := borrowScenario(t)
	assetB := testAddr(0x0B)

	if _, err := market.ledger.Borrow(assetB, actors.user, wadValue(800_000_000_000_000_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := market.ledger.Repay(assetB, actors.user, wadValue(800_000_000_000_000_000)); err != nil {
		t.Fatalf("repay: %v", err)
	}

	debt, err := market.ledger.DebtOf(assetB, actors.user)
	if err != nil {
		t.Fatalf("debt of: %v", err)
	}
	if !debt.IsZero() {
		t.Fatalf("residual debt: %s", debt.Dec())
	}
	// The transfer pulls amount-1, leaving exactly one underlying unit with
	// the borrower.
	if got := market.tokens[assetB].BalanceOf(actors.user); !got.Eq(uint256.NewInt(1)) {
		t.Fatalf("borrower remainder: got %s want 1", got.Dec())
	}
}

func TestRepayBeyondDebtFails(t *testing.T) {
	market, actors := borrowScenario(t)
	assetB := testAddr(0x0B)

	if _, err := market.ledger.Borrow(assetB, actors.user, wadValue(500_000_000_000_000_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := market.ledger.Repay(assetB, actors.user, wadValue(600_000_000_000_000_000)); !errors.Is(err, ErrInsufficientDebt) {
		t.Fatalf("expected insufficient debt, got %v", err)
	}
}

func TestBorrowBeyondVaultLiquidityFails(t *testing.T) {
	market := twoAssetMarket(t)
	assetA := testAddr(0x0A)
	assetB := testAddr(0x0B)
	supplier := testAddr(0x10)
	user := testAddr(0x11)

	market.fund(assetB, supplier, wadValue(100_000_000_000_000_000))
	market.deposit(assetB, supplier, wadValue(100_000_000_000_000_000), false)
	market.fund(assetA, user, wadValue(2_000_000_000_000_000_000))
	market.deposit(assetA, user, wadValue(2_000_000_000_000_000_000), true)

	// Within risk capacity but past what the vault holds.
	if _, err := market.ledger.Borrow(assetB, user, wadValue(200_000_000_000_000_000)); err == nil {
		t.Fatalf("expected vault liquidity failure")
	}
	debt, err := market.ledger.DebtOf(assetB, user)
	if err != nil {
		t.Fatalf("debt of: %v", err)
	}
	if !debt.IsZero() {
		t.Fatalf("debt recorded despite failed release: %s", debt.Dec())
	}
	// The provisional collateral enablement rolls back with the rest.
	if got := market.ledger.CollateralOf(user); len(got) != 1 || got[0] != assetA {
		t.Fatalf("collateral set changed by failed borrow: %v", got)
	}
}

func TestRejectedBorrowLeavesCollateralUnchanged(t *testing.T) {
	market, actors := borrowScenario(t)
	assetA := testAddr(0x0A)
	assetB := testAddr(0x0B)

	// Far past the user's capacity, so the health check rejects the borrow.
	if _, err := market.ledger.Borrow(assetB, actors.user, wadValue(1_500_000_000_000_000_000)); !errors.Is(err, ErrHealthFactorTooLow) {
		t.Fatalf("expected health rejection, got %v", err)
	}
	if got := market.ledger.CollateralOf(actors.user); len(got) != 1 || got[0] != assetA {
		t.Fatalf("collateral set changed by rejected borrow: %v", got)
	}

	// A user with nothing deposited ends with an empty set, not a stray
	// enablement.
	stranger := testAddr(0x12)
	if _, err := market.ledger.Borrow(assetB, stranger, wadValue(1)); !errors.Is(err, ErrHealthFactorTooLow) {
		t.Fatalf("expected health rejection, got %v", err)
	}
	if got := market.ledger.CollateralOf(stranger); len(got) != 0 {
		t.Fatalf("collateral enabled despite rejected borrow: %v", got)
	}
}
