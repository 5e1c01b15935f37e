package lending

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// twoAssetMarket wires an asset A held as collateral (lend factor 0.5) and an
// asset B that is only ever borrowed (borrow factor 1), both priced 1e18 and
// carrying a flat zero-growth rate model.
func twoAssetMarket(t *testing.T) *testMarket {
	t.Helper()
	market := newTestMarket(t)
	market.addAsset(testAddr(0x0A), wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))
	market.addAsset(testAddr(0x0B), uint256.NewInt(0), wadValue(1_000_000_000_000_000_000))
	for _, asset := range []byte{0x0A, 0x0B} {
		if err := market.ledger.SetInterestRateModel(market.admin, testAddr(asset), fixedRateModel{rate: fixedpoint.Wad.Clone()}); err != nil {
			t.Fatalf("set rate model: %v", err)
		}
	}
	return market
}

func TestBorrowCapacityBoundary(t *testing.T) {
	market := twoAssetMarket(t)
	assetA := testAddr(0x0A)
	assetB := testAddr(0x0B)
	supplier := testAddr(0x10)
	user := testAddr(0x11)

	market.fund(assetB, supplier, wadValue(1_000_000_000_000_000_000))
	market.deposit(assetB, supplier, wadValue(1_000_000_000_000_000_000), false)
	market.fund(assetA, user, wadValue(1_000_000_000_000_000_000))
	market.deposit(assetA, user, wadValue(1_000_000_000_000_000_000), true)

	capacity, err := market.ledger.MaxBorrowable(user)
	if err != nil {
		t.Fatalf("max borrowable: %v", err)
	}
	if !capacity.Eq(wadValue(500_000_000_000_000_000)) {
		t.Fatalf("capacity: got %s want 5e17", capacity.Dec())
	}

	atLimit := wadValue(500_000_000_000_000_000)
	ok, err := market.ledger.CanBorrow(assetB, user, atLimit)
	if err != nil {
		t.Fatalf("can borrow at limit: %v", err)
	}
	if !ok {
		t.Fatalf("borrow at the exact capacity limit should pass")
	}
	overLimit := new(uint256.Int).AddUint64(atLimit, 1)
	ok, err = market.ledger.CanBorrow(assetB, user, overLimit)
	if err != nil {
		t.Fatalf("can borrow over limit: %v", err)
	}
	if ok {
		t.Fatalf("borrow one unit over capacity should fail")
	}

	if _, err := market.ledger.Borrow(assetB, user, atLimit); err != nil {
		t.Fatalf("borrow at limit: %v", err)
	}
	health, err := market.ledger.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !health.Eq(fixedpoint.Wad) {
		t.Fatalf("boundary health factor: got %s want 1e18", health.Dec())
	}
	liquidatable, err := market.ledger.UserLiquidatable(user)
	if err != nil {
		t.Fatalf("user liquidatable: %v", err)
	}
	if liquidatable {
		t.Fatalf("health factor of exactly 1e18 must not be liquidatable")
	}

	if _, err := market.ledger.Borrow(assetB, user, uint256.NewInt(1)); !errors.Is(err, ErrHealthFactorTooLow) {
		t.Fatalf("expected health factor error, got %v", err)
	}
}

func TestBorrowAutoEnablesCollateral(t *testing.T) {
	market := twoAssetMarket(t)
	assetA := testAddr(0x0A)
	assetB := testAddr(0x0B)
	supplier := testAddr(0x10)
	user := testAddr(0x11)

	market.fund(assetB, supplier, wadValue(1_000_000_000_000_000_000))
	market.deposit(assetB, supplier, wadValue(1_000_000_000_000_000_000), false)
	market.fund(assetA, user, wadValue(1_000_000_000_000_000_000))
	market.deposit(assetA, user, wadValue(1_000_000_000_000_000_000), true)

	if _, err := market.ledger.Borrow(assetB, user, wadValue(100_000_000_000_000_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	set := market.ledger.CollateralOf(user)
	found := false
	for _, asset := range set {
		if asset == assetB {
			found = true
		}
	}
	if !found {
		t.Fatalf("borrowed asset missing from collateral set: %v", set)
	}
}

func TestZeroDebtHealthIsInfinite(t *testing.T) {
	market := twoAssetMarket(t)
	assetA := testAddr(0x0A)
	user := testAddr(0x11)
	market.fund(assetA, user, wadValue(1_000_000_000_000_000_000))
	market.deposit(assetA, user, wadValue(1_000_000_000_000_000_000), true)

	health, err := market.ledger.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !health.Eq(new(uint256.Int).SetAllOne()) {
		t.Fatalf("expected saturated health factor, got %s", health.Dec())
	}
	liquidatable, err := market.ledger.UserLiquidatable(user)
	if err != nil {
		t.Fatalf("user liquidatable: %v", err)
	}
	if liquidatable {
		t.Fatalf("debt-free user flagged liquidatable")
	}
}

func TestUnpricedCollateralCountsForNothing(t *testing.T) {
	market := twoAssetMarket(t)
	assetA := testAddr(0x0A)
	user := testAddr(0x11)
	market.fund(assetA, user, wadValue(1_000_000_000_000_000_000))
	market.deposit(assetA, user, wadValue(1_000_000_000_000_000_000), true)

	market.feed.SetUnderlyingPrice(assetA, nil)
	capacity, err := market.ledger.MaxBorrowable(user)
	if err != nil {
		t.Fatalf("max borrowable: %v", err)
	}
	if !capacity.IsZero() {
		t.Fatalf("unpriced collateral produced capacity %s", capacity.Dec())
	}
}
