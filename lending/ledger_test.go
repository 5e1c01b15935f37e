package lending

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/custody"
	"lendcore/oracle"
)

type testClock struct {
	height uint64
}

func (c *testClock) Now() uint64 { return c.height }

type allowAll struct{}

func (allowAll) Authorize(common.Address) bool { return true }

type fixedRateModel struct {
	rate *uint256.Int
}

func (m fixedRateModel) GetBorrowRate(_, _, _ *uint256.Int) *uint256.Int {
	return m.rate.Clone()
}

type flashBorrowerFunc func(asset common.Address, amount *uint256.Int) error

func (f flashBorrowerFunc) OnFlashBorrow(asset common.Address, amount *uint256.Int) error {
	return f(asset, amount)
}

func testAddr(suffix byte) common.Address {
	var addr common.Address
	addr[len(addr)-1] = suffix
	return addr
}

func wadValue(raw uint64) *uint256.Int {
	return uint256.NewInt(raw)
}

type testMarket struct {
	t      *testing.T
	ledger *Ledger
	clock  *testClock
	feed   *oracle.Feed
	admin  common.Address
	tokens map[common.Address]*custody.Token
	vaults map[common.Address]*custody.Vault
}

func newTestMarket(t *testing.T) *testMarket {
	t.Helper()
	clock := &testClock{height: 1}
	feed := oracle.NewFeed()
	bonus := wadValue(50_000_000_000_000_000) // 5%
	ledger := NewLedger(testAddr(0x01), feed, allowAll{}, clock, RiskParameters{LiquidationBonus: bonus})
	return &testMarket{
		t:      t,
		ledger: ledger,
		clock:  clock,
		feed:   feed,
		admin:  testAddr(0xAA),
		tokens: make(map[common.Address]*custody.Token),
		vaults: make(map[common.Address]*custody.Vault),
	}
}

// addAsset configures an 18-decimal asset priced at 1e18 with the given risk
// factors.
func (m *testMarket) addAsset(asset common.Address, lendFactor, borrowFactor *uint256.Int) {
	m.t.Helper()
	token := custody.NewToken(18)
	vaultAddr := asset
	vaultAddr[0] = 0xFF
	vault := custody.NewVault(vaultAddr, token)
	cfg := Configuration{LendFactor: lendFactor, BorrowFactor: borrowFactor}
	if err := m.ledger.Configure(m.admin, asset, token, vault, cfg); err != nil {
		m.t.Fatalf("configure asset: %v", err)
	}
	m.tokens[asset] = token
	m.vaults[asset] = vault
	m.feed.SetUnderlyingPrice(asset, wadValue(1_000_000_000_000_000_000))
}

func (m *testMarket) fund(asset, user common.Address, amount *uint256.Int) {
	m.t.Helper()
	m.tokens[asset].Mint(user, amount)
}

func (m *testMarket) deposit(asset, user common.Address, amount *uint256.Int, enable bool) {
	m.t.Helper()
	if _, err := m.ledger.Deposit(asset, user, amount, enable); err != nil {
		m.t.Fatalf("deposit: %v", err)
	}
}

func TestConfigureRejectsDuplicate(t *testing.T) {
	market := newTestMarket(t)
	asset := testAddr(0x0A)
	market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))

	err := market.ledger.Configure(market.admin, asset, market.tokens[asset], market.vaults[asset], Configuration{})
	if !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("expected duplicate configuration error, got %v", err)
	}
}

func TestConfigureRequiresAuthorization(t *testing.T) {
	clock := &testClock{height: 1}
	feed := oracle.NewFeed()
	ledger := NewLedger(testAddr(0x01), feed, denyAll{}, clock, RiskParameters{})
	token := custody.NewToken(18)
	vault := custody.NewVault(testAddr(0x02), token)

	err := ledger.Configure(testAddr(0xAA), testAddr(0x0A), token, vault, Configuration{})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

type denyAll struct{}

func (denyAll) Authorize(common.Address) bool { return false }

func TestUpdateConfigurationOverwritesFactorsOnly(t *testing.T) {
	market := newTestMarket(t)
	asset := testAddr(0x0A)
	market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))

	updated := Configuration{
		LendFactor:   wadValue(600_000_000_000_000_000),
		BorrowFactor: wadValue(900_000_000_000_000_000),
	}
	if err := market.ledger.UpdateConfiguration(market.admin, asset, updated); err != nil {
		t.Fatalf("update configuration: %v", err)
	}
	cfg, err := market.ledger.ConfigurationOf(asset)
	if err != nil {
		t.Fatalf("configuration of: %v", err)
	}
	if !cfg.LendFactor.Eq(updated.LendFactor) || !cfg.BorrowFactor.Eq(updated.BorrowFactor) {
		t.Fatalf("factors not updated: %+v", cfg)
	}
}

func TestOperationsOnUnknownAssetFail(t *testing.T) {
	market := newTestMarket(t)
	user := testAddr(0x10)
	unknown := testAddr(0x99)

	if _, err := market.ledger.Deposit(unknown, user, wadValue(1), false); !errors.Is(err, ErrAssetNotConfigured) {
		t.Fatalf("deposit: expected not configured, got %v", err)
	}
	if _, err := market.ledger.Borrow(unknown, user, wadValue(1)); !errors.Is(err, ErrAssetNotConfigured) {
		t.Fatalf("borrow: expected not configured, got %v", err)
	}
	if _, err := market.ledger.TotalBorrowed(unknown); !errors.Is(err, ErrAssetNotConfigured) {
		t.Fatalf("total borrowed: expected not configured, got %v", err)
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	amounts := []*uint256.Int{
		uint256.MustFromDecimal("100000"),
		uint256.MustFromDecimal("123456789"),
		uint256.MustFromDecimal("1000000000000000000"),
		uint256.MustFromDecimal("1000000000000000000000000000"),
	}
	for _, amount := range amounts {
		market := newTestMarket(t)
		asset := testAddr(0x0A)
		market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))
		user := testAddr(0x10)
		market.fund(asset, user, amount)

		shares, err := market.ledger.Deposit(asset, user, amount, false)
		if err != nil {
			t.Fatalf("deposit %s: %v", amount.Dec(), err)
		}
		if !market.tokens[asset].BalanceOf(user).IsZero() {
			t.Fatalf("deposit %s: user retains underlying", amount.Dec())
		}
		if _, err := market.ledger.Withdraw(asset, user, amount, false); err != nil {
			t.Fatalf("withdraw %s: %v", amount.Dec(), err)
		}
		if !market.tokens[asset].BalanceOf(user).Eq(amount) {
			t.Fatalf("round trip %s: balance %s", amount.Dec(), market.tokens[asset].BalanceOf(user).Dec())
		}
		position, err := market.ledger.PositionOf(asset, user)
		if err != nil {
			t.Fatalf("position of: %v", err)
		}
		if !position.SupplyShares.IsZero() {
			t.Fatalf("round trip %s: residual shares %s (minted %s)", amount.Dec(), position.SupplyShares.Dec(), shares.Dec())
		}
	}
}

func TestTotalSharesTrackDepositsAndWithdrawals(t *testing.T) {
	market := newTestMarket(t)
	asset := testAddr(0x0A)
	market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))
	user := testAddr(0x10)
	market.fund(asset, user, wadValue(10_000_000_000_000_000_000))

	deposits := []*uint256.Int{wadValue(3_000_000_000_000_000_000), wadValue(2_500_000_000_000_000_000), wadValue(1_500_000_000_000_000_000)}
	withdrawals := []*uint256.Int{wadValue(2_000_000_000_000_000_000), wadValue(1_000_000_000_000_000_000)}

	expected := uint256.NewInt(0)
	for _, amount := range deposits {
		market.deposit(asset, user, amount, false)
		expected = new(uint256.Int).Add(expected, amount)
	}
	for _, amount := range withdrawals {
		if _, err := market.ledger.Withdraw(asset, user, amount, false); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		expected = new(uint256.Int).Sub(expected, amount)
	}

	total, err := market.ledger.TotalSupplyShares(asset)
	if err != nil {
		t.Fatalf("total supply shares: %v", err)
	}
	if !total.Eq(expected) {
		t.Fatalf("share drift: got %s want %s", total.Dec(), expected.Dec())
	}
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	market := newTestMarket(t)
	asset := testAddr(0x0A)
	market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))

	if _, err := market.ledger.Deposit(asset, testAddr(0x10), uint256.NewInt(0), false); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := market.ledger.Withdraw(asset, testAddr(0x10), nil, false); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestWithdrawAfterYieldBoundedByShares(t *testing.T) {
	market := newTestMarket(t)
	asset := testAddr(0x0A)
	market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))
	alice := testAddr(0x10)
	bob := testAddr(0x11)
	market.fund(asset, alice, wadValue(1_000_000_000_000_000_000))
	market.deposit(asset, alice, wadValue(1_000_000_000_000_000_000), false)
	market.fund(asset, bob, wadValue(1_000_000_000_000_000_000))
	market.deposit(asset, bob, wadValue(1_000_000_000_000_000_000), false)

	// Vault yield doubles the exchange rate: each 1e18 of shares is now
	// worth 2e18 underlying.
	market.fund(asset, market.vaults[asset].Address(), wadValue(2_000_000_000_000_000_000))

	balance, err := market.ledger.BalanceOf(asset, alice)
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if !balance.Eq(wadValue(2_000_000_000_000_000_000)) {
		t.Fatalf("inflated balance: got %s want 2e18", balance.Dec())
	}

	// One full share unit past the balance needs more shares than held.
	over := new(uint256.Int).Add(balance, uint256.NewInt(2))
	if _, err := market.ledger.Withdraw(asset, alice, over, false); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	if _, err := market.ledger.Withdraw(asset, alice, balance, false); err != nil {
		t.Fatalf("withdraw full balance: %v", err)
	}
	if got := market.tokens[asset].BalanceOf(alice); !got.Eq(balance) {
		t.Fatalf("withdrawn underlying: got %s want %s", got.Dec(), balance.Dec())
	}
	position, err := market.ledger.PositionOf(asset, alice)
	if err != nil {
		t.Fatalf("position of: %v", err)
	}
	if !position.SupplyShares.IsZero() {
		t.Fatalf("residual shares after full withdrawal: %s", position.SupplyShares.Dec())
	}
}

func TestWithdrawBeyondSharesFails(t *testing.T) {
	market := newTestMarket(t)
	asset := testAddr(0x0A)
	market.addAsset(asset, wadValue(500_000_000_000_000_000), wadValue(1_000_000_000_000_000_000))
	user := testAddr(0x10)
	market.fund(asset, user, wadValue(1_000_000_000_000_000_000))
	market.deposit(asset, user, wadValue(1_000_000_000_000_000_000), false)

	if _, err := market.ledger.Withdraw(asset, user, wadValue(1_000_000_000_000_000_001), false); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}
