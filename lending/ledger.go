package lending

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// MaxHealthFactor is the health factor a liquidation restores a borrower
// toward; repaying beyond it is rejected.
var MaxHealthFactor = uint256.NewInt(1_250_000_000_000_000_000)

// Ledger is the unit-accounting core for one market instance. It owns every
// per-asset and per-user position and executes each public operation as a
// single serialized transaction: all checks pass before any state is
// committed, so a failed call leaves the ledger untouched.
type Ledger struct {
	mu sync.Mutex

	// address identifies the ledger as owner inside the custody vaults and
	// as holder on the underlying token contracts.
	address common.Address

	oracle PriceOracle
	auth   Authorizer
	clock  Clock
	params RiskParameters

	assets    map[common.Address]*assetState
	assetList []common.Address

	// collateral keeps each user's opted-in assets in insertion order;
	// enabled is the membership index behind the swap-remove.
	collateral map[common.Address][]common.Address
	enabled    map[collateralKey]bool
}

type collateralKey struct {
	user  common.Address
	asset common.Address
}

type assetState struct {
	token    Token
	vault    Vault
	baseUnit *uint256.Int
	config   Configuration

	rateModel InterestRateModel

	totalSupplyShares *uint256.Int
	supplyShares      map[common.Address]*uint256.Int

	totalDebtShares *uint256.Int
	debtShares      map[common.Address]*uint256.Int

	cachedTotalBorrowed *uint256.Int
	// lastAccrual is the time unit of the latest checkpoint; zero means the
	// asset has never entered the accruing state.
	lastAccrual uint64

	// flashLoaned is the single in-flight flash amount, nil when idle.
	flashLoaned *uint256.Int
}

// NewLedger constructs an empty market ledger. The address is the identity
// the custody collaborators know the ledger by.
func NewLedger(address common.Address, oracle PriceOracle, auth Authorizer, clock Clock, params RiskParameters) *Ledger {
	if params.LiquidationBonus == nil {
		params.LiquidationBonus = uint256.NewInt(0)
	}
	return &Ledger{
		address:    address,
		oracle:     oracle,
		auth:       auth,
		clock:      clock,
		params:     params,
		assets:     make(map[common.Address]*assetState),
		collateral: make(map[common.Address][]common.Address),
		enabled:    make(map[collateralKey]bool),
	}
}

// Address returns the ledger's custody identity.
func (l *Ledger) Address() common.Address {
	return l.address
}

// Assets lists the configured assets in configuration order.
func (l *Ledger) Assets() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, len(l.assetList))
	copy(out, l.assetList)
	return out
}

// Snapshot returns the pooled accounting state for one asset.
func (l *Ledger) Snapshot(asset common.Address) (MarketSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return MarketSnapshot{}, err
	}
	borrowed, err := l.totalBorrowed(state)
	if err != nil {
		return MarketSnapshot{}, err
	}
	rate, err := l.exchangeRate(state)
	if err != nil {
		return MarketSnapshot{}, err
	}
	debtRate, err := l.debtExchangeRate(state)
	if err != nil {
		return MarketSnapshot{}, err
	}
	return MarketSnapshot{
		Asset:             asset,
		TotalSupplyShares: state.totalSupplyShares.Clone(),
		TotalDebtShares:   state.totalDebtShares.Clone(),
		TotalUnderlying:   l.totalUnderlying(state),
		TotalBorrowed:     borrowed,
		ExchangeRate:      rate,
		DebtExchangeRate:  debtRate,
		LendFactor:        state.config.LendFactor.Clone(),
		BorrowFactor:      state.config.BorrowFactor.Clone(),
		LastAccrual:       state.lastAccrual,
	}, nil
}

// PositionOf returns a user's standing in one asset.
func (l *Ledger) PositionOf(asset, user common.Address) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return Position{}, err
	}
	supply, err := l.supplyBalance(state, user)
	if err != nil {
		return Position{}, err
	}
	debt, err := l.debtBalance(state, user)
	if err != nil {
		return Position{}, err
	}
	return Position{
		SupplyShares:  sharesOf(state.supplyShares, user),
		SupplyBalance: supply,
		DebtShares:    sharesOf(state.debtShares, user),
		DebtBalance:   debt,
		Collateral:    l.enabled[collateralKey{user: user, asset: asset}],
	}, nil
}

func (l *Ledger) assetState(asset common.Address) (*assetState, error) {
	state, ok := l.assets[asset]
	if !ok {
		return nil, ErrAssetNotConfigured
	}
	return state, nil
}

// vaultAssets is the vault-convertible balance held for the ledger.
func (l *Ledger) vaultAssets(state *assetState) *uint256.Int {
	return state.vault.ConvertToAssets(state.vault.BalanceOf(l.address))
}

// availableLiquidity includes any in-flight flash amount so accounting stays
// stable during a flash callback.
func (l *Ledger) availableLiquidity(state *assetState) *uint256.Int {
	liquidity := l.vaultAssets(state)
	if state.flashLoaned != nil {
		liquidity = new(uint256.Int).Add(liquidity, state.flashLoaned)
	}
	return liquidity
}

func (l *Ledger) totalUnderlying(state *assetState) *uint256.Int {
	return new(uint256.Int).Add(l.availableLiquidity(state), state.cachedTotalBorrowed)
}

// exchangeRate converts between internal supply shares and underlying,
// bootstrapping 1:1 in base units while no shares exist.
func (l *Ledger) exchangeRate(state *assetState) (*uint256.Int, error) {
	if state.totalSupplyShares.IsZero() {
		return state.baseUnit.Clone(), nil
	}
	return fixedpoint.MulDivDown(l.totalUnderlying(state), state.baseUnit, state.totalSupplyShares)
}

// debtExchangeRate is the borrow-side twin of exchangeRate, denominated
// against the up-to-date borrowed total.
func (l *Ledger) debtExchangeRate(state *assetState) (*uint256.Int, error) {
	if state.totalDebtShares.IsZero() {
		return state.baseUnit.Clone(), nil
	}
	borrowed, err := l.totalBorrowed(state)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDivDown(borrowed, state.baseUnit, state.totalDebtShares)
}

func (l *Ledger) supplyBalance(state *assetState, user common.Address) (*uint256.Int, error) {
	rate, err := l.exchangeRate(state)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDivDown(sharesOf(state.supplyShares, user), rate, state.baseUnit)
}

func (l *Ledger) debtBalance(state *assetState, user common.Address) (*uint256.Int, error) {
	rate, err := l.debtExchangeRate(state)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDivDown(sharesOf(state.debtShares, user), rate, state.baseUnit)
}

func sharesOf(shares map[common.Address]*uint256.Int, user common.Address) *uint256.Int {
	if balance, ok := shares[user]; ok {
		return balance.Clone()
	}
	return uint256.NewInt(0)
}

func creditShares(shares map[common.Address]*uint256.Int, user common.Address, delta *uint256.Int) {
	if balance, ok := shares[user]; ok {
		shares[user] = new(uint256.Int).Add(balance, delta)
		return
	}
	shares[user] = delta.Clone()
}

func debitShares(shares map[common.Address]*uint256.Int, user common.Address, delta *uint256.Int) bool {
	balance, ok := shares[user]
	if !ok || balance.Lt(delta) {
		return false
	}
	shares[user] = new(uint256.Int).Sub(balance, delta)
	return true
}
