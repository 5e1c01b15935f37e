package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Configuration carries the per-asset risk weights. Both factors are
// 1e18-scaled fractions where 1e18 means 100%.
type Configuration struct {
	// LendFactor scales the collateral value counted toward a user's
	// borrowing capacity.
	LendFactor *uint256.Int
	// BorrowFactor scales the debt value counted against a user's capacity.
	BorrowFactor *uint256.Int
}

// Clone returns a deep copy of the configuration.
func (c Configuration) Clone() Configuration {
	clone := Configuration{}
	if c.LendFactor != nil {
		clone.LendFactor = c.LendFactor.Clone()
	}
	if c.BorrowFactor != nil {
		clone.BorrowFactor = c.BorrowFactor.Clone()
	}
	return clone
}

// RiskParameters groups the ledger-wide liquidation settings.
type RiskParameters struct {
	// LiquidationBonus is the 1e18-scaled premium granted to liquidators on
	// top of the seized collateral value.
	LiquidationBonus *uint256.Int
}

// Token is the underlying asset contract the ledger moves balances on. The
// ledger only holds underlying transiently between a user transfer and the
// custody vault.
type Token interface {
	Decimals() uint8
	BalanceOf(holder common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
}

// Vault is the yield-bearing custody store backing a configured asset.
type Vault interface {
	Deposit(amount *uint256.Int, owner common.Address) (*uint256.Int, error)
	Withdraw(amount *uint256.Int, receiver, owner common.Address) (*uint256.Int, error)
	ConvertToAssets(shares *uint256.Int) *uint256.Int
	BalanceOf(holder common.Address) *uint256.Int
}

// PriceOracle reports 1e18-scaled asset prices. A zero price is a valid, if
// degenerate, input.
type PriceOracle interface {
	GetUnderlyingPrice(asset common.Address) *uint256.Int
}

// InterestRateModel converts market utilisation into a per-time-unit growth
// multiplier, 1e18-scaled with 1e18 meaning no growth.
type InterestRateModel interface {
	GetBorrowRate(totalLiquidity, totalBorrowed, reserves *uint256.Int) *uint256.Int
}

// Authorizer gates the configuration-mutating entry points.
type Authorizer interface {
	Authorize(caller common.Address) bool
}

// Clock reports the external monotonic time unit, e.g. a block height. The
// ledger reads it but never advances it.
type Clock interface {
	Now() uint64
}

// FlashBorrower receives the flash-borrowed funds and must restore the
// vault's liquidity before returning.
type FlashBorrower interface {
	OnFlashBorrow(asset common.Address, amount *uint256.Int) error
}

// Position is a read-only view of a user's standing in one asset.
type Position struct {
	SupplyShares  *uint256.Int `json:"supplyShares"`
	SupplyBalance *uint256.Int `json:"supplyBalance"`
	DebtShares    *uint256.Int `json:"debtShares"`
	DebtBalance   *uint256.Int `json:"debtBalance"`
	Collateral    bool         `json:"collateral"`
}

// MarketSnapshot is a read-only view of one asset's pooled state.
type MarketSnapshot struct {
	Asset             common.Address `json:"asset"`
	TotalSupplyShares *uint256.Int   `json:"totalSupplyShares"`
	TotalDebtShares   *uint256.Int   `json:"totalDebtShares"`
	TotalUnderlying   *uint256.Int   `json:"totalUnderlying"`
	TotalBorrowed     *uint256.Int   `json:"totalBorrowed"`
	ExchangeRate      *uint256.Int   `json:"exchangeRate"`
	DebtExchangeRate  *uint256.Int   `json:"debtExchangeRate"`
	LendFactor        *uint256.Int   `json:"lendFactor"`
	BorrowFactor      *uint256.Int   `json:"borrowFactor"`
	LastAccrual       uint64         `json:"lastAccrual"`
}
