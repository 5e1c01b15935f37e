package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// infiniteHealth is the sentinel returned for users with no outstanding
// debt: zero borrow balance is trivially healthy rather than a division by
// zero.
var infiniteHealth = new(uint256.Int).SetAllOne()

// positionAdjust lets a caller evaluate a hypothetical position: it receives
// the live supplied and debt balances for one asset and returns the values
// the risk walk should use instead.
type positionAdjust func(asset common.Address, supplied, debt *uint256.Int) (*uint256.Int, *uint256.Int)

// HealthFactor is the 1e18-scaled ratio of the user's risk-adjusted
// borrowing capacity to their risk-adjusted debt; at or above 1e18 the user
// is solvent.
func (l *Ledger) HealthFactor(user common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.healthFactor(user, nil)
}

// CanBorrow reports whether the user would remain solvent after borrowing
// amount of asset on top of their current debt. The hypothetical debt counts
// even when the asset is not yet in the user's collateral set, matching what
// Borrow itself would do.
func (l *Ledger) CanBorrow(asset, user common.Address, amount *uint256.Int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return false, err
	}
	capacity, borrowBalance, weightedBorrow, err := l.riskTotals(user, borrowAdjust(asset, amount))
	if err != nil {
		return false, err
	}
	if amount != nil && !amount.IsZero() && !l.enabled[collateralKey{user: user, asset: asset}] {
		price := l.oracle.GetUnderlyingPrice(asset)
		if price == nil {
			price = uint256.NewInt(0)
		}
		debtValue, err := fixedpoint.MulDivDown(amount, price, state.baseUnit)
		if err != nil {
			return false, err
		}
		borrowBalance = new(uint256.Int).Add(borrowBalance, debtValue)
		weighted, err := fixedpoint.MulWadDown(debtValue, state.config.BorrowFactor)
		if err != nil {
			return false, err
		}
		weightedBorrow = new(uint256.Int).Add(weightedBorrow, weighted)
	}
	health, err := healthFromTotals(capacity, borrowBalance, weightedBorrow)
	if err != nil {
		return false, err
	}
	return !health.Lt(fixedpoint.Wad), nil
}

// UserLiquidatable reports whether the user's current-state health factor
// has dropped below 1e18.
func (l *Ledger) UserLiquidatable(user common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userLiquidatable(user)
}

// MaxBorrowable reports the user's total risk-adjusted borrowing capacity in
// 1e18 value terms.
func (l *Ledger) MaxBorrowable(user common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	capacity, _, _, err := l.riskTotals(user, nil)
	if err != nil {
		return nil, err
	}
	return capacity, nil
}

// borrowAdjust adds a hypothetical borrow of amount to the asset's debt.
func borrowAdjust(asset common.Address, amount *uint256.Int) positionAdjust {
	if amount == nil || amount.IsZero() {
		return nil
	}
	return func(candidate common.Address, supplied, debt *uint256.Int) (*uint256.Int, *uint256.Int) {
		if candidate == asset {
			debt = new(uint256.Int).Add(debt, amount)
		}
		return supplied, debt
	}
}

func (l *Ledger) userLiquidatable(user common.Address) (bool, error) {
	health, err := l.healthFactor(user, nil)
	if err != nil {
		return false, err
	}
	return health.Lt(fixedpoint.Wad), nil
}

func (l *Ledger) healthFactor(user common.Address, adjust positionAdjust) (*uint256.Int, error) {
	capacity, borrowBalance, weightedBorrow, err := l.riskTotals(user, adjust)
	if err != nil {
		return nil, err
	}
	return healthFromTotals(capacity, borrowBalance, weightedBorrow)
}

func healthFromTotals(capacity, borrowBalance, weightedBorrow *uint256.Int) (*uint256.Int, error) {
	if borrowBalance.IsZero() {
		return infiniteHealth.Clone(), nil
	}
	actualBorrowable, err := fixedpoint.MulDivDown(weightedBorrow, capacity, borrowBalance)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DivWadDown(actualBorrowable, borrowBalance)
}

// riskTotals walks the user's enabled collateral set and accumulates the
// lend-factor weighted capacity, the raw borrow balance, and the
// borrow-factor weighted balance, all in 1e18 value terms.
func (l *Ledger) riskTotals(user common.Address, adjust positionAdjust) (capacity, borrowBalance, weightedBorrow *uint256.Int, err error) {
	capacity = uint256.NewInt(0)
	borrowBalance = uint256.NewInt(0)
	weightedBorrow = uint256.NewInt(0)
	for _, asset := range l.collateral[user] {
		state := l.assets[asset]
		price := l.oracle.GetUnderlyingPrice(asset)
		if price == nil {
			price = uint256.NewInt(0)
		}

		supplied, err := l.supplyBalance(state, user)
		if err != nil {
			return nil, nil, nil, err
		}
		debt, err := l.debtBalance(state, user)
		if err != nil {
			return nil, nil, nil, err
		}
		if adjust != nil {
			supplied, debt = adjust(asset, supplied, debt)
		}

		suppliedValue, err := fixedpoint.MulDivDown(supplied, price, state.baseUnit)
		if err != nil {
			return nil, nil, nil, err
		}
		lendable, err := fixedpoint.MulWadDown(suppliedValue, state.config.LendFactor)
		if err != nil {
			return nil, nil, nil, err
		}
		capacity = new(uint256.Int).Add(capacity, lendable)

		debtValue, err := fixedpoint.MulDivDown(debt, price, state.baseUnit)
		if err != nil {
			return nil, nil, nil, err
		}
		borrowBalance = new(uint256.Int).Add(borrowBalance, debtValue)
		weighted, err := fixedpoint.MulWadDown(debtValue, state.config.BorrowFactor)
		if err != nil {
			return nil, nil, nil, err
		}
		weightedBorrow = new(uint256.Int).Add(weightedBorrow, weighted)
	}
	return capacity, borrowBalance, weightedBorrow, nil
}
