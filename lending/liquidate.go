package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// LiquidateUser lets a third party repay part of an underwater borrower's
// debt in exchange for collateral seized at oracle value plus the
// liquidation bonus. The repayment must not lift the borrower's health
// factor beyond MaxHealthFactor. The operation is atomic: every check runs
// against the hypothetical post-liquidation position before any transfer or
// state mutation, so a failed call leaves the ledger untouched.
func (l *Ledger) LiquidateUser(borrowedAsset, collateralAsset common.Address, liquidator, borrower common.Address, repayAmount *uint256.Int) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if repayAmount == nil || repayAmount.IsZero() {
		return nil, ErrInvalidAmount
	}
	debtState, err := l.assetState(borrowedAsset)
	if err != nil {
		return nil, err
	}
	collateralState, err := l.assetState(collateralAsset)
	if err != nil {
		return nil, err
	}
	liquidatable, err := l.userLiquidatable(borrower)
	if err != nil {
		return nil, err
	}
	if !liquidatable {
		return nil, ErrNotLiquidatable
	}
	if err := l.accrue(debtState); err != nil {
		return nil, err
	}

	debtRate, err := l.debtExchangeRate(debtState)
	if err != nil {
		return nil, err
	}
	debtShares, err := fixedpoint.MulDivDown(repayAmount, debtState.baseUnit, debtRate)
	if err != nil {
		return nil, err
	}
	if sharesOf(debtState.debtShares, borrower).Lt(debtShares) {
		return nil, ErrInsufficientDebt
	}

	seized, err := l.seizeAmount(borrowedAsset, collateralAsset, debtState, collateralState, borrower, repayAmount)
	if err != nil {
		return nil, err
	}
	supplyRate, err := l.exchangeRate(collateralState)
	if err != nil {
		return nil, err
	}
	seizedShares, err := fixedpoint.MulDivDown(seized, collateralState.baseUnit, supplyRate)
	if err != nil {
		return nil, err
	}
	if sharesOf(collateralState.supplyShares, borrower).Lt(seizedShares) {
		return nil, ErrInsufficientBalance
	}

	// Evaluate the post-liquidation health factor before touching anything.
	health, err := l.healthFactor(borrower, liquidationAdjust(borrowedAsset, collateralAsset, repayAmount, seized))
	if err != nil {
		return nil, err
	}
	if health.Gt(MaxHealthFactor) {
		return nil, ErrLiquidationTooLarge
	}

	// External moves, unwinding the earlier ones when a later one fails.
	if err := debtState.token.Transfer(liquidator, l.address, repayAmount); err != nil {
		return nil, err
	}
	if _, err := debtState.vault.Deposit(repayAmount, l.address); err != nil {
		_ = debtState.token.Transfer(l.address, liquidator, repayAmount)
		return nil, err
	}
	if _, err := collateralState.vault.Withdraw(seized, liquidator, l.address); err != nil {
		if _, undoErr := debtState.vault.Withdraw(repayAmount, l.address, l.address); undoErr == nil {
			_ = debtState.token.Transfer(l.address, liquidator, repayAmount)
		}
		return nil, err
	}

	debitShares(debtState.debtShares, borrower, debtShares)
	debtState.totalDebtShares = new(uint256.Int).Sub(debtState.totalDebtShares, debtShares)
	if debtState.cachedTotalBorrowed.Lt(repayAmount) {
		debtState.cachedTotalBorrowed = uint256.NewInt(0)
	} else {
		debtState.cachedTotalBorrowed = new(uint256.Int).Sub(debtState.cachedTotalBorrowed, repayAmount)
	}
	debitShares(collateralState.supplyShares, borrower, seizedShares)
	collateralState.totalSupplyShares = new(uint256.Int).Sub(collateralState.totalSupplyShares, seizedShares)
	return seized, nil
}

// liquidationAdjust models the borrower's position after repayAmount of
// debt is cleared and seized collateral is taken.
func liquidationAdjust(borrowedAsset, collateralAsset common.Address, repayAmount, seized *uint256.Int) positionAdjust {
	return func(asset common.Address, supplied, debt *uint256.Int) (*uint256.Int, *uint256.Int) {
		if asset == borrowedAsset {
			if debt.Lt(repayAmount) {
				debt = uint256.NewInt(0)
			} else {
				debt = new(uint256.Int).Sub(debt, repayAmount)
			}
		}
		if asset == collateralAsset {
			if supplied.Lt(seized) {
				supplied = uint256.NewInt(0)
			} else {
				supplied = new(uint256.Int).Sub(supplied, seized)
			}
		}
		return supplied, debt
	}
}

// seizeAmount prices the repayment in the borrowed asset, applies the
// liquidation bonus, and converts into collateral units, bounded by the
// borrower's collateral balance.
func (l *Ledger) seizeAmount(borrowedAsset, collateralAsset common.Address, debtState, collateralState *assetState, borrower common.Address, repayAmount *uint256.Int) (*uint256.Int, error) {
	debtPrice := l.oracle.GetUnderlyingPrice(borrowedAsset)
	if debtPrice == nil {
		debtPrice = uint256.NewInt(0)
	}
	collateralPrice := l.oracle.GetUnderlyingPrice(collateralAsset)
	if collateralPrice == nil {
		collateralPrice = uint256.NewInt(0)
	}
	repayValue, err := fixedpoint.MulDivDown(repayAmount, debtPrice, debtState.baseUnit)
	if err != nil {
		return nil, err
	}
	bonus := new(uint256.Int).Add(fixedpoint.Wad, l.params.LiquidationBonus)
	grossValue, err := fixedpoint.MulWadDown(repayValue, bonus)
	if err != nil {
		return nil, err
	}
	seized, err := fixedpoint.MulDivDown(grossValue, collateralState.baseUnit, collateralPrice)
	if err != nil {
		return nil, err
	}
	held, err := l.supplyBalance(collateralState, borrower)
	if err != nil {
		return nil, err
	}
	if seized.Gt(held) {
		seized = held
	}
	return seized, nil
}
