package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// Borrow accrues interest, enables the asset as collateral so the new debt
// always counts toward the borrower's risk profile, verifies the borrower
// stays solvent including the hypothetical amount, and only then mints debt
// shares and releases the underlying from custody.
func (l *Ledger) Borrow(asset, user common.Address, amount *uint256.Int) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	if state.rateModel == nil {
		return nil, ErrRateModelNotSet
	}
	if err := l.accrue(state); err != nil {
		return nil, err
	}

	// The enablement is provisional until the borrow commits: a rejected
	// borrow must leave the collateral set exactly as it found it.
	wasEnabled := l.enabled[collateralKey{user: user, asset: asset}]
	l.enableCollateral(user, asset)
	shares, err := l.borrowEnabled(state, asset, user, amount)
	if err != nil {
		if !wasEnabled {
			l.disableCollateral(user, asset)
		}
		return nil, err
	}
	return shares, nil
}

func (l *Ledger) borrowEnabled(state *assetState, asset, user common.Address, amount *uint256.Int) (*uint256.Int, error) {
	health, err := l.healthFactor(user, borrowAdjust(asset, amount))
	if err != nil {
		return nil, err
	}
	if health.Lt(fixedpoint.Wad) {
		return nil, ErrHealthFactorTooLow
	}

	rate, err := l.debtExchangeRate(state)
	if err != nil {
		return nil, err
	}
	shares, err := fixedpoint.MulDivDown(amount, state.baseUnit, rate)
	if err != nil {
		return nil, err
	}

	if _, err := state.vault.Withdraw(amount, user, l.address); err != nil {
		return nil, err
	}

	creditShares(state.debtShares, user, shares)
	state.totalDebtShares = new(uint256.Int).Add(state.totalDebtShares, shares)
	state.cachedTotalBorrowed = new(uint256.Int).Add(state.cachedTotalBorrowed, amount)
	return shares, nil
}

// Repay burns the share equivalent of amount and pulls amount-1 underlying
// from the caller; one base unit of the repayment always stays with the
// borrower.
func (l *Ledger) Repay(asset, user common.Address, amount *uint256.Int) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	if err := l.accrue(state); err != nil {
		return nil, err
	}
	rate, err := l.debtExchangeRate(state)
	if err != nil {
		return nil, err
	}
	shares, err := fixedpoint.MulDivDown(amount, state.baseUnit, rate)
	if err != nil {
		return nil, err
	}
	held := sharesOf(state.debtShares, user)
	if held.Lt(shares) {
		return nil, ErrInsufficientDebt
	}

	transferAmount := new(uint256.Int).Sub(amount, uint256.NewInt(1))
	if !transferAmount.IsZero() {
		if err := state.token.Transfer(user, l.address, transferAmount); err != nil {
			return nil, err
		}
		if _, err := state.vault.Deposit(transferAmount, l.address); err != nil {
			return nil, err
		}
	}

	debitShares(state.debtShares, user, shares)
	state.totalDebtShares = new(uint256.Int).Sub(state.totalDebtShares, shares)
	if state.cachedTotalBorrowed.Lt(amount) {
		state.cachedTotalBorrowed = uint256.NewInt(0)
	} else {
		state.cachedTotalBorrowed = new(uint256.Int).Sub(state.cachedTotalBorrowed, amount)
	}
	return shares, nil
}

// DebtOf reports the user's outstanding debt in underlying terms.
func (l *Ledger) DebtOf(asset, user common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	return l.debtBalance(state, user)
}

// TotalDebtShares reports the outstanding internal debt share count.
func (l *Ledger) TotalDebtShares(asset common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	return state.totalDebtShares.Clone(), nil
}
