package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// Deposit pulls amount underlying from the user into custody and credits the
// corresponding internal shares, rounding the share delta down. With
// enableAsCollateral set the asset is also opted into the user's collateral.
func (l *Ledger) Deposit(asset, user common.Address, amount *uint256.Int, enableAsCollateral bool) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	rate, err := l.exchangeRate(state)
	if err != nil {
		return nil, err
	}
	shares, err := fixedpoint.MulDivDown(amount, state.baseUnit, rate)
	if err != nil {
		return nil, err
	}

	// Move the underlying in before touching share state so a failed
	// transfer leaves the ledger unchanged.
	if err := state.token.Transfer(user, l.address, amount); err != nil {
		return nil, err
	}
	if _, err := state.vault.Deposit(amount, l.address); err != nil {
		return nil, err
	}

	creditShares(state.supplyShares, user, shares)
	state.totalSupplyShares = new(uint256.Int).Add(state.totalSupplyShares, shares)
	if enableAsCollateral {
		l.enableCollateral(user, asset)
	}
	return shares, nil
}

// Withdraw burns the share equivalent of amount and releases the underlying
// from custody to the user. The share delta is rounded down, which burns
// slightly fewer shares than a precise rate would and so never lets a user
// extract more underlying than their shares represent. With
// disableAsCollateral set the asset is opted out unless debt remains.
func (l *Ledger) Withdraw(asset, user common.Address, amount *uint256.Int, disableAsCollateral bool) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	rate, err := l.exchangeRate(state)
	if err != nil {
		return nil, err
	}
	shares, err := fixedpoint.MulDivDown(amount, state.baseUnit, rate)
	if err != nil {
		return nil, err
	}
	held := sharesOf(state.supplyShares, user)
	if held.Lt(shares) {
		return nil, ErrInsufficientBalance
	}

	if _, err := state.vault.Withdraw(amount, user, l.address); err != nil {
		return nil, err
	}

	debitShares(state.supplyShares, user, shares)
	state.totalSupplyShares = new(uint256.Int).Sub(state.totalSupplyShares, shares)
	if disableAsCollateral {
		l.disableCollateral(user, asset)
	}
	return shares, nil
}

// BalanceOf reports the user's supply position in underlying terms.
func (l *Ledger) BalanceOf(asset, user common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	return l.supplyBalance(state, user)
}

// TotalSupplyShares reports the outstanding internal share count.
func (l *Ledger) TotalSupplyShares(asset common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	return state.totalSupplyShares.Clone(), nil
}
