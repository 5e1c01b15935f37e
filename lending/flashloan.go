package lending

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FlashBorrow withdraws amount from the asset's vault to the receiver,
// invokes the borrower callback synchronously, and requires the vault's
// convertible balance to be back at its pre-loan level before returning.
// On failure any shortfall is pulled back from the receiver before the
// error is surfaced. The guard is scoped per asset: a second
// flash borrow on the same asset while one is open fails, while reentrant
// calls on other assets proceed. The ledger lock is released for the
// duration of the callback so it may call back into the public API.
func (l *Ledger) FlashBorrow(asset, receiver common.Address, amount *uint256.Int, borrower FlashBorrower) error {
	l.mu.Lock()
	if amount == nil || amount.IsZero() {
		l.mu.Unlock()
		return ErrInvalidAmount
	}
	state, err := l.assetState(asset)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if state.flashLoaned != nil {
		l.mu.Unlock()
		return ErrFlashBorrowInProgress
	}

	preLiquidity := l.vaultAssets(state)
	state.flashLoaned = amount.Clone()
	if _, err := state.vault.Withdraw(amount, receiver, l.address); err != nil {
		state.flashLoaned = nil
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	callbackErr := borrower.OnFlashBorrow(asset, amount)

	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { state.flashLoaned = nil }()
	postLiquidity := l.vaultAssets(state)
	if !postLiquidity.Lt(preLiquidity) {
		return callbackErr
	}

	// Liquidity was not restored: claw the shortfall back from the receiver
	// so suppliers stay whole, then surface the failure.
	shortfall := new(uint256.Int).Sub(preLiquidity, postLiquidity)
	unwound := false
	if err := state.token.Transfer(receiver, l.address, shortfall); err == nil {
		if _, err := state.vault.Deposit(shortfall, l.address); err == nil {
			unwound = true
		}
	}
	if callbackErr == nil {
		return ErrAmountNotReturned
	}
	if unwound {
		return callbackErr
	}
	return errors.Join(callbackErr, ErrAmountNotReturned)
}
