package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// TotalBorrowed returns the asset's borrowed total with interest compounded
// up to the current time unit. It is a pure query: the cached value and the
// checkpoint are left untouched, so accounting between two reads in the same
// unit can lag by at most one unit's interest.
func (l *Ledger) TotalBorrowed(asset common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return nil, err
	}
	return l.totalBorrowed(state)
}

func (l *Ledger) totalBorrowed(state *assetState) (*uint256.Int, error) {
	// A zero checkpoint means no accrual has ever been initialised.
	if state.lastAccrual == 0 {
		return state.cachedTotalBorrowed.Clone(), nil
	}
	now := l.clock.Now()
	if now <= state.lastAccrual || state.cachedTotalBorrowed.IsZero() {
		return state.cachedTotalBorrowed.Clone(), nil
	}
	if state.rateModel == nil {
		return nil, ErrRateModelNotSet
	}
	elapsed := now - state.lastAccrual
	rate := state.rateModel.GetBorrowRate(l.totalUnderlying(state), state.cachedTotalBorrowed, uint256.NewInt(0))
	multiplier, err := fixedpoint.RPow(rate, uint256.NewInt(elapsed), fixedpoint.Wad)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulWadDown(state.cachedTotalBorrowed, multiplier)
}

// accrue writes the compounded total back and resets the checkpoint. Debt
// mutating operations call it; views never do.
func (l *Ledger) accrue(state *assetState) error {
	updated, err := l.totalBorrowed(state)
	if err != nil {
		return err
	}
	state.cachedTotalBorrowed = updated
	state.lastAccrual = l.clock.Now()
	return nil
}
