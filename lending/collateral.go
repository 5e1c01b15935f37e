package lending

import "github.com/ethereum/go-ethereum/common"

// EnableCollateral opts the user into using the asset as collateral. Already
// enabled assets are left untouched.
func (l *Ledger) EnableCollateral(user, asset common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.assetState(asset); err != nil {
		return err
	}
	l.enableCollateral(user, asset)
	return nil
}

// DisableCollateral opts the user out again. It is a no-op, not an error,
// when the asset still carries debt for the user or was never enabled.
func (l *Ledger) DisableCollateral(user, asset common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.assetState(asset); err != nil {
		return err
	}
	l.disableCollateral(user, asset)
	return nil
}

// CollateralOf lists the user's enabled collateral assets. Insertion order
// is kept until a removal, which swaps in the last element.
func (l *Ledger) CollateralOf(user common.Address) []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.collateral[user]
	out := make([]common.Address, len(list))
	copy(out, list)
	return out
}

func (l *Ledger) enableCollateral(user, asset common.Address) {
	key := collateralKey{user: user, asset: asset}
	if l.enabled[key] {
		return
	}
	l.collateral[user] = append(l.collateral[user], asset)
	l.enabled[key] = true
}

func (l *Ledger) disableCollateral(user, asset common.Address) {
	state, ok := l.assets[asset]
	if !ok {
		return
	}
	if debt, held := state.debtShares[user]; held && !debt.IsZero() {
		return
	}
	key := collateralKey{user: user, asset: asset}
	if !l.enabled[key] {
		return
	}
	list := l.collateral[user]
	for i, candidate := range list {
		if candidate == asset {
			list[i] = list[len(list)-1]
			l.collateral[user] = list[:len(list)-1]
			break
		}
	}
	delete(l.enabled, key)
}
