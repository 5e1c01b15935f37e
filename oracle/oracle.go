// Package oracle provides a settable in-memory price feed satisfying the
// ledger's PriceOracle contract. Prices are 1e18-scaled; an unset asset
// reports zero, which the ledger treats as a valid degenerate input.
package oracle

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Feed struct {
	mu     sync.RWMutex
	prices map[common.Address]*uint256.Int
}

func NewFeed() *Feed {
	return &Feed{prices: make(map[common.Address]*uint256.Int)}
}

// SetUnderlyingPrice records the 1e18-scaled price for an asset.
func (f *Feed) SetUnderlyingPrice(asset common.Address, price *uint256.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if price == nil {
		price = uint256.NewInt(0)
	}
	f.prices[asset] = price.Clone()
}

// GetUnderlyingPrice returns the recorded price, zero when unset.
func (f *Feed) GetUnderlyingPrice(asset common.Address) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if price, ok := f.prices[asset]; ok {
		return price.Clone()
	}
	return uint256.NewInt(0)
}
