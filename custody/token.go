// Package custody provides in-memory implementations of the ledger's Token
// and Vault collaborator contracts. They back the tests and the daemon's
// self-contained markets; productionised deployments swap in adapters to
// real custody.
package custody

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientFunds = errors.New("custody: insufficient funds")
	ErrInvalidAmount     = errors.New("custody: amount must be positive")
)

// Token is a mintable in-memory balance book for one underlying asset.
type Token struct {
	mu       sync.Mutex
	decimals uint8
	balances map[common.Address]*uint256.Int
}

// NewToken constructs an empty token with the given precision.
func NewToken(decimals uint8) *Token {
	return &Token{
		decimals: decimals,
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (t *Token) Decimals() uint8 {
	return t.decimals
}

func (t *Token) BalanceOf(holder common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(holder)
}

// Mint credits freshly created units to the holder.
func (t *Token) Mint(holder common.Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[holder] = new(uint256.Int).Add(t.balance(holder), amount)
}

// Transfer moves amount between holders, failing without side effects when
// the sender's balance is insufficient.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	if amount.IsZero() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	held := t.balance(from)
	if held.Lt(amount) {
		return ErrInsufficientFunds
	}
	t.balances[from] = new(uint256.Int).Sub(held, amount)
	t.balances[to] = new(uint256.Int).Add(t.balance(to), amount)
	return nil
}

func (t *Token) balance(holder common.Address) *uint256.Int {
	if held, ok := t.balances[holder]; ok {
		return held.Clone()
	}
	return uint256.NewInt(0)
}
