package custody

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// Vault is a share-based yield-bearing store over one Token. Its convertible
// value is the token balance held at the vault's own address, so yield can
// be simulated by transferring tokens straight to that address.
type Vault struct {
	mu          sync.Mutex
	address     common.Address
	token       *Token
	totalShares *uint256.Int
	shares      map[common.Address]*uint256.Int
}

// NewVault constructs an empty vault custodying the given token under the
// given address.
func NewVault(address common.Address, token *Token) *Vault {
	return &Vault{
		address:     address,
		token:       token,
		totalShares: uint256.NewInt(0),
		shares:      make(map[common.Address]*uint256.Int),
	}
}

// Address returns the vault's custody identity.
func (v *Vault) Address() common.Address {
	return v.address
}

// Deposit pulls amount underlying from the owner and mints shares at the
// current rate, 1:1 while the vault is empty.
func (v *Vault) Deposit(amount *uint256.Int, owner common.Address) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	minted := amount.Clone()
	if !v.totalShares.IsZero() {
		assets := v.token.BalanceOf(v.address)
		if !assets.IsZero() {
			converted, err := fixedpoint.MulDivDown(amount, v.totalShares, assets)
			if err != nil {
				return nil, err
			}
			minted = converted
		}
	}
	if err := v.token.Transfer(owner, v.address, amount); err != nil {
		return nil, err
	}
	v.shares[owner] = new(uint256.Int).Add(v.share(owner), minted)
	v.totalShares = new(uint256.Int).Add(v.totalShares, minted)
	return minted, nil
}

// Withdraw burns the owner's shares covering amount, rounding the burn up in
// the vault's favour, and releases the underlying to the receiver.
func (v *Vault) Withdraw(amount *uint256.Int, receiver, owner common.Address) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	assets := v.token.BalanceOf(v.address)
	if assets.Lt(amount) {
		return nil, ErrInsufficientFunds
	}
	burned := amount.Clone()
	if !v.totalShares.IsZero() {
		converted, err := fixedpoint.MulDivUp(amount, v.totalShares, assets)
		if err != nil {
			return nil, err
		}
		burned = converted
	}
	held := v.share(owner)
	if held.Lt(burned) {
		return nil, ErrInsufficientFunds
	}
	if err := v.token.Transfer(v.address, receiver, amount); err != nil {
		return nil, err
	}
	v.shares[owner] = new(uint256.Int).Sub(held, burned)
	v.totalShares = new(uint256.Int).Sub(v.totalShares, burned)
	return burned, nil
}

// ConvertToAssets values shares at the current rate.
func (v *Vault) ConvertToAssets(shares *uint256.Int) *uint256.Int {
	if shares == nil || shares.IsZero() {
		return uint256.NewInt(0)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.totalShares.IsZero() {
		return shares.Clone()
	}
	assets := v.token.BalanceOf(v.address)
	converted, err := fixedpoint.MulDivDown(shares, assets, v.totalShares)
	if err != nil {
		return uint256.NewInt(0)
	}
	return converted
}

// BalanceOf reports the holder's share balance.
func (v *Vault) BalanceOf(holder common.Address) *uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.share(holder)
}

func (v *Vault) share(holder common.Address) *uint256.Int {
	if held, ok := v.shares[holder]; ok {
		return held.Clone()
	}
	return uint256.NewInt(0)
}
