package lending

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ten = uint256.NewInt(10)

// Configure registers an asset exactly once: its custody vault, its
// underlying token, and its risk factors. The base unit is derived from the
// token's decimals and is immutable afterwards.
func (l *Ledger) Configure(caller, asset common.Address, token Token, vault Vault, cfg Configuration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.authorize(caller); err != nil {
		return err
	}
	if _, ok := l.assets[asset]; ok {
		return ErrAlreadyConfigured
	}
	if token == nil || vault == nil {
		return ErrMissingCustody
	}
	cfg = normalizeConfiguration(cfg)
	baseUnit := new(uint256.Int).Exp(ten, uint256.NewInt(uint64(token.Decimals())))
	l.assets[asset] = &assetState{
		token:               token,
		vault:               vault,
		baseUnit:            baseUnit,
		config:              cfg,
		totalSupplyShares:   uint256.NewInt(0),
		supplyShares:        make(map[common.Address]*uint256.Int),
		totalDebtShares:     uint256.NewInt(0),
		debtShares:          make(map[common.Address]*uint256.Int),
		cachedTotalBorrowed: uint256.NewInt(0),
	}
	l.assetList = append(l.assetList, asset)
	return nil
}

// UpdateConfiguration overwrites an asset's risk factors. The custody vault
// and base unit cannot be changed once configured.
func (l *Ledger) UpdateConfiguration(caller, asset common.Address, cfg Configuration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.authorize(caller); err != nil {
		return err
	}
	state, err := l.assetState(asset)
	if err != nil {
		return err
	}
	state.config = normalizeConfiguration(cfg)
	return nil
}

// SetInterestRateModel assigns or replaces the asset's rate model.
func (l *Ledger) SetInterestRateModel(caller, asset common.Address, model InterestRateModel) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.authorize(caller); err != nil {
		return err
	}
	state, err := l.assetState(asset)
	if err != nil {
		return err
	}
	state.rateModel = model
	return nil
}

// ConfigurationOf returns the asset's current risk factors.
func (l *Ledger) ConfigurationOf(asset common.Address) (Configuration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.assetState(asset)
	if err != nil {
		return Configuration{}, err
	}
	return state.config.Clone(), nil
}

func (l *Ledger) authorize(caller common.Address) error {
	if l.auth != nil && !l.auth.Authorize(caller) {
		return ErrNotAuthorized
	}
	return nil
}

func normalizeConfiguration(cfg Configuration) Configuration {
	cfg = cfg.Clone()
	if cfg.LendFactor == nil {
		cfg.LendFactor = uint256.NewInt(0)
	}
	if cfg.BorrowFactor == nil {
		cfg.BorrowFactor = uint256.NewInt(0)
	}
	return cfg
}
