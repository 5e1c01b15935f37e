package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MarketRuntime is a Market with the string fields parsed into runtime
// values. InitialPrice is nil when the market carries no seed price.
type MarketRuntime struct {
	Symbol   string
	Asset    common.Address
	Decimals uint8

	LendFactor   *uint256.Int
	BorrowFactor *uint256.Int

	BaseRate *uint256.Int
	Slope1   *uint256.Int
	Slope2   *uint256.Int
	Kink     *uint256.Int

	InitialPrice *uint256.Int
}

// ParseMarkets converts the configured markets into runtime form.
func (cfg *Config) ParseMarkets() ([]MarketRuntime, error) {
	out := make([]MarketRuntime, 0, len(cfg.Markets))
	for _, market := range cfg.Markets {
		if !common.IsHexAddress(market.Asset) {
			return nil, fmt.Errorf("config: market %s asset %q is not a hex address", market.Symbol, market.Asset)
		}
		runtime := MarketRuntime{
			Symbol:   market.Symbol,
			Asset:    common.HexToAddress(market.Asset),
			Decimals: market.Decimals,
		}
		var err error
		if runtime.LendFactor, err = parseAmount("LendFactor", market.LendFactor); err != nil {
			return nil, err
		}
		if runtime.BorrowFactor, err = parseAmount("BorrowFactor", market.BorrowFactor); err != nil {
			return nil, err
		}
		if runtime.BaseRate, err = parseAmount("BaseRate", market.BaseRate); err != nil {
			return nil, err
		}
		if runtime.Slope1, err = parseAmount("Slope1", market.Slope1); err != nil {
			return nil, err
		}
		if runtime.Slope2, err = parseAmount("Slope2", market.Slope2); err != nil {
			return nil, err
		}
		if runtime.Kink, err = parseAmount("Kink", market.Kink); err != nil {
			return nil, err
		}
		if strings.TrimSpace(market.InitialPrice) != "" {
			if runtime.InitialPrice, err = parseAmount("InitialPrice", market.InitialPrice); err != nil {
				return nil, err
			}
		}
		out = append(out, runtime)
	}
	return out, nil
}

// LiquidationBonus parses the configured 1e18-scaled bonus fraction.
func (cfg *Config) LiquidationBonus() (*uint256.Int, error) {
	return parseAmount("Risk.LiquidationBonus", cfg.Risk.LiquidationBonus)
}

// AdminAddresses parses the configured admin identities.
func (cfg *Config) AdminAddresses() ([]common.Address, error) {
	out := make([]common.Address, 0, len(cfg.Admins))
	for _, admin := range cfg.Admins {
		if !common.IsHexAddress(admin) {
			return nil, fmt.Errorf("config: admin %q is not a hex address", admin)
		}
		out = append(out, common.HexToAddress(admin))
	}
	return out, nil
}

// LedgerAddr parses the configured ledger identity.
func (cfg *Config) LedgerAddr() (common.Address, error) {
	if !common.IsHexAddress(cfg.LedgerAddress) {
		return common.Address{}, fmt.Errorf("config: LedgerAddress %q is not a hex address", cfg.LedgerAddress)
	}
	return common.HexToAddress(cfg.LedgerAddress), nil
}

// parseAmount parses an unsigned decimal string, treating empty as zero.
func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return uint256.NewInt(0), nil
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("config: invalid %s %q: %w", field, raw, err)
	}
	return value, nil
}
