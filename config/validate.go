package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// maxFactor caps the 1e18-scaled risk factors and the curve kink.
var maxFactor = uint256.MustFromDecimal("1000000000000000000")

// MaxDecimals bounds custody decimals so 10^decimals stays well inside
// uint256 range.
const MaxDecimals = 36

func ValidateConfig(cfg *Config) error {
	if !common.IsHexAddress(cfg.LedgerAddress) {
		return fmt.Errorf("config: LedgerAddress %q is not a hex address", cfg.LedgerAddress)
	}
	for _, admin := range cfg.Admins {
		if !common.IsHexAddress(admin) {
			return fmt.Errorf("config: admin %q is not a hex address", admin)
		}
	}
	if _, err := parseAmount("Risk.LiquidationBonus", cfg.Risk.LiquidationBonus); err != nil {
		return err
	}

	seen := make(map[common.Address]string)
	for _, market := range cfg.Markets {
		if market.Symbol == "" {
			return fmt.Errorf("config: market %q has no symbol", market.Asset)
		}
		if !common.IsHexAddress(market.Asset) {
			return fmt.Errorf("config: market %s asset %q is not a hex address", market.Symbol, market.Asset)
		}
		asset := common.HexToAddress(market.Asset)
		if other, dup := seen[asset]; dup {
			return fmt.Errorf("config: markets %s and %s share asset %s", other, market.Symbol, market.Asset)
		}
		seen[asset] = market.Symbol
		if market.Decimals > MaxDecimals {
			return fmt.Errorf("config: market %s decimals %d exceed %d", market.Symbol, market.Decimals, MaxDecimals)
		}
		for _, field := range []struct {
			name   string
			value  string
			capped bool
		}{
			{"LendFactor", market.LendFactor, true},
			{"BorrowFactor", market.BorrowFactor, true},
			{"Kink", market.Kink, true},
			{"BaseRate", market.BaseRate, false},
			{"Slope1", market.Slope1, false},
			{"Slope2", market.Slope2, false},
			{"InitialPrice", market.InitialPrice, false},
		} {
			parsed, err := parseAmount(fmt.Sprintf("market %s %s", market.Symbol, field.name), field.value)
			if err != nil {
				return err
			}
			if field.capped && parsed.Gt(maxFactor) {
				return fmt.Errorf("config: market %s %s exceeds 1e18", market.Symbol, field.name)
			}
		}
	}
	return nil
}
