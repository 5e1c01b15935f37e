package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads the market configuration from the given path, writing a default
// file first when none exists. The result has been normalized and validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Admins == nil {
		cfg.Admins = []string{}
	}
	if cfg.Markets == nil {
		cfg.Markets = []Market{}
	}
	if strings.TrimSpace(cfg.Risk.LiquidationBonus) == "" {
		cfg.Risk.LiquidationBonus = "0"
	}
	for i := range cfg.Markets {
		market := &cfg.Markets[i]
		market.Symbol = strings.TrimSpace(market.Symbol)
		market.Asset = strings.TrimSpace(market.Asset)
		if market.Decimals == 0 {
			market.Decimals = 18
		}
	}
}

// createDefault creates and saves a single-market starter configuration.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		LedgerAddress: "0x0000000000000000000000000000000000000001",
		Admins:        []string{},
		Risk:          Risk{LiquidationBonus: "50000000000000000"},
		Markets: []Market{
			{
				Symbol:       "DEMO",
				Asset:        "0x000000000000000000000000000000000000000a",
				Decimals:     18,
				LendFactor:   "500000000000000000",
				BorrowFactor: "1000000000000000000",
				BaseRate:     "20000000000000000",
				Slope1:       "150000000000000000",
				Slope2:       "600000000000000000",
				Kink:         "800000000000000000",
				InitialPrice: "1000000000000000000",
			},
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
