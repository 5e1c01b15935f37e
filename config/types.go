package config

// Market describes one lendable asset: its identity, custody decimals, risk
// factors, interest curve, and an optional initial oracle price. Amount-like
// fields are decimal strings so 1e18-scaled values survive TOML round trips.
type Market struct {
	Symbol       string `toml:"Symbol"`
	Asset        string `toml:"Asset"`
	Decimals     uint8  `toml:"Decimals"`
	LendFactor   string `toml:"LendFactor"`
	BorrowFactor string `toml:"BorrowFactor"`

	BaseRate string `toml:"BaseRate"`
	Slope1   string `toml:"Slope1"`
	Slope2   string `toml:"Slope2"`
	Kink     string `toml:"Kink"`

	InitialPrice string `toml:"InitialPrice,omitempty"`
}

// Risk holds the market-wide risk knobs.
type Risk struct {
	LiquidationBonus string `toml:"LiquidationBonus"`
}

// Config is the on-disk market configuration for one ledger instance.
type Config struct {
	LedgerAddress string   `toml:"LedgerAddress"`
	Admins        []string `toml:"Admins"`
	Risk          Risk     `toml:"Risk"`
	Markets       []Market `toml:"Markets"`
}
