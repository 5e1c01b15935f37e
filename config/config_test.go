package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `LedgerAddress = "0x0000000000000000000000000000000000000001"
Admins = ["0x00000000000000000000000000000000000000aa"]

[Risk]
LiquidationBonus = "50000000000000000"

[[Markets]]
Symbol = "WETH"
Asset = "0x000000000000000000000000000000000000000a"
Decimals = 18
LendFactor = "800000000000000000"
BorrowFactor = "1000000000000000000"
BaseRate = "20000000000000000"
Slope1 = "150000000000000000"
Slope2 = "600000000000000000"
Kink = "800000000000000000"
InitialPrice = "1000000000000000000"

[[Markets]]
Symbol = "USDX"
Asset = "0x000000000000000000000000000000000000000b"
Decimals = 6
LendFactor = "900000000000000000"
BorrowFactor = "1000000000000000000"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markets.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesMarkets(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Markets, 2)

	markets, err := cfg.ParseMarkets()
	require.NoError(t, err)
	require.Equal(t, "WETH", markets[0].Symbol)
	require.Equal(t, uint8(18), markets[0].Decimals)
	require.Equal(t, uint256.MustFromDecimal("800000000000000000"), markets[0].LendFactor)
	require.Equal(t, uint256.MustFromDecimal("1000000000000000000"), markets[0].InitialPrice)
	require.Nil(t, markets[1].InitialPrice)
	require.True(t, markets[1].BaseRate.IsZero())

	bonus, err := cfg.LiquidationBonus()
	require.NoError(t, err)
	require.Equal(t, uint256.MustFromDecimal("50000000000000000"), bonus)

	admins, err := cfg.AdminAddresses()
	require.NoError(t, err)
	require.Len(t, admins, 1)
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Markets)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// The written default must itself load and validate.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.LedgerAddress, again.LedgerAddress)
}

func TestLoadRejectsBadLedgerAddress(t *testing.T) {
	_, err := Load(writeConfig(t, `LedgerAddress = "not-an-address"`))
	require.ErrorContains(t, err, "LedgerAddress")
}

func TestLoadRejectsDuplicateAsset(t *testing.T) {
	contents := `LedgerAddress = "0x0000000000000000000000000000000000000001"

[[Markets]]
Symbol = "ONE"
Asset = "0x000000000000000000000000000000000000000a"

[[Markets]]
Symbol = "TWO"
Asset = "0x000000000000000000000000000000000000000A"
`
	_, err := Load(writeConfig(t, contents))
	require.ErrorContains(t, err, "share asset")
}

func TestLoadRejectsOversizedFactor(t *testing.T) {
	contents := `LedgerAddress = "0x0000000000000000000000000000000000000001"

[[Markets]]
Symbol = "BAD"
Asset = "0x000000000000000000000000000000000000000a"
LendFactor = "1000000000000000001"
`
	_, err := Load(writeConfig(t, contents))
	require.ErrorContains(t, err, "exceeds 1e18")
}

func TestLoadRejectsMalformedAmount(t *testing.T) {
	contents := `LedgerAddress = "0x0000000000000000000000000000000000000001"

[[Markets]]
Symbol = "BAD"
Asset = "0x000000000000000000000000000000000000000a"
BorrowFactor = "1.5e18"
`
	_, err := Load(writeConfig(t, contents))
	require.ErrorContains(t, err, "BorrowFactor")
}
