package lending

import (
	"github.com/holiman/uint256"

	"lendcore/fixedpoint"
)

// KinkedRateModel is a two-slope utilisation curve: a gentle slope up to the
// kink point and a steeper one beyond it to defend remaining liquidity. It
// satisfies the InterestRateModel contract by converting the annualised rate
// into a per-time-unit growth multiplier.
type KinkedRateModel struct {
	baseRate     *uint256.Int
	slope1       *uint256.Int
	slope2       *uint256.Int
	kink         *uint256.Int
	unitsPerYear uint64
}

// NewKinkedRateModel builds a rate model from 1e18-scaled annual rates. A 2%
// base rate is 0.02e18 and an 80% kink utilisation is 0.8e18.
func NewKinkedRateModel(baseRate, slope1, slope2, kink *uint256.Int, unitsPerYear uint64) *KinkedRateModel {
	if unitsPerYear == 0 {
		unitsPerYear = 1
	}
	model := &KinkedRateModel{
		baseRate:     uint256.NewInt(0),
		slope1:       uint256.NewInt(0),
		slope2:       uint256.NewInt(0),
		kink:         uint256.NewInt(0),
		unitsPerYear: unitsPerYear,
	}
	if baseRate != nil {
		model.baseRate = baseRate.Clone()
	}
	if slope1 != nil {
		model.slope1 = slope1.Clone()
	}
	if slope2 != nil {
		model.slope2 = slope2.Clone()
	}
	if kink != nil {
		model.kink = kink.Clone()
	}
	return model
}

// Utilisation is totalBorrowed / totalLiquidity in 1e18 terms, zero when the
// pool holds no liquidity.
func (m *KinkedRateModel) Utilisation(totalLiquidity, totalBorrowed *uint256.Int) *uint256.Int {
	if totalLiquidity == nil || totalLiquidity.IsZero() || totalBorrowed == nil || totalBorrowed.IsZero() {
		return uint256.NewInt(0)
	}
	ratio, err := fixedpoint.DivWadDown(totalBorrowed, totalLiquidity)
	if err != nil {
		return uint256.NewInt(0)
	}
	return ratio
}

// GetBorrowRate returns the per-time-unit growth multiplier for the current
// utilisation, 1e18 meaning no growth.
func (m *KinkedRateModel) GetBorrowRate(totalLiquidity, totalBorrowed, _ *uint256.Int) *uint256.Int {
	utilisation := m.Utilisation(totalLiquidity, totalBorrowed)

	annual := m.baseRate.Clone()
	below := utilisation
	if below.Gt(m.kink) {
		below = m.kink
	}
	if linear, err := fixedpoint.MulWadDown(m.slope1, below); err == nil {
		annual = new(uint256.Int).Add(annual, linear)
	}
	if utilisation.Gt(m.kink) {
		excess := new(uint256.Int).Sub(utilisation, m.kink)
		if steep, err := fixedpoint.MulWadDown(m.slope2, excess); err == nil {
			annual = new(uint256.Int).Add(annual, steep)
		}
	}

	perUnit := new(uint256.Int).Div(annual, uint256.NewInt(m.unitsPerYear))
	return new(uint256.Int).Add(fixedpoint.Wad, perUnit)
}

// DefaultRateModel is a reasonable starting curve: 2% base, 1.5% per 10%
// utilisation before an 80% kink, then 6% per 10% beyond it, compounded per
// second.
var DefaultRateModel = NewKinkedRateModel(
	uint256.NewInt(20_000_000_000_000_000),
	uint256.NewInt(150_000_000_000_000_000),
	uint256.NewInt(600_000_000_000_000_000),
	uint256.NewInt(800_000_000_000_000_000),
	31_536_000,
)
