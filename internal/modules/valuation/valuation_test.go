package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixtrade/replay/internal/domain"
)

func testState() domain.PortfolioState {
	return domain.PortfolioState{
		CashReserve: 10000,
		Positions: []domain.Position{
			{Symbol: "BTC", UnitAmount: 2, ReferencePrice: 50000},
			{Symbol: "ETH", UnitAmount: 10, ReferencePrice: 3000},
		},
	}
}

func TestRevaluePositionMath(t *testing.T) {
	v := New()
	out := v.Revalue(testState(), map[string]float64{"BTC": -40, "ETH": -20}, 0)

	require.Len(t, out.Positions, 2)
	btc := out.Positions[0]
	assert.InDelta(t, 30000, btc.CurrentPrice, 1e-9)
	assert.InDelta(t, 60000, btc.CurrentValue, 1e-9)
	assert.InDelta(t, -40000, btc.PnL, 1e-9)
	assert.InDelta(t, -40, btc.PnLPercent, 1e-9)

	eth := out.Positions[1]
	assert.InDelta(t, 2400, eth.CurrentPrice, 1e-9)
	assert.InDelta(t, -20, eth.PnLPercent, 1e-9)

	// totalValue = cash + position values + hedge pnl
	assert.InDelta(t, 10000+60000+24000, out.TotalValue, 1e-9)
}

func TestRevalueAggregates(t *testing.T) {
	v := New()
	out := v.Revalue(testState(), map[string]float64{"BTC": -40, "ETH": -20}, 0)

	// avgAbsPnlPercent = (40+20)/2 = 30
	assert.InDelta(t, 25+30*1.5, out.RiskScore, 1e-9)
	assert.InDelta(t, 0.15+30.0/80, out.VolatilityIndex, 1e-9)
}

func TestRevalueClampsAggregates(t *testing.T) {
	v := New()
	out := v.Revalue(testState(), map[string]float64{"BTC": -90, "ETH": -90}, 0)

	assert.InDelta(t, 100, out.RiskScore, 1e-9)
	assert.InDelta(t, 1, out.VolatilityIndex, 1e-9)
}

func TestRevalueIncludesHedgePnl(t *testing.T) {
	v := New()
	out := v.Revalue(testState(), map[string]float64{"BTC": -40, "ETH": -20}, 5000)

	assert.InDelta(t, 5000, out.HedgePnL, 1e-9)
	assert.InDelta(t, 10000+60000+24000+5000, out.TotalValue, 1e-9)
}

func TestRevalueDoesNotMutateInput(t *testing.T) {
	v := New()
	in := testState()
	_ = v.Revalue(in, map[string]float64{"BTC": -40}, 0)

	assert.Zero(t, in.Positions[0].CurrentPrice)
	assert.Zero(t, in.TotalValue)
}

func TestRevalueUnitAmountFixed(t *testing.T) {
	v := New()
	out := v.Revalue(testState(), map[string]float64{"BTC": -40, "ETH": -20}, 0)

	assert.InDelta(t, 2, out.Positions[0].UnitAmount, 1e-12)
	assert.InDelta(t, 10, out.Positions[1].UnitAmount, 1e-12)
}

func TestRevalueMissingChangeKeepsReferencePrice(t *testing.T) {
	v := New()
	out := v.Revalue(testState(), map[string]float64{"BTC": -40}, 0)

	assert.InDelta(t, 3000, out.Positions[1].CurrentPrice, 1e-9)
	assert.InDelta(t, 0, out.Positions[1].PnLPercent, 1e-9)
}

func TestRevalueEmptyPortfolio(t *testing.T) {
	v := New()
	out := v.Revalue(domain.PortfolioState{CashReserve: 500}, nil, 0)

	assert.InDelta(t, 500, out.TotalValue, 1e-9)
	assert.InDelta(t, v.BaseRisk, out.RiskScore, 1e-9)
	assert.InDelta(t, v.BaseVolatility, out.VolatilityIndex, 1e-9)
}
