// Package valuation recomputes position values, PnL and aggregate risk
// metrics from the current per-asset price changes.
package valuation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/helixtrade/replay/internal/domain"
)

// Valuer revalues a portfolio snapshot. Base levels anchor the aggregate
// risk/volatility readings before stress displacement is added.
type Valuer struct {
	BaseRisk       float64 // risk score of an unstressed portfolio (0..100)
	BaseVolatility float64 // volatility index of an unstressed portfolio (0..1)
}

// New creates a valuer with the platform's standard base levels.
func New() *Valuer {
	return &Valuer{
		BaseRisk:       25,
		BaseVolatility: 0.15,
	}
}

// Revalue returns a new portfolio state with every position repriced by the
// given per-asset percentage changes. Positions without a change entry keep
// their reference price. The input state is not mutated.
func (v *Valuer) Revalue(state domain.PortfolioState, changes map[string]float64, hedgePnL float64) domain.PortfolioState {
	out := state.Clone()
	out.HedgePnL = hedgePnL

	absPnlPercents := make([]float64, 0, len(out.Positions))
	positionsTotal := 0.0

	for i := range out.Positions {
		pos := &out.Positions[i]
		change := changes[pos.Symbol]

		pos.CurrentPrice = pos.ReferencePrice * (1 + change/100)
		pos.CurrentValue = pos.UnitAmount * pos.CurrentPrice

		refValue := pos.ReferenceValue()
		pos.PnL = pos.CurrentValue - refValue
		if refValue != 0 {
			pos.PnLPercent = pos.PnL / refValue * 100
		} else {
			pos.PnLPercent = 0
		}

		absPnlPercents = append(absPnlPercents, math.Abs(pos.PnLPercent))
		positionsTotal += pos.CurrentValue
	}

	avgAbsPnlPercent := 0.0
	if len(absPnlPercents) > 0 {
		avgAbsPnlPercent = stat.Mean(absPnlPercents, nil)
	}

	out.RiskScore = clamp(v.BaseRisk+avgAbsPnlPercent*1.5, 0, 100)
	out.VolatilityIndex = clamp(v.BaseVolatility+avgAbsPnlPercent/80, 0, 1)
	out.TotalValue = out.CashReserve + positionsTotal + hedgePnL

	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
