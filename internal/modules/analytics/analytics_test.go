package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeEmptySeries(t *testing.T) {
	s := Compute(nil)
	assert.Equal(t, 0, s.Samples)
	assert.Zero(t, s.Mean)
}

func TestComputeBasicStats(t *testing.T) {
	s := Compute([]float64{100, 110, 90, 100})
	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 100.0, s.Mean, 1e-9)
	assert.Equal(t, 100.0, s.Last)
	assert.Greater(t, s.StdDev, 0.0)
}

func TestMaxDrawdown(t *testing.T) {
	// Peak at 120, trough at 60: 50% drawdown.
	s := Compute([]float64{100, 120, 90, 60, 80})
	assert.InDelta(t, 0.5, s.Drawdown, 1e-9)
}

func TestMaxDrawdownMonotonicRise(t *testing.T) {
	s := Compute([]float64{50, 60, 70, 80})
	assert.Zero(t, s.Drawdown)
}

func TestIndicatorsNeedLookback(t *testing.T) {
	short := Compute([]float64{100, 101, 102})
	assert.Zero(t, short.RSI)
	assert.Zero(t, short.Volatility)

	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i%7)
	}
	long := Compute(prices)
	assert.Greater(t, long.RSI, 0.0)
	assert.Greater(t, long.Volatility, 0.0)
}
