// Package analytics derives indicator statistics from the per-asset price
// series accumulated during a run. All functions are pure; they never
// mutate their inputs.
package analytics

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

const (
	rsiPeriod    = 14
	stdDevPeriod = 10
)

// Series summarizes one asset's price path.
type Series struct {
	Samples    int     `json:"samples"`
	Last       float64 `json:"last"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Drawdown   float64 `json:"max_drawdown"`
	RSI        float64 `json:"rsi,omitempty"`
	Volatility float64 `json:"rolling_volatility,omitempty"`
}

// Compute returns summary statistics for a price series. Indicator fields
// that need a minimum lookback are zero until enough samples accumulate.
func Compute(prices []float64) Series {
	if len(prices) == 0 {
		return Series{}
	}

	s := Series{
		Samples: len(prices),
		Last:    prices[len(prices)-1],
		Mean:    stat.Mean(prices, nil),
	}
	if len(prices) > 1 {
		s.StdDev = math.Sqrt(stat.Variance(prices, nil))
	}
	s.Drawdown = maxDrawdown(prices)

	if len(prices) > rsiPeriod {
		rsi := talib.Rsi(prices, rsiPeriod)
		s.RSI = rsi[len(rsi)-1]
	}
	if len(prices) > stdDevPeriod {
		sd := talib.StdDev(prices, stdDevPeriod, 1.0)
		s.Volatility = sd[len(sd)-1]
	}
	return s
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction of
// the peak. Zero for monotonically rising series.
func maxDrawdown(prices []float64) float64 {
	peak := prices[0]
	worst := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			dd := (peak - p) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
