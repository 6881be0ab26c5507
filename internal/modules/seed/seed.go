// Package seed derives the deterministic per-run perturbation from a run seed.
package seed

import "github.com/helixtrade/replay/internal/domain"

// Derive maps a run seed to the run's market variance and hedge efficiency.
// Identical seeds produce bit-identical output.
//
//	marketVariance  = ((seed mod 1000)/1000)*0.15 - 0.075   in [-0.075, +0.075)
//	hedgeEfficiency = 0.60 + ((seed mod 500)/500)*0.15      in [0.60, 0.75)
func Derive(runSeed int64) domain.RunVariance {
	return domain.RunVariance{
		MarketVariance:  (float64(mod(runSeed, 1000))/1000)*0.15 - 0.075,
		HedgeEfficiency: 0.60 + (float64(mod(runSeed, 500))/500)*0.15,
	}
}

// mod is the non-negative remainder, so negative seeds stay inside the
// documented output ranges.
func mod(v, m int64) int64 {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
