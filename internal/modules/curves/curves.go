// Package curves evaluates scenario price-evolution shapes.
//
// Each archetype maps normalized run progress to an instantaneous percentage
// change relative to the scenario's per-asset target. All functions are pure.
package curves

import (
	"math"

	"github.com/helixtrade/replay/internal/domain"
)

// Evaluate returns the instantaneous percentage change for an asset at the
// given progress. Progress is clamped to [0,1]; a zero target yields zero for
// every archetype.
//
// Shapes:
//   - crash: front-loaded, saturates at the target by progress 0.5
//   - recovery: linear ramp to the target
//   - volatility: sine oscillation, back to zero at progress 1
//   - stress: ramps to target by 0.4, then overshoots past zero on the back
//     half (ends at -0.5 * target)
//   - tariff: two-phase panic sell, 80% of target by 0.4 then saturating to
//     the full target with no recovery
func Evaluate(archetype domain.Archetype, progress, targetChangePercent float64) float64 {
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}

	switch archetype {
	case domain.ArchetypeCrash:
		return targetChangePercent * math.Min(progress*2, 1)

	case domain.ArchetypeRecovery:
		return targetChangePercent * progress

	case domain.ArchetypeVolatility:
		return targetChangePercent * math.Sin(progress*2*math.Pi)

	case domain.ArchetypeStress:
		if progress < 0.4 {
			return targetChangePercent * (progress / 0.4)
		}
		// Back half deliberately overshoots and flips sign past zero.
		return targetChangePercent * (1 - ((progress-0.4)/0.6)*1.5)

	case domain.ArchetypeTariff:
		if progress < 0.4 {
			return targetChangePercent * 0.8 * (progress / 0.4)
		}
		return targetChangePercent * (0.8 + 0.2*((progress-0.4)/0.6))

	default:
		return 0
	}
}

// EvaluateAll evaluates every asset of a scenario at the given progress.
func EvaluateAll(scenario *domain.Scenario, progress float64) map[string]float64 {
	changes := make(map[string]float64, len(scenario.TargetChanges))
	for symbol, target := range scenario.TargetChanges {
		changes[symbol] = Evaluate(scenario.Archetype, progress, target)
	}
	return changes
}
