package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixtrade/replay/internal/domain"
)

func TestTickAtClamping(t *testing.T) {
	assert.Equal(t, 1, tickAt(30, 0))
	assert.Equal(t, 1, tickAt(1, 0.15))
	assert.Equal(t, 1, tickAt(1, 0.8))
	assert.Equal(t, 30, tickAt(30, 1.0))
	assert.Equal(t, 9, tickAt(30, 0.3))
}

func TestPlanForScenarioPortfolio(t *testing.T) {
	plan := PlanForScenario(&domain.Scenario{
		ID:            "s",
		Name:          "S",
		Archetype:     domain.ArchetypeCrash,
		DurationTicks: 30,
		TargetChanges: map[string]float64{"BTC": -40, "ETH": -45},
	})

	require.Len(t, plan.Initial.Positions, 2)
	// Sorted by symbol.
	assert.Equal(t, "BTC", plan.Initial.Positions[0].Symbol)
	assert.Equal(t, "ETH", plan.Initial.Positions[1].Symbol)

	for _, pos := range plan.Initial.Positions {
		assert.InDelta(t, notionalPerAsset, pos.UnitAmount*pos.ReferencePrice, 1e-6)
		assert.Equal(t, pos.ReferencePrice, pos.CurrentPrice)
	}
	assert.InDelta(t, cashReserve+2*notionalPerAsset, plan.Initial.TotalValue, 1e-9)
	assert.InDelta(t, defaultHedgeRatio, plan.HedgeRatios["BTC"], 1e-9)
}

func TestPlanForScenarioUnknownSymbolFallsBack(t *testing.T) {
	plan := PlanForScenario(&domain.Scenario{
		ID:            "s",
		Name:          "S",
		Archetype:     domain.ArchetypeRecovery,
		DurationTicks: 10,
		TargetChanges: map[string]float64{"XYZ": 10},
	})
	require.Len(t, plan.Initial.Positions, 1)
	assert.InDelta(t, defaultReferencePrice, plan.Initial.Positions[0].ReferencePrice, 1e-9)
}

func TestBuildScriptActivatesHedgeOnce(t *testing.T) {
	plan := PlanForScenario(&domain.Scenario{
		ID:            "s",
		Name:          "S",
		Archetype:     domain.ArchetypeCrash,
		DurationTicks: 30,
		TargetChanges: map[string]float64{"BTC": -40},
	})

	activations := 0
	for _, d := range plan.Script {
		if d.ActivateHedge {
			activations++
			assert.Equal(t, tickAt(30, 0.3), d.Tick)
		}
	}
	assert.Equal(t, 1, activations)
}

func TestBuildScriptProfitTakingOnlyForFallingShapes(t *testing.T) {
	hasRatioCut := func(archetype domain.Archetype) bool {
		plan := PlanForScenario(&domain.Scenario{
			ID:            "s",
			Name:          "S",
			Archetype:     archetype,
			DurationTicks: 40,
			TargetChanges: map[string]float64{"BTC": -30},
		})
		for _, d := range plan.Script {
			if d.ReduceRatio != nil {
				return true
			}
		}
		return false
	}

	assert.True(t, hasRatioCut(domain.ArchetypeCrash))
	assert.True(t, hasRatioCut(domain.ArchetypeTariff))
	assert.False(t, hasRatioCut(domain.ArchetypeVolatility))
	assert.False(t, hasRatioCut(domain.ArchetypeStress))
	assert.False(t, hasRatioCut(domain.ArchetypeRecovery))
}

func TestScriptAtReturnsOnlyMatchingTick(t *testing.T) {
	script := Script{
		{Tick: 1, Log: &LogDirective{domain.LogInfo, "a"}},
		{Tick: 2, Log: &LogDirective{domain.LogInfo, "b"}},
		{Tick: 2, ActivateHedge: true},
	}

	assert.Len(t, script.at(1), 1)
	assert.Len(t, script.at(2), 2)
	assert.Empty(t, script.at(3))
}
