package scenario

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/domain"
)

var memDBCounter int

func newTestService(t *testing.T) *Service {
	t.Helper()
	memDBCounter++
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:scenario_test_%d?mode=memory&cache=shared", memDBCounter),
		Profile: database.ProfileStandard,
		Name:    "catalog",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return NewService(repo, zerolog.Nop())
}

func TestSeedDefaults(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.SeedDefaults())

	scenarios, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, scenarios, len(DefaultScenarios()))

	flash, err := svc.Get("flash-crash")
	require.NoError(t, err)
	assert.Equal(t, domain.ArchetypeCrash, flash.Archetype)
	assert.Equal(t, 30, flash.DurationTicks)
	assert.InDelta(t, -40, flash.TargetChanges["BTC"], 1e-9)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.SeedDefaults())
	require.NoError(t, svc.SeedDefaults())

	scenarios, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, scenarios, len(DefaultScenarios()))
}

func TestSeedDefaultsPreservesCustomCatalog(t *testing.T) {
	svc := newTestService(t)
	custom := &domain.Scenario{
		ID:            "custom",
		Name:          "Custom",
		Archetype:     domain.ArchetypeCrash,
		DurationTicks: 10,
		TargetChanges: map[string]float64{"BTC": -5},
	}
	require.NoError(t, svc.Save(custom))

	// Non-empty catalog: defaults must not be added on top.
	require.NoError(t, svc.SeedDefaults())
	scenarios, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, scenarios, 1)
}

func TestSaveRejectsInvalidScenario(t *testing.T) {
	svc := newTestService(t)

	err := svc.Save(&domain.Scenario{
		ID:            "bad",
		Name:          "Bad",
		Archetype:     "meteor",
		DurationTicks: 10,
		TargetChanges: map[string]float64{"BTC": -5},
	})
	assert.Error(t, err)

	err = svc.Save(&domain.Scenario{
		ID:            "bad2",
		Name:          "Bad2",
		Archetype:     domain.ArchetypeCrash,
		DurationTicks: 0,
		TargetChanges: map[string]float64{"BTC": -5},
	})
	assert.Error(t, err)
}

func TestGetUnknownScenario(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get("missing")
	assert.Error(t, err)
}

func TestUpsertOverwrites(t *testing.T) {
	svc := newTestService(t)
	s := &domain.Scenario{
		ID:            "s1",
		Name:          "First",
		Archetype:     domain.ArchetypeCrash,
		DurationTicks: 10,
		TargetChanges: map[string]float64{"BTC": -5},
	}
	require.NoError(t, svc.Save(s))

	s.Name = "Second"
	s.DurationTicks = 20
	require.NoError(t, svc.Save(s))

	got, err := svc.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Name)
	assert.Equal(t, 20, got.DurationTicks)
}

func TestDefaultScenariosAreValid(t *testing.T) {
	for _, s := range DefaultScenarios() {
		assert.NoError(t, domain.ValidateScenario(s), "scenario %s", s.ID)
	}
}
