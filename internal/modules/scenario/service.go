package scenario

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
)

// Service wraps the catalog repository and seeds the built-in scenarios
// on first start.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a scenario service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "scenario").Logger(),
	}
}

// Get returns a scenario by id.
func (s *Service) Get(id string) (*domain.Scenario, error) {
	return s.repo.Get(id)
}

// List returns all catalog scenarios.
func (s *Service) List() ([]*domain.Scenario, error) {
	return s.repo.List()
}

// Save validates and stores a scenario.
func (s *Service) Save(scenario *domain.Scenario) error {
	if err := s.repo.Upsert(scenario); err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	return nil
}

// SeedDefaults inserts the built-in scenarios if the catalog is empty.
func (s *Service) SeedDefaults() error {
	count, err := s.repo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, scenario := range DefaultScenarios() {
		if err := s.repo.Upsert(scenario); err != nil {
			return fmt.Errorf("failed to seed scenario %q: %w", scenario.ID, err)
		}
	}

	s.log.Info().Int("count", len(DefaultScenarios())).Msg("Seeded default scenarios")
	return nil
}

// DefaultScenarios returns the built-in scenario catalog.
func DefaultScenarios() []*domain.Scenario {
	return []*domain.Scenario{
		{
			ID:            "flash-crash",
			Name:          "Flash Crash",
			Archetype:     domain.ArchetypeCrash,
			DurationTicks: 30,
			TargetChanges: map[string]float64{"BTC": -40, "ETH": -45, "SOL": -55},
			HistoricalContext: "Modeled on the May 2021 crypto flash crash, when BTC lost " +
				"roughly a third of its value inside a week and high-beta alts fell harder.",
		},
		{
			ID:            "tariff-shock",
			Name:          "Tariff Shock",
			Archetype:     domain.ArchetypeTariff,
			DurationTicks: 40,
			TargetChanges: map[string]float64{"BTC": -22, "ETH": -28, "SOL": -35},
			HistoricalContext: "Sudden trade-policy announcement: an initial sharp repricing " +
				"followed by a slower grind lower as supply chains adjust.",
		},
		{
			ID:            "liquidity-stress",
			Name:          "Liquidity Stress",
			Archetype:     domain.ArchetypeStress,
			DurationTicks: 50,
			TargetChanges: map[string]float64{"BTC": -30, "ETH": -32},
			HistoricalContext: "Funding squeeze: prices overshoot to the downside, then the " +
				"unwind drags them back through the starting level in the final phase.",
		},
		{
			ID:            "choppy-range",
			Name:          "Choppy Range",
			Archetype:     domain.ArchetypeVolatility,
			DurationTicks: 60,
			TargetChanges: map[string]float64{"BTC": 15, "ETH": 18, "SOL": 25},
			HistoricalContext: "Directionless whipsaw: a full oscillation that ends the run " +
				"back where it started.",
		},
		{
			ID:            "relief-rally",
			Name:          "Relief Rally",
			Archetype:     domain.ArchetypeRecovery,
			DurationTicks: 45,
			TargetChanges: map[string]float64{"BTC": 25, "ETH": 30, "SOL": 40},
			HistoricalContext: "Post-capitulation recovery: a steady linear climb toward the " +
				"target as sidelined capital rotates back in.",
		},
	}
}
