// Package scenario manages the catalog of replayable market scenarios.
package scenario

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/domain"
)

// Repository handles database operations for the scenario catalog.
// Database: catalog.db (scenarios table)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new scenario repository and ensures its schema.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("component", "scenario_repository").Logger(),
	}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS scenarios (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			archetype          TEXT NOT NULL,
			duration_ticks     INTEGER NOT NULL,
			target_changes     TEXT NOT NULL,
			historical_context TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create scenario schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a scenario.
func (r *Repository) Upsert(scenario *domain.Scenario) error {
	if err := domain.ValidateScenario(scenario); err != nil {
		return err
	}

	targets, err := json.Marshal(scenario.TargetChanges)
	if err != nil {
		return fmt.Errorf("failed to encode target changes: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO scenarios (id, name, archetype, duration_ticks, target_changes, historical_context)
		VALUES (?, ?, ?, ?, ?, ?)
	`, scenario.ID, scenario.Name, string(scenario.Archetype), scenario.DurationTicks, string(targets), scenario.HistoricalContext)
	if err != nil {
		return fmt.Errorf("failed to upsert scenario: %w", err)
	}

	r.log.Debug().Str("scenario_id", scenario.ID).Msg("Upserted scenario")
	return nil
}

// Get returns one scenario by id.
func (r *Repository) Get(id string) (*domain.Scenario, error) {
	row := r.db.QueryRow(`
		SELECT id, name, archetype, duration_ticks, target_changes, historical_context
		FROM scenarios
		WHERE id = ?
	`, id)

	scenario, err := scanScenario(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scenario %q not found", id)
		}
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return scenario, nil
}

// List returns all scenarios ordered by name.
func (r *Repository) List() ([]*domain.Scenario, error) {
	rows, err := r.db.Query(`
		SELECT id, name, archetype, duration_ticks, target_changes, historical_context
		FROM scenarios
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []*domain.Scenario
	for rows.Next() {
		scenario, err := scanScenario(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario row: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenario rows: %w", err)
	}
	return scenarios, nil
}

// Count returns the number of catalog entries.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM scenarios`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scenarios: %w", err)
	}
	return count, nil
}

func scanScenario(scan func(dest ...interface{}) error) (*domain.Scenario, error) {
	var scenario domain.Scenario
	var archetype, targets string
	if err := scan(&scenario.ID, &scenario.Name, &archetype, &scenario.DurationTicks, &targets, &scenario.HistoricalContext); err != nil {
		return nil, err
	}
	scenario.Archetype = domain.Archetype(archetype)
	if err := json.Unmarshal([]byte(targets), &scenario.TargetChanges); err != nil {
		return nil, fmt.Errorf("failed to decode target changes: %w", err)
	}
	return &scenario, nil
}
