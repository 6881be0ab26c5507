// Package history persists completed runs and their per-tick portfolio
// snapshots for later replay inspection.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/domain"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID          string     `json:"run_id"`
	ScenarioID     string     `json:"scenario_id"`
	Seed           int64      `json:"seed"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UnhedgedLoss   *float64   `json:"unhedged_loss,omitempty"`
	FinalLoss      *float64   `json:"final_loss,omitempty"`
	TotalSaved     *float64   `json:"total_saved,omitempty"`
	ResponseTimeMs *int64     `json:"response_time_ms,omitempty"`
}

// TickSnapshot is one decoded row of the run_snapshots table.
type TickSnapshot struct {
	Tick  int                   `json:"tick"`
	State domain.PortfolioState `json:"state"`
}

// Repository handles database operations for run history.
// Database: history.db (runs, run_snapshots tables)
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new run history repository and ensures its schema.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id           TEXT PRIMARY KEY,
			scenario_id      TEXT NOT NULL,
			seed             INTEGER NOT NULL,
			started_at       TIMESTAMP NOT NULL,
			completed_at     TIMESTAMP,
			unhedged_loss    REAL,
			final_loss       REAL,
			total_saved      REAL,
			response_time_ms INTEGER
		);
		CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id    TEXT NOT NULL,
			tick      INTEGER NOT NULL,
			state     BLOB NOT NULL,
			PRIMARY KEY (run_id, tick)
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RecordRunStart inserts a new run row.
func (r *Repository) RecordRunStart(runID, scenarioID string, runSeed int64, startedAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO runs (run_id, scenario_id, seed, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, scenarioID, runSeed, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().Str("run_id", runID).Str("scenario_id", scenarioID).Msg("Recorded run start")
	return nil
}

// RecordTickSnapshot stores the portfolio state for one tick as a msgpack blob.
func (r *Repository) RecordTickSnapshot(runID string, tick int, state domain.PortfolioState) error {
	blob, err := msgpack.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO run_snapshots (run_id, tick, state)
		VALUES (?, ?, ?)
	`, runID, tick, blob)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// RecordRunSummary fills in the summary columns of a completed run.
func (r *Repository) RecordRunSummary(summary domain.RunSummary) error {
	result, err := r.db.Exec(`
		UPDATE runs
		SET completed_at = ?, unhedged_loss = ?, final_loss = ?, total_saved = ?, response_time_ms = ?
		WHERE run_id = ?
	`, summary.CompletedAt.UTC(), summary.UnhedgedLoss, summary.FinalLoss, summary.TotalSaved, summary.ResponseTimeMs, summary.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run summary: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("no run row for %s", summary.RunID)
	}

	r.log.Debug().Str("run_id", summary.RunID).Msg("Recorded run summary")
	return nil
}

// ListRuns returns run rows newest-first, up to limit.
func (r *Repository) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT run_id, scenario_id, seed, started_at, completed_at,
		       unhedged_loss, final_loss, total_saved, response_time_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var completedAt sql.NullTime
		var unhedged, finalLoss, saved sql.NullFloat64
		var responseMs sql.NullInt64
		if err := rows.Scan(&rec.RunID, &rec.ScenarioID, &rec.Seed, &rec.StartedAt,
			&completedAt, &unhedged, &finalLoss, &saved, &responseMs); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			rec.CompletedAt = &t
		}
		if unhedged.Valid {
			rec.UnhedgedLoss = &unhedged.Float64
		}
		if finalLoss.Valid {
			rec.FinalLoss = &finalLoss.Float64
		}
		if saved.Valid {
			rec.TotalSaved = &saved.Float64
		}
		if responseMs.Valid {
			rec.ResponseTimeMs = &responseMs.Int64
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return records, nil
}

// GetRun returns a single run row.
func (r *Repository) GetRun(runID string) (*RunRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, scenario_id, seed, started_at, completed_at,
		       unhedged_loss, final_loss, total_saved, response_time_ms
		FROM runs
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("run %q not found", runID)
	}

	var rec RunRecord
	var completedAt sql.NullTime
	var unhedged, finalLoss, saved sql.NullFloat64
	var responseMs sql.NullInt64
	if err := rows.Scan(&rec.RunID, &rec.ScenarioID, &rec.Seed, &rec.StartedAt,
		&completedAt, &unhedged, &finalLoss, &saved, &responseMs); err != nil {
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	if unhedged.Valid {
		rec.UnhedgedLoss = &unhedged.Float64
	}
	if finalLoss.Valid {
		rec.FinalLoss = &finalLoss.Float64
	}
	if saved.Valid {
		rec.TotalSaved = &saved.Float64
	}
	if responseMs.Valid {
		rec.ResponseTimeMs = &responseMs.Int64
	}
	return &rec, nil
}

// GetSnapshots returns the decoded per-tick snapshots of a run in tick order.
func (r *Repository) GetSnapshots(runID string) ([]TickSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT tick, state
		FROM run_snapshots
		WHERE run_id = ?
		ORDER BY tick
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []TickSnapshot
	for rows.Next() {
		var tick int
		var blob []byte
		if err := rows.Scan(&tick, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		var state domain.PortfolioState
		if err := msgpack.Unmarshal(blob, &state); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot for tick %d: %w", tick, err)
		}
		snapshots = append(snapshots, TickSnapshot{Tick: tick, State: state})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}

// PurgeOlderThan deletes runs (and their snapshots) started before the
// cutoff. Returns the number of runs removed.
func (r *Repository) PurgeOlderThan(cutoff time.Time) (int, error) {
	var purged int
	err := database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM run_snapshots
			WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)
		`, cutoff.UTC()); err != nil {
			return fmt.Errorf("failed to delete old snapshots: %w", err)
		}

		result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete old runs: %w", err)
		}
		rowsAffected, _ := result.RowsAffected()
		purged = int(rowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		r.log.Info().Int("runs_purged", purged).Msg("Purged expired run history")
	}
	return purged, nil
}
