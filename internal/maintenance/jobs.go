package maintenance

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/modules/history"
)

// RetentionJob purges run history older than the retention window.
type RetentionJob struct {
	repo      *history.Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewRetentionJob creates a retention job. A zero retention disables it
// at the wiring level; this type assumes a positive window.
func NewRetentionJob(repo *history.Repository, retention time.Duration, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "run_retention").Logger(),
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string { return "run_retention" }

// Run purges expired runs
func (j *RetentionJob) Run() error {
	purged, err := j.repo.PurgeOlderThan(time.Now().Add(-j.retention))
	if err != nil {
		return err
	}
	if purged > 0 {
		j.log.Info().Int("runs_purged", purged).Msg("Retention purge complete")
	}
	return nil
}

// CheckpointJob truncates the WAL files of the managed databases.
type CheckpointJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewCheckpointJob creates a WAL checkpoint job
func NewCheckpointJob(dbs []*database.DB, log zerolog.Logger) *CheckpointJob {
	return &CheckpointJob{
		dbs: dbs,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *CheckpointJob) Name() string { return "wal_checkpoint" }

// Run checkpoints each database
func (j *CheckpointJob) Run() error {
	for _, db := range j.dbs {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Checkpoint failed")
			return err
		}
	}
	return nil
}
