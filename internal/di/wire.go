package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/config"
	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
	"github.com/helixtrade/replay/internal/logstream"
	"github.com/helixtrade/replay/internal/maintenance"
	"github.com/helixtrade/replay/internal/modules/engine"
	"github.com/helixtrade/replay/internal/modules/history"
	"github.com/helixtrade/replay/internal/modules/proofs"
	"github.com/helixtrade/replay/internal/modules/scenario"
	"github.com/helixtrade/replay/internal/modules/signals"
	"github.com/helixtrade/replay/internal/modules/timeline"
	"github.com/helixtrade/replay/internal/modules/valuation"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations: databases, repositories, services, engine, jobs.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	catalogDB, err := database.New(database.Config{
		Path:    cfg.CatalogDBPath(),
		Profile: database.ProfileStandard,
		Name:    "catalog",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	container.CatalogDB = catalogDB

	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileArchive,
		Name:    "history",
	})
	if err != nil {
		catalogDB.Close()
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	container.HistoryDB = historyDB

	container.EventBus = events.NewBus()
	container.LogStream = logstream.New(container.EventBus, log)

	scenarioRepo, err := scenario.NewRepository(catalogDB, log)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize scenario repository: %w", err)
	}
	container.ScenarioService = scenario.NewService(scenarioRepo, log)
	if err := container.ScenarioService.SeedDefaults(); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to seed scenario catalog: %w", err)
	}

	container.HistoryRepo, err = history.NewRepository(historyDB, log)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize history repository: %w", err)
	}

	if cfg.ProofServiceURL != "" {
		container.Proofs = proofs.NewClient(cfg.ProofServiceURL, 10*time.Second, log)
	} else {
		container.Proofs = proofs.NewSynthesizer(log)
	}

	container.Timeline = timeline.NewService(
		timeline.DefaultConfig(),
		container.Proofs,
		container.EventBus,
		container.LogStream,
		log,
	)

	var consensus domain.ConsensusProvider
	if cfg.ConsensusURL != "" {
		provider := signals.NewProvider(signals.Config{
			PollURL:   cfg.ConsensusURL,
			StreamURL: cfg.ConsensusWSURL,
		}, log)
		container.SignalsProvider = provider
		consensus = provider
	}
	container.ConsensusProvider = consensus

	container.Controller = engine.NewController(
		engine.Config{},
		valuation.New(),
		container.Timeline,
		container.LogStream,
		consensus,
		container.HistoryRepo,
		container.EventBus,
		log,
	)
	container.Runner = engine.NewRunner(container.Controller, cfg.TickInterval, log)

	container.Scheduler = maintenance.NewScheduler(log)
	retention := maintenance.NewRetentionJob(container.HistoryRepo, cfg.RunRetention, log)
	if err := container.Scheduler.AddJob(cfg.RetentionSchedule, retention); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register retention job: %w", err)
	}
	checkpoint := maintenance.NewCheckpointJob([]*database.DB{catalogDB, historyDB}, log)
	if err := container.Scheduler.AddJob("0 */30 * * * *", checkpoint); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register checkpoint job: %w", err)
	}

	return container, nil
}

// Start launches the background components.
func (c *Container) Start() {
	if c.SignalsProvider != nil {
		c.SignalsProvider.Start()
	}
	c.Runner.Start()
	c.Scheduler.Start()
}

// Stop halts the background components in reverse order.
func (c *Container) Stop() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Runner != nil {
		c.Runner.Stop()
	}
	if c.SignalsProvider != nil {
		c.SignalsProvider.Stop()
	}
}

// Close releases database connections.
func (c *Container) Close() {
	if c.CatalogDB != nil {
		_ = c.CatalogDB.Close()
	}
	if c.HistoryDB != nil {
		_ = c.HistoryDB.Close()
	}
}
