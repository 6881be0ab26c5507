// Package di provides dependency injection wiring for the replay service.
//
// The Container is the single source of truth for all service instances
// and is passed to the HTTP server for access to services.
package di

import (
	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
	"github.com/helixtrade/replay/internal/logstream"
	"github.com/helixtrade/replay/internal/maintenance"
	"github.com/helixtrade/replay/internal/modules/engine"
	"github.com/helixtrade/replay/internal/modules/history"
	"github.com/helixtrade/replay/internal/modules/scenario"
	"github.com/helixtrade/replay/internal/modules/signals"
	"github.com/helixtrade/replay/internal/modules/timeline"
)

// Container holds all dependencies for the application.
type Container struct {
	// Databases
	CatalogDB *database.DB // Scenario catalog
	HistoryDB *database.DB // Run history and per-tick snapshots

	// Core infrastructure
	EventBus  *events.Bus
	LogStream *logstream.Stream

	// Repositories and services
	ScenarioService *scenario.Service
	HistoryRepo     *history.Repository
	Timeline        *timeline.Service
	Proofs          domain.ProofService

	// External signals
	ConsensusProvider domain.ConsensusProvider
	SignalsProvider   *signals.Provider // nil when consensus is not configured

	// Engine
	Controller *engine.Controller
	Runner     *engine.Runner

	// Background jobs
	Scheduler *maintenance.Scheduler
}
