package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
	"github.com/helixtrade/replay/internal/events"
	"github.com/helixtrade/replay/internal/modules/analytics"
	"github.com/helixtrade/replay/internal/modules/curves"
	"github.com/helixtrade/replay/internal/modules/hedge"
	"github.com/helixtrade/replay/internal/modules/seed"
	"github.com/helixtrade/replay/internal/modules/valuation"
)

// ErrNotRunning is returned by Tick when the controller is not in the
// running state. The external clock treats it as a no-op.
var ErrNotRunning = errors.New("simulation is not running")

// ErrRunInProgress is returned by Start while a run is active or paused.
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrNoSummary is returned before a run has completed.
var ErrNoSummary = errors.New("no completed run summary available")

// TimelineRecorder is the slice of the timeline service the controller needs.
type TimelineRecorder interface {
	Reset(runID string)
	Record(runID string, tick int, agentLabel, actionKind, description string, impact *domain.ImpactDelta) domain.ActionRecord
}

// HistoryRecorder persists run metadata and per-tick snapshots. Persistence
// failures degrade to warnings; they never block or roll back a tick.
type HistoryRecorder interface {
	RecordRunStart(runID, scenarioID string, runSeed int64, startedAt time.Time) error
	RecordTickSnapshot(runID string, tick int, state domain.PortfolioState) error
	RecordRunSummary(summary domain.RunSummary) error
}

// LogClearer extends the log sink with the per-run clear used at Start.
type LogClearer interface {
	domain.LogSink
	Clear()
}

// Config holds controller configuration.
type Config struct {
	ConsensusThreshold float64
}

// Controller is the simulation state machine. All mutation happens under one
// mutex, serialized by the external clock: there are no parallel writers.
//
// States: IDLE -> RUNNING <-> PAUSED -> COMPLETED; Reset returns to IDLE
// from any state. Resume continues from the paused tick.
type Controller struct {
	mu sync.Mutex

	status   domain.RunStatus
	scenario *domain.Scenario
	plan     RunPlan

	runID     string
	runSeed   int64
	variance  domain.RunVariance
	tick      int
	startedAt time.Time

	state        domain.PortfolioState
	ledger       *hedge.Ledger
	summary      *domain.RunSummary
	priceHistory map[string][]float64

	valuer    *valuation.Valuer
	timeline  TimelineRecorder
	logs      LogClearer
	consensus domain.ConsensusProvider
	history   HistoryRecorder
	eventBus  *events.Bus

	consensusThreshold float64
	log                zerolog.Logger
}

// NewController creates an idle controller.
func NewController(
	cfg Config,
	valuer *valuation.Valuer,
	timeline TimelineRecorder,
	logs LogClearer,
	consensus domain.ConsensusProvider,
	history HistoryRecorder,
	eventBus *events.Bus,
	log zerolog.Logger,
) *Controller {
	threshold := cfg.ConsensusThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = hedge.DefaultConsensusThreshold
	}
	return &Controller{
		status:             domain.RunIdle,
		valuer:             valuer,
		timeline:           timeline,
		logs:               logs,
		consensus:          consensus,
		history:            history,
		eventBus:           eventBus,
		consensusThreshold: threshold,
		log:                log.With().Str("service", "engine").Logger(),
	}
}

// Status returns the current run status
func (c *Controller) Status() domain.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start begins a new run for the scenario. Allowed from IDLE or COMPLETED;
// a fresh seed is derived from the start time.
func (c *Controller) Start(scenario *domain.Scenario) error {
	return c.StartWithSeed(scenario, time.Now().UnixMilli())
}

// StartWithSeed begins a run with an explicit seed. Validation happens
// before any state mutation: a failed Start leaves the controller IDLE (or
// COMPLETED) with nothing touched.
func (c *Controller) StartWithSeed(scenario *domain.Scenario, runSeed int64) error {
	if err := domain.ValidateScenario(scenario); err != nil {
		return err
	}
	plan := PlanForScenario(scenario)
	if err := domain.ValidatePositions(plan.Initial.Positions); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == domain.RunRunning || c.status == domain.RunPaused {
		return ErrRunInProgress
	}

	variance := seed.Derive(runSeed)
	ledger, err := hedge.NewLedger(plan.HedgeRatios, variance, c.consensusThreshold, c.log)
	if err != nil {
		return err
	}

	c.scenario = scenario
	c.plan = plan
	c.runID = uuid.NewString()
	c.runSeed = runSeed
	c.variance = variance
	c.tick = 0
	c.startedAt = time.Now()
	c.state = plan.Initial.Clone()
	c.ledger = ledger
	c.summary = nil
	c.priceHistory = make(map[string][]float64, len(plan.Initial.Positions))
	c.status = domain.RunRunning

	c.timeline.Reset(c.runID)
	c.logs.Clear()
	c.logs.Append(domain.LogInfo, fmt.Sprintf("Starting scenario %q over %d ticks", scenario.Name, scenario.DurationTicks))
	if scenario.HistoricalContext != "" {
		c.logs.Append(domain.LogInfo, scenario.HistoricalContext)
	}

	if c.history != nil {
		if err := c.history.RecordRunStart(c.runID, scenario.ID, runSeed, c.startedAt); err != nil {
			c.log.Warn().Err(err).Msg("Failed to persist run start")
		}
	}

	c.eventBus.Emit(events.RunStarted, "engine", map[string]interface{}{
		"run_id":         c.runID,
		"scenario_id":    scenario.ID,
		"duration_ticks": scenario.DurationTicks,
		"seed":           runSeed,
	})
	c.log.Info().
		Str("run_id", c.runID).
		Str("scenario", scenario.ID).
		Int64("seed", runSeed).
		Float64("market_variance", variance.MarketVariance).
		Float64("hedge_efficiency", variance.HedgeEfficiency).
		Msg("Run started")
	return nil
}

// Pause halts tick progression. Once Pause returns, no further tick can
// mutate state until Resume.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.RunRunning {
		return fmt.Errorf("cannot pause from %s", c.status)
	}
	c.status = domain.RunPaused
	c.eventBus.Emit(events.RunPaused, "engine", map[string]interface{}{"run_id": c.runID, "tick": c.tick})
	c.log.Info().Int("tick", c.tick).Msg("Run paused")
	return nil
}

// Resume continues tick progression from the paused tick.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != domain.RunPaused {
		return fmt.Errorf("cannot resume from %s", c.status)
	}
	c.status = domain.RunRunning
	c.eventBus.Emit(events.RunResumed, "engine", map[string]interface{}{"run_id": c.runID, "tick": c.tick})
	c.log.Info().Int("tick", c.tick).Msg("Run resumed")
	return nil
}

// Reset returns to IDLE from any state, discarding all derived run state.
// The selected scenario is retained. Stale callbacks from the old run are
// invalidated by rotating the run identifier.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldRunID := c.runID
	c.status = domain.RunIdle
	c.runID = ""
	c.runSeed = 0
	c.variance = domain.RunVariance{}
	c.tick = 0
	c.state = domain.PortfolioState{}
	c.ledger = nil
	c.summary = nil
	c.priceHistory = nil

	c.timeline.Reset("")
	c.logs.Clear()

	c.eventBus.Emit(events.RunReset, "engine", map[string]interface{}{"run_id": oldRunID})
	c.log.Info().Msg("Run reset")
}

// Tick advances the simulation by one step. It is a pure state transition
// invoked by an externally owned clock; there is no timer inside the
// controller. A tick either fully applies or leaves state untouched.
func (c *Controller) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != domain.RunRunning {
		return ErrNotRunning
	}

	nextTick := c.tick + 1
	progress := float64(nextTick) / float64(c.scenario.DurationTicks)

	// Compute the candidate state first; nothing is committed until every
	// step of the pipeline has succeeded.
	changes := curves.EvaluateAll(c.scenario, progress)
	candidate := c.valuer.Revalue(c.state, changes, 0)

	directives := c.plan.Script.at(nextTick)
	scriptedActivation := false
	for _, d := range directives {
		if d.ActivateHedge {
			scriptedActivation = true
		}
	}

	consensusScore, haveConsensus := 0.0, false
	if c.consensus != nil {
		consensusScore, haveConsensus = c.consensus.ConsensusScore()
	}

	preRisk := c.state.RiskScore
	preTotal := c.state.TotalValue

	trigger, activated := c.ledger.Advance(nextTick, candidate.Positions, scriptedActivation, consensusScore, haveConsensus)
	hedgePnL := c.ledger.RealizedPnL()
	candidate.HedgePnL = hedgePnL
	candidate.TotalValue += hedgePnL

	// Commit.
	c.tick = nextTick
	c.state = candidate
	for _, pos := range candidate.Positions {
		c.priceHistory[pos.Symbol] = append(c.priceHistory[pos.Symbol], pos.CurrentPrice)
	}

	if activated {
		c.eventBus.Emit(events.HedgeActivated, "engine", map[string]interface{}{
			"run_id":  c.runID,
			"tick":    nextTick,
			"trigger": string(trigger),
		})
		if trigger == hedge.TriggerPredictive {
			c.logs.Append(domain.LogSuccess, fmt.Sprintf("Predictive consensus %.2f exceeded threshold, hedge engaged early at tick %d", consensusScore, nextTick))
		} else {
			c.logs.Append(domain.LogInfo, fmt.Sprintf("Hedge engaged at scripted tick %d", nextTick))
		}
	}

	c.applyDirectives(nextTick, directives, preRisk, preTotal)

	if c.history != nil {
		if err := c.history.RecordTickSnapshot(c.runID, nextTick, c.state); err != nil {
			c.log.Warn().Err(err).Int("tick", nextTick).Msg("Failed to persist tick snapshot")
		}
	}

	c.eventBus.Emit(events.TickAdvanced, "engine", map[string]interface{}{
		"run_id":      c.runID,
		"tick":        nextTick,
		"progress":    progress,
		"total_value": c.state.TotalValue,
		"risk_score":  c.state.RiskScore,
	})

	if nextTick >= c.scenario.DurationTicks {
		c.complete()
	}
	return nil
}

// applyDirectives emits the log lines, actions and ratio changes scripted
// for this exact tick.
func (c *Controller) applyDirectives(tick int, directives []Directive, preRisk, preTotal float64) {
	for _, d := range directives {
		if d.Log != nil {
			c.logs.Append(d.Log.Severity, d.Log.Message)
		}
		if d.ReduceRatio != nil {
			if err := c.ledger.ReduceRatio(d.ReduceRatio.Symbol, d.ReduceRatio.Ratio); err != nil {
				c.log.Warn().Err(err).Str("symbol", d.ReduceRatio.Symbol).Msg("Scripted ratio reduction rejected")
			}
		}
		if d.Action != nil {
			var impact *domain.ImpactDelta
			switch d.Action.ImpactMetric {
			case "risk_score":
				impact = &domain.ImpactDelta{Metric: "risk_score", Before: preRisk, After: c.state.RiskScore}
			case "total_value":
				impact = &domain.ImpactDelta{Metric: "total_value", Before: preTotal, After: c.state.TotalValue}
			}
			c.timeline.Record(c.runID, tick, d.Action.AgentLabel, d.Action.ActionKind, d.Action.Description, impact)
		}
	}
}

// complete computes and emits the run summary on the final tick.
func (c *Controller) complete() {
	unhedged := 0.0
	for _, pos := range c.plan.Initial.Positions {
		target := c.scenario.TargetChanges[pos.Symbol]
		unhedged += math.Abs(target*(1+c.variance.MarketVariance)) * pos.ReferenceValue() / 100
	}
	finalLoss := c.plan.Initial.TotalValue - c.state.TotalValue
	totalSaved := unhedged - finalLoss

	summary := domain.RunSummary{
		RunID:          c.runID,
		ScenarioID:     c.scenario.ID,
		Seed:           c.runSeed,
		UnhedgedLoss:   unhedged,
		FinalLoss:      finalLoss,
		TotalSaved:     totalSaved,
		ResponseTimeMs: time.Since(c.startedAt).Milliseconds(),
		CompletedAt:    time.Now().UTC(),
	}
	c.summary = &summary
	c.status = domain.RunCompleted

	c.logs.Append(domain.LogSuccess, fmt.Sprintf(
		"Scenario complete: unhedged loss estimate $%.2f, realized loss $%.2f, saved $%.2f",
		unhedged, finalLoss, totalSaved,
	))

	if c.history != nil {
		if err := c.history.RecordRunSummary(summary); err != nil {
			c.log.Warn().Err(err).Msg("Failed to persist run summary")
		}
	}

	c.eventBus.Emit(events.RunCompleted, "engine", map[string]interface{}{
		"run_id":        c.runID,
		"scenario_id":   c.scenario.ID,
		"unhedged_loss": unhedged,
		"final_loss":    finalLoss,
		"total_saved":   totalSaved,
	})
	c.eventBus.Emit(events.SummaryReady, "engine", map[string]interface{}{"run_id": c.runID})
	c.log.Info().
		Float64("unhedged_loss", unhedged).
		Float64("final_loss", finalLoss).
		Float64("total_saved", totalSaved).
		Msg("Run completed")
}

// Snapshot is the controller state served to the presentation layer.
type Snapshot struct {
	Status      domain.RunStatus            `json:"status"`
	RunID       string                      `json:"run_id,omitempty"`
	ScenarioID  string                      `json:"scenario_id,omitempty"`
	Tick        int                         `json:"tick"`
	Duration    int                         `json:"duration_ticks,omitempty"`
	Progress    float64                     `json:"progress"`
	Variance    domain.RunVariance          `json:"variance"`
	Portfolio   domain.PortfolioState       `json:"portfolio"`
	Hedge       *hedge.State                `json:"hedge,omitempty"`
	SeriesStats map[string]analytics.Series `json:"series_stats,omitempty"`
}

// Snapshot returns a copy of the current run state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Status:    c.status,
		RunID:     c.runID,
		Tick:      c.tick,
		Portfolio: c.state.Clone(),
		Variance:  c.variance,
	}
	if c.scenario != nil && c.runID != "" {
		snap.ScenarioID = c.scenario.ID
		snap.Duration = c.scenario.DurationTicks
		snap.Progress = float64(c.tick) / float64(c.scenario.DurationTicks)
	}
	if c.ledger != nil {
		hs := c.ledger.Snapshot()
		snap.Hedge = &hs
	}
	if len(c.priceHistory) > 0 {
		snap.SeriesStats = make(map[string]analytics.Series, len(c.priceHistory))
		for symbol, prices := range c.priceHistory {
			snap.SeriesStats[symbol] = analytics.Compute(prices)
		}
	}
	return snap
}

// Summary returns the completed run summary.
func (c *Controller) Summary() (domain.RunSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return domain.RunSummary{}, ErrNoSummary
	}
	return *c.summary, nil
}
