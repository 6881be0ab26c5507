// Package domain provides core domain models and types for the scenario-replay engine.
package domain

import "time"

// Archetype names a price-evolution shape governing how a scenario's target
// percentage change unfolds over normalized time.
type Archetype string

const (
	ArchetypeCrash      Archetype = "crash"
	ArchetypeVolatility Archetype = "volatility"
	ArchetypeRecovery   Archetype = "recovery"
	ArchetypeStress     Archetype = "stress"
	ArchetypeTariff     Archetype = "tariff"
)

// KnownArchetypes lists every supported archetype.
var KnownArchetypes = []Archetype{
	ArchetypeCrash,
	ArchetypeVolatility,
	ArchetypeRecovery,
	ArchetypeStress,
	ArchetypeTariff,
}

// Valid reports whether the archetype is one of the supported shapes
func (a Archetype) Valid() bool {
	for _, known := range KnownArchetypes {
		if a == known {
			return true
		}
	}
	return false
}

// Scenario describes a market-stress scenario. Immutable once loaded.
type Scenario struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Archetype         Archetype          `json:"archetype"`
	DurationTicks     int                `json:"duration_ticks"`
	TargetChanges     map[string]float64 `json:"target_changes"` // symbol -> percent
	HistoricalContext string             `json:"historical_context,omitempty"`
}

// Position is a single portfolio holding. UnitAmount is fixed for the run;
// only the price-derived fields mutate per tick.
type Position struct {
	Symbol         string  `json:"symbol"`
	UnitAmount     float64 `json:"unit_amount"`
	ReferencePrice float64 `json:"reference_price"`
	CurrentPrice   float64 `json:"current_price"`
	CurrentValue   float64 `json:"current_value"`
	PnL            float64 `json:"pnl"`
	PnLPercent     float64 `json:"pnl_percent"`
}

// ReferenceValue returns the position value at the run's reference prices.
func (p Position) ReferenceValue() float64 {
	return p.UnitAmount * p.ReferencePrice
}

// PortfolioState is the revalued portfolio at a tick.
// Invariant: TotalValue = CashReserve + sum(position.CurrentValue) + HedgePnL.
type PortfolioState struct {
	TotalValue      float64    `json:"total_value"`
	CashReserve     float64    `json:"cash_reserve"`
	Positions       []Position `json:"positions"`
	RiskScore       float64    `json:"risk_score"`       // 0..100
	VolatilityIndex float64    `json:"volatility_index"` // 0..1
	HedgePnL        float64    `json:"hedge_pnl"`
}

// Clone returns a deep copy of the state. Used for pre-tick snapshots so a
// failed tick can be rolled back without partial application.
func (s PortfolioState) Clone() PortfolioState {
	out := s
	out.Positions = make([]Position, len(s.Positions))
	copy(out.Positions, s.Positions)
	return out
}

// ActionStatus is the lifecycle state of an agent-action record.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionExecuting ActionStatus = "executing"
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
)

// Terminal reports whether the status is a terminal lifecycle state
func (s ActionStatus) Terminal() bool {
	return s == ActionCompleted || s == ActionFailed
}

// ImpactDelta records a before/after change of a single metric caused by an action.
type ImpactDelta struct {
	Metric string  `json:"metric"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// Artifact is an opaque verification proof attached to a completed action.
// Internals belong to the external proof service.
type Artifact struct {
	ID               string `json:"id"`
	RootHash         string `json:"root_hash"`
	ProtocolLabel    string `json:"protocol_label"`
	SecurityLevel    int    `json:"security_level"`
	GenerationTimeMs int    `json:"generation_time_ms"`
}

// ActionRecord is a single agent-action entry in the run timeline.
type ActionRecord struct {
	ID          string       `json:"id"`
	RunID       string       `json:"run_id"`
	Tick        int          `json:"tick"`
	AgentLabel  string       `json:"agent_label"`
	ActionKind  string       `json:"action_kind"`
	Description string       `json:"description"`
	Status      ActionStatus `json:"status"`
	Impact      *ImpactDelta `json:"impact,omitempty"`
	Artifact    *Artifact    `json:"artifact,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// LogSeverity classifies a narrative log line.
type LogSeverity string

const (
	LogInfo    LogSeverity = "info"
	LogSuccess LogSeverity = "success"
	LogWarning LogSeverity = "warning"
	LogError   LogSeverity = "error"
)

// LogEntry is one line of the append-only narrative log stream.
type LogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Severity  LogSeverity `json:"severity"`
	Message   string      `json:"message"`
}

// RunStatus is the controller lifecycle state.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
)

// RunSummary is the unhedged-vs-realized comparison emitted once at the final tick.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	ScenarioID     string    `json:"scenario_id"`
	Seed           int64     `json:"seed"`
	UnhedgedLoss   float64   `json:"unhedged_loss"`
	FinalLoss      float64   `json:"final_loss"`
	TotalSaved     float64   `json:"total_saved"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// RunVariance holds the deterministic per-run perturbation derived from the seed.
type RunVariance struct {
	MarketVariance  float64 `json:"market_variance"`  // -0.075 .. +0.075
	HedgeEfficiency float64 `json:"hedge_efficiency"` // 0.60 .. 0.75
}
