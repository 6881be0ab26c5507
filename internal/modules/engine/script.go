// Package engine orchestrates scenario-replay runs: the tick loop, the run
// state machine, and the narrative scripted around each scenario.
package engine

import (
	"fmt"
	"sort"

	"github.com/helixtrade/replay/internal/domain"
)

// LogDirective emits a narrative log line at a scripted tick.
type LogDirective struct {
	Severity domain.LogSeverity
	Message  string
}

// ActionDirective records an agent action at a scripted tick.
type ActionDirective struct {
	AgentLabel  string
	ActionKind  string
	Description string
	// ImpactMetric optionally names a portfolio metric whose before/after
	// values are captured around this tick ("risk_score" or "total_value").
	ImpactMetric string
}

// RatioDirective stages a hedge-ratio reduction at a scripted tick.
type RatioDirective struct {
	Symbol string
	Ratio  float64
}

// Directive binds scripted behavior to one exact tick. New scenarios add
// bindings; the controller never changes.
type Directive struct {
	Tick          int
	Log           *LogDirective
	Action        *ActionDirective
	ActivateHedge bool
	ReduceRatio   *RatioDirective
}

// Script is the ordered set of directives for a run.
type Script []Directive

// at returns all directives bound to the given tick.
func (s Script) at(tick int) []Directive {
	var out []Directive
	for _, d := range s {
		if d.Tick == tick {
			out = append(out, d)
		}
	}
	return out
}

// RunPlan is everything derived from a scenario before the first tick: the
// initial portfolio, the hedge configuration, and the scripted narrative.
type RunPlan struct {
	Initial     domain.PortfolioState
	HedgeRatios map[string]float64
	Script      Script
}

// Reference prices for the synthetic demonstration portfolio. Symbols not
// listed fall back to defaultReferencePrice.
var referencePrices = map[string]float64{
	"BTC":  67000,
	"ETH":  3500,
	"SOL":  145,
	"SPY":  545,
	"QQQ":  470,
	"GLD":  215,
	"TLT":  92,
	"EEM":  43,
	"USDC": 1,
}

const (
	defaultReferencePrice = 100
	notionalPerAsset      = 100000
	cashReserve           = 50000
	defaultHedgeRatio     = 0.5
)

// PlanForScenario builds the run plan for a scenario: an equal-notional
// synthetic portfolio over the scenario's assets, a default hedge overlay,
// and a scripted narrative shaped by the archetype.
func PlanForScenario(scenario *domain.Scenario) RunPlan {
	positions := make([]domain.Position, 0, len(scenario.TargetChanges))
	ratios := make(map[string]float64, len(scenario.TargetChanges))

	for _, symbol := range sortedSymbols(scenario.TargetChanges) {
		price := referencePrices[symbol]
		if price == 0 {
			price = defaultReferencePrice
		}
		positions = append(positions, domain.Position{
			Symbol:         symbol,
			UnitAmount:     notionalPerAsset / price,
			ReferencePrice: price,
			CurrentPrice:   price,
			CurrentValue:   notionalPerAsset,
		})
		ratios[symbol] = defaultHedgeRatio
	}

	total := cashReserve + float64(len(positions))*notionalPerAsset
	initial := domain.PortfolioState{
		TotalValue:  total,
		CashReserve: cashReserve,
		Positions:   positions,
	}

	return RunPlan{
		Initial:     initial,
		HedgeRatios: ratios,
		Script:      buildScript(scenario),
	}
}

// buildScript lays the scenario narrative out over the run duration.
// Milestones scale with duration so a one-tick run still produces a
// well-formed (if terse) narrative.
func buildScript(scenario *domain.Scenario) Script {
	duration := scenario.DurationTicks

	hedgeTick := tickAt(duration, 0.3)
	detectTick := tickAt(duration, 0.15)
	midTick := tickAt(duration, 0.55)
	trimTick := tickAt(duration, 0.8)

	script := Script{
		{Tick: 1, Log: &LogDirective{domain.LogInfo, fmt.Sprintf("Scenario %s underway: %s", scenario.ID, scenario.Name)}},
		{Tick: detectTick, Action: &ActionDirective{
			AgentLabel:   "Market Monitor",
			ActionKind:   "anomaly_detected",
			Description:  fmt.Sprintf("Detected abnormal price momentum consistent with a %s pattern", scenario.Archetype),
			ImpactMetric: "risk_score",
		}},
		{Tick: hedgeTick, ActivateHedge: true},
		{Tick: hedgeTick, Action: &ActionDirective{
			AgentLabel:   "Hedge Agent",
			ActionKind:   "hedge_activation",
			Description:  "Activated protective hedge overlay across portfolio assets",
			ImpactMetric: "total_value",
		}},
		{Tick: midTick, Log: &LogDirective{domain.LogWarning, "Drawdown deepening, hedge overlay absorbing losses"}},
	}

	// Profit-taking on the back half only makes sense for shapes that keep
	// falling; volatility and stress revert on their own.
	if scenario.Archetype == domain.ArchetypeCrash || scenario.Archetype == domain.ArchetypeTariff {
		for _, symbol := range sortedSymbols(scenario.TargetChanges) {
			script = append(script, Directive{
				Tick:        trimTick,
				ReduceRatio: &RatioDirective{Symbol: symbol, Ratio: defaultHedgeRatio / 2},
			})
		}
		script = append(script, Directive{Tick: trimTick, Action: &ActionDirective{
			AgentLabel:   "Hedge Agent",
			ActionKind:   "profit_taking",
			Description:  "Reduced hedge ratios to lock in overlay gains",
			ImpactMetric: "total_value",
		}})
	}

	return script
}

// tickAt maps a progress fraction to a concrete tick, always at least 1 and
// never past the final tick.
func tickAt(duration int, fraction float64) int {
	tick := int(float64(duration) * fraction)
	if tick < 1 {
		tick = 1
	}
	if tick > duration {
		tick = duration
	}
	return tick
}

func sortedSymbols(targets map[string]float64) []string {
	symbols := make([]string, 0, len(targets))
	for symbol := range targets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
