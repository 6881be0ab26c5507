// Package hedge owns the hedging overlay: activation state, per-asset
// baselines captured at activation, and the running hedge P&L.
package hedge

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
)

// DefaultConsensusThreshold is the predictive-trigger threshold used when no
// override is configured.
const DefaultConsensusThreshold = 0.60

// Trigger identifies what fired the hedge activation.
type Trigger string

const (
	TriggerScripted   Trigger = "scripted"
	TriggerPredictive Trigger = "predictive"
)

// State is a read-only snapshot of the ledger for the API layer.
type State struct {
	Active         bool               `json:"active"`
	ActivationTick *int               `json:"activation_tick,omitempty"`
	Trigger        Trigger            `json:"trigger,omitempty"`
	Baselines      map[string]float64 `json:"baselines,omitempty"`
	Ratios         map[string]float64 `json:"ratios"`
	RealizedPnL    float64            `json:"realized_pnl"`
}

// Ledger tracks hedge activation and profit for a single run. Created empty
// per run and discarded on reset; there is no deactivation path.
type Ledger struct {
	active         bool
	activationTick int
	trigger        Trigger

	// baselines are captured exactly once at the inactive->active
	// transition and never overwritten while active.
	baselines map[string]float64

	ratios        map[string]float64
	pendingRatios map[string]float64 // ratio reductions staged for the next tick

	variance           domain.RunVariance
	consensusThreshold float64
	realizedPnL        float64

	log zerolog.Logger
}

// NewLedger creates an inactive ledger for a run.
// hedgeRatios maps each hedged symbol to its hedge fraction in (0,1].
func NewLedger(hedgeRatios map[string]float64, variance domain.RunVariance, consensusThreshold float64, log zerolog.Logger) (*Ledger, error) {
	if consensusThreshold <= 0 || consensusThreshold >= 1 {
		consensusThreshold = DefaultConsensusThreshold
	}
	ratios := make(map[string]float64, len(hedgeRatios))
	for symbol, ratio := range hedgeRatios {
		if ratio <= 0 || ratio > 1 {
			return nil, &domain.InvariantViolationError{
				Reason: fmt.Sprintf("hedge ratio for %s must be in (0,1], got %f", symbol, ratio),
			}
		}
		ratios[symbol] = ratio
	}
	return &Ledger{
		ratios:             ratios,
		pendingRatios:      make(map[string]float64),
		variance:           variance,
		consensusThreshold: consensusThreshold,
		log:                log.With().Str("component", "hedge_ledger").Logger(),
	}, nil
}

// Active reports whether the hedge overlay is active
func (l *Ledger) Active() bool {
	return l.active
}

// RealizedPnL returns the current running hedge P&L
func (l *Ledger) RealizedPnL() float64 {
	return l.realizedPnL
}

// PerformanceFactor returns the run's hedge performance multiplier.
func (l *Ledger) PerformanceFactor() float64 {
	return (1 + l.variance.MarketVariance) * (0.85 + l.variance.HedgeEfficiency*0.15)
}

// Advance processes one tick. It applies staged ratio changes, fires the
// activation transition when either trigger condition holds, and recomputes
// the running hedge P&L from the post-revaluation positions.
//
// The activation transition fires on whichever occurs first:
//   - scriptedActivation is true for this tick, or
//   - a usable consensus score exceeds the configured threshold.
//
// Returns the trigger when this tick performed the transition.
func (l *Ledger) Advance(tick int, positions []domain.Position, scriptedActivation bool, consensusScore float64, haveConsensus bool) (Trigger, bool) {
	// Staged ratio reductions apply starting this tick (the tick after they
	// were requested).
	for symbol, ratio := range l.pendingRatios {
		l.ratios[symbol] = ratio
		delete(l.pendingRatios, symbol)
	}

	activatedNow := false
	if !l.active {
		switch {
		case scriptedActivation:
			l.activate(tick, TriggerScripted, positions)
			activatedNow = true
		case haveConsensus && consensusScore > l.consensusThreshold:
			l.log.Info().
				Float64("consensus", consensusScore).
				Float64("threshold", l.consensusThreshold).
				Int("tick", tick).
				Msg("Predictive trigger fired ahead of scripted activation")
			l.activate(tick, TriggerPredictive, positions)
			activatedNow = true
		}
	}

	if l.active {
		l.recomputePnL(positions)
	}

	if activatedNow {
		return l.trigger, true
	}
	return "", false
}

// activate performs the one-shot INACTIVE -> ACTIVE transition, snapshotting
// the per-asset baselines.
func (l *Ledger) activate(tick int, trigger Trigger, positions []domain.Position) {
	l.active = true
	l.activationTick = tick
	l.trigger = trigger
	l.baselines = make(map[string]float64, len(l.ratios))
	for _, pos := range positions {
		if _, hedged := l.ratios[pos.Symbol]; hedged {
			l.baselines[pos.Symbol] = pos.CurrentValue
		}
	}
	l.log.Info().
		Int("tick", tick).
		Str("trigger", string(trigger)).
		Int("hedged_assets", len(l.baselines)).
		Msg("Hedge overlay activated")
}

// recomputePnL recalculates the running hedge P&L. Profit is measured from
// the value at activation, never from the run's initial value, so earlier
// activation protects strictly more of the eventual loss.
func (l *Ledger) recomputePnL(positions []domain.Position) {
	factor := l.PerformanceFactor()
	total := 0.0
	for _, pos := range positions {
		ratio, hedged := l.ratios[pos.Symbol]
		if !hedged || pos.PnLPercent >= 0 {
			continue
		}
		baseline, ok := l.baselines[pos.Symbol]
		if !ok {
			continue
		}
		lossSinceActivation := baseline - pos.CurrentValue
		if lossSinceActivation < 0 {
			lossSinceActivation = 0
		}
		total += lossSinceActivation * ratio * factor
	}
	l.realizedPnL = total
}

// ReduceRatio stages a hedge-ratio reduction for a symbol, applied starting
// the next tick. Increasing a ratio is rejected; the overlay only takes
// profit, it never re-levers mid-run.
func (l *Ledger) ReduceRatio(symbol string, newRatio float64) error {
	current, ok := l.ratios[symbol]
	if !ok {
		return fmt.Errorf("symbol %s is not hedged", symbol)
	}
	if newRatio <= 0 {
		return fmt.Errorf("hedge ratio for %s must stay positive, got %f", symbol, newRatio)
	}
	if newRatio > current {
		return fmt.Errorf("hedge ratio for %s may only be reduced (current %f, requested %f)", symbol, current, newRatio)
	}
	l.pendingRatios[symbol] = newRatio
	l.log.Info().
		Str("symbol", symbol).
		Float64("from", current).
		Float64("to", newRatio).
		Msg("Hedge ratio reduction staged for next tick")
	return nil
}

// Snapshot returns a copy of the ledger state for the API layer.
func (l *Ledger) Snapshot() State {
	s := State{
		Active:      l.active,
		RealizedPnL: l.realizedPnL,
		Ratios:      make(map[string]float64, len(l.ratios)),
	}
	for symbol, ratio := range l.ratios {
		s.Ratios[symbol] = ratio
	}
	if l.active {
		tick := l.activationTick
		s.ActivationTick = &tick
		s.Trigger = l.trigger
		s.Baselines = make(map[string]float64, len(l.baselines))
		for symbol, v := range l.baselines {
			s.Baselines[symbol] = v
		}
	}
	return s
}
