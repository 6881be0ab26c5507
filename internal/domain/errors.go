package domain

import "fmt"

// ConfigurationError indicates a malformed or missing scenario. It is fatal
// and aborts Start() before any state mutation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// InvariantViolationError indicates scenario or portfolio data that breaks a
// structural invariant (non-positive duration, negative unit amount). It is
// fatal and surfaced to the Start() caller, never silently clamped.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// ExternalCallFailure indicates an unreachable or timed-out external
// collaborator. Recovered locally: the affected feature degrades and tick
// progression continues.
type ExternalCallFailure struct {
	Service string
	Err     error
}

func (e *ExternalCallFailure) Error() string {
	return fmt.Sprintf("external call to %s failed: %v", e.Service, e.Err)
}

func (e *ExternalCallFailure) Unwrap() error {
	return e.Err
}

// ValidateScenario checks a scenario before a run starts.
func ValidateScenario(s *Scenario) error {
	if s == nil {
		return &ConfigurationError{Reason: "no scenario selected"}
	}
	if s.ID == "" {
		return &ConfigurationError{Reason: "scenario has no id"}
	}
	if !s.Archetype.Valid() {
		return &ConfigurationError{Reason: fmt.Sprintf("unknown archetype %q", s.Archetype)}
	}
	if len(s.TargetChanges) == 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("scenario %s has no target changes", s.ID)}
	}
	if s.DurationTicks <= 0 {
		return &InvariantViolationError{Reason: fmt.Sprintf("scenario %s has non-positive duration %d", s.ID, s.DurationTicks)}
	}
	return nil
}

// ValidatePositions checks the initial portfolio snapshot for a run.
func ValidatePositions(positions []Position) error {
	for _, p := range positions {
		if p.UnitAmount < 0 {
			return &InvariantViolationError{Reason: fmt.Sprintf("position %s has negative unit amount", p.Symbol)}
		}
		if p.ReferencePrice <= 0 {
			return &InvariantViolationError{Reason: fmt.Sprintf("position %s has non-positive reference price", p.Symbol)}
		}
	}
	return nil
}
