package domain

import "context"

// ConsensusProvider supplies the external predictive signal used by the hedge
// ledger's early trigger. Implementations must never block tick progression;
// callers read the last known score.
type ConsensusProvider interface {
	// ConsensusScore returns the latest aggregate probability in [0,1] that a
	// stress event is occurring, and whether a usable score is available.
	ConsensusScore() (float64, bool)
}

// ProofService synthesizes verification artifacts for completed actions.
// The proof algorithm is an external concern; only the request contract
// belongs here.
type ProofService interface {
	RequestArtifact(ctx context.Context, statement string) (*Artifact, error)
}

// LogSink receives narrative log lines produced during a run.
type LogSink interface {
	Append(severity LogSeverity, message string)
}
