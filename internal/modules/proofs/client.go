// Package proofs talks to the external verification-artifact service. The
// proof algorithm itself is out of scope; only the request contract lives
// here.
package proofs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixtrade/replay/internal/domain"
)

const (
	// ProtocolLabel is the fixed protocol identifier attached to every artifact.
	ProtocolLabel = "plonky2"
	// SecurityLevel is the fixed security-level constant (bits).
	SecurityLevel = 128
)

// Client requests artifacts from the external proof service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a proof service client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "proofs").Logger(),
	}
}

// RequestArtifact asks the proof service to synthesize a verification
// artifact for the given statement.
func (c *Client) RequestArtifact(ctx context.Context, statement string) (*domain.Artifact, error) {
	body, err := json.Marshal(map[string]string{"statement": statement})
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/prove", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build proof request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ExternalCallFailure{Service: "proofs", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ExternalCallFailure{
			Service: "proofs",
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var artifact domain.Artifact
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode proof response: %w", err)
	}
	return &artifact, nil
}

// Synthesizer is the embedded artifact source used when no external proof
// endpoint is configured. It produces opaque artifacts with the fixed
// protocol label and security level, and a bounded-random generation time.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
	log zerolog.Logger
}

// NewSynthesizer creates an embedded artifact synthesizer
func NewSynthesizer(log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log.With().Str("component", "proof_synthesizer").Logger(),
	}
}

// RequestArtifact synthesizes an artifact locally.
func (s *Synthesizer) RequestArtifact(ctx context.Context, statement string) (*domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	digest := sha256.Sum256([]byte(statement + id))

	s.mu.Lock()
	// Generation time is bounded: 400..1200ms.
	generationMs := 400 + s.rng.Intn(801)
	s.mu.Unlock()

	return &domain.Artifact{
		ID:               id,
		RootHash:         hex.EncodeToString(digest[:]),
		ProtocolLabel:    ProtocolLabel,
		SecurityLevel:    SecurityLevel,
		GenerationTimeMs: generationMs,
	}, nil
}
