// Package signals supplies the external predictive consensus score used by
// the hedge ledger's early trigger.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/helixtrade/replay/internal/domain"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 2 * time.Second
	defaultMaxRetries     = 3
	defaultStaleAfter     = 10 * time.Second

	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = time.Minute
)

// Config holds consensus provider configuration.
type Config struct {
	PollURL        string        // HTTP endpoint returning {"score": 0.91}
	StreamURL      string        // optional websocket endpoint pushing score frames
	PollInterval   time.Duration // how often to poll when no stream is attached
	RequestTimeout time.Duration // per-call timeout
	MaxRetries     int           // bounded retries per poll before degrading
	StaleAfter     time.Duration // cached score older than this is unusable
}

// scoreFrame is the wire shape of a consensus update.
type scoreFrame struct {
	Score float64 `json:"score"`
}

// Provider caches the latest consensus score from the external
// prediction-aggregation collaborator. Reads never block: the engine's clock
// consumes whatever score was last merged in.
//
// Failure policy: each poll gets a bounded number of retries with exponential
// backoff. When retries are exhausted the provider degrades (the run falls
// back to scripted triggers only) and logs a warning once; polling continues
// in the background so a recovered collaborator re-enables the trigger.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger

	mu        sync.RWMutex
	score     float64
	updatedAt time.Time
	degraded  bool

	stop    chan struct{}
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// NewProvider creates a consensus provider
func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        log.With().Str("component", "consensus_provider").Logger(),
		stop:       make(chan struct{}),
	}
}

// ConsensusScore returns the last merged score and whether it is usable.
// A score is unusable while the provider is degraded or the cache is stale.
func (p *Provider) ConsensusScore() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.degraded || p.updatedAt.IsZero() {
		return 0, false
	}
	if time.Since(p.updatedAt) > p.cfg.StaleAfter {
		return 0, false
	}
	return p.score, true
}

// Start begins background polling (and the push subscription when a stream
// URL is configured).
func (p *Provider) Start() {
	p.mu.Lock()
	if p.started && !p.stopped {
		p.mu.Unlock()
		return
	}
	if p.stopped {
		p.stop = make(chan struct{})
		p.stopped = false
	}
	p.started = true
	p.mu.Unlock()

	if p.cfg.PollURL != "" {
		p.wg.Add(1)
		go p.pollLoop()
	}
	if p.cfg.StreamURL != "" {
		p.wg.Add(1)
		go p.streamLoop()
	}
}

// Stop halts background work
func (p *Provider) Stop() {
	p.mu.Lock()
	if p.stopped || !p.started {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stop)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Provider) pollLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.pollOnce()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.pollOnce()
		}
	}
}

// pollOnce fetches the score with bounded retries and exponential backoff.
func (p *Provider) pollOnce() {
	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-p.stop:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		score, err := p.fetch()
		if err == nil {
			p.merge(score)
			return
		}
		lastErr = err
	}
	p.degrade(lastErr)
}

func (p *Provider) fetch() (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.PollURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build consensus request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, &domain.ExternalCallFailure{Service: "consensus", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &domain.ExternalCallFailure{Service: "consensus", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var frame scoreFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return 0, fmt.Errorf("failed to decode consensus response: %w", err)
	}
	if frame.Score < 0 || frame.Score > 1 {
		return 0, fmt.Errorf("consensus score %f out of range", frame.Score)
	}
	return frame.Score, nil
}

// streamLoop keeps a websocket subscription to the aggregator, reconnecting
// with capped exponential backoff.
func (p *Provider) streamLoop() {
	defer p.wg.Done()
	delay := baseReconnectDelay
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if err := p.consumeStream(); err != nil {
			p.log.Warn().Err(err).Dur("retry_in", delay).Msg("Consensus stream disconnected")
		}

		select {
		case <-p.stop:
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (p *Provider) consumeStream() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, _, err := websocket.Dial(ctx, p.cfg.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial consensus stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	p.log.Info().Str("url", p.cfg.StreamURL).Msg("Consensus stream connected")

	for {
		var frame scoreFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("consensus stream read failed: %w", err)
		}
		if frame.Score >= 0 && frame.Score <= 1 {
			p.merge(frame.Score)
		}
	}
}

func (p *Provider) merge(score float64) {
	p.mu.Lock()
	wasDegraded := p.degraded
	p.score = score
	p.updatedAt = time.Now()
	p.degraded = false
	p.mu.Unlock()

	if wasDegraded {
		p.log.Info().Float64("score", score).Msg("Consensus feed recovered, predictive trigger re-enabled")
	}
}

func (p *Provider) degrade(err error) {
	p.mu.Lock()
	wasDegraded := p.degraded
	p.degraded = true
	p.mu.Unlock()

	if !wasDegraded {
		p.log.Warn().Err(err).Msg("Consensus feed unreachable after retries, falling back to scripted triggers only")
	}
}
