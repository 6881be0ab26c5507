package signals

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(pollURL string) Config {
	return Config{
		PollURL:        pollURL,
		PollInterval:   5 * time.Millisecond,
		RequestTimeout: 100 * time.Millisecond,
		MaxRetries:     2,
		StaleAfter:     time.Minute,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestProviderMergesPolledScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 0.91}`))
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), zerolog.Nop())
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool {
		score, ok := p.ConsensusScore()
		return ok && score > 0.9
	})

	score, ok := p.ConsensusScore()
	require.True(t, ok)
	assert.InDelta(t, 0.91, score, 1e-9)
}

func TestProviderDegradesAfterRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), zerolog.Nop())
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool {
		_, ok := p.ConsensusScore()
		return !ok
	})
}

func TestProviderRecoversWhenFeedReturns(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"score": 0.75}`))
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), zerolog.Nop())
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool {
		_, ok := p.ConsensusScore()
		return !ok
	})

	healthy.Store(true)
	waitFor(t, func() bool {
		score, ok := p.ConsensusScore()
		return ok && score > 0.7
	})
}

func TestProviderRejectsOutOfRangeScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 7.5}`))
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), zerolog.Nop())
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool {
		_, ok := p.ConsensusScore()
		return !ok
	})
}

func TestConsensusScoreStaleness(t *testing.T) {
	cfg := testConfig("")
	cfg.StaleAfter = time.Millisecond
	p := NewProvider(cfg, zerolog.Nop())

	p.merge(0.8)
	time.Sleep(5 * time.Millisecond)

	_, ok := p.ConsensusScore()
	assert.False(t, ok, "stale score must not be usable")
}

func TestConsensusScoreUnavailableBeforeFirstMerge(t *testing.T) {
	p := NewProvider(testConfig(""), zerolog.Nop())
	_, ok := p.ConsensusScore()
	assert.False(t, ok)
}
