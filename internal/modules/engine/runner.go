package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Runner owns the wall clock that drives the controller. The controller
// itself has no timer; pausing the run simply makes Tick a no-op while
// the ticker keeps firing.
type Runner struct {
	controller *Controller
	interval   time.Duration
	log        zerolog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRunner creates a runner ticking at the given interval.
func NewRunner(controller *Controller, interval time.Duration, log zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		controller: controller,
		interval:   interval,
		log:        log.With().Str("service", "engine-runner").Logger(),
		stop:       make(chan struct{}),
	}
}

// Start launches the tick loop.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	r.log.Info().Dur("interval", r.interval).Msg("Simulation clock started")
}

// Stop halts the tick loop and waits for it to exit.
func (r *Runner) Stop() {
	close(r.stop)
	r.wg.Wait()
	r.log.Info().Msg("Simulation clock stopped")
}

func (r *Runner) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.controller.Tick(); err != nil && !errors.Is(err, ErrNotRunning) {
				r.log.Error().Err(err).Msg("Tick failed")
			}
		}
	}
}
