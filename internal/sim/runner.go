package sim

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Runner drives a Simulator from a clock. A ticker only exists while the
// drone is powered; every power or charging change tears the current ticker
// down before a new one is created, so two tickers never overlap.
type Runner struct {
	sim    *Simulator
	clock  clock.Clock
	logger *slog.Logger

	active atomic.Bool
	ticks  atomic.Uint64
}

// NewRunner creates a Runner for sim. A nil clock means the wall clock.
func NewRunner(sim *Simulator, clk clock.Clock, logger *slog.Logger) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sim:    sim,
		clock:  clk,
		logger: logger.With("component", "runner"),
	}
}

// Active reports whether a ticker is currently running.
func (r *Runner) Active() bool {
	return r.active.Load()
}

// Ticks returns the number of ticks delivered so far.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.sim.Config().TickInterval

	var ticker *clock.Ticker
	var tickC <-chan time.Time

	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
		r.active.Store(false)
	}
	reset := func() {
		stop()
		if r.sim.Powered() {
			ticker = r.clock.Ticker(interval)
			tickC = ticker.C
			r.active.Store(true)
		}
		r.logger.Debug("ticker reset", "active", r.active.Load(), "interval", interval)
	}

	reset()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.sim.PowerChanged():
			reset()
		case <-tickC:
			r.sim.Tick()
			r.ticks.Add(1)
		}
	}
}
