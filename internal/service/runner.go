package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/marketsim/internal/simulation"
)

// timeEpsilon absorbs the float drift of the simulated clock.
const timeEpsilon = 1e-9

// Runner drives a simulation in wall-clock time: one tick per interval
// until the simulated clock reaches the configured duration or the
// context is cancelled.
type Runner struct {
	sim      *simulation.Engine
	interval time.Duration
	limit    float64 // simulated seconds; 0 runs until cancelled
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a new Runner. A zero duration never stops on its own.
func NewRunner(sim *simulation.Engine, interval, duration time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sim:      sim,
		interval: interval,
		limit:    duration.Seconds(),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop in a background goroutine.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		defer r.stop()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("simulation started",
			slog.String("run_id", r.sim.RunID()),
			slog.Duration("interval", r.interval),
			slog.Float64("duration", r.limit),
		)
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("simulation stopped",
					slog.Float64("time", r.sim.Time()),
					slog.Int64("ticks", r.sim.Ticks()),
				)
				return
			case <-ticker.C:
				if !r.tick(ctx) {
					return
				}
			}
		}
	}()
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Finished reports whether the simulated clock has reached the duration.
func (r *Runner) Finished() bool {
	return r.limit > 0 && r.sim.Time()+timeEpsilon >= r.limit
}

// tick steps the simulation once and reports whether the loop should
// continue.
func (r *Runner) tick(ctx context.Context) bool {
	if err := r.sim.Step(ctx); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			r.logger.Error("simulation step failed", slog.String("error", err.Error()))
		}
		return false
	}
	if r.Finished() {
		stats := r.sim.Stats()
		r.logger.Info("simulation finished",
			slog.String("run_id", r.sim.RunID()),
			slog.Int64("ticks", r.sim.Ticks()),
			slog.Int64("total_trades", stats.TotalTrades),
			slog.Float64("total_volume", stats.TotalVolume),
			slog.Float64("price", r.sim.CurrentPrice()),
		)
		return false
	}
	return true
}

func (r *Runner) stop() {
	r.stopOnce.Do(func() { close(r.done) })
}
