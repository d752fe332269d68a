// Package ensemble runs independent, seeded simulation replicas across
// workers and reduces their summaries.
package ensemble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/shard"
	"github.com/efreitasn/marketsim/internal/simulation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config describes an ensemble run.
type Config struct {
	Replicas int
	Workers  int
	// BaseSeed seeds replica i with BaseSeed + i.
	BaseSeed uint64
	// Duration is simulated time per replica.
	Duration time.Duration
	// Simulation is the template for every replica. Seed, RunID and
	// HumanTrader are set per replica.
	Simulation simulation.Config
}

// Summary is the outcome of an ensemble run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Workers    int           `json:"workers"`
	Ticks      int64         `json:"ticks_per_replica"`
	Partition  []shard.Range `json:"partition"`
	Reduction  Reduction     `json:"reduction"`
	Records    []Record      `json:"records"`
	WallTimeMS int64         `json:"wall_time_ms"`
}

// Coordinator partitions replicas over workers and gathers their records.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator. logger may be nil.
func NewCoordinator(cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{cfg: cfg, logger: logger}
}

// Ticks returns the number of ticks each replica runs: the duration
// divided by the replica's time step, rounded.
func (c *Coordinator) Ticks() int64 {
	scale := c.cfg.Simulation.TimeScale
	if scale <= 0 {
		scale = 1
	}
	step := simulation.BaseStep / scale
	return int64(math.Round(c.cfg.Duration.Seconds() / step))
}

// Run executes every replica and reduces the results.
//
// Workers own contiguous, disjoint index ranges. Each replica encodes its
// record into a fixed-size buffer sent to the coordinator. The first
// failing replica, including one that panics, cancels the rest and Run
// returns its error wrapped in domain.ErrReplicaFailed. A ctx deadline
// bounds the whole gather.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	ticks := c.Ticks()
	partition := shard.Split(c.cfg.Replicas, c.cfg.Workers)

	logger := c.logger.With(slog.String("run_id", runID))
	logger.Info("ensemble starting",
		slog.Int("replicas", c.cfg.Replicas),
		slog.Int("workers", c.cfg.Workers),
		slog.Int64("ticks", ticks),
	)

	g, gctx := errgroup.WithContext(ctx)
	out := make(chan []byte, max(c.cfg.Replicas, 0))
	for w, r := range partition {
		if r.Len() == 0 {
			continue
		}
		g.Go(func() error {
			buf := make([]byte, 0, r.Len()*RecordSize)
			for i := r.Start; i < r.End; i++ {
				rec, err := c.runReplica(gctx, runID, i, ticks)
				if err != nil {
					return err
				}
				buf, _ = rec.AppendBinary(buf)
				logger.Debug("replica finished",
					slog.Int("worker", w),
					slog.Int("replica", i),
					slog.Int64("trades", rec.Stats.TotalTrades),
				)
			}
			out <- buf
			return nil
		})
	}

	err := g.Wait()
	close(out)
	if err != nil {
		logger.Error("ensemble failed", slog.String("error", err.Error()))
		return Summary{}, err
	}

	records := make([]Record, 0, c.cfg.Replicas)
	for buf := range out {
		recs, err := DecodeRecords(buf)
		if err != nil {
			return Summary{}, err
		}
		records = append(records, recs...)
	}

	red := Reduce(records)
	summary := Summary{
		RunID:      runID,
		Workers:    c.cfg.Workers,
		Ticks:      ticks,
		Partition:  partition,
		Reduction:  red,
		Records:    sortedRecords(records),
		WallTimeMS: time.Since(start).Milliseconds(),
	}
	logger.Info("ensemble finished",
		slog.Int64("total_trades", red.TotalTrades),
		slog.Float64("total_volume", red.TotalVolume),
		slog.Int64("best_replica", red.BestReplica),
		slog.Int64("worst_replica", red.WorstReplica),
	)
	return summary, nil
}

// runReplica runs replica i to completion. A panic becomes an error.
func (c *Coordinator) runReplica(ctx context.Context, runID string, i int, ticks int64) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: replica %d panicked: %v", domain.ErrReplicaFailed, i, r)
		}
	}()

	cfg := c.cfg.Simulation
	cfg.Seed = c.cfg.BaseSeed + uint64(i)
	cfg.RunID = fmt.Sprintf("%s/%d", runID, i)
	cfg.HumanTrader = false
	if cfg.DecisionWorkers <= 0 {
		cfg.DecisionWorkers = 1
	}

	e := simulation.New(cfg, nil, c.logger)
	if err := e.Run(ctx, ticks); err != nil {
		return Record{}, fmt.Errorf("%w: replica %d: %w", domain.ErrReplicaFailed, i, err)
	}
	return Record{Index: int64(i), Stats: e.Stats()}, nil
}

func sortedRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for _, r := range records {
		out[r.Index] = r
	}
	return out
}
