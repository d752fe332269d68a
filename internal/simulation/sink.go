package simulation

import (
	"fmt"
	"log/slog"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
)

// PriceSnapshot is the periodic market summary.
type PriceSnapshot struct {
	Timestamp  float64
	Price      float64
	Volume     int64 // quantity traded since the previous snapshot
	BuyOrders  int
	SellOrders int
}

// DepthSnapshot is the periodic top of book.
type DepthSnapshot struct {
	Timestamp float64
	Bids      []engine.PriceLevel
	Asks      []engine.PriceLevel
}

// Sink receives the events of a run. Calls are best-effort: errors and
// panics are logged at debug level and never fail a tick. They run under
// the engine lock, so a sink doing I/O should be wrapped to write from
// its own goroutine.
type Sink interface {
	// LogTrades receives the trades of one tick, in execution order.
	// It is not called for ticks without trades.
	LogTrades(trades []domain.Trade) error
	LogPrice(snap PriceSnapshot) error
	LogAgents(timestamp float64, agents []agent.Snapshot) error
	LogDepth(snap DepthSnapshot) error
}

type nopSink struct{}

func (nopSink) LogTrades([]domain.Trade) error            { return nil }
func (nopSink) LogPrice(PriceSnapshot) error              { return nil }
func (nopSink) LogAgents(float64, []agent.Snapshot) error { return nil }
func (nopSink) LogDepth(DepthSnapshot) error              { return nil }

// emit calls fn and swallows whatever it returns or raises.
func (e *Engine) emit(kind string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("sink panicked",
				slog.String("run_id", e.runID),
				slog.String("kind", kind),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := fn(); err != nil {
		e.logger.Debug("sink write failed",
			slog.String("run_id", e.runID),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}
