// Package simulation runs the market: traders decide in parallel, orders
// are matched sequentially and fills feed back into balances and price.
package simulation

import (
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/engine"
	"github.com/efreitasn/marketsim/internal/market"
	"github.com/google/uuid"
)

const (
	// BaseStep is the simulated seconds per tick at time scale 1.
	BaseStep = 0.1

	snapshotInterval = 1.0
	cleanupInterval  = 10.0
	snapshotDepth    = 5

	// timeEpsilon absorbs the float drift of accumulating steps.
	timeEpsilon = 1e-9

	// retiredLimit bounds how many finished human orders stay queryable.
	retiredLimit = 1000
)

// Config holds the parameters of one simulation.
type Config struct {
	Traders         int
	InitialPrice    float64
	InitialCash     float64
	InitialHoldings int64
	HumanTrader     bool // append a Human trader with ID = Traders
	Seed            uint64
	TimeScale       float64 // <= 0 means 1
	DecisionWorkers int     // <= 0 means GOMAXPROCS
	OrderTTL        float64 // simulated seconds; 0 disables expiry
	RunID           string  // generated when empty

	// Noise overrides the price model's seeded noise.
	Noise market.NoiseFunc
}

// openOrder tracks what settlement and release need for a resting order.
type openOrder struct {
	traderID  int
	side      domain.Side
	limit     float64
	quantity  int64
	remaining int64
	createdAt float64
}

// Engine is one simulation. Step mutates it under the write lock; the
// accessors share the read lock, so a presentation layer may read while
// a runner drives ticks. The engine lock is always taken before the
// book's.
type Engine struct {
	mu sync.RWMutex

	runID   string
	cfg     Config
	logger  *slog.Logger
	sink    Sink
	workers int

	book       *engine.OrderBook
	model      *market.PriceModel
	traders    []*agent.Trader // indexed by trader id
	autonomous []*agent.Trader
	human      *agent.Trader
	open       map[int64]openOrder

	// Final state of human orders that left the book, oldest first in
	// retiredIDs.
	retired    map[int64]domain.Order
	retiredIDs []int64

	step  float64
	now   float64
	ticks int64

	lastSnapshot float64
	lastCleanup  float64
	volume       int64 // traded since the last snapshot

	// Human order flow is folded into the next tick's price update.
	pendingBuy  int64
	pendingSell int64
}

// New creates a simulation from cfg. sink and logger may be nil.
func New(cfg Config, sink Sink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	workers := cfg.DecisionWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	opts := []market.Option{market.WithSeed(cfg.Seed)}
	if cfg.Noise != nil {
		opts = append(opts, market.WithNoise(cfg.Noise))
	}

	e := &Engine{
		runID:   cfg.RunID,
		cfg:     cfg,
		logger:  logger.With(slog.String("run_id", cfg.RunID)),
		sink:    sink,
		workers: workers,
		book:    engine.NewOrderBook(),
		model:   market.NewPriceModel(cfg.InitialPrice, opts...),
		open:    make(map[int64]openOrder),
		retired: make(map[int64]domain.Order),
		step:    BaseStep / cfg.TimeScale,
	}

	for i := 0; i < cfg.Traders; i++ {
		t := agent.New(agent.Config{
			ID:        i,
			Strategy:  domain.StrategyFor(i),
			Cash:      cfg.InitialCash,
			Holdings:  cfg.InitialHoldings,
			CostBasis: cfg.InitialPrice,
			Seed:      cfg.Seed,
		})
		e.traders = append(e.traders, t)
		e.autonomous = append(e.autonomous, t)
	}
	if cfg.HumanTrader {
		e.human = agent.New(agent.Config{
			ID:        cfg.Traders,
			Strategy:  domain.StrategyHuman,
			Cash:      cfg.InitialCash,
			Holdings:  cfg.InitialHoldings,
			CostBasis: cfg.InitialPrice,
			Seed:      cfg.Seed,
		})
		e.traders = append(e.traders, e.human)
	}

	return e
}

// RunID identifies the run in logs and sinks.
func (e *Engine) RunID() string {
	return e.runID
}

// SetTimeScale changes the simulated time per tick to BaseStep / scale.
func (e *Engine) SetTimeScale(scale float64) error {
	if scale <= 0 {
		return &domain.ValidationError{Message: "time scale must be positive"}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.TimeScale = scale
	e.step = BaseStep / scale
	return nil
}

// StepSize returns the simulated seconds per tick.
func (e *Engine) StepSize() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.step
}

// Time returns the elapsed simulated seconds.
func (e *Engine) Time() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now
}

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ticks
}

// CurrentPrice returns the price model's latest price.
func (e *Engine) CurrentPrice() float64 {
	return e.model.CurrentPrice()
}

// PriceBounds returns the lowest and highest reachable price.
func (e *Engine) PriceBounds() (lo, hi float64) {
	return e.model.Bounds()
}

// RecentHistory returns the last n prices.
func (e *Engine) RecentHistory(n int) []float64 {
	return e.model.RecentHistory(n)
}

// Agents returns a snapshot of every trader, ordered by id.
func (e *Engine) Agents() []agent.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agentsLocked()
}

func (e *Engine) agentsLocked() []agent.Snapshot {
	price := e.model.CurrentPrice()
	out := make([]agent.Snapshot, len(e.traders))
	for i, t := range e.traders {
		out[i] = t.Snapshot(price)
	}
	return out
}

// Depth returns up to n aggregated levels of one side, best first.
func (e *Engine) Depth(side domain.Side, n int) []engine.PriceLevel {
	return e.book.Depth(side, n)
}

// Trades returns the trades executed at positions >= offset of the
// history.
func (e *Engine) Trades(offset int) []domain.Trade {
	return e.book.Trades().Since(offset)
}

// RecentTrades returns the last n trades.
func (e *Engine) RecentTrades(n int) []domain.Trade {
	log := e.book.Trades()
	return log.Since(log.Len() - n)
}
