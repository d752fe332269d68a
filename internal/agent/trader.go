// Package agent implements the trading agents of the simulation.
package agent

import (
	"fmt"
	"math/rand/v2"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/indicator"
)

const (
	// WindowCapacity bounds each trader's recent-price window.
	WindowCapacity = 20
	// MinHistory is the number of samples needed before any decision.
	MinHistory = 5

	// cashEpsilon absorbs float residue when reserved cash is released.
	cashEpsilon = 1e-9
)

// Config describes a trader at creation.
type Config struct {
	ID        int
	Strategy  domain.Strategy
	Cash      float64
	Holdings  int64
	CostBasis float64 // average cost of the initial holdings
	Seed      uint64
}

// Intent is an order a trader wants to place this tick.
type Intent struct {
	TraderID int
	Side     domain.Side
	Price    float64
	Quantity int64
}

// Indicators are the values a trader computed on its last decision.
type Indicators struct {
	RSI       float64
	MACD      indicator.MACDResult
	Bollinger indicator.Bands
	MACDReady bool
}

// Snapshot is a read-only copy of a trader's state.
type Snapshot struct {
	ID               int
	Strategy         domain.Strategy
	Cash             float64
	ReservedCash     float64
	Holdings         int64
	ReservedHoldings int64
	NetWorth         float64
	TotalProfit      float64
	TradesExecuted   int64
	RSI              float64
	MACD             float64
}

// Trader owns its balances, strategy, price window and random generator.
//
// A Trader is not safe for concurrent use. The engine calls Decide from the
// decision fan-out (one goroutine per trader at a time) and settles trades
// sequentially afterwards, never both at once.
//
// Cash and holdings include reserved amounts. A buy intent reserves
// limit × quantity cash and a sell intent reserves quantity holdings, so
// the fills of a resting order can always be settled.
type Trader struct {
	id       int
	strategy domain.Strategy

	cash             float64
	reservedCash     float64
	holdings         int64
	reservedHoldings int64
	avgCost          float64

	tradesExecuted int64
	totalProfit    float64

	window []float64
	rng    *rand.Rand
	ind    Indicators

	lastBuyTradeID  int64
	lastSellTradeID int64
}

// New creates a trader. Its generator is PCG stream ID+1 of the seed, so
// traders of one replica never share a stream with each other or with the
// price model.
func New(cfg Config) *Trader {
	return &Trader{
		id:       cfg.ID,
		strategy: cfg.Strategy,
		cash:     cfg.Cash,
		holdings: cfg.Holdings,
		avgCost:  cfg.CostBasis,
		window:   make([]float64, 0, WindowCapacity),
		rng:      rand.New(rand.NewPCG(cfg.Seed, uint64(cfg.ID)+1)),
		ind:      Indicators{RSI: indicator.RSINeutral},
	}
}

func (t *Trader) ID() int                   { return t.id }
func (t *Trader) Strategy() domain.Strategy { return t.strategy }
func (t *Trader) Cash() float64             { return t.cash }
func (t *Trader) Holdings() int64           { return t.holdings }
func (t *Trader) TradesExecuted() int64     { return t.tradesExecuted }
func (t *Trader) TotalProfit() float64      { return t.totalProfit }
func (t *Trader) Indicators() Indicators    { return t.ind }

// AvailableCash is cash not reserved by resting buy orders.
func (t *Trader) AvailableCash() float64 {
	return max(t.cash-t.reservedCash, 0)
}

// AvailableHoldings is holdings not reserved by resting sell orders.
func (t *Trader) AvailableHoldings() int64 {
	return t.holdings - t.reservedHoldings
}

// Window returns a copy of the recent-price window, oldest first.
func (t *Trader) Window() []float64 {
	out := make([]float64, len(t.window))
	copy(out, t.window)
	return out
}

// Decide records price in the window and returns the order the strategy
// wants at that price. A Human trader never decides. Intents that cannot
// be afforded are dropped; a returned intent is already reserved.
func (t *Trader) Decide(price float64) (Intent, bool) {
	if t.strategy == domain.StrategyHuman {
		return Intent{}, false
	}

	if len(t.window) == WindowCapacity {
		copy(t.window, t.window[1:])
		t.window = t.window[:WindowCapacity-1]
	}
	t.window = append(t.window, price)

	if len(t.window) < MinHistory {
		return Intent{}, false
	}

	prevMACD, prevReady := t.ind.MACD, t.ind.MACDReady
	t.refreshIndicators()

	var side domain.Side
	switch t.signal(price, prevMACD, prevReady) {
	case signalBuy:
		side = domain.SideBuy
	case signalSell:
		side = domain.SideSell
	default:
		return Intent{}, false
	}

	qty := t.size(side, price)
	if qty <= 0 {
		return Intent{}, false
	}
	if err := t.Reserve(side, price, qty); err != nil {
		return Intent{}, false
	}
	return Intent{TraderID: t.id, Side: side, Price: price, Quantity: qty}, true
}

// size caps the strategy's base quantity by what the trader can afford.
func (t *Trader) size(side domain.Side, price float64) int64 {
	qty := baseQuantity(t.strategy)
	if side == domain.SideBuy {
		if price <= 0 {
			return 0
		}
		return min(qty, int64(t.AvailableCash()/price))
	}
	return min(qty, t.AvailableHoldings())
}

// Reserve earmarks cash (buy) or holdings (sell) for an order.
func (t *Trader) Reserve(side domain.Side, price float64, qty int64) error {
	if side == domain.SideBuy {
		cost := price * float64(qty)
		if cost > t.AvailableCash()+cashEpsilon {
			return domain.ErrInsufficientCash
		}
		t.reservedCash += cost
		return nil
	}
	if qty > t.AvailableHoldings() {
		return domain.ErrInsufficientHoldings
	}
	t.reservedHoldings += qty
	return nil
}

// Release returns the reservation of qty unfilled units of an order with
// the given limit price, after a cancel or expiry.
func (t *Trader) Release(side domain.Side, limit float64, qty int64) {
	if side == domain.SideBuy {
		t.releaseCash(limit * float64(qty))
		return
	}
	t.reservedHoldings = max(t.reservedHoldings-qty, 0)
}

func (t *Trader) releaseCash(amount float64) {
	t.reservedCash -= amount
	if t.reservedCash < cashEpsilon {
		t.reservedCash = 0
	}
}

// ExecuteOrder settles one side of a confirmed trade: a buy pays
// price × qty and receives qty units, a sell the reverse. limit is the
// order's limit price, used to release its reservation.
//
// Each trade settles at most once per side: a trade id that is not newer
// than the last one settled on that side returns ErrDuplicateSettlement
// and changes nothing. Balances never go negative.
func (t *Trader) ExecuteOrder(tradeID int64, side domain.Side, price float64, qty int64, limit float64) error {
	if qty <= 0 {
		return fmt.Errorf("trader %d: settle non-positive quantity %d", t.id, qty)
	}

	if side == domain.SideBuy {
		if tradeID <= t.lastBuyTradeID {
			return domain.ErrDuplicateSettlement
		}
		cost := price * float64(qty)
		if cost > t.cash+cashEpsilon {
			return domain.ErrInsufficientCash
		}
		t.lastBuyTradeID = tradeID
		t.releaseCash(limit * float64(qty))
		t.avgCost = (t.avgCost*float64(t.holdings) + cost) / float64(t.holdings+qty)
		t.cash = max(t.cash-cost, 0)
		t.holdings += qty
		t.tradesExecuted++
		return nil
	}

	if tradeID <= t.lastSellTradeID {
		return domain.ErrDuplicateSettlement
	}
	if qty > t.holdings {
		return domain.ErrInsufficientHoldings
	}
	t.lastSellTradeID = tradeID
	t.reservedHoldings = max(t.reservedHoldings-qty, 0)
	t.cash += price * float64(qty)
	t.totalProfit += (price - t.avgCost) * float64(qty)
	t.holdings -= qty
	if t.holdings == 0 {
		t.avgCost = 0
	}
	t.tradesExecuted++
	return nil
}

// NetWorth values the trader's holdings at price.
func (t *Trader) NetWorth(price float64) float64 {
	return t.cash + float64(t.holdings)*price
}

// Snapshot copies the trader's state, valuing holdings at price.
func (t *Trader) Snapshot(price float64) Snapshot {
	return Snapshot{
		ID:               t.id,
		Strategy:         t.strategy,
		Cash:             t.cash,
		ReservedCash:     t.reservedCash,
		Holdings:         t.holdings,
		ReservedHoldings: t.reservedHoldings,
		NetWorth:         t.NetWorth(price),
		TotalProfit:      t.totalProfit,
		TradesExecuted:   t.tradesExecuted,
		RSI:              t.ind.RSI,
		MACD:             t.ind.MACD.MACD,
	}
}
