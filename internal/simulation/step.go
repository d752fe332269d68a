package simulation

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/efreitasn/marketsim/internal/agent"
	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/shard"
	"golang.org/x/sync/errgroup"
)

// Run executes ticks steps, stopping early when ctx is done.
func (e *Engine) Run(ctx context.Context, ticks int64) error {
	for i := int64(0); i < ticks; i++ {
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step advances the simulation by one tick:
//
//  1. every autonomous trader decides against one price snapshot, in
//     parallel;
//  2. intents are submitted to the book in trader-id order;
//  3. the book is matched;
//  4. each trade settles the buyer and then the seller;
//  5. intent flow moves the price;
//  6. expiry, snapshots and cleanup run on their cadence.
//
// The context is only checked before the tick starts; a started tick
// always completes.
func (e *Engine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.now += e.step
	e.ticks++

	price := e.model.CurrentPrice()
	intents := e.decide(price)

	buyQty, sellQty := e.pendingBuy, e.pendingSell
	e.pendingBuy, e.pendingSell = 0, 0
	for _, in := range intents {
		e.submit(in.TraderID, in.Side, in.Price, in.Quantity)
		if in.Side == domain.SideBuy {
			buyQty += in.Quantity
		} else {
			sellQty += in.Quantity
		}
	}

	trades := e.book.Match()
	for _, tr := range trades {
		e.settle(tr)
		e.volume += tr.Quantity
	}

	e.model.Update(buyQty, sellQty)

	if len(trades) > 0 {
		e.emit("trades", func() error { return e.sink.LogTrades(trades) })
	}
	e.cadence()
	return nil
}

// decide fans the autonomous traders out over the decision workers. Each
// worker owns a contiguous range of traders and a local buffer; buffers
// are merged under one lock and sorted by trader id.
func (e *Engine) decide(price float64) []agent.Intent {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		intents []agent.Intent
	)
	for _, r := range shard.Split(len(e.autonomous), e.workers) {
		if r.Len() == 0 {
			continue
		}
		g.Go(func() error {
			local := make([]agent.Intent, 0, r.Len())
			for _, t := range e.autonomous[r.Start:r.End] {
				if in, ok := t.Decide(price); ok {
					local = append(local, in)
				}
			}
			mu.Lock()
			intents = append(intents, local...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(intents, func(a, b agent.Intent) int {
		return a.TraderID - b.TraderID
	})
	return intents
}

// submit places an already reserved order on the book.
func (e *Engine) submit(traderID int, side domain.Side, price float64, qty int64) int64 {
	id := e.book.AddOrder(domain.NewOrder(traderID, side, price, qty, e.now))
	e.open[id] = openOrder{
		traderID:  traderID,
		side:      side,
		limit:     price,
		quantity:  qty,
		remaining: qty,
		createdAt: e.now,
	}
	return id
}

// settle applies a trade to the buyer and then the seller.
func (e *Engine) settle(tr domain.Trade) {
	e.settleSide(tr, tr.BuyOrderID, tr.BuyerID, domain.SideBuy)
	e.settleSide(tr, tr.SellOrderID, tr.SellerID, domain.SideSell)
}

func (e *Engine) settleSide(tr domain.Trade, orderID int64, traderID int, side domain.Side) {
	oo, ok := e.open[orderID]
	if !ok {
		e.logger.Error("trade references an untracked order",
			slog.Int64("trade_id", tr.TradeID),
			slog.Int64("order_id", orderID),
		)
		return
	}
	if err := e.traders[traderID].ExecuteOrder(tr.TradeID, side, tr.Price, tr.Quantity, oo.limit); err != nil {
		e.logger.Error("settlement failed",
			slog.Int64("trade_id", tr.TradeID),
			slog.Int("trader_id", traderID),
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)
	}
	oo.remaining -= tr.Quantity
	if oo.remaining <= 0 {
		delete(e.open, orderID)
		e.retire(domain.Order{
			OrderID:        orderID,
			TraderID:       traderID,
			Side:           side,
			Price:          oo.limit,
			Quantity:       oo.quantity,
			FilledQuantity: oo.quantity,
			Status:         domain.OrderStatusFilled,
			CreatedAt:      oo.createdAt,
		})
		return
	}
	e.open[orderID] = oo
}

// cadence runs the periodic side effects that are due.
func (e *Engine) cadence() {
	if e.now-e.lastSnapshot >= snapshotInterval-timeEpsilon {
		e.lastSnapshot = e.now
		if e.cfg.OrderTTL > 0 {
			e.expire(e.now - e.cfg.OrderTTL)
		}
		e.snapshot()
	}
	if e.now-e.lastCleanup >= cleanupInterval-timeEpsilon {
		e.lastCleanup = e.now
		purged := e.book.Cleanup()
		e.logger.Debug("book cleanup", slog.Float64("time", e.now), slog.Int("purged", purged))
	}
}

// expire cancels resting orders created before cutoff and releases their
// reservations.
func (e *Engine) expire(cutoff float64) {
	expired := e.book.ExpireBefore(cutoff)
	for _, o := range expired {
		e.release(o)
	}
	if len(expired) > 0 {
		e.logger.Debug("orders expired", slog.Float64("time", e.now), slog.Int("count", len(expired)))
	}
}

func (e *Engine) release(o domain.Order) {
	oo, ok := e.open[o.OrderID]
	if !ok {
		return
	}
	e.traders[oo.traderID].Release(oo.side, oo.limit, oo.remaining)
	delete(e.open, o.OrderID)
	e.retire(o)
}

// retire keeps the final state of a human order once it leaves the book,
// evicting the oldest beyond retiredLimit. Agent orders are ignored.
func (e *Engine) retire(o domain.Order) {
	if e.human == nil || o.TraderID != e.human.ID() {
		return
	}
	if len(e.retiredIDs) >= retiredLimit {
		delete(e.retired, e.retiredIDs[0])
		e.retiredIDs = e.retiredIDs[1:]
	}
	e.retired[o.OrderID] = o
	e.retiredIDs = append(e.retiredIDs, o.OrderID)
}

func (e *Engine) snapshot() {
	snap := PriceSnapshot{
		Timestamp:  e.now,
		Price:      e.model.CurrentPrice(),
		Volume:     e.volume,
		BuyOrders:  e.book.BuyOrderCount(),
		SellOrders: e.book.SellOrderCount(),
	}
	e.volume = 0
	e.emit("price", func() error { return e.sink.LogPrice(snap) })

	agents := e.agentsLocked()
	e.emit("agents", func() error { return e.sink.LogAgents(snap.Timestamp, agents) })

	depth := DepthSnapshot{
		Timestamp: e.now,
		Bids:      e.book.Depth(domain.SideBuy, snapshotDepth),
		Asks:      e.book.Depth(domain.SideSell, snapshotDepth),
	}
	e.emit("depth", func() error { return e.sink.LogDepth(depth) })
}
