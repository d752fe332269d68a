package engine

import (
	"sync"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/store"
	"github.com/google/btree"
)

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price      float64
	Quantity   int64 // remaining (unfilled) quantity
	OrderCount int
}

// level holds every resting order at one price on one side, in arrival
// order.
type level struct {
	price  float64
	orders []*domain.Order
}

// bidLess orders the bid side by price descending, so Min() is the best bid.
func bidLess(a, b *level) bool {
	return a.price > b.price
}

// askLess orders the ask side by price ascending, so Min() is the best ask.
func askLess(a, b *level) bool {
	return a.price < b.price
}

// OrderBook maintains the bid and ask sides using B-trees of price levels.
// Mutations (AddOrder, Match, Cleanup, Cancel, ExpireBefore) run under the
// write lock. Reads share the read lock.
type OrderBook struct {
	mu     sync.RWMutex
	bids   *btree.BTreeG[*level]
	asks   *btree.BTreeG[*level]
	index  map[int64]*domain.Order // order_id → resting order
	byAge  []*domain.Order         // resting orders, CreatedAt ascending
	trades *store.TradeLog

	nextOrderID int64
	nextTradeID int64
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	const degree = 32
	return &OrderBook{
		bids:        btree.NewG[*level](degree, bidLess),
		asks:        btree.NewG[*level](degree, askLess),
		index:       make(map[int64]*domain.Order),
		trades:      store.NewTradeLog(),
		nextOrderID: 1,
		nextTradeID: 1,
	}
}

func (ob *OrderBook) side(s domain.Side) *btree.BTreeG[*level] {
	if s == domain.SideBuy {
		return ob.bids
	}
	return ob.asks
}

// AddOrder assigns the next order id and appends the order to its price
// level, creating the level when needed. The book takes ownership of the
// order. Orders must carry a positive price and quantity.
func (ob *OrderBook) AddOrder(order *domain.Order) int64 {
	if order.Quantity <= 0 || order.Price <= 0 {
		panic("engine: order with non-positive price or quantity")
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	order.OrderID = ob.nextOrderID
	ob.nextOrderID++
	order.FilledQuantity = 0
	order.Status = domain.OrderStatusPending

	tree := ob.side(order.Side)
	lvl, ok := tree.Get(&level{price: order.Price})
	if !ok {
		lvl = &level{price: order.Price}
		tree.ReplaceOrInsert(lvl)
	}
	lvl.orders = append(lvl.orders, order)

	ob.index[order.OrderID] = order
	ob.insertByAge(order)

	return order.OrderID
}

// Order returns a copy of a resting order.
func (ob *OrderBook) Order(orderID int64) (domain.Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	o, ok := ob.index[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// BestBid returns the highest bid price.
func (ob *OrderBook) BestBid() (float64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	lvl, ok := ob.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestAsk returns the lowest ask price.
func (ob *OrderBook) BestAsk() (float64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	lvl, ok := ob.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// Spread returns best ask - best bid, or 0 if either side is empty.
func (ob *OrderBook) Spread() float64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid, hasBid := ob.bids.Min()
	ask, hasAsk := ob.asks.Min()
	if !hasBid || !hasAsk {
		return 0
	}
	return ask.price - bid.price
}

// Depth returns up to n aggregated price levels for the side, best first.
func (ob *OrderBook) Depth(s domain.Side, n int) []PriceLevel {
	if n <= 0 {
		return nil
	}

	ob.mu.RLock()
	defer ob.mu.RUnlock()

	levels := make([]PriceLevel, 0, n)
	ob.side(s).Ascend(func(lvl *level) bool {
		pl := PriceLevel{Price: lvl.price}
		for _, o := range lvl.orders {
			if !o.Active() {
				continue
			}
			pl.Quantity += o.RemainingQuantity()
			pl.OrderCount++
		}
		if pl.OrderCount > 0 {
			levels = append(levels, pl)
		}
		return len(levels) < n
	})
	return levels
}

// BuyOrderCount returns the number of resting buy orders.
func (ob *OrderBook) BuyOrderCount() int {
	return ob.count(domain.SideBuy)
}

// SellOrderCount returns the number of resting sell orders.
func (ob *OrderBook) SellOrderCount() int {
	return ob.count(domain.SideSell)
}

func (ob *OrderBook) count(s domain.Side) int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	n := 0
	ob.side(s).Ascend(func(lvl *level) bool {
		for _, o := range lvl.orders {
			if o.Active() {
				n++
			}
		}
		return true
	})
	return n
}

// Trades returns the book's append-only trade history.
func (ob *OrderBook) Trades() *store.TradeLog {
	return ob.trades
}

// Cleanup purges every residual filled order and removes emptied levels.
// It is idempotent and returns the number of orders purged.
func (ob *OrderBook) Cleanup() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	purged := 0
	for _, tree := range []*btree.BTreeG[*level]{ob.bids, ob.asks} {
		var empty []*level
		tree.Ascend(func(lvl *level) bool {
			purged += ob.purgeLevel(lvl)
			if len(lvl.orders) == 0 {
				empty = append(empty, lvl)
			}
			return true
		})
		// Deleting during Ascend is not allowed.
		for _, lvl := range empty {
			tree.Delete(lvl)
		}
	}
	ob.compactByAge()
	return purged
}

// Cancel removes an active order from the book and marks it cancelled.
// Returns a copy of the cancelled order.
func (ob *OrderBook) Cancel(orderID int64) (domain.Order, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	o, ok := ob.index[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !o.Active() {
		return domain.Order{}, domain.ErrOrderNotCancellable
	}
	ob.remove(o)
	o.Cancel()
	return *o, nil
}

// purgeLevel drops inactive orders from the level, keeping the arrival
// order of the rest. Returns the number dropped.
func (ob *OrderBook) purgeLevel(lvl *level) int {
	kept := lvl.orders[:0]
	for _, o := range lvl.orders {
		if o.Active() {
			kept = append(kept, o)
			continue
		}
		delete(ob.index, o.OrderID)
	}
	purged := len(lvl.orders) - len(kept)
	// Clear the tail so dropped orders can be collected.
	for i := len(kept); i < len(lvl.orders); i++ {
		lvl.orders[i] = nil
	}
	lvl.orders = kept
	return purged
}

// remove detaches a single order from its level and the index.
func (ob *OrderBook) remove(o *domain.Order) {
	tree := ob.side(o.Side)
	lvl, ok := tree.Get(&level{price: o.Price})
	if ok {
		for i, resting := range lvl.orders {
			if resting.OrderID == o.OrderID {
				lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
				break
			}
		}
		if len(lvl.orders) == 0 {
			tree.Delete(lvl)
		}
	}
	delete(ob.index, o.OrderID)
}
