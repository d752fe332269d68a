package engine

import (
	"fmt"

	"github.com/efreitasn/marketsim/internal/domain"
)

// Match crosses the book until it is uncrossed and returns the trades
// executed by this pass, in execution order.
//
// While best bid >= best ask, the two best levels are processed in full:
// every active buy at the bid level is matched, in arrival order, against
// every active sell at the ask level, in arrival order. Each fill is
// min(remaining buy, remaining sell) and executes at the resting sell price.
// Filled orders are purged after the pass and emptied levels removed, so at
// least one of the two levels disappears per iteration.
//
// The write lock is held for the entire pass.
func (ob *OrderBook) Match() []domain.Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var trades []domain.Trade

	for {
		bid, hasBid := ob.bids.Min()
		ask, hasAsk := ob.asks.Min()
		if !hasBid || !hasAsk {
			break
		}
		if bid.price < ask.price {
			break
		}

		for _, buy := range bid.orders {
			if !buy.Active() {
				continue
			}
			for _, sell := range ask.orders {
				if !buy.Active() {
					break
				}
				if !sell.Active() {
					continue
				}
				trades = append(trades, ob.execute(buy, sell))
			}
		}

		ob.purgeLevel(bid)
		ob.purgeLevel(ask)
		bidGone := len(bid.orders) == 0
		askGone := len(ask.orders) == 0
		if bidGone {
			ob.bids.Delete(bid)
		}
		if askGone {
			ob.asks.Delete(ask)
		}
		if !bidGone && !askGone {
			panic(fmt.Sprintf("engine: crossed levels %v/%v survived a matching pass", bid.price, ask.price))
		}
	}

	ob.trades.Append(trades...)
	return trades
}

// execute fills buy against sell for the largest possible quantity at the
// sell order's price.
func (ob *OrderBook) execute(buy, sell *domain.Order) domain.Trade {
	qty := min(buy.RemainingQuantity(), sell.RemainingQuantity())
	buy.Fill(qty)
	sell.Fill(qty)

	trade := domain.Trade{
		TradeID:     ob.nextTradeID,
		BuyOrderID:  buy.OrderID,
		SellOrderID: sell.OrderID,
		BuyerID:     buy.TraderID,
		SellerID:    sell.TraderID,
		Price:       sell.Price,
		Quantity:    qty,
		Timestamp:   max(buy.CreatedAt, sell.CreatedAt),
	}
	ob.nextTradeID++
	return trade
}
