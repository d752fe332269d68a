package simulation

import (
	"github.com/efreitasn/marketsim/internal/domain"
)

// AddHumanOrder reserves funds on the human trader and submits the order
// straight to the book. It is matched on the next tick and its quantity
// joins that tick's order flow.
func (e *Engine) AddHumanOrder(side domain.Side, price float64, qty int64) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.human == nil {
		return domain.Order{}, domain.ErrNoHumanTrader
	}
	if price <= 0 || qty <= 0 {
		return domain.Order{}, &domain.ValidationError{Message: "price and quantity must be positive"}
	}
	if err := e.human.Reserve(side, price, qty); err != nil {
		return domain.Order{}, err
	}

	id := e.submit(e.human.ID(), side, price, qty)
	if side == domain.SideBuy {
		e.pendingBuy += qty
	} else {
		e.pendingSell += qty
	}

	o, _ := e.book.Order(id)
	return o, nil
}

// CancelHumanOrder cancels a resting order of the human trader and
// releases its reservation. A filled, cancelled or expired human order is
// not cancellable.
func (e *Engine) CancelHumanOrder(orderID int64) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.human == nil {
		return domain.Order{}, domain.ErrNoHumanTrader
	}
	oo, ok := e.open[orderID]
	if !ok {
		if _, done := e.retired[orderID]; done {
			return domain.Order{}, domain.ErrOrderNotCancellable
		}
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if oo.traderID != e.human.ID() {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	o, err := e.book.Cancel(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	e.release(o)
	return o, nil
}

// HumanOrder returns an order of the human trader: resting orders from the
// book, finished ones from the recent history.
func (e *Engine) HumanOrder(orderID int64) (domain.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.human == nil {
		return domain.Order{}, domain.ErrNoHumanTrader
	}
	if o, ok := e.retired[orderID]; ok {
		return o, nil
	}
	oo, ok := e.open[orderID]
	if !ok || oo.traderID != e.human.ID() {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o, ok := e.book.Order(orderID)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

// HumanTraderID returns the human trader's id.
func (e *Engine) HumanTraderID() (int, bool) {
	if e.human == nil {
		return 0, false
	}
	return e.human.ID(), true
}
