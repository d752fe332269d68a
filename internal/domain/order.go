package domain

import "fmt"

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order is a limit order submitted by a trader. The order book owns it from
// submission until it is filled, cancelled or purged.
type Order struct {
	OrderID        int64
	TraderID       int
	Side           Side
	Price          float64
	Quantity       int64
	FilledQuantity int64
	Status         OrderStatus
	CreatedAt      float64 // simulated seconds
}

// NewOrder returns a pending order with no id. The book assigns the id.
func NewOrder(traderID int, side Side, price float64, quantity int64, createdAt float64) *Order {
	return &Order{
		TraderID:  traderID,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Status:    OrderStatusPending,
		CreatedAt: createdAt,
	}
}

// RemainingQuantity is the unfilled part of the order.
func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.FilledQuantity
}

// IsFilled reports whether the whole quantity has been executed.
func (o *Order) IsFilled() bool {
	return o.FilledQuantity == o.Quantity
}

// Active reports whether the order can still trade.
func (o *Order) Active() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartiallyFilled
}

// Fill records an execution of qty against the order and recomputes the
// status. A fill that is non-positive or overfills the order is a matching
// defect and panics.
func (o *Order) Fill(qty int64) {
	if qty <= 0 {
		panic(fmt.Sprintf("order %d: non-positive fill %d", o.OrderID, qty))
	}
	if o.FilledQuantity+qty > o.Quantity {
		panic(fmt.Sprintf("order %d: fill %d exceeds remaining %d", o.OrderID, qty, o.RemainingQuantity()))
	}
	o.FilledQuantity += qty
	if o.FilledQuantity == o.Quantity {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Cancel marks an active order as cancelled. The filled quantity is kept.
func (o *Order) Cancel() {
	o.Status = OrderStatusCancelled
}
