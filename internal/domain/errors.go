package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrOrderNotCancellable  = errors.New("order_not_cancellable")
	ErrInsufficientCash     = errors.New("insufficient_cash")
	ErrInsufficientHoldings = errors.New("insufficient_holdings")
	ErrNoHumanTrader        = errors.New("no_human_trader")
	ErrDuplicateSettlement  = errors.New("duplicate_settlement")
	ErrReplicaFailed        = errors.New("replica_failed")
)

// ValidationError represents rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
