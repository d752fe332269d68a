package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/efreitasn/marketsim/internal/domain"
	"github.com/efreitasn/marketsim/internal/service"
	"github.com/go-chi/chi/v5"
)

// OrderHandler handles HTTP requests for the human trader's orders.
type OrderHandler struct {
	marketSvc *service.MarketService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(marketSvc *service.MarketService) *OrderHandler {
	return &OrderHandler{marketSvc: marketSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// orderResponse is the JSON representation of an order.
type orderResponse struct {
	OrderID           int64   `json:"order_id"`
	TraderID          int     `json:"trader_id"`
	Side              string  `json:"side"`
	Price             float64 `json:"price"`
	Quantity          int64   `json:"quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	Status            string  `json:"status"`
	CreatedAt         float64 `json:"created_at"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.marketSvc.SubmitOrder(service.SubmitOrderRequest{
		Side:     domain.Side(req.Side),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.marketSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.marketSvc.CancelOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "order_id must be a positive integer")
		return 0, false
	}
	return id, true
}

func buildOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:           o.OrderID,
		TraderID:          o.TraderID,
		Side:              string(o.Side),
		Price:             o.Price,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity(),
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
	}
}

// mapOrderError maps service errors to HTTP error responses.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotCancellable):
		WriteError(w, http.StatusConflict, "order_not_cancellable", err.Error())
	case errors.Is(err, domain.ErrInsufficientCash):
		WriteError(w, http.StatusConflict, "insufficient_cash", err.Error())
	case errors.Is(err, domain.ErrInsufficientHoldings):
		WriteError(w, http.StatusConflict, "insufficient_holdings", err.Error())
	case errors.Is(err, domain.ErrNoHumanTrader):
		WriteError(w, http.StatusConflict, "no_human_trader", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
