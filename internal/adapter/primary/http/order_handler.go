package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/port/input"
)

// OrderHandler is a primary adapter (HTTP handler) for order operations
type OrderHandler struct {
	service input.CheckoutService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service input.CheckoutService) *OrderHandler {
	return &OrderHandler{service: service}
}

// CreateOrderRequest represents the HTTP request to create an order
type CreateOrderRequest struct {
	Amount float64 `json:"amount"`
}

// OrderResponse represents the HTTP response for an order
type OrderResponse struct {
	ID            string  `json:"id"`
	OrderNumber   string  `json:"orderNumber"`
	AmountDue     float64 `json:"amountDue"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"paymentStatus"`
	ReceiptNumber string  `json:"receiptNumber,omitempty"`
	FailureNote   string  `json:"failureNote,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

func toOrderResponse(resp *input.OrderResponse) OrderResponse {
	return OrderResponse{
		ID:            resp.ID.String(),
		OrderNumber:   resp.OrderNumber,
		AmountDue:     resp.AmountDue,
		Status:        string(resp.Status),
		PaymentStatus: string(resp.PaymentState),
		ReceiptNumber: resp.ReceiptNumber,
		FailureNote:   resp.FailureNote,
		CreatedAt:     resp.CreatedAt.Format(time.RFC3339),
	}
}

// CreateOrder handles order creation
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "amount must be greater than zero",
		})
	}

	resp, err := h.service.CreateOrder(c.Request().Context(), input.CreateOrderRequest{
		Amount: req.Amount,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create order",
		})
	}

	return c.JSON(http.StatusCreated, toOrderResponse(resp))
}

// GetOrder handles order retrieval by ID
func (h *OrderHandler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid order ID",
		})
	}

	resp, err := h.service.GetOrder(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "Order not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to retrieve order",
		})
	}

	return c.JSON(http.StatusOK, toOrderResponse(resp))
}
