package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/metrics"
	"github.com/dukasoko/checkout-gateway/internal/port/input"
)

// CheckoutHandler is a primary adapter (HTTP handler) for the client-facing
// payment API
type CheckoutHandler struct {
	service input.CheckoutService
	metrics *metrics.Metrics
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service input.CheckoutService, m *metrics.Metrics) *CheckoutHandler {
	return &CheckoutHandler{service: service, metrics: m}
}

// InitiatePaymentRequest represents the HTTP request to start a payment
type InitiatePaymentRequest struct {
	OrderID     string  `json:"orderId"`
	PhoneNumber string  `json:"phoneNumber"`
	Amount      float64 `json:"amount"`
}

// InitiatePaymentResponse acknowledges a payment initiation
type InitiatePaymentResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkoutRequestId,omitempty"`
	Message           string `json:"message,omitempty"`
}

// PaymentStatusRequest represents the HTTP request to poll payment status
type PaymentStatusRequest struct {
	OrderID string `json:"orderId"`
}

// PaymentStatusResponse reports the current payment state of an order
type PaymentStatusResponse struct {
	Success       bool   `json:"success"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	Message       string `json:"message,omitempty"`
}

// InitiatePayment handles debit initiation
func (h *CheckoutHandler) InitiatePayment(c echo.Context) error {
	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		h.metrics.PaymentInitiationsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, InitiatePaymentResponse{
			Success: false, Message: "Invalid request body",
		})
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		h.metrics.PaymentInitiationsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, InitiatePaymentResponse{
			Success: false, Message: "Invalid order ID",
		})
	}
	if req.PhoneNumber == "" {
		h.metrics.PaymentInitiationsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, InitiatePaymentResponse{
			Success: false, Message: "Phone number is required",
		})
	}

	resp, err := h.service.InitiatePayment(c.Request().Context(), input.InitiatePaymentRequest{
		OrderID:     orderID,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		return h.initiationError(c, err)
	}

	h.metrics.PaymentInitiationsTotal.WithLabelValues("accepted").Inc()
	message := resp.CustomerMessage
	if message == "" {
		message = "STK push sent successfully"
	}
	return c.JSON(http.StatusOK, InitiatePaymentResponse{
		Success:           true,
		CheckoutRequestID: resp.CheckoutRequestID,
		Message:           message,
	})
}

// initiationError maps the service error taxonomy onto HTTP responses. The
// transient/rejected/unknown distinction is preserved so the checkout UI can
// decide whether to retry.
func (h *CheckoutHandler) initiationError(c echo.Context, err error) error {
	var rejected *core.ProviderRejectedError
	var unavailable *core.ProviderUnavailableError
	var authErr *core.AuthError

	switch {
	case errors.Is(err, core.ErrOrderNotFound):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusNotFound, InitiatePaymentResponse{
			Success: false, Message: "Order not found",
		})
	case errors.Is(err, core.ErrAmountMismatch):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, InitiatePaymentResponse{
			Success: false, Message: "Amount does not match order total",
		})
	case errors.Is(err, core.ErrPaymentInProgress):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("conflict").Inc()
		return c.JSON(http.StatusConflict, InitiatePaymentResponse{
			Success: false, Message: "A payment for this order is already in progress",
		})
	case errors.Is(err, core.ErrAlreadyTerminal):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("conflict").Inc()
		return c.JSON(http.StatusConflict, InitiatePaymentResponse{
			Success: false, Message: "This order's payment is already finalized",
		})
	case errors.As(err, &rejected):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("rejected").Inc()
		// The provider's own message is actionable for the buyer
		return c.JSON(http.StatusBadRequest, InitiatePaymentResponse{
			Success: false, Message: rejected.Message,
		})
	case errors.As(err, &unavailable):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("unavailable").Inc()
		return c.JSON(http.StatusBadGateway, InitiatePaymentResponse{
			Success: false, Message: "Payment provider is unavailable, please try again",
		})
	case errors.As(err, &authErr):
		h.metrics.PaymentInitiationsTotal.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, InitiatePaymentResponse{
			Success: false, Message: "Payment provider is not configured",
		})
	default:
		h.metrics.PaymentInitiationsTotal.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, InitiatePaymentResponse{
			Success: false, Message: "Failed to initiate payment",
		})
	}
}

// QueryStatus handles the client-driven status poll
func (h *CheckoutHandler) QueryStatus(c echo.Context) error {
	var req PaymentStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, PaymentStatusResponse{
			Success: false, Message: "Invalid request body",
		})
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, PaymentStatusResponse{
			Success: false, Message: "Invalid order ID",
		})
	}

	resp, err := h.service.QueryPaymentStatus(c.Request().Context(), orderID)
	if err != nil {
		var unavailable *core.ProviderUnavailableError
		switch {
		case errors.Is(err, core.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, PaymentStatusResponse{
				Success: false, Message: "Order not found",
			})
		case errors.Is(err, core.ErrNoPaymentInitiated):
			return c.JSON(http.StatusBadRequest, PaymentStatusResponse{
				Success: false, Message: "No payment initiated",
			})
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusBadGateway, PaymentStatusResponse{
				Success: false, Message: "Payment provider is unavailable, please try again",
			})
		default:
			return c.JSON(http.StatusInternalServerError, PaymentStatusResponse{
				Success: false, Message: "Failed to query payment status",
			})
		}
	}

	h.metrics.StatusPollsTotal.WithLabelValues(string(resp.PaymentState)).Inc()
	return c.JSON(http.StatusOK, PaymentStatusResponse{
		Success:       true,
		PaymentStatus: string(resp.PaymentState),
		Message:       resp.Message,
	})
}
