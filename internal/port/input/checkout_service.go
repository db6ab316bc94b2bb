package input

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/dukasoko/checkout-gateway/internal/core"
)

// CheckoutService is an input port (primary port) for checkout payment
// operations. Primary adapters (HTTP handlers) use this.
type CheckoutService interface {
	// CreateOrder creates a new order awaiting payment
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error)

	// GetOrder retrieves an order by ID
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderResponse, error)

	// InitiatePayment starts a mobile-money debit for an order
	InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResponse, error)

	// ProcessCallback applies an asynchronous provider notification. It never
	// returns an error: callback-processing failures are internal only, the
	// provider is always acknowledged.
	ProcessCallback(ctx context.Context, callback core.DebitCallback)

	// QueryPaymentStatus returns the order's payment state, actively querying
	// the provider when the payment is still in flight
	QueryPaymentStatus(ctx context.Context, orderID uuid.UUID) (*PaymentStatusResponse, error)
}

// CreateOrderRequest represents the request to create an order
type CreateOrderRequest struct {
	Amount float64
}

// OrderResponse represents the response for an order
type OrderResponse struct {
	ID            uuid.UUID
	OrderNumber   string
	AmountDue     float64
	Status        core.OrderStatus
	PaymentState  core.PaymentState
	ReceiptNumber string
	FailureNote   string
	CreatedAt     time.Time
}

// InitiatePaymentRequest represents the request to start a debit
type InitiatePaymentRequest struct {
	OrderID     uuid.UUID
	PhoneNumber string
	Amount      float64
}

// InitiatePaymentResponse acknowledges an accepted debit initiation
type InitiatePaymentResponse struct {
	CheckoutRequestID string
	CustomerMessage   string
}

// PaymentStatusResponse represents the current payment state of an order
type PaymentStatusResponse struct {
	PaymentState core.PaymentState
	Message      string
}
