package output

import (
	"context"

	"github.com/google/uuid"
	"github.com/dukasoko/checkout-gateway/internal/core"
)

// OrderRepository is an output port (secondary port) for the order payment
// state store. Secondary adapters (database implementations) implement this.
//
// BeginProcessing and Finalize are the only writes to the payment columns and
// both must be atomic conditional updates at the storage layer, never a
// read-modify-write in the application.
type OrderRepository interface {
	// Create creates a new order
	Create(ctx context.Context, order *core.Order) error

	// GetByID retrieves an order by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*core.Order, error)

	// BeginProcessing transitions unset->processing and records the checkout
	// request id in a single conditional write. Returns
	// core.ErrPaymentInProgress if the order is already past unset, and
	// core.ErrOrderNotFound if no order matches.
	BeginProcessing(ctx context.Context, orderID uuid.UUID, checkoutRequestID string) error

	// Finalize looks up the order by checkout request id and writes the
	// terminal outcome only if the current state is processing. Returns
	// core.ErrAlreadyTerminal without mutating when another caller won the
	// race, and core.ErrPaymentNotFound when no order matches. On success
	// returns the order as finalized.
	Finalize(ctx context.Context, checkoutRequestID string, outcome core.PaymentOutcome) (*core.Order, error)

	// UpdateStatus advances the fulfillment status, conditional on the
	// current status. Returns core.ErrStatusConflict when the order is not
	// in the expected status and core.ErrOrderNotFound when no order matches.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to core.OrderStatus) error
}
