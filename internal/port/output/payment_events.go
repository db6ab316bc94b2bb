package output

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/dukasoko/checkout-gateway/internal/core"
)

// PaymentResultEvent announces that an order's payment reached a terminal
// state. Published exactly once per order: only by the finalize call that won
// the terminal write.
type PaymentResultEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	State         core.PaymentState `json:"state"`
	ReceiptNumber string            `json:"receipt_number,omitempty"`
	FailureNote   string            `json:"failure_note,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// PaymentEvents is an output port (secondary port) for payment messaging.
// Secondary adapters (RabbitMQ implementations) implement this.
type PaymentEvents interface {
	// PublishPaymentResult publishes a terminal payment result
	PublishPaymentResult(ctx context.Context, event PaymentResultEvent) error
	// Close closes the messaging connection
	Close() error
}
