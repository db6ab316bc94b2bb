package service

import (
	"context"
	"fmt"

	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/logger"
	"github.com/dukasoko/checkout-gateway/internal/port/output"
)

// FulfillmentProcessor advances an order's fulfillment status in response to
// terminal payment results. Runs in the worker, consuming the payments queue.
type FulfillmentProcessor struct {
	orderRepo output.OrderRepository
	log       *logger.Logger
}

// NewFulfillmentProcessor creates a new fulfillment processor
func NewFulfillmentProcessor(orderRepo output.OrderRepository, log *logger.Logger) *FulfillmentProcessor {
	return &FulfillmentProcessor{
		orderRepo: orderRepo,
		log:       log.With("component", "fulfillment"),
	}
}

// ProcessPaymentResult reacts to one payment-result event. Idempotent: the
// status update is conditional on the current status, so a redelivered event
// returns core.ErrStatusConflict and the consumer drops it.
func (p *FulfillmentProcessor) ProcessPaymentResult(event output.PaymentResultEvent) error {
	ctx := context.Background()

	switch event.State {
	case core.PaymentStateCompleted:
		if err := p.orderRepo.UpdateStatus(ctx, event.OrderID, core.OrderStatusPaid, core.OrderStatusFulfilling); err != nil {
			return fmt.Errorf("failed to start fulfillment: %w", err)
		}
		p.log.Info("order fulfillment started",
			"order_id", event.OrderID.String(),
			"receipt", event.ReceiptNumber)
		return nil

	case core.PaymentStateFailed:
		if err := p.orderRepo.UpdateStatus(ctx, event.OrderID, core.OrderStatusPending, core.OrderStatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		p.log.Info("order cancelled after failed payment",
			"order_id", event.OrderID.String(),
			"note", event.FailureNote)
		return nil

	default:
		// Non-terminal states are never published
		p.log.Warn("ignoring event with non-terminal state",
			"order_id", event.OrderID.String(),
			"state", string(event.State))
		return nil
	}
}
