package core

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState represents the payment lifecycle of an order
type PaymentState string

const (
	PaymentStateUnset      PaymentState = "unset"
	PaymentStateProcessing PaymentState = "processing"
	PaymentStateCompleted  PaymentState = "completed"
	PaymentStateFailed     PaymentState = "failed"
)

// IsTerminal reports whether the state accepts no further transitions
func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateCompleted || s == PaymentStateFailed
}

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFulfilling OrderStatus = "fulfilling"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order represents an order domain entity
type Order struct {
	ID                uuid.UUID
	OrderNumber       string
	AmountDue         float64
	Status            OrderStatus
	PaymentState      PaymentState
	CheckoutRequestID string
	ReceiptNumber     string
	FailureNote       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentTerminal checks if the order payment is in a terminal state
func (o *Order) PaymentTerminal() bool {
	return o.PaymentState.IsTerminal()
}

// PaymentProcessing checks if a debit has been initiated and is awaiting confirmation
func (o *Order) PaymentProcessing() bool {
	return o.PaymentState == PaymentStateProcessing
}

// PaymentUnset checks if no debit has been initiated yet
func (o *Order) PaymentUnset() bool {
	return o.PaymentState == PaymentStateUnset
}
