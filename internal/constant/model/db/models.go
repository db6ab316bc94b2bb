package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentState represents the payment lifecycle of an order
type PaymentState string

const (
	PaymentStateUnset      PaymentState = "unset"
	PaymentStateProcessing PaymentState = "processing"
	PaymentStateCompleted  PaymentState = "completed"
	PaymentStateFailed     PaymentState = "failed"
)

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusFulfilling OrderStatus = "fulfilling"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order represents an order entity in the database. CheckoutRequestID is a
// nullable pointer so the unique index permits any number of orders with no
// initiated payment while keeping active correlation ids unique.
type Order struct {
	ID                uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	OrderNumber       string       `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	AmountDue         float64      `gorm:"type:decimal(15,2);not null" json:"amount_due"`
	Status            OrderStatus  `gorm:"type:varchar(20);not null" json:"status"`
	PaymentState      PaymentState `gorm:"column:payment_status;type:varchar(20);not null" json:"payment_status"`
	CheckoutRequestID *string      `gorm:"column:mpesa_checkout_request_id;type:varchar(64);uniqueIndex" json:"mpesa_checkout_request_id,omitempty"`
	ReceiptNumber     *string      `gorm:"column:mpesa_receipt_number;type:varchar(32)" json:"mpesa_receipt_number,omitempty"`
	FailureNote       *string      `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate is a GORM hook that runs before updating a record
func (o *Order) BeforeUpdate(tx *gorm.DB) error {
	o.UpdatedAt = time.Now()
	return nil
}

// PaymentTerminal checks if the order payment is in a terminal state
func (o *Order) PaymentTerminal() bool {
	return o.PaymentState == PaymentStateCompleted || o.PaymentState == PaymentStateFailed
}
