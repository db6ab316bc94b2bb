package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/dukasoko/checkout-gateway/internal/constant/model/db"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/port/output"
	"gorm.io/gorm"
)

// GormOrderRepository is a secondary adapter that implements the
// OrderRepository output port. The payment-state transitions are single
// conditional UPDATE statements: the WHERE clause carries the expected
// current state, so two concurrent callers can never both succeed.
type GormOrderRepository struct {
	gormDB *gorm.DB
}

// NewGormOrderRepository creates a new GORM order repository
func NewGormOrderRepository(gormDB *gorm.DB) output.OrderRepository {
	return &GormOrderRepository{gormDB: gormDB}
}

// toCore converts db.Order to core.Order
func toCore(o *db.Order) *core.Order {
	order := &core.Order{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		AmountDue:    o.AmountDue,
		Status:       core.OrderStatus(o.Status),
		PaymentState: core.PaymentState(o.PaymentState),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.CheckoutRequestID != nil {
		order.CheckoutRequestID = *o.CheckoutRequestID
	}
	if o.ReceiptNumber != nil {
		order.ReceiptNumber = *o.ReceiptNumber
	}
	if o.FailureNote != nil {
		order.FailureNote = *o.FailureNote
	}
	return order
}

// fromCore converts core.Order to db.Order
func fromCore(o *core.Order) *db.Order {
	dbOrder := &db.Order{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		AmountDue:    o.AmountDue,
		Status:       db.OrderStatus(o.Status),
		PaymentState: db.PaymentState(o.PaymentState),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.CheckoutRequestID != "" {
		dbOrder.CheckoutRequestID = &o.CheckoutRequestID
	}
	if o.ReceiptNumber != "" {
		dbOrder.ReceiptNumber = &o.ReceiptNumber
	}
	if o.FailureNote != "" {
		dbOrder.FailureNote = &o.FailureNote
	}
	return dbOrder
}

// Create creates a new order
func (r *GormOrderRepository) Create(ctx context.Context, order *core.Order) error {
	dbOrder := fromCore(order)
	if err := r.gormDB.WithContext(ctx).Create(dbOrder).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return core.ErrOrderNumberTaken
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	// Update core entity with values set by GORM hooks
	order.ID = dbOrder.ID
	order.CreatedAt = dbOrder.CreatedAt
	order.UpdatedAt = dbOrder.UpdatedAt
	return nil
}

// GetByID retrieves an order by its ID
func (r *GormOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*core.Order, error) {
	var dbOrder db.Order
	if err := r.gormDB.WithContext(ctx).Where("id = ?", id).First(&dbOrder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toCore(&dbOrder), nil
}

// BeginProcessing transitions unset->processing and records the checkout
// request id. The transition and the state check are one UPDATE statement.
func (r *GormOrderRepository) BeginProcessing(ctx context.Context, orderID uuid.UUID, checkoutRequestID string) error {
	res := r.gormDB.WithContext(ctx).Model(&db.Order{}).
		Where("id = ? AND payment_status = ?", orderID, db.PaymentStateUnset).
		Updates(map[string]interface{}{
			"payment_status":            db.PaymentStateProcessing,
			"mpesa_checkout_request_id": checkoutRequestID,
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to begin processing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var dbOrder db.Order
		if err := r.gormDB.WithContext(ctx).Where("id = ?", orderID).First(&dbOrder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrOrderNotFound
			}
			return fmt.Errorf("failed to classify begin-processing conflict: %w", err)
		}
		return core.ErrPaymentInProgress
	}
	return nil
}

// Finalize writes a terminal payment outcome for the order matching the
// checkout request id, only if it is currently processing. The losing side
// of a callback/poll race observes core.ErrAlreadyTerminal here.
func (r *GormOrderRepository) Finalize(ctx context.Context, checkoutRequestID string, outcome core.PaymentOutcome) (*core.Order, error) {
	if !outcome.Terminal() {
		return nil, fmt.Errorf("finalize called with non-terminal outcome %q", outcome.State)
	}

	updates := map[string]interface{}{
		"payment_status": db.PaymentState(outcome.State),
		"updated_at":     time.Now(),
	}
	switch outcome.State {
	case core.PaymentStateCompleted:
		updates["status"] = db.OrderStatusPaid
		if outcome.ReceiptNumber != "" {
			updates["mpesa_receipt_number"] = outcome.ReceiptNumber
		}
	case core.PaymentStateFailed:
		updates["notes"] = outcome.FailureNote
	}

	res := r.gormDB.WithContext(ctx).Model(&db.Order{}).
		Where("mpesa_checkout_request_id = ? AND payment_status = ?", checkoutRequestID, db.PaymentStateProcessing).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to finalize payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var dbOrder db.Order
		err := r.gormDB.WithContext(ctx).
			Where("mpesa_checkout_request_id = ?", checkoutRequestID).
			First(&dbOrder).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, core.ErrPaymentNotFound
			}
			return nil, fmt.Errorf("failed to classify finalize conflict: %w", err)
		}
		// A correlation id is only ever stored together with the processing
		// state, so the row must already be terminal.
		return nil, core.ErrAlreadyTerminal
	}

	var dbOrder db.Order
	if err := r.gormDB.WithContext(ctx).
		Where("mpesa_checkout_request_id = ?", checkoutRequestID).
		First(&dbOrder).Error; err != nil {
		return nil, fmt.Errorf("failed to reload finalized order: %w", err)
	}
	return toCore(&dbOrder), nil
}

// UpdateStatus advances the fulfillment status conditional on the current one
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to core.OrderStatus) error {
	res := r.gormDB.WithContext(ctx).Model(&db.Order{}).
		Where("id = ? AND status = ?", orderID, db.OrderStatus(from)).
		Updates(map[string]interface{}{
			"status":     db.OrderStatus(to),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var dbOrder db.Order
		if err := r.gormDB.WithContext(ctx).Where("id = ?", orderID).First(&dbOrder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrOrderNotFound
			}
			return fmt.Errorf("failed to classify status conflict: %w", err)
		}
		return core.ErrStatusConflict
	}
	return nil
}
