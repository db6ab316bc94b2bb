package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/logger"
	"github.com/dukasoko/checkout-gateway/internal/port/input"
	"github.com/dukasoko/checkout-gateway/internal/port/output"
)

// CheckoutServiceImpl implements the CheckoutService input port
type CheckoutServiceImpl struct {
	orderRepo output.OrderRepository
	provider  output.PaymentProvider
	events    output.PaymentEvents
	log       *logger.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	orderRepo output.OrderRepository,
	provider output.PaymentProvider,
	events output.PaymentEvents,
	log *logger.Logger,
) input.CheckoutService {
	return &CheckoutServiceImpl{
		orderRepo: orderRepo,
		provider:  provider,
		events:    events,
		log:       log.With("component", "checkout"),
	}
}

// orderNumberAttempts bounds the retries on an order-number collision
const orderNumberAttempts = 3

// CreateOrder creates a new order awaiting payment
func (s *CheckoutServiceImpl) CreateOrder(ctx context.Context, req input.CreateOrderRequest) (*input.OrderResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order := &core.Order{
			ID:           uuid.New(),
			OrderNumber:  newOrderNumber(),
			AmountDue:    req.Amount,
			Status:       core.OrderStatusPending,
			PaymentState: core.PaymentStateUnset,
		}
		if err := s.orderRepo.Create(ctx, order); err != nil {
			if errors.Is(err, core.ErrOrderNumberTaken) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to create order: %w", err)
		}

		s.log.Info("order created", "order_id", order.ID.String(), "order_number", order.OrderNumber)
		return orderResponse(order), nil
	}
	return nil, fmt.Errorf("failed to create order: %w", lastErr)
}

// GetOrder retrieves an order by ID
func (s *CheckoutServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*input.OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return orderResponse(order), nil
}

// InitiatePayment starts a mobile-money debit for an order. The store is only
// touched after a positive provider acknowledgment: a transport failure or
// timeout leaves the order unset, so a crash mid-initiation can never strand
// an order in processing without a correlation id.
func (s *CheckoutServiceImpl) InitiatePayment(ctx context.Context, req input.InitiatePaymentRequest) (*input.InitiatePaymentResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	// A mismatched amount is a hard error, never silently corrected
	if !amountsMatch(req.Amount, order.AmountDue) {
		return nil, core.ErrAmountMismatch
	}
	if order.PaymentTerminal() {
		return nil, core.ErrAlreadyTerminal
	}
	if order.PaymentProcessing() {
		return nil, core.ErrPaymentInProgress
	}

	ack, err := s.provider.InitiateDebit(ctx, core.DebitRequest{
		Amount:      order.AmountDue,
		PhoneNumber: req.PhoneNumber,
		AccountRef:  order.OrderNumber,
		Description: "Payment for order " + order.OrderNumber,
	})
	if err != nil {
		s.log.Warn("debit initiation failed",
			"order_id", order.ID.String(), logger.Err(err))
		return nil, err
	}

	if err := s.orderRepo.BeginProcessing(ctx, order.ID, ack.CheckoutRequestID); err != nil {
		// A concurrent initiation won; the debit we just sent is orphaned and
		// its callback will land as not-found.
		s.log.Error("debit acknowledged but order could not enter processing",
			"order_id", order.ID.String(),
			"checkout_request_id", ack.CheckoutRequestID,
			logger.Err(err))
		return nil, err
	}

	s.log.Info("payment initiated",
		"order_id", order.ID.String(),
		"checkout_request_id", ack.CheckoutRequestID)
	return &input.InitiatePaymentResponse{
		CheckoutRequestID: ack.CheckoutRequestID,
		CustomerMessage:   ack.CustomerMessage,
	}, nil
}

// ProcessCallback applies an asynchronous provider notification. All failures
// are internal: the webhook adapter acknowledges the provider regardless.
func (s *CheckoutServiceImpl) ProcessCallback(ctx context.Context, callback core.DebitCallback) {
	outcome := core.CallbackOutcome(callback.ResultCode, callback.ResultDesc)
	if outcome.State == core.PaymentStateCompleted {
		outcome.ReceiptNumber = callback.ReceiptNumber
	}

	order, err := s.orderRepo.Finalize(ctx, callback.CheckoutRequestID, outcome)
	switch {
	case err == nil:
		s.log.Info("payment finalized via callback",
			"order_id", order.ID.String(),
			"state", string(order.PaymentState),
			"receipt", order.ReceiptNumber)
		s.publishResult(ctx, order)
	case errors.Is(err, core.ErrAlreadyTerminal):
		// Duplicate delivery or the poll won the race
		s.log.Info("callback ignored, payment already finalized",
			"checkout_request_id", callback.CheckoutRequestID)
	case errors.Is(err, core.ErrPaymentNotFound):
		s.log.Warn("callback for unknown checkout request",
			"checkout_request_id", callback.CheckoutRequestID)
	default:
		s.log.Error("failed to process callback",
			"checkout_request_id", callback.CheckoutRequestID,
			logger.Err(err))
	}
}

// QueryPaymentStatus returns the order's payment state, actively querying the
// provider only when the payment is still in flight.
func (s *CheckoutServiceImpl) QueryPaymentStatus(ctx context.Context, orderID uuid.UUID) (*input.PaymentStatusResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Terminal states are answered from the store, never from the provider
	if order.PaymentTerminal() {
		return statusResponse(order), nil
	}
	if order.CheckoutRequestID == "" {
		return nil, core.ErrNoPaymentInitiated
	}

	status, err := s.provider.QueryStatus(ctx, order.CheckoutRequestID)
	if err != nil {
		return nil, err
	}

	outcome := core.OutcomeForResultCode(status.ResultCode)
	if !outcome.Terminal() {
		msg := status.ResultDesc
		if msg == "" {
			msg = "Payment still processing"
		}
		return &input.PaymentStatusResponse{
			PaymentState: core.PaymentStateProcessing,
			Message:      msg,
		}, nil
	}

	finalized, err := s.orderRepo.Finalize(ctx, order.CheckoutRequestID, outcome)
	if err != nil {
		if errors.Is(err, core.ErrAlreadyTerminal) {
			// The callback landed between our query and the write; report the
			// state it committed
			current, readErr := s.orderRepo.GetByID(ctx, orderID)
			if readErr != nil {
				return nil, readErr
			}
			return statusResponse(current), nil
		}
		return nil, fmt.Errorf("failed to finalize polled payment: %w", err)
	}

	s.log.Info("payment finalized via poll",
		"order_id", finalized.ID.String(),
		"state", string(finalized.PaymentState))
	s.publishResult(ctx, finalized)
	return statusResponse(finalized), nil
}

// publishResult announces a terminal transition. Publish failures are logged
// only: the state is already committed and the poll path still converges.
func (s *CheckoutServiceImpl) publishResult(ctx context.Context, order *core.Order) {
	event := output.PaymentResultEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		State:         order.PaymentState,
		ReceiptNumber: order.ReceiptNumber,
		FailureNote:   order.FailureNote,
		OccurredAt:    time.Now(),
	}
	if err := s.events.PublishPaymentResult(ctx, event); err != nil {
		s.log.Error("failed to publish payment result",
			"order_id", order.ID.String(), logger.Err(err))
	}
}

func orderResponse(order *core.Order) *input.OrderResponse {
	return &input.OrderResponse{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		AmountDue:     order.AmountDue,
		Status:        order.Status,
		PaymentState:  order.PaymentState,
		ReceiptNumber: order.ReceiptNumber,
		FailureNote:   order.FailureNote,
		CreatedAt:     order.CreatedAt,
	}
}

func statusResponse(order *core.Order) *input.PaymentStatusResponse {
	resp := &input.PaymentStatusResponse{PaymentState: order.PaymentState}
	switch order.PaymentState {
	case core.PaymentStateCompleted:
		resp.Message = "Payment completed"
	case core.PaymentStateFailed:
		resp.Message = order.FailureNote
	default:
		resp.Message = "Payment still processing"
	}
	return resp
}

// amountsMatch compares money values in minor units (cents) so float64 noise
// from a JSON round-trip cannot produce a false mismatch.
func amountsMatch(a, b float64) bool {
	return math.Round(a*100) == math.Round(b*100)
}

// newOrderNumber generates a short human-readable order reference
func newOrderNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD-" + id[:8]
}
