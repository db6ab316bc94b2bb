package core

import (
	"errors"
	"fmt"
)

// Store-level errors. All are non-fatal to callers: handlers translate them
// into the current true state of the order rather than a hard failure.
var (
	// ErrOrderNotFound means no order exists for the given id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentNotFound means no order matches the checkout request id
	// (stale, replayed or forged notification).
	ErrPaymentNotFound = errors.New("no order matches checkout request")

	// ErrAlreadyTerminal means the payment was finalized by an earlier
	// callback or poll; the losing caller must not mutate anything.
	ErrAlreadyTerminal = errors.New("payment already finalized")

	// ErrPaymentInProgress means a debit was already initiated for the order.
	ErrPaymentInProgress = errors.New("payment already in progress")

	// ErrAmountMismatch means the initiation amount does not equal the
	// order's amount due.
	ErrAmountMismatch = errors.New("amount does not match order total")

	// ErrNoPaymentInitiated means a status poll was requested for an order
	// with no checkout request id.
	ErrNoPaymentInitiated = errors.New("no payment initiated for order")

	// ErrStatusConflict means a fulfillment status update found the order in
	// a different status than expected (typically a duplicate event).
	ErrStatusConflict = errors.New("order not in expected status")

	// ErrOrderNumberTaken means the generated order number collided with an
	// existing one; callers retry with a fresh number.
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// AuthError indicates the provider rejected our credentials. This is a
// configuration problem, fatal to the request.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider authentication failed: %s", e.Detail)
}

// ProviderUnavailableError indicates a transport-level failure talking to the
// provider: network error, timeout, non-2xx, or an open circuit. The outcome
// of the underlying request is unknown; callers may retry at their layer.
type ProviderUnavailableError struct {
	Op  string
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable during %s: %v", e.Op, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// ProviderRejectedError indicates the provider processed the request and
// refused it (e.g. invalid phone number). The message is safe to surface to
// the buyer verbatim.
type ProviderRejectedError struct {
	Code    string
	Message string
}

func (e *ProviderRejectedError) Error() string {
	return fmt.Sprintf("provider rejected request (code %s): %s", e.Code, e.Message)
}
