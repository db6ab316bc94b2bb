package output

import (
	"context"

	"github.com/dukasoko/checkout-gateway/internal/core"
)

// PaymentProvider is an output port (secondary port) for the mobile-money
// provider. Secondary adapters (the Daraja client) implement this.
type PaymentProvider interface {
	// InitiateDebit sends a debit-initiation (STK push) request. Fails with
	// *core.ProviderUnavailableError on transport problems (outcome unknown,
	// do not persist anything) and *core.ProviderRejectedError when the
	// provider refused the request.
	InitiateDebit(ctx context.Context, req core.DebitRequest) (*core.DebitAck, error)

	// QueryStatus asks the provider for the current status of a debit. A
	// "still processing" result is a valid status, not an error.
	QueryStatus(ctx context.Context, checkoutRequestID string) (*core.ProviderStatus, error)
}
