package core

// DebitRequest carries the order-derived fields for a debit initiation. The
// provider adapter derives the time-dependent fields (timestamp, password)
// itself on every attempt.
type DebitRequest struct {
	Amount      float64
	PhoneNumber string
	AccountRef  string
	Description string
}

// DebitAck is the provider's acknowledgment of an accepted debit request.
// CheckoutRequestID is the correlation id used to match the asynchronous
// confirmation back to the order.
type DebitAck struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// ProviderStatus is the result of an active status query. A "still
// processing" result code is a valid response, not an error.
type ProviderStatus struct {
	ResultCode int
	ResultDesc string
}

// DebitCallback is the parsed asynchronous provider notification
type DebitCallback struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            float64
	PhoneNumber       string
}
