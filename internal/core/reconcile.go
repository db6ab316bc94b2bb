package core

// Daraja STK result codes with a fixed, documented meaning. Anything else is
// treated as "still processing" on the poll path.
const (
	ResultCodeSuccess   = 0
	ResultCodeCancelled = 1032
	ResultCodeTimeout   = 1037
)

// Failure notes for the known terminal result codes
const (
	NoteCancelledByPayer = "Payment cancelled by user"
	NoteRequestTimedOut  = "Payment request timed out"
)

// PaymentOutcome is the interpretation of a provider result code. A
// non-terminal outcome means "no transition": the order stays processing.
type PaymentOutcome struct {
	State         PaymentState
	ReceiptNumber string
	FailureNote   string
}

// Terminal reports whether the outcome should be written to the store
func (o PaymentOutcome) Terminal() bool {
	return o.State.IsTerminal()
}

// OutcomeForResultCode maps a status-query result code to a payment outcome.
// Both confirmation paths share this table so known codes can never be
// interpreted differently by the callback and the poll.
func OutcomeForResultCode(code int) PaymentOutcome {
	switch code {
	case ResultCodeSuccess:
		return PaymentOutcome{State: PaymentStateCompleted}
	case ResultCodeCancelled:
		return PaymentOutcome{State: PaymentStateFailed, FailureNote: NoteCancelledByPayer}
	case ResultCodeTimeout:
		return PaymentOutcome{State: PaymentStateFailed, FailureNote: NoteRequestTimedOut}
	default:
		return PaymentOutcome{State: PaymentStateProcessing}
	}
}

// CallbackOutcome maps a callback result code to a payment outcome. The
// callback is the provider's final word on a debit, so a non-zero code that
// the shared table does not recognize is still a failure, annotated with the
// provider's own description.
func CallbackOutcome(code int, desc string) PaymentOutcome {
	outcome := OutcomeForResultCode(code)
	if outcome.Terminal() {
		return outcome
	}
	return PaymentOutcome{State: PaymentStateFailed, FailureNote: "Payment failed: " + desc}
}
