package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeForResultCode(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		state    PaymentState
		note     string
		terminal bool
	}{
		{name: "success", code: 0, state: PaymentStateCompleted, terminal: true},
		{name: "cancelled by payer", code: 1032, state: PaymentStateFailed, note: NoteCancelledByPayer, terminal: true},
		{name: "timed out", code: 1037, state: PaymentStateFailed, note: NoteRequestTimedOut, terminal: true},
		{name: "unknown code stays processing", code: 1001, state: PaymentStateProcessing, terminal: false},
		{name: "in-flight sentinel stays processing", code: -1, state: PaymentStateProcessing, terminal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := OutcomeForResultCode(tt.code)
			assert.Equal(t, tt.state, outcome.State)
			assert.Equal(t, tt.note, outcome.FailureNote)
			assert.Equal(t, tt.terminal, outcome.Terminal())
		})
	}
}

func TestCallbackOutcome(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		outcome := CallbackOutcome(0, "The service request is processed successfully.")
		assert.Equal(t, PaymentStateCompleted, outcome.State)
		assert.Empty(t, outcome.FailureNote)
	})

	t.Run("known failure uses shared note", func(t *testing.T) {
		outcome := CallbackOutcome(1032, "Request cancelled by user")
		assert.Equal(t, PaymentStateFailed, outcome.State)
		assert.Equal(t, NoteCancelledByPayer, outcome.FailureNote)
	})

	t.Run("unknown non-zero code is terminal on the callback path", func(t *testing.T) {
		outcome := CallbackOutcome(2001, "The initiator information is invalid.")
		assert.Equal(t, PaymentStateFailed, outcome.State)
		assert.Equal(t, "Payment failed: The initiator information is invalid.", outcome.FailureNote)
		assert.True(t, outcome.Terminal())
	})
}

func TestPaymentStateTransitionsAreMonotonic(t *testing.T) {
	assert.False(t, PaymentStateUnset.IsTerminal())
	assert.False(t, PaymentStateProcessing.IsTerminal())
	assert.True(t, PaymentStateCompleted.IsTerminal())
	assert.True(t, PaymentStateFailed.IsTerminal())
}
