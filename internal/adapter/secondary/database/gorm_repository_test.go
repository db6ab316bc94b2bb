package database

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/dukasoko/checkout-gateway/internal/constant/model/db"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/port/output"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestRepo opens an in-memory database capped at one connection so every
// statement, including concurrent ones, runs against the same store.
func newTestRepo(t *testing.T) output.OrderRepository {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(&db.Order{}))
	return NewGormOrderRepository(gormDB)
}

func seedOrder(t *testing.T, repo output.OrderRepository) *core.Order {
	t.Helper()
	order := &core.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD-" + uuid.NewString()[:8],
		AmountDue:    1000,
		Status:       core.OrderStatusPending,
		PaymentState: core.PaymentStateUnset,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func seedProcessingOrder(t *testing.T, repo output.OrderRepository, checkoutRequestID string) *core.Order {
	t.Helper()
	order := seedOrder(t, repo)
	require.NoError(t, repo.BeginProcessing(context.Background(), order.ID, checkoutRequestID))
	return order
}

func TestCreate_DuplicateOrderNumber(t *testing.T) {
	repo := newTestRepo(t)
	first := seedOrder(t, repo)

	dup := &core.Order{
		ID:           uuid.New(),
		OrderNumber:  first.OrderNumber,
		AmountDue:    500,
		Status:       core.OrderStatusPending,
		PaymentState: core.PaymentStateUnset,
	}
	err := repo.Create(context.Background(), dup)

	assert.ErrorIs(t, err, core.ErrOrderNumberTaken)
}

func TestGetByID_UnknownOrder(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, core.ErrOrderNotFound)
}

func TestBeginProcessing_TransitionsUnsetOrder(t *testing.T) {
	repo := newTestRepo(t)
	order := seedOrder(t, repo)

	err := repo.BeginProcessing(context.Background(), order.ID, "ws_CO_1")
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStateProcessing, stored.PaymentState)
	assert.Equal(t, "ws_CO_1", stored.CheckoutRequestID)
}

func TestBeginProcessing_SecondAttemptConflicts(t *testing.T) {
	repo := newTestRepo(t)
	order := seedProcessingOrder(t, repo, "ws_CO_1")

	err := repo.BeginProcessing(context.Background(), order.ID, "ws_CO_2")
	assert.ErrorIs(t, err, core.ErrPaymentInProgress)

	// The correlation id from the first initiation survives
	stored, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", stored.CheckoutRequestID)
}

func TestBeginProcessing_UnknownOrder(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.BeginProcessing(context.Background(), uuid.New(), "ws_CO_1")

	assert.ErrorIs(t, err, core.ErrOrderNotFound)
}

func TestFinalize_CompletesProcessingOrder(t *testing.T) {
	repo := newTestRepo(t)
	order := seedProcessingOrder(t, repo, "ws_CO_1")

	finalized, err := repo.Finalize(context.Background(), "ws_CO_1", core.PaymentOutcome{
		State:         core.PaymentStateCompleted,
		ReceiptNumber: "NLJ7RT61SV",
	})

	require.NoError(t, err)
	assert.Equal(t, order.ID, finalized.ID)
	assert.Equal(t, core.PaymentStateCompleted, finalized.PaymentState)
	assert.Equal(t, core.OrderStatusPaid, finalized.Status)
	assert.Equal(t, "NLJ7RT61SV", finalized.ReceiptNumber)
}

func TestFinalize_RecordsFailureNote(t *testing.T) {
	repo := newTestRepo(t)
	seedProcessingOrder(t, repo, "ws_CO_1")

	finalized, err := repo.Finalize(context.Background(), "ws_CO_1", core.PaymentOutcome{
		State:       core.PaymentStateFailed,
		FailureNote: core.NoteCancelledByPayer,
	})

	require.NoError(t, err)
	assert.Equal(t, core.PaymentStateFailed, finalized.PaymentState)
	assert.Equal(t, core.NoteCancelledByPayer, finalized.FailureNote)
	// A failed payment never advances fulfillment
	assert.Equal(t, core.OrderStatusPending, finalized.Status)
}

func TestFinalize_DuplicateIsAlreadyTerminalWithoutMutation(t *testing.T) {
	repo := newTestRepo(t)
	order := seedProcessingOrder(t, repo, "ws_CO_1")

	_, err := repo.Finalize(context.Background(), "ws_CO_1", core.PaymentOutcome{
		State:         core.PaymentStateCompleted,
		ReceiptNumber: "NLJ7RT61SV",
	})
	require.NoError(t, err)

	_, err = repo.Finalize(context.Background(), "ws_CO_1", core.PaymentOutcome{
		State:       core.PaymentStateFailed,
		FailureNote: core.NoteRequestTimedOut,
	})
	assert.ErrorIs(t, err, core.ErrAlreadyTerminal)

	stored, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentStateCompleted, stored.PaymentState)
	assert.Equal(t, "NLJ7RT61SV", stored.ReceiptNumber)
	assert.Empty(t, stored.FailureNote)
}

func TestFinalize_UnknownCorrelationID(t *testing.T) {
	repo := newTestRepo(t)
	seedProcessingOrder(t, repo, "ws_CO_1")

	_, err := repo.Finalize(context.Background(), "ws_CO_other", core.PaymentOutcome{
		State: core.PaymentStateCompleted,
	})

	assert.ErrorIs(t, err, core.ErrPaymentNotFound)
}

func TestFinalize_RejectsNonTerminalOutcome(t *testing.T) {
	repo := newTestRepo(t)
	seedProcessingOrder(t, repo, "ws_CO_1")

	_, err := repo.Finalize(context.Background(), "ws_CO_1", core.PaymentOutcome{
		State: core.PaymentStateProcessing,
	})

	assert.Error(t, err)
}

func TestFinalize_ConcurrentConflictingOutcomesExactlyOneWins(t *testing.T) {
	repo := newTestRepo(t)
	order := seedProcessingOrder(t, repo, "ws_CO_1")

	outcomes := []core.PaymentOutcome{
		{State: core.PaymentStateCompleted, ReceiptNumber: "NLJ7RT61SV"},
		{State: core.PaymentStateFailed, FailureNote: core.NoteRequestTimedOut},
	}

	errs := make([]error, len(outcomes))
	var wg sync.WaitGroup
	for i, outcome := range outcomes {
		wg.Add(1)
		go func(i int, outcome core.PaymentOutcome) {
			defer wg.Done()
			_, errs[i] = repo.Finalize(context.Background(), "ws_CO_1", outcome)
		}(i, outcome)
	}
	wg.Wait()

	var winner int
	switch {
	case errs[0] == nil:
		winner = 0
		assert.ErrorIs(t, errs[1], core.ErrAlreadyTerminal)
	case errs[1] == nil:
		winner = 1
		assert.ErrorIs(t, errs[0], core.ErrAlreadyTerminal)
	default:
		t.Fatalf("no caller won the finalize race: %v / %v", errs[0], errs[1])
	}

	stored, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, outcomes[winner].State, stored.PaymentState)
	assert.Equal(t, outcomes[winner].ReceiptNumber, stored.ReceiptNumber)
	assert.Equal(t, outcomes[winner].FailureNote, stored.FailureNote)
}

func TestUpdateStatus_AdvancesMatchingOrder(t *testing.T) {
	repo := newTestRepo(t)
	order := seedOrder(t, repo)

	err := repo.UpdateStatus(context.Background(), order.ID, core.OrderStatusPending, core.OrderStatusCancelled)
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OrderStatusCancelled, stored.Status)
}

func TestUpdateStatus_ConflictOnUnexpectedStatus(t *testing.T) {
	repo := newTestRepo(t)
	order := seedOrder(t, repo)

	err := repo.UpdateStatus(context.Background(), order.ID, core.OrderStatusPaid, core.OrderStatusFulfilling)

	assert.ErrorIs(t, err, core.ErrStatusConflict)
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateStatus(context.Background(), uuid.New(), core.OrderStatusPending, core.OrderStatusCancelled)

	assert.ErrorIs(t, err, core.ErrOrderNotFound)
}
