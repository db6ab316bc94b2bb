package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/metrics"
	"github.com/dukasoko/checkout-gateway/internal/port/input"
)

type checkoutServiceMock struct {
	mock.Mock
}

func (m *checkoutServiceMock) CreateOrder(ctx context.Context, req input.CreateOrderRequest) (*input.OrderResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*input.OrderResponse), args.Error(1)
}

func (m *checkoutServiceMock) GetOrder(ctx context.Context, id uuid.UUID) (*input.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*input.OrderResponse), args.Error(1)
}

func (m *checkoutServiceMock) InitiatePayment(ctx context.Context, req input.InitiatePaymentRequest) (*input.InitiatePaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*input.InitiatePaymentResponse), args.Error(1)
}

func (m *checkoutServiceMock) ProcessCallback(ctx context.Context, callback core.DebitCallback) {
	m.Called(ctx, callback)
}

func (m *checkoutServiceMock) QueryPaymentStatus(ctx context.Context, orderID uuid.UUID) (*input.PaymentStatusResponse, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*input.PaymentStatusResponse), args.Error(1)
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func postJSON(handler echo.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = handler(c)
	return rec
}

func TestInitiatePayment_Accepted(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	orderID := uuid.New()
	svc.On("InitiatePayment", mock.Anything, input.InitiatePaymentRequest{
		OrderID:     orderID,
		PhoneNumber: "0712345678",
		Amount:      1000,
	}).Return(&input.InitiatePaymentResponse{
		CheckoutRequestID: "ws_CO_1",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil)

	body := `{"orderId":"` + orderID.String() + `","phoneNumber":"0712345678","amount":1000}`
	rec := postJSON(handler.InitiatePayment, "/api/v1/payments/initiate", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp InitiatePaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	svc.AssertExpectations(t)
}

func TestInitiatePayment_InvalidOrderID(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	rec := postJSON(handler.InitiatePayment, "/api/v1/payments/initiate",
		`{"orderId":"not-a-uuid","phoneNumber":"0712345678","amount":1000}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestInitiatePayment_MissingPhoneNumber(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	rec := postJSON(handler.InitiatePayment, "/api/v1/payments/initiate",
		`{"orderId":"`+uuid.NewString()+`","amount":1000}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestInitiatePayment_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "order not found",
			err:        core.ErrOrderNotFound,
			wantStatus: http.StatusNotFound,
			wantMsg:    "Order not found",
		},
		{
			name:       "amount mismatch",
			err:        core.ErrAmountMismatch,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Amount does not match order total",
		},
		{
			name:       "payment in progress",
			err:        core.ErrPaymentInProgress,
			wantStatus: http.StatusConflict,
			wantMsg:    "A payment for this order is already in progress",
		},
		{
			name:       "already finalized",
			err:        core.ErrAlreadyTerminal,
			wantStatus: http.StatusConflict,
			wantMsg:    "This order's payment is already finalized",
		},
		{
			name:       "provider rejection passes the provider message through",
			err:        &core.ProviderRejectedError{Code: "400.002.02", Message: "Bad Request - Invalid PhoneNumber"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Bad Request - Invalid PhoneNumber",
		},
		{
			name:       "provider unavailable",
			err:        &core.ProviderUnavailableError{Op: "initiate debit", Err: context.DeadlineExceeded},
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Payment provider is unavailable, please try again",
		},
		{
			name:       "auth failure",
			err:        &core.AuthError{Detail: "token endpoint returned 401"},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Payment provider is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(checkoutServiceMock)
			handler := NewCheckoutHandler(svc, testMetrics())
			svc.On("InitiatePayment", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := `{"orderId":"` + uuid.NewString() + `","phoneNumber":"0712345678","amount":1000}`
			rec := postJSON(handler.InitiatePayment, "/api/v1/payments/initiate", body)

			require.Equal(t, tt.wantStatus, rec.Code)
			var resp InitiatePaymentResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestQueryStatus_Completed(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	orderID := uuid.New()
	svc.On("QueryPaymentStatus", mock.Anything, orderID).Return(&input.PaymentStatusResponse{
		PaymentState: core.PaymentStateCompleted,
		Message:      "Payment completed",
	}, nil)

	rec := postJSON(handler.QueryStatus, "/api/v1/payments/status",
		`{"orderId":"`+orderID.String()+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PaymentStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "completed", resp.PaymentStatus)
	assert.Equal(t, "Payment completed", resp.Message)
}

func TestQueryStatus_NoPaymentInitiated(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	orderID := uuid.New()
	svc.On("QueryPaymentStatus", mock.Anything, orderID).Return(nil, core.ErrNoPaymentInitiated)

	rec := postJSON(handler.QueryStatus, "/api/v1/payments/status",
		`{"orderId":"`+orderID.String()+`"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp PaymentStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No payment initiated", resp.Message)
}

func TestQueryStatus_OrderNotFound(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	orderID := uuid.New()
	svc.On("QueryPaymentStatus", mock.Anything, orderID).Return(nil, core.ErrOrderNotFound)

	rec := postJSON(handler.QueryStatus, "/api/v1/payments/status",
		`{"orderId":"`+orderID.String()+`"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryStatus_ProviderUnavailable(t *testing.T) {
	svc := new(checkoutServiceMock)
	handler := NewCheckoutHandler(svc, testMetrics())

	orderID := uuid.New()
	svc.On("QueryPaymentStatus", mock.Anything, orderID).
		Return(nil, &core.ProviderUnavailableError{Op: "query status", Err: context.DeadlineExceeded})

	rec := postJSON(handler.QueryStatus, "/api/v1/payments/status",
		`{"orderId":"`+orderID.String()+`"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
