package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/logger"
	"github.com/dukasoko/checkout-gateway/internal/metrics"
	"github.com/dukasoko/checkout-gateway/internal/port/input"
)

// CallbackHandler is a primary adapter for the asynchronous provider webhook.
// External-protocol requirement: the provider must always receive HTTP 200
// with ResultCode 0, or it retries delivery indefinitely. Every internal
// failure is swallowed into that acknowledgment.
type CallbackHandler struct {
	service input.CheckoutService
	token   string
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewCallbackHandler creates a new callback handler. token is the shared
// secret embedded in the registered callback URL; empty disables the check.
func NewCallbackHandler(service input.CheckoutService, token string, m *metrics.Metrics, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{
		service: service,
		token:   token,
		metrics: m,
		log:     log.With("component", "callback"),
	}
}

// callbackAck is the only response the provider ever sees
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// stkCallbackEnvelope is the provider's notification wire format
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// HandleCallback processes the provider's asynchronous notification
func (h *CallbackHandler) HandleCallback(c echo.Context) error {
	ack := callbackAck{ResultCode: 0, ResultDesc: "Accepted"}

	// A payload with a bad token did not come through our registered
	// callback URL; ignore it but still acknowledge so the sender stops.
	if h.token != "" {
		got := c.QueryParam("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.metrics.CallbacksTotal.WithLabelValues("bad_token").Inc()
			h.log.Warn("callback with missing or invalid token ignored")
			return c.JSON(http.StatusOK, ack)
		}
	}

	var envelope stkCallbackEnvelope
	if err := json.NewDecoder(c.Request().Body).Decode(&envelope); err != nil {
		h.metrics.CallbacksTotal.WithLabelValues("malformed").Inc()
		h.log.Warn("malformed callback payload ignored", logger.Err(err))
		return c.JSON(http.StatusOK, ack)
	}

	stk := envelope.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		h.metrics.CallbacksTotal.WithLabelValues("malformed").Inc()
		h.log.Warn("callback without checkout request id ignored")
		return c.JSON(http.StatusOK, ack)
	}

	callback := core.DebitCallback{
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        stk.ResultCode,
		ResultDesc:        stk.ResultDesc,
	}
	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				callback.ReceiptNumber = v
			}
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				callback.Amount = v
			}
		case "PhoneNumber":
			// The provider sends this as either a string or a number
			switch v := item.Value.(type) {
			case string:
				callback.PhoneNumber = v
			case float64:
				callback.PhoneNumber = formatMsisdn(v)
			}
		}
	}

	h.service.ProcessCallback(c.Request().Context(), callback)
	h.metrics.CallbacksTotal.WithLabelValues("accepted").Inc()
	return c.JSON(http.StatusOK, ack)
}

func formatMsisdn(v float64) string {
	// MSISDNs fit in the float64 integer range
	return strconv.FormatInt(int64(v), 10)
}
