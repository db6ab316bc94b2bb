package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/dukasoko/checkout-gateway/internal/core"
	"github.com/dukasoko/checkout-gateway/internal/logger"
	"github.com/dukasoko/checkout-gateway/internal/port/output"
)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// tokenSafetyMargin is subtracted from the provider-reported expiry so a
	// token is never used right at its boundary
	tokenSafetyMargin = 2 * time.Minute

	defaultTokenTTL = 3599 * time.Second
	defaultTimeout  = 30 * time.Second

	// inFlightErrorCode is returned by the query endpoint while the payer has
	// not yet responded to the prompt. Valid result, not a failure.
	inFlightErrorCode = "500.001.1001"

	// resultCodeStillProcessing is a synthetic code outside the provider's
	// terminal set; the shared mapping table treats it as "no transition"
	resultCodeStillProcessing = -1
)

// Client is a secondary adapter that implements the PaymentProvider output
// port against the Daraja API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*apiResponse]
	log        *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// apiResponse carries the raw HTTP result through the circuit breaker. Only
// transport failures count against the breaker; provider-level rejections are
// classified by the caller.
type apiResponse struct {
	status int
	body   []byte
}

// NewClient creates a new Daraja client (returns the port interface)
func NewClient(cfg Config, log *logger.Logger) output.PaymentProvider {
	return NewClientConcrete(cfg, log)
}

// NewClientConcrete creates a new Daraja client
func NewClientConcrete(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	breaker := gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:    "daraja",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		log:        log.With("component", "mpesa"),
	}
}

// accessToken returns a cached token, fetching a fresh one when the cached
// value is missing or within the safety margin of its expiry. The lock covers
// only the cache check and the store: concurrent cache misses may fetch
// duplicate tokens, all of which are valid, and the last write wins.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	token, expiry, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.tokenExpiry = expiry
	c.mu.Unlock()
	return token, nil
}

// fetchToken requests a fresh OAuth token from the provider
func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, &core.ProviderUnavailableError{Op: "authenticate", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, &core.ProviderUnavailableError{Op: "authenticate", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, &core.AuthError{Detail: fmt.Sprintf("token endpoint returned %d", resp.StatusCode)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", time.Time{}, &core.AuthError{Detail: "token response is not valid JSON"}
	}
	if tokenResp.AccessToken == "" {
		return "", time.Time{}, &core.AuthError{Detail: "token response has no access_token"}
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.Atoi(tokenResp.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	c.log.Debug("fetched provider access token", "expires_in", ttl.String())
	return tokenResp.AccessToken, time.Now().Add(ttl - tokenSafetyMargin), nil
}

// post sends an authenticated JSON request through the circuit breaker
func (c *Client) post(ctx context.Context, op, path, token string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}

	result, err := c.breaker.Execute(func() (*apiResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &apiResponse{status: resp.StatusCode, body: respBody}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.Warn("provider circuit open", "op", op)
		}
		return nil, &core.ProviderUnavailableError{Op: op, Err: err}
	}
	return result, nil
}

// stkPushResponse covers both the success and the error shapes Daraja uses
type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateDebit sends an STK push. The timestamp/password pair is derived
// fresh inside buildSTKPush on every attempt.
func (c *Client) InitiateDebit(ctx context.Context, req core.DebitRequest) (*core.DebitAck, error) {
	payload, err := buildSTKPush(c.cfg, req.Amount, req.PhoneNumber, req.AccountRef, req.Description, time.Now())
	if err != nil {
		return nil, &core.ProviderRejectedError{Code: "INVALID_REQUEST", Message: err.Error()}
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "initiate debit", stkPushPath, token, payload)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return nil, &core.AuthError{Detail: fmt.Sprintf("debit initiation returned %d", resp.status)}
	}

	var out stkPushResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &core.ProviderUnavailableError{Op: "initiate debit", Err: fmt.Errorf("unparseable response (status %d)", resp.status)}
	}

	if out.ResponseCode == "0" && out.CheckoutRequestID != "" {
		c.log.Info("debit initiation accepted",
			"checkout_request_id", out.CheckoutRequestID,
			"merchant_request_id", out.MerchantRequestID)
		return &core.DebitAck{
			CheckoutRequestID: out.CheckoutRequestID,
			MerchantRequestID: out.MerchantRequestID,
			CustomerMessage:   out.CustomerMessage,
		}, nil
	}

	if resp.status >= 500 && out.ErrorCode == "" {
		return nil, &core.ProviderUnavailableError{Op: "initiate debit", Err: fmt.Errorf("provider returned %d", resp.status)}
	}

	code := out.ErrorCode
	if code == "" {
		code = out.ResponseCode
	}
	message := out.ErrorMessage
	if message == "" {
		message = out.ResponseDescription
	}
	if message == "" {
		message = "STK push failed"
	}
	return nil, &core.ProviderRejectedError{Code: code, Message: message}
}

// stkQueryResponse covers both the result and the error shapes of the query
// endpoint
type stkQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// QueryStatus asks the provider for the current result of a debit. A payer
// who has not yet responded yields a valid "still processing" status.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*core.ProviderStatus, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := buildSTKQuery(c.cfg, checkoutRequestID, time.Now())
	resp, err := c.post(ctx, "query status", stkQueryPath, token, payload)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return nil, &core.AuthError{Detail: fmt.Sprintf("status query returned %d", resp.status)}
	}

	var out stkQueryResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &core.ProviderUnavailableError{Op: "query status", Err: fmt.Errorf("unparseable response (status %d)", resp.status)}
	}

	if out.ResultCode != "" {
		code, err := strconv.Atoi(out.ResultCode)
		if err != nil {
			return nil, &core.ProviderUnavailableError{Op: "query status", Err: fmt.Errorf("non-numeric result code %q", out.ResultCode)}
		}
		return &core.ProviderStatus{ResultCode: code, ResultDesc: out.ResultDesc}, nil
	}

	// The query endpoint reports an in-flight prompt as an error payload
	if out.ErrorCode == inFlightErrorCode {
		return &core.ProviderStatus{ResultCode: resultCodeStillProcessing, ResultDesc: out.ErrorMessage}, nil
	}

	return nil, &core.ProviderUnavailableError{Op: "query status", Err: fmt.Errorf("provider returned %d: %s", resp.status, out.ErrorMessage)}
}
