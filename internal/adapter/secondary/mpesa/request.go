package mpesa

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// transactionType is fixed for STK push against a paybill shortcode
	transactionType = "CustomerPayBillOnline"

	// accountRefMaxLen is the provider's bound on AccountReference
	accountRefMaxLen = 12

	timestampLayout = "20060102150405"
)

// Config holds the Daraja credentials and endpoints
type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	Shortcode       string
	CallbackBaseURL string
	CallbackSecret  string
	Timeout         time.Duration
}

// Validate checks that all required credentials are present
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("mpesa: base URL is required")
	case c.ConsumerKey == "" || c.ConsumerSecret == "":
		return fmt.Errorf("mpesa: consumer key and secret are required")
	case c.Passkey == "":
		return fmt.Errorf("mpesa: passkey is required")
	case c.Shortcode == "":
		return fmt.Errorf("mpesa: shortcode is required")
	case c.CallbackBaseURL == "":
		return fmt.Errorf("mpesa: callback base URL is required")
	}
	return nil
}

// CallbackURL is where the provider delivers the asynchronous result. The
// secret token lets the webhook handler reject payloads that did not come
// through this URL.
func (c Config) CallbackURL() string {
	url := strings.TrimSuffix(c.CallbackBaseURL, "/") + "/api/v1/payments/callback"
	if c.CallbackSecret != "" {
		url += "?token=" + c.CallbackSecret
	}
	return url
}

// Timestamp formats a time the way Daraja expects (YYYYMMDDHHmmss)
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Password derives the request password: base64(shortcode + passkey + timestamp).
// The provider rejects stale timestamps, so this pair must be regenerated for
// every request and never cached across attempts.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// NormalizePhone converts a Kenyan MSISDN to the international 2547XXXXXXXX /
// 2541XXXXXXXX form the provider requires. Accepts "07...", "01...", "+254..."
// and "254..." inputs.
func NormalizePhone(msisdn string) (string, error) {
	s := strings.TrimSpace(msisdn)
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")

	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number contains non-digit characters")
		}
	}

	switch {
	case len(s) == 12 && strings.HasPrefix(s, "254"):
		return s, nil
	case len(s) == 10 && (strings.HasPrefix(s, "07") || strings.HasPrefix(s, "01")):
		return "254" + s[1:], nil
	case len(s) == 9 && (strings.HasPrefix(s, "7") || strings.HasPrefix(s, "1")):
		return "254" + s, nil
	}
	return "", fmt.Errorf("phone number must be a Kenyan MSISDN")
}

// AccountRef derives the provider account reference from the order number,
// truncated to the provider's length bound.
func AccountRef(orderNumber string) string {
	ref := strings.TrimSpace(orderNumber)
	if len(ref) > accountRefMaxLen {
		ref = ref[:accountRefMaxLen]
	}
	return ref
}

// stkPushRequest is the Daraja debit-initiation payload
type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// stkQueryRequest is the Daraja status-query payload
type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// buildSTKPush derives the full provider payload from the order-level request,
// configuration and the current time. Pure: no I/O, no shared state.
func buildSTKPush(cfg Config, amount float64, phone, accountRef, description string, now time.Time) (stkPushRequest, error) {
	msisdn, err := NormalizePhone(phone)
	if err != nil {
		return stkPushRequest{}, err
	}
	ref := AccountRef(accountRef)
	if ref == "" {
		return stkPushRequest{}, fmt.Errorf("account reference is required")
	}
	if amount <= 0 {
		return stkPushRequest{}, fmt.Errorf("amount must be greater than zero")
	}
	if description == "" {
		description = "Payment for order " + ref
	}

	ts := Timestamp(now)
	return stkPushRequest{
		BusinessShortCode: cfg.Shortcode,
		Password:          Password(cfg.Shortcode, cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            int(amount + 0.5),
		PartyA:            msisdn,
		PartyB:            cfg.Shortcode,
		PhoneNumber:       msisdn,
		CallBackURL:       cfg.CallbackURL(),
		AccountReference:  ref,
		TransactionDesc:   description,
	}, nil
}

// buildSTKQuery derives the status-query payload, regenerating the
// timestamp/password pair like every other request.
func buildSTKQuery(cfg Config, checkoutRequestID string, now time.Time) stkQueryRequest {
	ts := Timestamp(now)
	return stkQueryRequest{
		BusinessShortCode: cfg.Shortcode,
		Password:          Password(cfg.Shortcode, cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}
}
