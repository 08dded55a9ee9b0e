// checkout/payment.go

package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/norun9/harvestbasket/catalog"
)

// SessionRequest is the body sent to create a hosted payment session.
type SessionRequest struct {
	Items              []catalog.OrderItem     `json:"items"`
	Currency           string                  `json:"currency"`
	PaymentMethodTypes []string                `json:"payment_method_types"`
	CustomerEmail      string                  `json:"customer_email"`
	CustomerName       string                  `json:"customer_name"`
	CustomerPhone      string                  `json:"customer_phone"`
	ShippingAddress    catalog.ShippingAddress `json:"shipping_address"`
}

// Session is a created payment session. URL is where the customer pays.
type Session struct {
	ID  string `json:"sessionId,omitempty"`
	URL string `json:"url"`
}

// Verification is the payment provider's verdict on a session.
type Verification struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status,omitempty"`
}

// PaymentProcessor creates and verifies hosted payment sessions.
type PaymentProcessor interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	VerifyPayment(ctx context.Context, sessionID string) (*Verification, error)
}

const (
	createSessionFunction = "create_stripe_checkout"
	verifyPaymentFunction = "verify_stripe_payment"
)

// FunctionsClient calls the managed backend's payment functions.
type FunctionsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFunctionsClient builds a FunctionsClient. A nil httpClient gets a traced default.
func NewFunctionsClient(baseURL, apiKey string, httpClient *http.Client) *FunctionsClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &FunctionsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// CreateCheckoutSession invokes create_stripe_checkout.
func (c *FunctionsClient) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var out Session
	if err := c.invoke(ctx, createSessionFunction, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPayment invokes verify_stripe_payment.
func (c *FunctionsClient) VerifyPayment(ctx context.Context, sessionID string) (*Verification, error) {
	var out Verification
	body := map[string]string{"sessionId": sessionID}
	if err := c.invoke(ctx, verifyPaymentFunction, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FunctionError is a non-2xx answer from a payment function. Message carries
// the response body, which the functions use for human readable errors.
type FunctionError struct {
	Function string
	Code     int
	Message  string
}

func (e *FunctionError) Error() string {
	if e.Message == "" {
		return e.Function + ": " + http.StatusText(e.Code)
	}
	return e.Function + ": " + e.Message
}

func (c *FunctionsClient) invoke(ctx context.Context, function string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "encode %s request", function)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/v1/"+function, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "call %s", function)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &FunctionError{Function: function, Code: resp.StatusCode, Message: functionMessage(msg)}
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decode %s response", function)
}

// functionMessage prefers an {"error": "..."} payload over the raw body.
func functionMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
