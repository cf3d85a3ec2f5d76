// Package razorpay is a minimal REST client for the parts of the Razorpay API
// the booking flow needs: order creation, payment lookup, and signature
// verification for both client confirmations and webhooks.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/paveldemidov/flightbook/config"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.RazorpayConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) KeyID() string {
	return c.keyID
}

type Order struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes"`
	CreatedAt  int64             `json:"created_at"`
}

type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorDescription string `json:"error_description"`
}

// APIError carries the gateway's own error code and description.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %s (%d): %s", e.Code, e.StatusCode, e.Description)
}

// CreateOrder registers a payment order for the given amount in minor units
// (paise for INR).
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*Order, error) {
	body := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes": map[string]string{
			"order_type": "flight_booking",
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment reads the current gateway-side state of a payment.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	// Retry only transport-level and 5xx failures; gateway rejections are final.
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.keyID, c.keySecret)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("razorpay: server error %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var envelope struct {
				Error *APIError `json:"error"`
			}
			if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
				apiErr.Code = envelope.Error.Code
				apiErr.Description = envelope.Error.Description
			}
			return backoff.Permanent(apiErr)
		}

		return json.Unmarshal(data, out)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, policy)
}
