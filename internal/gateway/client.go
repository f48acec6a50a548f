// Package gateway is a thin client for the payment provider's v3 REST API.
// Only the calls the settlement workflow needs are implemented.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.yookassa.ru/v3"

// Client talks to the payment provider using HTTP basic auth (shop id + secret key).
type Client struct {
	baseURL    string
	shopID     string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a gateway client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, shopID, secretKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		shopID:     shopID,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreatePayment creates a payment. With req.Capture=false the funds are only held.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest, idempotenceKey string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments", idempotenceKey, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CapturePayment captures a held payment for req.Amount, which may be lower than the hold.
func (c *Client) CapturePayment(ctx context.Context, paymentID string, req CaptureRequest, idempotenceKey string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/capture", idempotenceKey, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CancelPayment releases a held payment.
func (c *Client) CancelPayment(ctx context.Context, paymentID, idempotenceKey string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/cancel", idempotenceKey, struct{}{}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotenceKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("gateway call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: raw}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
