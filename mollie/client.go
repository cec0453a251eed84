package mollie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrProviderUnavailable marks a fetch that failed for transport or
// server-side reasons. The webhook handler surfaces it as a 5xx so the
// provider redelivers; it must never be conflated with "payment not found".
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// PaymentFetcher fetches the authoritative state of a payment.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type Client struct {
	cfg        *Config
	httpClient *http.Client
}

func NewClient(cfg *Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetPayment fetches /payments/{id} with bearer auth. Transport errors are
// retried once with a short constant backoff; HTTP-level failures are not,
// the provider's own webhook redelivery covers those.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is empty")
	}

	var payment *Payment
	operation := func() error {
		p, err := c.fetch(ctx, paymentID)
		if err != nil {
			return err
		}
		payment = p
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return payment, nil
}

func (c *Client) fetch(ctx context.Context, paymentID string) (*Payment, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", c.cfg.APIBaseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build payment request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// transport failure, retryable
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, backoff.Permanent(
			fmt.Errorf("%w: payment %s returned status %d", ErrProviderUnavailable, paymentID, resp.StatusCode))
	}

	payment := &Payment{}
	if err := json.NewDecoder(resp.Body).Decode(payment); err != nil {
		return nil, backoff.Permanent(
			fmt.Errorf("%w: decode payment %s: %v", ErrProviderUnavailable, paymentID, err))
	}
	return payment, nil
}
