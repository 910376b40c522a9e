package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infinity-9427/shop-microservices/orders/internal/metrics"
	"github.com/infinity-9427/shop-microservices/orders/internal/models"
	"github.com/infinity-9427/shop-microservices/orders/internal/security"
)

// PaymentsClient talks to the payment provider. The core treats the provider
// as an opaque service that will eventually deliver a callback.
type PaymentsClient interface {
	CreatePayment(ctx context.Context, orderID uuid.UUID, amount string) (string, error)
	SendCallback(ctx context.Context, callback *models.PaymentWebhookRequest) error
}

type HTTPPaymentsClient struct {
	http          *http.Client
	base          string
	webhookSecret string
	logger        *slog.Logger

	// Circuit breaker state
	circuitMutex    sync.RWMutex
	circuitOpen     bool
	circuitOpenTime time.Time
	failureCount    int
	threshold       int
	cooldownPeriod  time.Duration
}

type CircuitBreakerError struct {
	Message string
}

func (e *CircuitBreakerError) Error() string {
	return e.Message
}

type ProviderUnavailableError struct {
	Message string
}

func (e *ProviderUnavailableError) Error() string {
	return e.Message
}

func NewHTTPPaymentsClient(base, webhookSecret string, timeout time.Duration, logger *slog.Logger) *HTTPPaymentsClient {
	return &HTTPPaymentsClient{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		base:           base,
		webhookSecret:  webhookSecret,
		logger:         logger,
		threshold:      5,
		cooldownPeriod: 30 * time.Second,
	}
}

func (c *HTTPPaymentsClient) isCircuitOpen() bool {
	c.circuitMutex.RLock()
	defer c.circuitMutex.RUnlock()

	if !c.circuitOpen {
		return false
	}
	// Allow one request through after the cooldown to probe provider health
	if time.Since(c.circuitOpenTime) > c.cooldownPeriod {
		return false
	}
	return true
}

func (c *HTTPPaymentsClient) recordSuccess() {
	c.circuitMutex.Lock()
	defer c.circuitMutex.Unlock()

	c.failureCount = 0
	c.circuitOpen = false
}

func (c *HTTPPaymentsClient) recordFailure() {
	c.circuitMutex.Lock()
	defer c.circuitMutex.Unlock()

	c.failureCount++
	if c.failureCount >= c.threshold {
		c.circuitOpen = true
		c.circuitOpenTime = time.Now()
		metrics.PaymentCircuitOpens.Inc()
		c.logger.Warn("Payment provider circuit breaker opened",
			slog.Int("failure_count", c.failureCount),
			slog.Int("threshold", c.threshold))
	}
}

// CreatePayment initiates a payment for the order and returns the provider's
// payment id. The provider reports the outcome later via webhook.
func (c *HTTPPaymentsClient) CreatePayment(ctx context.Context, orderID uuid.UUID, amount string) (string, error) {
	if c.isCircuitOpen() {
		return "", &CircuitBreakerError{Message: "payment provider circuit breaker is open"}
	}

	url := c.base + "/_fake_payments"
	body, _ := json.Marshal(models.FakePaymentRequest{OrderID: orderID.String(), Amount: amount})

	c.logger.InfoContext(ctx, "Calling payment provider",
		slog.String("method", "POST"),
		slog.String("url", url),
		slog.String("order_id", orderID.String()),
		slog.String("amount", amount))

	resp, err := c.post(ctx, url, body, nil)
	if err != nil {
		c.recordFailure()
		c.logger.ErrorContext(ctx, "Payment provider request failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return "", &ProviderUnavailableError{Message: "payment provider unavailable"}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()
		return "", &ProviderUnavailableError{Message: fmt.Sprintf("payment provider returned status %d", resp.StatusCode)}
	}

	var payment models.FakePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		c.recordFailure()
		return "", fmt.Errorf("failed to decode payment response: %w", err)
	}

	c.recordSuccess()
	return payment.PaymentID, nil
}

// SendCallback posts a payment webhook. Only the fake-payment simulation path
// uses this; a real provider calls the webhook endpoint itself.
func (c *HTTPPaymentsClient) SendCallback(ctx context.Context, callback *models.PaymentWebhookRequest) error {
	url := c.base + "/payments/callback"
	body, _ := json.Marshal(callback)

	resp, err := c.post(ctx, url, body, func(req *http.Request) {
		req.Header.Set("X-Signature", security.ComputeSignature(body, c.webhookSecret))
	})
	if err != nil {
		return fmt.Errorf("failed to deliver payment callback: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment callback returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPPaymentsClient) post(ctx context.Context, url string, body []byte, decorate func(*http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "orders-service/2.0")
	if decorate != nil {
		decorate(req)
	}
	return c.http.Do(req)
}
