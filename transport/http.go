package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/tracecap/tracecap"
	"github.com/tracecap/tracecap/config"
)

// Intake endpoints relative to the collector base URL.
const (
	transactionsPath = "/v1/transactions"
	errorsPath       = "/v1/errors"
)

const (
	defaultMaxRetries    = 3
	defaultRetryInterval = 500 * time.Millisecond
	userAgent            = "tracecap-go"
)

// envelope is the intake request body: service identity plus one batch.
type envelope struct {
	AppName      string                        `json:"app_name"`
	AppVersion   string                        `json:"app_version,omitempty"`
	Environment  string                        `json:"environment,omitempty"`
	Transactions []tracecap.TransactionPayload `json:"transactions,omitempty"`
	Errors       []tracecap.ErrorPayload       `json:"errors,omitempty"`
}

// HTTPConnector dispatches batches to a collector over HTTP. Client errors
// (4xx) fail permanently; server errors (5xx) and network failures retry
// with exponential backoff.
type HTTPConnector struct {
	cfg           config.Config
	client        *http.Client
	logger        *zap.Logger
	maxRetries    uint64
	retryInterval time.Duration
}

// HTTPOption configures an HTTPConnector at creation time.
type HTTPOption func(*HTTPConnector)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPConnector) { c.client = client }
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) HTTPOption {
	return func(c *HTTPConnector) { c.logger = logger }
}

// WithMaxRetries bounds retry attempts after the first try.
func WithMaxRetries(n uint64) HTTPOption {
	return func(c *HTTPConnector) { c.maxRetries = n }
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) HTTPOption {
	return func(c *HTTPConnector) { c.retryInterval = d }
}

// NewHTTPConnector creates a connector for the collector in cfg.
func NewHTTPConnector(cfg config.Config, opts ...HTTPOption) *HTTPConnector {
	c := &HTTPConnector{
		cfg:           cfg,
		client:        &http.Client{Timeout: cfg.Timeout},
		logger:        zap.NewNop(),
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendTransactions implements tracecap.Dispatcher.
func (c *HTTPConnector) SendTransactions(ctx context.Context, store *tracecap.TransactionStore) error {
	txs := store.All()
	payloads := make([]tracecap.TransactionPayload, 0, len(txs))
	for _, t := range txs {
		payloads = append(payloads, t.Payload())
	}
	return c.post(ctx, transactionsPath, envelope{
		AppName:      c.cfg.AppName,
		AppVersion:   c.cfg.AppVersion,
		Environment:  c.cfg.Environment,
		Transactions: payloads,
	})
}

// SendErrors implements tracecap.Dispatcher.
func (c *HTTPConnector) SendErrors(ctx context.Context, store *tracecap.ErrorStore) error {
	errs := store.All()
	payloads := make([]tracecap.ErrorPayload, 0, len(errs))
	for _, e := range errs {
		payloads = append(payloads, e.Payload())
	}
	return c.post(ctx, errorsPath, envelope{
		AppName:     c.cfg.AppName,
		AppVersion:  c.cfg.AppVersion,
		Environment: c.cfg.Environment,
		Errors:      payloads,
	})
}

func (c *HTTPConnector) post(ctx context.Context, path string, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}
	url := c.cfg.ServerURL + path

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("transport: create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if c.cfg.SecretToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.SecretToken)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Warn("intake request failed", zap.String("url", url),
				zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("transport: post %s: %w", path, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("transport: intake rejected %s: HTTP %d", path, resp.StatusCode))
		default:
			c.logger.Warn("intake server error", zap.String("url", url),
				zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return fmt.Errorf("transport: intake %s: HTTP %d", path, resp.StatusCode)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}
