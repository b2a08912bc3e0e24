// Package client is a typed HTTP client for the verification service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/pkg/registry"
	"github.com/rehash-labs/erc7739-go/pkg/types"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Message)
}

// ClientConfig holds the configuration for the service client
type ClientConfig struct {
	// BaseURL is the service root, e.g. "http://localhost:8080".
	BaseURL string
	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client
	// Retry overrides DefaultRetryConfig.
	Retry  *RetryConfig
	Logger *zap.Logger
}

// Client talks to the verification service. Transient failures (network
// errors, 429, 5xx) are retried with exponential backoff; other non-2xx
// answers surface as *APIError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *zap.Logger
}

// NewClient creates a new service client instance
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retry := DefaultRetryConfig
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry attempts must be at least 1, got %d", retry.MaxAttempts)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retry:      retry,
		logger:     cfg.Logger,
	}, nil
}

// Verify submits a verification request.
func (c *Client) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	var resp types.VerifyResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "/v1/verify", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Probe runs the rehashing support probe for an account.
func (c *Client) Probe(ctx context.Context, req *types.ProbeRequest) (*types.ProbeResponse, error) {
	var resp types.ProbeResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "/v1/probe", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpsertAccount creates or replaces a stored account record.
func (c *Client) UpsertAccount(ctx context.Context, req *types.AccountUpsertRequest) (*registry.AccountRecord, error) {
	var resp types.AccountResponse
	if err := c.doWithRetry(ctx, http.MethodPost, "/v1/accounts", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

// GetAccount fetches a stored record, returning (nil, nil) when the service
// does not know the account.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*registry.AccountRecord, error) {
	query := url.Values{"accountId": []string{accountID}}

	var resp types.AccountResponse
	err := c.doWithRetry(ctx, http.MethodGet, "/v1/accounts", query, nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return resp.Account, nil
}

// ListAccounts fetches every stored record.
func (c *Client) ListAccounts(ctx context.Context) ([]*registry.AccountRecord, error) {
	var resp types.AccountListResponse
	if err := c.doWithRetry(ctx, http.MethodGet, "/v1/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// DeleteAccount removes a stored record. Deleting an unknown account is not
// an error.
func (c *Client) DeleteAccount(ctx context.Context, accountID string) error {
	query := url.Values{"accountId": []string{accountID}}
	return c.doWithRetry(ctx, http.MethodDelete, "/v1/accounts", query, nil, nil)
}

// Health reports service liveness. A degraded backend is reported through
// the response status, not an error; only transport failures error.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	status, body, err := c.doOnce(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusOK || status == http.StatusServiceUnavailable {
		var resp types.HealthResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode health response: %w", err)
		}
		return &resp, nil
	}
	return nil, apiErrorFrom(status, body)
}

// doWithRetry sends the request, retrying transient failures with
// exponential backoff until the retry budget runs out.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	backoff := c.retry.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Sugar().Debugw("Retrying request",
				"method", method,
				"path", path,
				"attempt", attempt+1,
				"backoff", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiple)
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}

		status, respBody, err := c.send(ctx, method, path, query, payload)
		if err != nil {
			lastErr = err
			continue
		}

		if status >= 200 && status < 300 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}

		if !retryable(status) {
			return apiErrorFrom(status, respBody)
		}
		lastErr = apiErrorFrom(status, respBody)
	}

	return fmt.Errorf("request failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	return c.send(ctx, method, path, query, body)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func apiErrorFrom(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}

	var parsed types.ErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		apiErr.Message = parsed.Error
		apiErr.RequestID = parsed.RequestID
	}
	return apiErr
}

