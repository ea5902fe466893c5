// Package poller is a client for the portal HTTP API. It submits generation
// requests and follows a run by polling its status until it finishes.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
)

// APIError is a non-2xx answer from the portal.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("portal returned %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// Temporary reports whether retrying the request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientConfig tunes the HTTP client.
type ClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client calls the portal API.
type Client struct {
	http *resty.Client
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

// DefaultTimeout bounds a single request. It sits above the portal's own
// request timeout so a slow dispatch is answered rather than abandoned.
const DefaultTimeout = 45 * time.Second

// NewClient builds a Client. Status reads retry network errors, 429, and 5xx
// answers with capped exponential backoff. Generate and Cancel retry only when
// the portal cannot have acted on the request. Other failures are returned at
// once.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 500 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.BackoffInitial).
		SetRetryMaxWaitTime(cfg.BackoffMax).
		SetLogger(logger.Named("portal-client").Sugar())
	return &Client{http: rc}, nil
}

// retryRead is the policy for GET requests, which are safe to repeat.
func retryRead(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
}

// retryUnsent is the policy for POST requests. A timeout or 5xx may arrive
// after the portal already dispatched the workflow, so only refused
// connections and rate-limit rejections are repeated.
func retryUnsent(r *resty.Response, err error) bool {
	if err != nil {
		return notSent(err)
	}
	return r.StatusCode() == http.StatusTooManyRequests
}

// notSent reports whether err happened before the request reached the server.
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Generate submits req and returns the portal's acknowledgement.
func (c *Client) Generate(ctx context.Context, req generation.Request) (generation.Response, error) {
	var out generation.Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		AddRetryCondition(retryUnsent).
		Post("/generate")
	if err := decode(resp, err, &out); err != nil {
		return generation.Response{}, fmt.Errorf("generate: %w", err)
	}
	return out, nil
}

// Status fetches the current record for clientID.
func (c *Client) Status(ctx context.Context, clientID string) (generation.ProgressRecord, error) {
	var out generation.ProgressRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("clientId", clientID).
		AddRetryCondition(retryRead).
		Get("/status/{clientId}")
	if err := decode(resp, err, &out); err != nil {
		return generation.ProgressRecord{}, fmt.Errorf("status %s: %w", clientID, err)
	}
	return out, nil
}

// Cancel asks the portal to cancel clientID.
func (c *Client) Cancel(ctx context.Context, clientID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("clientId", clientID).
		AddRetryCondition(retryUnsent).
		Post("/status/{clientId}/cancel")
	if err := decode(resp, err, nil); err != nil {
		return fmt.Errorf("cancel %s: %w", clientID, err)
	}
	return nil
}

func decode(resp *resty.Response, err error, out any) error {
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		var body errorBody
		if json.Unmarshal(resp.Body(), &body) == nil {
			apiErr.Message = body.Error
			apiErr.Details = body.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsTerminalAPIError reports whether err is an API error that retrying cannot fix.
func IsTerminalAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Temporary()
}
