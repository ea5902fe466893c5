// Package dispatch triggers the external site-generation workflow through a
// repository-dispatch API.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNotConfigured is returned when no API token is available.
var ErrNotConfigured = errors.New("dispatch client is not configured")

// UpstreamError reports a non-2xx answer from the dispatch API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Config describes the dispatch target.
type Config struct {
	APIURL          string
	Token           string
	Owner           string
	Repo            string
	EventType       string
	CancelEventType string
	Timeout         time.Duration
	MaxRetries      int
	RetryWait       time.Duration
	RetryMaxWait    time.Duration
}

// Client posts repository-dispatch events.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger
}

type dispatchBody struct {
	EventType     string `json:"event_type"`
	ClientPayload any    `json:"client_payload"`
}

const maxBodySnippet = 512

// New builds a Client. A Client with an empty token is still returned so
// callers can surface ErrNotConfigured per request.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 2 * time.Second
	}

	var base *http.Client
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		base = oauth2.NewClient(context.Background(), src)
	} else {
		base = &http.Client{}
	}

	rc := resty.NewWithClient(base).
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetLogger(logger.Named("dispatch").Sugar()).
		AddRetryCondition(retryDispatch)

	return &Client{cfg: cfg, http: rc, logger: logger.Named("dispatch")}
}

// retryDispatch repeats 429 and 5xx answers. Transport errors are repeated
// only when the connection was never made: a timed-out dispatch may already
// have started a workflow run.
func retryDispatch(r *resty.Response, err error) bool {
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return true
		}
		var dnsErr *net.DNSError
		return errors.As(err, &dnsErr)
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
}

// Configured reports whether requests can be sent.
func (c *Client) Configured() bool {
	return c.cfg.Token != "" && c.cfg.Owner != "" && c.cfg.Repo != ""
}

// TriggerGeneration dispatches the generate event for payload.
func (c *Client) TriggerGeneration(ctx context.Context, payload GenerationPayload) error {
	return c.send(ctx, c.cfg.EventType, payload)
}

// TriggerCancel dispatches the cancel event for clientID.
func (c *Client) TriggerCancel(ctx context.Context, clientID string) error {
	return c.send(ctx, c.cfg.CancelEventType, map[string]string{"client_id": clientID})
}

func (c *Client) send(ctx context.Context, eventType string, payload any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if eventType == "" {
		return errors.New("event type is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dispatchBody{EventType: eventType, ClientPayload: payload}).
		Post(fmt.Sprintf("/repos/%s/%s/dispatches", c.cfg.Owner, c.cfg.Repo))
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", eventType, err)
	}
	if !resp.IsSuccess() {
		body := string(resp.Body())
		if len(body) > maxBodySnippet {
			body = body[:maxBodySnippet]
		}
		c.logger.Warn("dispatch rejected",
			zap.String("event_type", eventType),
			zap.Int("status", resp.StatusCode()),
		)
		return &UpstreamError{StatusCode: resp.StatusCode(), Body: body}
	}
	c.logger.Debug("dispatch accepted", zap.String("event_type", eventType), zap.Int("status", resp.StatusCode()))
	return nil
}
