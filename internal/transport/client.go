// Package transport is the shared HTTP client for every provider in the chain.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wrale/game-session-auth/internal/autherr"
)

const (
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent when no other user agent is configured.
	DefaultUserAgent = "game-session-auth"

	maxResponseBody = 1 << 20
)

// Client issues form and JSON requests and classifies failures.
// It never follows redirects and never retries.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	logger    *slog.Logger
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses hc for requests. Redirect following is disabled on a
// copy of hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout. It applies whatever the
// position of WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		logger:    slog.Default(),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// PostForm sends form as application/x-www-form-urlencoded and decodes a
// successful JSON response into out.
func (c *Client) PostForm(ctx context.Context, provider autherr.Provider, op, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return autherr.Transport(provider, op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, provider, op, out)
}

// PostJSON sends in as a JSON body and decodes a successful JSON response
// into out.
func (c *Client) PostJSON(ctx context.Context, provider autherr.Provider, op, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return autherr.Transport(provider, op, fmt.Errorf("encoding request body: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return autherr.Transport(provider, op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, provider, op, out)
}

func (c *Client) do(req *http.Request, provider autherr.Provider, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("sending provider request", "provider", provider, "op", op, "url", req.URL.Redacted())
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return autherr.Transport(provider, op, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	c.logger.Debug("provider responded",
		"provider", provider,
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := autherr.Classify(c.logger, provider, op, resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return autherr.Transport(provider, op, fmt.Errorf("reading response: %w", err))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return autherr.Decode(provider, op, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}
