// Package solverapi is a client for the solver backend HTTP API.
package solverapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
)

// DefaultBaseURL is the address the backend listens on by default.
const DefaultBaseURL = "http://localhost:8787"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx backend response. Detail carries the backend message.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("solver backend: %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the solver backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a Client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// ParseIntent parses nl for user and registers the intent.
func (c *Client) ParseIntent(ctx context.Context, nl, user string) (*ParsedIntentResponse, error) {
	var out ParsedIntentResponse
	err := c.get(ctx, "/parse-intent", url.Values{"nl": {nl}, "user": {user}}, &out)
	return &out, err
}

// RunAuction runs the auction for a registered intent.
func (c *Client) RunAuction(ctx context.Context, commitment string) (*AuctionResponse, error) {
	var out AuctionResponse
	err := c.get(ctx, "/run-auction", url.Values{"commitment": {commitment}}, &out)
	return &out, err
}

// SubmitIntent parses nl and runs the auction in one call.
func (c *Client) SubmitIntent(ctx context.Context, nl, user string) (*IntentResponse, error) {
	var out IntentResponse
	err := c.get(ctx, "/submit-intent", url.Values{"nl": {nl}, "user": {user}}, &out)
	return &out, err
}

// Authorize authorizes the auction winner to execute.
func (c *Client) Authorize(ctx context.Context, commitment, signature string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.get(ctx, "/authorize", url.Values{"commitment": {commitment}, "signature": {signature}}, &out)
	return &out, err
}

// Execute runs the authorized plan.
func (c *Client) Execute(ctx context.Context, commitment string) (*ExecutionResponse, error) {
	var out ExecutionResponse
	err := c.get(ctx, "/execute", url.Values{"commitment": {commitment}}, &out)
	return &out, err
}

// Status returns the backend record of an intent.
func (c *Client) Status(ctx context.Context, commitment string) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/status/"+url.PathEscape(commitment), nil, &out)
	return out, err
}

// Intents lists the intents the backend knows.
func (c *Client) Intents(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.get(ctx, "/intents", nil, &out)
	return out, err
}

// Reset clears the backend state.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("solver backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("Solver backend call", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Detail: detail(body, resp.Status)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// detail extracts the backend error message, falling back to the HTTP status.
func detail(body []byte, status string) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return status
}
