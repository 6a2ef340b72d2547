// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
client.go - MediaTracker REST Client

This file implements the outbound side of the sync pipeline: one HTTP PUT
per accepted observation against MediaTracker's by-external-id endpoints.

API endpoints:

	PUT {baseUrl}/api/progress/by-external-id?token={token}
	PUT {baseUrl}/api/seen/by-external-id?token={token}

Delivery is fire-and-forget: a failed call is classified, logged by the
caller, and never retried.
*/

package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/trackbridge/trackbridge/internal/metrics"
	"github.com/trackbridge/trackbridge/internal/models"
)

// MediaTracker endpoint paths.
const (
	ProgressPath = "/api/progress/by-external-id"
	SeenPath     = "/api/seen/by-external-id"
)

// ErrMissingConfiguration marks dispatches that fail fast before any network
// call: no base URL, or no token configured for the user.
var ErrMissingConfiguration = errors.New("missing sync configuration")

// DispatchError is a delivery failure: a non-200 response or a transport
// error. It is terminal; the caller logs it and moves on.
type DispatchError struct {
	Endpoint string
	Status   int // 0 for transport-level failures
	Body     string
	Err      error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("dispatch to %s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// TokenSource resolves the per-user MediaTracker credential. Implemented by
// config.TrackerConfig; injected here so the dispatcher never reaches into
// ambient configuration.
type TokenSource interface {
	Token(userID uuid.UUID) (string, bool)
}

// Client performs outbound calls to MediaTracker for linked users.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds a single outbound HTTP call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outbound calls per second. Zero disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
		} else {
			c.limiter = nil
		}
	}
}

// NewClient creates a MediaTracker client.
//
// Parameters:
//   - baseURL: MediaTracker base URL (e.g. http://localhost:7481); may be
//     empty, in which case every send fails fast with ErrMissingConfiguration
//   - tokens: per-user credential source
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(25), 26),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateProgress sends one progress update for the user.
func (c *Client) UpdateProgress(ctx context.Context, userID uuid.UUID, payload models.ProgressPayload) error {
	return c.send(ctx, userID, ProgressPath, payload)
}

// MarkSeen sends one seen notification for the user.
func (c *Client) MarkSeen(ctx context.Context, userID uuid.UUID, payload models.SeenPayload) error {
	return c.send(ctx, userID, SeenPath, payload)
}

// send performs a single HTTP PUT with the user's token in the query string.
// Exactly one call per payload: no retry on any failure class.
func (c *Client) send(ctx context.Context, userID uuid.UUID, path string, payload any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: no MediaTracker url", ErrMissingConfiguration)
	}

	token, ok := c.tokens.Token(userID)
	if !ok {
		return fmt.Errorf("%w: no token for user %s", ErrMissingConfiguration, userID)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &DispatchError{Endpoint: path, Err: err}
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &DispatchError{Endpoint: path, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	url := c.baseURL + path + "?token=" + token

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return &DispatchError{Endpoint: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.DispatchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchFailures.WithLabelValues(path, "transport").Inc()
		return &DispatchError{Endpoint: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		respBody = nil
	}

	if resp.StatusCode != http.StatusOK {
		metrics.DispatchFailures.WithLabelValues(path, "status").Inc()
		return &DispatchError{Endpoint: path, Status: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
