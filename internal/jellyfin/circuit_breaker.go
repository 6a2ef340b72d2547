// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package jellyfin

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/trackbridge/trackbridge/internal/logging"
	"github.com/trackbridge/trackbridge/internal/metrics"
	"github.com/trackbridge/trackbridge/internal/models"
)

// Ensure CircuitBreakerClient implements ClientInterface
var _ ClientInterface = (*CircuitBreakerClient)(nil)

// CircuitBreakerClient wraps Client with a circuit breaker so a dead or slow
// Jellyfin server does not pile up blocked calls.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient creates a Jellyfin client with circuit breaker.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(baseURL, apiKey string) *CircuitBreakerClient {
	client := NewClient(baseURL, apiKey)
	cbName := "jellyfin-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening Jellyfin circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Jellyfin circuit state transition")
			metrics.RecordBreakerState(name, to.String())
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps one Jellyfin API call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Msg("Jellyfin request rejected by circuit breaker")
		}
		return nil, err
	}
	return result, nil
}

// Ping tests connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// GetSessions retrieves all sessions with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSessions(ctx)
	})
	if err != nil {
		return nil, err
	}
	sessions, ok := result.([]models.JellyfinSession)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetSessions")
	}
	return sessions, nil
}

// GetActiveSessions retrieves active sessions with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetActiveSessions(ctx)
	})
	if err != nil {
		return nil, err
	}
	sessions, ok := result.([]models.JellyfinSession)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetActiveSessions")
	}
	return sessions, nil
}

// GetSystemInfo retrieves system information with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSystemInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	info, ok := result.(*SystemInfo)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetSystemInfo")
	}
	return info, nil
}

// GetItem fetches one item with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetItem(ctx context.Context, itemID string) (*models.JellyfinItem, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetItem(ctx, itemID)
	})
	if err != nil {
		return nil, err
	}
	item, ok := result.(*models.JellyfinItem)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetItem")
	}
	return item, nil
}

// WebSocketURL is a passthrough; it makes no network calls.
func (cbc *CircuitBreakerClient) WebSocketURL() (string, error) {
	return cbc.client.WebSocketURL()
}

// State returns the current circuit breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}
