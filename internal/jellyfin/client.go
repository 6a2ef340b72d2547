// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
client.go - Jellyfin REST API Client

This file implements a REST API client for Jellyfin media server. It provides
methods to fetch session data, item metadata, and system info.

API Reference: https://api.jellyfin.org/
*/

package jellyfin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/trackbridge/trackbridge/internal/models"
)

// ClientInterface defines the interface for Jellyfin API operations.
// Both Client and CircuitBreakerClient implement this interface.
type ClientInterface interface {
	Ping(ctx context.Context) error
	GetSessions(ctx context.Context) ([]models.JellyfinSession, error)
	GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error)
	GetSystemInfo(ctx context.Context) (*SystemInfo, error)
	GetItem(ctx context.Context, itemID string) (*models.JellyfinItem, error)
	WebSocketURL() (string, error)
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Client provides access to the Jellyfin REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// SystemInfo represents Jellyfin server system information.
type SystemInfo struct {
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	ID              string `json:"Id"`
	OperatingSystem string `json:"OperatingSystem"`
}

// NewClient creates a new Jellyfin API client.
//
// Parameters:
//   - baseURL: Jellyfin server URL (e.g., http://localhost:8096)
//   - apiKey: Jellyfin API key from Admin Dashboard > API Keys
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping tests connectivity to the Jellyfin server.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "/System/Ping")
	if err != nil {
		return fmt.Errorf("jellyfin ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jellyfin ping returned status %d", resp.StatusCode)
	}

	return nil
}

// GetSessions retrieves all sessions from Jellyfin, active or not.
func (c *Client) GetSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	resp, err := c.doRequest(ctx, "/Sessions")
	if err != nil {
		return nil, fmt.Errorf("jellyfin sessions request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("jellyfin sessions", resp)
	}

	var sessions []models.JellyfinSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin sessions: %w", err)
	}

	return sessions, nil
}

// GetActiveSessions retrieves only sessions with active playback.
//
// Filters sessions to return only those with NowPlayingItem set,
// indicating active playback (playing or paused).
func (c *Client) GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	sessions, err := c.GetSessions(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]models.JellyfinSession, 0, len(sessions))
	for i := range sessions {
		if sessions[i].NowPlayingItem != nil {
			active = append(active, sessions[i])
		}
	}

	return active, nil
}

// GetSystemInfo retrieves Jellyfin server system information.
func (c *Client) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	resp, err := c.doRequest(ctx, "/System/Info")
	if err != nil {
		return nil, fmt.Errorf("jellyfin system info request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("jellyfin system info", resp)
	}

	var info SystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin system info: %w", err)
	}

	return &info, nil
}

// GetItem fetches a single library item by id. Used to look up series-level
// provider ids when an episode is playing.
func (c *Client) GetItem(ctx context.Context, itemID string) (*models.JellyfinItem, error) {
	resp, err := c.doRequest(ctx, "/Items/"+url.PathEscape(itemID))
	if err != nil {
		return nil, fmt.Errorf("jellyfin item request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("jellyfin item", resp)
	}

	var item models.JellyfinItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin item: %w", err)
	}

	return &item, nil
}

// WebSocketURL returns the WebSocket URL for real-time notifications.
func (c *Client) WebSocketURL() (string, error) {
	parsedURL, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "https":
		parsedURL.Scheme = "wss"
	default:
		parsedURL.Scheme = "ws"
	}

	parsedURL.Path = "/socket"
	query := parsedURL.Query()
	query.Set("api_key", c.apiKey)
	query.Set("deviceId", "trackbridge")
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// doRequest performs an HTTP GET request to the Jellyfin API.
func (c *Client) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "Trackbridge")
	req.Header.Set("X-Emby-Device-Name", "Trackbridge")
	req.Header.Set("X-Emby-Device-Id", "trackbridge")
	req.Header.Set("X-Emby-Client-Version", "1.0.0")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func statusError(what string, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body)", what, resp.StatusCode)
	}
	return fmt.Errorf("%s returned status %d: %s", what, resp.StatusCode, string(body))
}
