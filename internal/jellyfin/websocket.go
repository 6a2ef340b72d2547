// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
websocket.go - Jellyfin WebSocket Client

This file implements a WebSocket client for receiving real-time session
notifications from Jellyfin media server.

WebSocket Endpoint: ws://{jellyfin_url}/socket?api_key={api_key}

After connecting, a SessionsStart subscription asks the server to push the
full session list every 1500ms. Each push is handed to the session callback;
all filtering happens downstream.
*/

package jellyfin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/trackbridge/trackbridge/internal/logging"
	"github.com/trackbridge/trackbridge/internal/metrics"
	"github.com/trackbridge/trackbridge/internal/models"
)

// SessionsStartRequest is sent to subscribe to session updates.
type SessionsStartRequest struct {
	MessageType string `json:"MessageType"`
	Data        string `json:"Data"` // "0,1500" = initial data, update interval in ms
}

// WebSocketClient manages the WebSocket connection to Jellyfin.
type WebSocketClient struct {
	wsURL string

	conn   *websocket.Conn
	connMu sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	callbackMu  sync.RWMutex
	onSessions  func([]models.JellyfinSession)
	onPlaystate func(sessionID, command string)
}

// NewWebSocketClient creates a WebSocket client for the given socket URL.
func NewWebSocketClient(wsURL string) *WebSocketClient {
	return &WebSocketClient{
		wsURL:    wsURL,
		stopChan: make(chan struct{}),
	}
}

// SetCallbacks registers the session and playstate callbacks. Must be called
// before Connect.
func (c *WebSocketClient) SetCallbacks(
	onSessions func([]models.JellyfinSession),
	onPlaystate func(sessionID, command string),
) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onSessions = onSessions
	c.onPlaystate = onPlaystate
}

// Connect establishes the WebSocket connection and starts the listener and
// keep-alive goroutines.
func (c *WebSocketClient) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.listen(ctx)
	go c.pingLoop(ctx)

	return nil
}

// dial opens the connection and subscribes to session updates. The listener
// reuses it on reconnect without spawning more goroutines.
func (c *WebSocketClient) dial(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return nil // Already connected
	}

	logging.Info().Str("url", c.wsURL).Msg("Connecting to Jellyfin WebSocket")

	dialer := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.conn = conn
	metrics.WebsocketConnected.Set(1)
	logging.Info().Msg("Jellyfin WebSocket connected")

	if err := c.subscribeToSessions(); err != nil {
		logging.Warn().Err(err).Msg("Failed to subscribe to session updates")
	}

	return nil
}

// subscribeToSessions sends the SessionsStart message so the server pushes
// session updates.
func (c *WebSocketClient) subscribeToSessions() error {
	msg := SessionsStartRequest{
		MessageType: "SessionsStart",
		Data:        "0,1500",
	}
	return c.conn.WriteJSON(msg)
}

// listen processes incoming WebSocket messages and reconnects with
// exponential backoff when the connection drops.
func (c *WebSocketClient) listen(ctx context.Context) {
	defer c.wg.Done()

	reconnectDelay := 1 * time.Second
	maxReconnectDelay := 32 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				logging.Info().Dur("delay", reconnectDelay).Msg("Jellyfin WebSocket lost, reconnecting")
				select {
				case <-time.After(reconnectDelay):
				case <-ctx.Done():
					return
				case <-c.stopChan:
					return
				}
				reconnectDelay *= 2
				if reconnectDelay > maxReconnectDelay {
					reconnectDelay = maxReconnectDelay
				}

				metrics.WebsocketReconnects.Inc()
				if err := c.dial(ctx); err != nil {
					logging.Warn().Err(err).Msg("Jellyfin WebSocket reconnection failed")
					continue
				}
				reconnectDelay = 1 * time.Second
				continue
			}

			if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
				logging.Debug().Err(err).Msg("Failed to set read deadline")
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logging.Info().Msg("Jellyfin WebSocket closed normally")
				} else if ctx.Err() != nil {
					return
				} else {
					logging.Warn().Err(err).Msg("Jellyfin WebSocket read error")
				}
				c.closeConnection()
				continue
			}

			reconnectDelay = 1 * time.Second
			c.handleMessage(message)
		}
	}
}

// handleMessage dispatches a single WebSocket message to the callbacks.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg models.JellyfinWSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Warn().Err(err).Msg("Failed to parse WebSocket message")
		return
	}

	c.callbackMu.RLock()
	defer c.callbackMu.RUnlock()

	switch msg.MessageType {
	case "Sessions":
		var sessions []models.JellyfinSession
		if err := json.Unmarshal(msg.Data, &sessions); err != nil {
			logging.Warn().Err(err).Msg("Failed to parse session list")
			return
		}
		if c.onSessions != nil {
			c.onSessions(sessions)
		}

	case "Playstate":
		// Playback commands issued to a session (play, pause, stop).
		if c.onPlaystate != nil {
			var payload map[string]interface{}
			if err := json.Unmarshal(msg.Data, &payload); err == nil {
				sessionID, _ := payload["SessionId"].(string)
				command, _ := payload["Command"].(string)
				c.onPlaystate(sessionID, command)
			}
		}

	case "ForceKeepAlive", "KeepAlive":
		// Keep-alive traffic; the ping loop handles our side.

	default:
		logging.Debug().Str("type", msg.MessageType).Msg("Ignoring WebSocket message")
	}
}

// pingLoop sends periodic keep-alive messages.
func (c *WebSocketClient) pingLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			var err error
			if conn != nil {
				err = conn.WriteJSON(models.JellyfinWSMessage{MessageType: "KeepAlive"})
			}
			c.connMu.Unlock()

			if conn != nil && err != nil {
				logging.Warn().Err(err).Msg("Jellyfin keep-alive failed")
				c.closeConnection()
			}
		}
	}
}

// closeConnection safely closes the WebSocket connection.
func (c *WebSocketClient) closeConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(1*time.Second),
		)
		if err := c.conn.Close(); err != nil {
			logging.Debug().Err(err).Msg("Failed to close WebSocket connection")
		}
		c.conn = nil
		metrics.WebsocketConnected.Set(0)
	}
}

// Close gracefully shuts the WebSocket client down.
func (c *WebSocketClient) Close() error {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.closeConnection()
	c.wg.Wait()
	return nil
}

// IsConnected returns true if the WebSocket is connected.
func (c *WebSocketClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}
