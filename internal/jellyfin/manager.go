// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
manager.go - Jellyfin Integration Manager

This file ties the Jellyfin services together: the circuit-breaker REST
client, the WebSocket client, and the optional session poller. Session
snapshots from either source flow into a single SessionSink.

A stopped session never reports its final position in the session list, so
the manager remembers the last active snapshot per session and replays it as
paused when a Playstate stop command arrives. That freezes the watch position
at the moment the user pressed stop.
*/

package jellyfin

import (
	"context"
	"sync"
	"time"

	"github.com/trackbridge/trackbridge/internal/config"
	"github.com/trackbridge/trackbridge/internal/logging"
	"github.com/trackbridge/trackbridge/internal/models"
)

// Event source labels used in metrics and logs.
const (
	SourceWebSocket = "websocket"
	SourcePoller    = "poller"
)

// SessionSink receives session snapshots from the event sources.
// Implemented by bridge.Bridge.
type SessionSink interface {
	HandleSessions(ctx context.Context, sessions []models.JellyfinSession, source string)
}

// Manager orchestrates the Jellyfin integration services.
type Manager struct {
	client   ClientInterface
	wsClient *WebSocketClient
	poller   *SessionPoller
	cfg      *config.JellyfinConfig
	sink     SessionSink
	resolver *SeriesResolver

	// Last active snapshot per session id, for stop replay.
	lastMu   sync.Mutex
	lastSeen map[string]models.JellyfinSession

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a Jellyfin integration manager. The sink receives every
// session snapshot; the manager does no filtering beyond activity checks for
// the stop-replay bookkeeping.
func NewManager(cfg *config.JellyfinConfig, sink SessionSink) *Manager {
	client := NewCircuitBreakerClient(cfg.URL, cfg.APIKey)

	return &Manager{
		client:   client,
		cfg:      cfg,
		sink:     sink,
		resolver: NewSeriesResolver(client),
		lastSeen: make(map[string]models.JellyfinSession),
	}
}

// Resolver returns the series id resolver backed by this manager's client.
func (m *Manager) Resolver() *SeriesResolver {
	return m.resolver
}

// Start initializes and starts all enabled Jellyfin services.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	logging.Info().Msg("Starting Jellyfin integration")

	if err := m.client.Ping(m.ctx); err != nil {
		// Don't fail startup, the server may become available later.
		logging.Warn().Err(err).Msg("Jellyfin ping failed")
	} else if info, err := m.client.GetSystemInfo(m.ctx); err == nil {
		logging.Info().Str("server", info.ServerName).Str("version", info.Version).Msg("Connected to Jellyfin")
	}

	if m.cfg.RealtimeEnabled {
		if err := m.startWebSocket(m.ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to start Jellyfin WebSocket")
		}
	}

	if m.cfg.SessionPollingEnabled {
		if err := m.startPoller(m.ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to start Jellyfin session poller")
		}
	}

	return nil
}

func (m *Manager) startWebSocket(ctx context.Context) error {
	wsURL, err := m.client.WebSocketURL()
	if err != nil {
		return err
	}

	m.wsClient = NewWebSocketClient(wsURL)
	m.wsClient.SetCallbacks(
		func(sessions []models.JellyfinSession) {
			m.handleSessions(sessions, SourceWebSocket)
		},
		m.handlePlaystate,
	)

	return m.wsClient.Connect(ctx)
}

func (m *Manager) startPoller(ctx context.Context) error {
	interval := m.cfg.SessionPollingInterval
	if interval < time.Second {
		interval = 30 * time.Second
	}

	m.poller = NewSessionPoller(m.client, interval)
	m.poller.SetOnSessions(func(sessions []models.JellyfinSession) {
		m.handleSessions(sessions, SourcePoller)
	})

	return m.poller.Start(ctx)
}

// handleSessions forwards a snapshot batch to the sink and records the last
// active snapshot per session for stop replay.
func (m *Manager) handleSessions(sessions []models.JellyfinSession, source string) {
	m.lastMu.Lock()
	for i := range sessions {
		if sessions[i].IsActive() {
			m.lastSeen[sessions[i].ID] = sessions[i]
		} else {
			delete(m.lastSeen, sessions[i].ID)
		}
	}
	m.lastMu.Unlock()

	m.sink.HandleSessions(m.ctx, sessions, source)
}

// handlePlaystate replays the last snapshot of a stopping session as paused,
// freezing its final position before the session disappears.
func (m *Manager) handlePlaystate(sessionID, command string) {
	if command != "Stop" {
		return
	}

	m.lastMu.Lock()
	last, ok := m.lastSeen[sessionID]
	if ok {
		delete(m.lastSeen, sessionID)
	}
	m.lastMu.Unlock()

	if !ok || last.PlayState == nil {
		return
	}

	logging.Debug().Str("session_id", sessionID).Msg("Replaying final position for stopped session")

	stopped := last
	state := *last.PlayState
	state.IsPaused = true
	stopped.PlayState = &state

	m.sink.HandleSessions(m.ctx, []models.JellyfinSession{stopped}, SourceWebSocket)
}

// Stop gracefully stops all Jellyfin services.
func (m *Manager) Stop() error {
	logging.Info().Msg("Stopping Jellyfin integration")

	if m.cancel != nil {
		m.cancel()
	}
	if m.wsClient != nil {
		if err := m.wsClient.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing Jellyfin WebSocket")
		}
	}
	if m.poller != nil {
		m.poller.Stop()
	}

	return nil
}
