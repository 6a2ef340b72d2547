// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
poller.go - Jellyfin Session Poller

This file implements a fallback session polling mechanism for Jellyfin.
It periodically fetches active sessions from the Jellyfin API and hands each
snapshot to the session callback.

Why this exists:
- WebSocket may be unreliable in some environments
- Provides redundancy when running both sources

Every poll forwards the full snapshot; repeated snapshots are cheap because
the downstream filter suppresses anything that has not changed.
*/

package jellyfin

import (
	"context"
	"sync"
	"time"

	"github.com/trackbridge/trackbridge/internal/logging"
	"github.com/trackbridge/trackbridge/internal/models"
)

// SessionPoller periodically polls Jellyfin for active sessions.
type SessionPoller struct {
	client   ClientInterface
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	onSessions func([]models.JellyfinSession)
}

// NewSessionPoller creates a session poller.
func NewSessionPoller(client ClientInterface, interval time.Duration) *SessionPoller {
	return &SessionPoller{
		client:   client,
		interval: interval,
	}
}

// SetOnSessions sets the callback receiving each poll snapshot.
func (p *SessionPoller) SetOnSessions(callback func([]models.JellyfinSession)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSessions = callback
}

// Start begins the polling loop.
func (p *SessionPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	logging.Info().Dur("interval", p.interval).Msg("Starting Jellyfin session poller")

	p.wg.Add(1)
	go p.pollLoop(ctx)

	return nil
}

// Stop stops the polling loop and waits for it to exit.
func (p *SessionPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Msg("Jellyfin session poller stopped")
}

func (p *SessionPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *SessionPoller) poll(ctx context.Context) {
	sessions, err := p.client.GetActiveSessions(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to poll Jellyfin sessions")
		return
	}

	p.mu.Lock()
	callback := p.onSessions
	p.mu.Unlock()

	if callback != nil && len(sessions) > 0 {
		callback(sessions)
	}
}
