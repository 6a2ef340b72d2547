// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package jellyfin

import (
	"context"
	"sync"
	"testing"

	"github.com/trackbridge/trackbridge/internal/config"
	"github.com/trackbridge/trackbridge/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.JellyfinSession
	sources []string
}

func (r *recordingSink) HandleSessions(_ context.Context, sessions []models.JellyfinSession, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, sessions)
	r.sources = append(r.sources, source)
}

func activeSession(id string, positionTicks int64) models.JellyfinSession {
	return models.JellyfinSession{
		ID:     id,
		UserID: "0b54a9e1-35a4-40f3-9c0f-2e1b9a9a0001",
		NowPlayingItem: &models.JellyfinNowPlayingItem{
			ID:           "movie-1",
			Type:         "Movie",
			RunTimeTicks: 1000 * models.TicksPerSecond,
			ProviderIDs:  map[string]string{"Imdb": "tt0113277"},
		},
		PlayState: &models.JellyfinPlayState{PositionTicks: &positionTicks},
	}
}

func newTestManager(sink SessionSink) *Manager {
	m := NewManager(&config.JellyfinConfig{URL: "http://localhost:8096", APIKey: "k"}, sink)
	m.ctx = context.Background()
	return m
}

func TestManager_StopReplaysLastSnapshotAsPaused(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(sink)

	m.handleSessions([]models.JellyfinSession{activeSession("s1", 900*models.TicksPerSecond)}, SourceWebSocket)
	m.handlePlaystate("s1", "Stop")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 2 {
		t.Fatalf("expected original batch plus replay, got %d batches", len(sink.batches))
	}

	replay := sink.batches[1][0]
	if !replay.PlayState.IsPaused {
		t.Error("replayed session must be paused")
	}
	if *replay.PlayState.PositionTicks != 900*models.TicksPerSecond {
		t.Error("replay must keep the final position")
	}

	// Original snapshot must not have been mutated by the replay.
	if sink.batches[0][0].PlayState.IsPaused {
		t.Error("original snapshot mutated")
	}
}

func TestManager_StopWithoutSnapshotIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(sink)

	m.handlePlaystate("unknown", "Stop")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 0 {
		t.Errorf("unexpected replay for unknown session: %d batches", len(sink.batches))
	}
}

func TestManager_StopReplayFiresOnce(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(sink)

	m.handleSessions([]models.JellyfinSession{activeSession("s1", 500*models.TicksPerSecond)}, SourceWebSocket)
	m.handlePlaystate("s1", "Stop")
	m.handlePlaystate("s1", "Stop")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 2 {
		t.Errorf("expected exactly one replay, got %d batches", len(sink.batches))
	}
}

func TestManager_NonStopCommandsIgnored(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(sink)

	m.handleSessions([]models.JellyfinSession{activeSession("s1", 100)}, SourceWebSocket)
	m.handlePlaystate("s1", "Pause")
	m.handlePlaystate("s1", "Unpause")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 1 {
		t.Errorf("pause commands must not trigger replays, got %d batches", len(sink.batches))
	}
}

func TestManager_InactiveSessionClearsSnapshot(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(sink)

	m.handleSessions([]models.JellyfinSession{activeSession("s1", 100)}, SourceWebSocket)
	m.handleSessions([]models.JellyfinSession{{ID: "s1"}}, SourceWebSocket) // playback ended

	m.handlePlaystate("s1", "Stop")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 2 {
		t.Errorf("stale snapshot must not be replayed, got %d batches", len(sink.batches))
	}
}
