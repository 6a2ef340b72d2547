// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ============================================================================
// Jellyfin Session Models
// ============================================================================
// These structures represent session data from Jellyfin's REST API and the
// WebSocket "Sessions" subscription.
// Endpoint: ws://{jellyfin_url}/socket?api_key={api_key}
// Documentation: https://api.jellyfin.org/

// TicksPerSecond is the number of Jellyfin ticks (100ns units) per second.
const TicksPerSecond int64 = 10_000_000

// Metadata provider names used in Jellyfin ProviderIds maps.
const (
	ProviderImdb = "Imdb"
	ProviderTmdb = "Tmdb"
)

// JellyfinWSMessage represents a generic WebSocket message envelope. Data is
// left raw; each message type decodes its own payload.
type JellyfinWSMessage struct {
	MessageType string          `json:"MessageType"`
	MessageID   string          `json:"MessageId,omitempty"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

// JellyfinSession represents an active playback session from Jellyfin.
type JellyfinSession struct {
	// Session identification
	ID         string `json:"Id"`
	Client     string `json:"Client"`
	DeviceID   string `json:"DeviceId"`
	DeviceName string `json:"DeviceName"`

	// User information
	UserID   string `json:"UserId"`
	UserName string `json:"UserName"`

	// Playback state
	NowPlayingItem *JellyfinNowPlayingItem `json:"NowPlayingItem,omitempty"`
	PlayState      *JellyfinPlayState      `json:"PlayState,omitempty"`

	// Additional users (shared watching)
	AdditionalUsers []JellyfinAdditionalUser `json:"AdditionalUsers,omitempty"`

	// Server metadata
	ServerID string `json:"ServerId,omitempty"`
}

// JellyfinNowPlayingItem represents the currently playing content.
type JellyfinNowPlayingItem struct {
	// Content identification
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Type string `json:"Type"` // "Movie", "Episode", "Audio", ...

	// TV Show specific
	SeriesID          string `json:"SeriesId,omitempty"`
	SeriesName        string `json:"SeriesName,omitempty"`
	SeasonName        string `json:"SeasonName,omitempty"`
	IndexNumber       *int   `json:"IndexNumber,omitempty"`       // Episode number
	ParentIndexNumber *int   `json:"ParentIndexNumber,omitempty"` // Season number

	// Media information
	RunTimeTicks   int64 `json:"RunTimeTicks"` // Duration in ticks (100ns units)
	ProductionYear int   `json:"ProductionYear,omitempty"`

	// External IDs
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"` // IMDB, TMDB, TVDB, etc.
}

// JellyfinPlayState represents playback state details.
type JellyfinPlayState struct {
	PositionTicks *int64 `json:"PositionTicks,omitempty"`
	CanSeek       bool   `json:"CanSeek"`
	IsPaused      bool   `json:"IsPaused"`
	PlayMethod    string `json:"PlayMethod,omitempty"`
}

// JellyfinAdditionalUser represents additional users in a shared session.
type JellyfinAdditionalUser struct {
	UserID   string `json:"UserId"`
	UserName string `json:"UserName"`
}

// JellyfinItem represents an item fetched from /Items/{id}, used to resolve
// series-level provider IDs for episodes.
type JellyfinItem struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Type        string            `json:"Type"`
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// ============================================================================
// Helper Methods for Jellyfin Sessions
// ============================================================================

// IsActive returns true if the session has active content (playing or paused).
func (s *JellyfinSession) IsActive() bool {
	return s.NowPlayingItem != nil
}

// IsPaused returns true if the session has content paused.
func (s *JellyfinSession) IsPaused() bool {
	return s.NowPlayingItem != nil && s.PlayState != nil && s.PlayState.IsPaused
}

// Action returns the playback action this session snapshot represents.
func (s *JellyfinSession) Action() PlaybackAction {
	if s.IsPaused() {
		return ActionPaused
	}
	return ActionPlaying
}

// GetContentTitle returns a formatted content title for logging.
func (s *JellyfinSession) GetContentTitle() string {
	if s.NowPlayingItem == nil {
		return ""
	}
	item := s.NowPlayingItem

	if item.SeriesName != "" {
		season, episode := 0, 0
		if item.ParentIndexNumber != nil {
			season = *item.ParentIndexNumber
		}
		if item.IndexNumber != nil {
			episode = *item.IndexNumber
		}
		return fmt.Sprintf("%s - S%02dE%02d - %s", item.SeriesName, season, episode, item.Name)
	}

	return item.Name
}

// GetMediaKind returns the normalized media kind for the playing item.
func (n *JellyfinNowPlayingItem) GetMediaKind() MediaKind {
	switch strings.ToLower(n.Type) {
	case "movie":
		return KindMovie
	case "episode":
		return KindEpisode
	default:
		return KindOther
	}
}

// GetProviderID returns the item's external identifier for the named
// metadata provider ("Imdb", "Tmdb"), or "" when absent.
func (n *JellyfinNowPlayingItem) GetProviderID(provider string) string {
	if n.ProviderIDs == nil {
		return ""
	}
	return n.ProviderIDs[provider]
}

// GetProviderID returns the item's external identifier for the named
// metadata provider, or "" when absent.
func (i *JellyfinItem) GetProviderID(provider string) string {
	if i.ProviderIDs == nil {
		return ""
	}
	return i.ProviderIDs[provider]
}
