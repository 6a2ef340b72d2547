// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaKind classifies a playing item for sync purposes.
type MediaKind string

const (
	KindMovie   MediaKind = "movie"
	KindEpisode MediaKind = "episode"
	KindOther   MediaKind = "other"
)

// PlaybackAction is the playback state reported to MediaTracker.
type PlaybackAction string

const (
	ActionPlaying PlaybackAction = "playing"
	ActionPaused  PlaybackAction = "paused"
)

// ExternalIDs holds a title's external identifiers. At least one must be
// present for the title to be syncable.
type ExternalIDs struct {
	ImdbID *string `json:"imdbId"`
	TmdbID *int64  `json:"tmdbId"`
}

// HasAny returns true if at least one external identifier is present.
func (e ExternalIDs) HasAny() bool {
	return e.ImdbID != nil || e.TmdbID != nil
}

// Viewable is a movie or single episode eligible for watch tracking.
// For episodes, SeasonNumber and EpisodeNumber are required and the external
// IDs refer to the series, matching MediaTracker's by-external-id contract.
type Viewable struct {
	ItemID        string
	Kind          MediaKind
	IDs           ExternalIDs
	SeasonNumber  *int
	EpisodeNumber *int
	Title         string // content title for logging only
}

// Observation is one immutable (user, item, action, progress, time) sample
// derived from a playback event. Progress is position/duration, deliberately
// unclamped: upstream rounding can push it slightly past 1.0 at end of
// playback and that raw value is what flows through admission and the seen
// threshold.
type Observation struct {
	UserID    uuid.UUID
	ItemID    string
	Action    PlaybackAction
	Progress  float64
	Timestamp time.Time
}
