// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package models

// MediaTracker payload media types.
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// ProgressPayload is the body of PUT /api/progress/by-external-id.
// Movie and episode updates share this envelope; the episode variant carries
// seasonNumber/episodeNumber and its ID refers to the series.
type ProgressPayload struct {
	MediaType     string         `json:"mediaType"`
	ID            ExternalIDs    `json:"id"`
	SeasonNumber  *int           `json:"seasonNumber,omitempty"`
	EpisodeNumber *int           `json:"episodeNumber,omitempty"`
	Action        PlaybackAction `json:"action"`
	Progress      float64        `json:"progress"`
	Duration      int64          `json:"duration"` // milliseconds
	Device        string         `json:"device"`
}

// SeenPayload is the body of PUT /api/seen/by-external-id.
// Seen notifications carry no action, progress, or device.
type SeenPayload struct {
	MediaType     string      `json:"mediaType"`
	ID            ExternalIDs `json:"id"`
	SeasonNumber  *int        `json:"seasonNumber,omitempty"`
	EpisodeNumber *int        `json:"episodeNumber,omitempty"`
	Duration      int64       `json:"duration"` // milliseconds
}
