// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

// Package debounce decides which playback observations are worth sending to
// MediaTracker. It collapses the high-frequency telemetry stream from
// Jellyfin into sparse progress updates and guarantees the one-time "seen"
// notification per (user, item) pair.
package debounce

import (
	"math"
	"time"

	"github.com/trackbridge/trackbridge/internal/models"
)

const (
	// MinProgressDelta is the progress change (1 percentage point) that
	// always forces an update regardless of timing.
	MinProgressDelta = 0.01

	// ProgressUpdateInterval caps update frequency while sub-threshold
	// movement continues. It doubles as the retention window for debounce
	// entries: an entry older than this can no longer suppress anything.
	ProgressUpdateInterval = 30 * time.Second

	// SeenThreshold is the progress fraction above which a title counts as
	// watched.
	SeenThreshold = 0.85

	// SeenDedupeWindow is how long a second "seen" notification for the
	// same pair stays suppressed. After it elapses a rewatch is eligible
	// again.
	SeenDedupeWindow = 12 * time.Hour
)

// Entry is the most recently accepted observation for a (user, item) pair.
// Entries are replaced wholesale on acceptance, never mutated in place.
type Entry struct {
	Action    models.PlaybackAction
	Progress  float64
	Timestamp time.Time
}

// ShouldSkip implements the admission decision table, first match wins:
//
//  1. no prior entry            -> accept
//  2. action changed            -> accept
//  3. progress identical        -> skip
//  4. |delta| >= MinProgressDelta -> accept
//  5. otherwise accept only once ProgressUpdateInterval has elapsed
//
// prior is nil when no entry exists for the key.
func ShouldSkip(prior *Entry, next models.Observation) bool {
	if prior == nil {
		return false
	}

	if prior.Action != next.Action {
		return false
	}

	if prior.Progress == next.Progress {
		return true
	}

	if math.Abs(prior.Progress-next.Progress) >= MinProgressDelta {
		return false
	}

	return next.Timestamp.Sub(prior.Timestamp) < ProgressUpdateInterval
}

// ShouldMarkSeen returns true iff progress has crossed the seen threshold and
// no live marker exists for the key. Progress arrives unclamped, so values a
// hair above 1.0 still satisfy the threshold.
func ShouldMarkSeen(progress float64, hasMarker bool) bool {
	return progress > SeenThreshold && !hasMarker
}
