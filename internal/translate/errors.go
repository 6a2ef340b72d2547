// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package translate

import "errors"

// Translation failures are terminal for the event: the bridge logs them and
// moves on. None of them mutates debounce state or reaches the dispatcher.
var (
	// ErrIncompleteEvent marks events missing users, item, position,
	// duration, or (for episodes) season/episode numbers.
	ErrIncompleteEvent = errors.New("incomplete playback event")

	// ErrUnsupportedMediaKind marks items that are neither movie nor
	// episode. Logged at debug level only; music and photos are expected
	// traffic, not errors.
	ErrUnsupportedMediaKind = errors.New("unsupported media kind")

	// ErrMissingExternalIDs marks items with neither an IMDB id nor a
	// parsable TMDB id. MediaTracker cannot address such titles.
	ErrMissingExternalIDs = errors.New("missing external identifiers")
)
