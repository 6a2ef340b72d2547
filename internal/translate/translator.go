// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

/*
translator.go - Playback Event Translator

Maps a raw Jellyfin session snapshot into per-user Observations plus the
Viewable they refer to, and builds the outbound MediaTracker payloads for
accepted observations. All validation that makes an event unsyncable happens
here, before any debounce state is touched.
*/

package translate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/trackbridge/trackbridge/internal/models"
)

// SeriesIDResolver looks up series-level external identifiers for an episode.
// MediaTracker addresses episodes by the ids of their series, but Jellyfin
// session items only carry episode-level provider ids.
type SeriesIDResolver interface {
	SeriesExternalIDs(ctx context.Context, seriesID string) (models.ExternalIDs, error)
}

// Result is a fully validated translation of one session snapshot.
type Result struct {
	Viewable     models.Viewable
	Observations []models.Observation // one per affected user
	DurationMS   int64
	Device       string
}

// Translator turns Jellyfin sessions into admission-policy input.
type Translator struct {
	resolver SeriesIDResolver
}

// NewTranslator creates a Translator. resolver is only consulted for
// episodes; it may be nil when episode sync is not needed (tests).
func NewTranslator(resolver SeriesIDResolver) *Translator {
	return &Translator{resolver: resolver}
}

// Translate validates the session and produces one Observation per user.
//
// The returned error classifies why the event is unsyncable (see errors.go);
// a nil Result with a non-nil error means no downstream work at all.
func (t *Translator) Translate(ctx context.Context, session *models.JellyfinSession, action models.PlaybackAction, now time.Time) (*Result, error) {
	if session == nil || session.NowPlayingItem == nil {
		return nil, fmt.Errorf("%w: missing item", ErrIncompleteEvent)
	}

	item := session.NowPlayingItem

	kind := item.GetMediaKind()
	if kind == models.KindOther {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaKind, item.Type)
	}

	if session.PlayState == nil || session.PlayState.PositionTicks == nil {
		return nil, fmt.Errorf("%w: missing position", ErrIncompleteEvent)
	}
	if item.RunTimeTicks <= 0 {
		return nil, fmt.Errorf("%w: missing duration", ErrIncompleteEvent)
	}

	users, err := sessionUsers(session)
	if err != nil {
		return nil, err
	}

	viewable := models.Viewable{
		ItemID: item.ID,
		Kind:   kind,
		Title:  session.GetContentTitle(),
	}

	if kind == models.KindEpisode {
		if item.SeriesID == "" {
			return nil, fmt.Errorf("%w: missing series", ErrIncompleteEvent)
		}
		if item.ParentIndexNumber == nil {
			return nil, fmt.Errorf("%w: missing season number", ErrIncompleteEvent)
		}
		if item.IndexNumber == nil {
			return nil, fmt.Errorf("%w: missing episode number", ErrIncompleteEvent)
		}
		viewable.SeasonNumber = item.ParentIndexNumber
		viewable.EpisodeNumber = item.IndexNumber

		if t.resolver == nil {
			return nil, fmt.Errorf("%w: no series resolver", ErrMissingExternalIDs)
		}
		ids, err := t.resolver.SeriesExternalIDs(ctx, item.SeriesID)
		if err != nil {
			return nil, fmt.Errorf("series id lookup for %s: %w", item.SeriesID, err)
		}
		viewable.IDs = ids
	} else {
		viewable.IDs = ExternalIDsFromProviders(item.ProviderIDs)
	}

	if !viewable.IDs.HasAny() {
		return nil, fmt.Errorf("%w: item %s", ErrMissingExternalIDs, item.ID)
	}

	// Progress is deliberately not clamped: end-of-playback rounding can
	// push position a hair past duration and the raw ratio is forwarded.
	progress := float64(*session.PlayState.PositionTicks) / float64(item.RunTimeTicks)
	durationMS := item.RunTimeTicks / models.TicksPerSecond * 1000

	observations := make([]models.Observation, 0, len(users))
	for _, userID := range users {
		observations = append(observations, models.Observation{
			UserID:    userID,
			ItemID:    item.ID,
			Action:    action,
			Progress:  progress,
			Timestamp: now,
		})
	}

	return &Result{
		Viewable:     viewable,
		Observations: observations,
		DurationMS:   durationMS,
		Device:       session.DeviceName,
	}, nil
}

// sessionUsers collects the primary user plus any shared-session users.
func sessionUsers(session *models.JellyfinSession) ([]uuid.UUID, error) {
	if session.UserID == "" {
		return nil, fmt.Errorf("%w: missing users", ErrIncompleteEvent)
	}

	primary, err := uuid.Parse(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed user id %q", ErrIncompleteEvent, session.UserID)
	}

	users := []uuid.UUID{primary}
	for _, extra := range session.AdditionalUsers {
		id, err := uuid.Parse(extra.UserID)
		if err != nil {
			continue // skip malformed shared-session entries, keep the rest
		}
		users = append(users, id)
	}
	return users, nil
}

// ExternalIDsFromProviders extracts IMDB and TMDB identifiers from a Jellyfin
// ProviderIds map. A TMDB value that does not parse as int64 is treated as
// absent.
func ExternalIDsFromProviders(providers map[string]string) models.ExternalIDs {
	var ids models.ExternalIDs

	if imdb := providers[models.ProviderImdb]; imdb != "" {
		ids.ImdbID = &imdb
	}
	if raw := providers[models.ProviderTmdb]; raw != "" {
		if tmdb, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ids.TmdbID = &tmdb
		}
	}
	return ids
}

// BuildProgressPayload assembles the PUT /api/progress/by-external-id body
// for an accepted observation.
func BuildProgressPayload(v models.Viewable, action models.PlaybackAction, progress float64, durationMS int64, device string) models.ProgressPayload {
	return models.ProgressPayload{
		MediaType:     mediaType(v.Kind),
		ID:            v.IDs,
		SeasonNumber:  v.SeasonNumber,
		EpisodeNumber: v.EpisodeNumber,
		Action:        action,
		Progress:      progress,
		Duration:      durationMS,
		Device:        device,
	}
}

// BuildSeenPayload assembles the PUT /api/seen/by-external-id body.
func BuildSeenPayload(v models.Viewable, durationMS int64) models.SeenPayload {
	return models.SeenPayload{
		MediaType:     mediaType(v.Kind),
		ID:            v.IDs,
		SeasonNumber:  v.SeasonNumber,
		EpisodeNumber: v.EpisodeNumber,
		Duration:      durationMS,
	}
}

// mediaType maps the internal media kind onto MediaTracker's wire values.
func mediaType(kind models.MediaKind) string {
	if kind == models.KindEpisode {
		return models.MediaTypeTV
	}
	return models.MediaTypeMovie
}
