// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package jellyfin

import (
	"context"
	"sync"
	"time"

	"github.com/trackbridge/trackbridge/internal/models"
	"github.com/trackbridge/trackbridge/internal/translate"
)

// seriesCacheTTL bounds how long resolved series ids are reused. Provider ids
// almost never change, so this only exists to pick up metadata refreshes.
const seriesCacheTTL = time.Hour

// SeriesResolver looks up series-level external ids for episodes via the
// /Items API, with a small in-memory cache so a binge session does not hit
// Jellyfin once per progress tick.
type SeriesResolver struct {
	client ClientInterface

	mu    sync.Mutex
	cache map[string]seriesCacheEntry
}

type seriesCacheEntry struct {
	ids     models.ExternalIDs
	fetched time.Time
}

// NewSeriesResolver creates a resolver backed by the given client.
func NewSeriesResolver(client ClientInterface) *SeriesResolver {
	return &SeriesResolver{
		client: client,
		cache:  make(map[string]seriesCacheEntry),
	}
}

// SeriesExternalIDs returns the Imdb/Tmdb ids of a series. Errors are not
// cached; the next episode event retries the lookup.
func (r *SeriesResolver) SeriesExternalIDs(ctx context.Context, seriesID string) (models.ExternalIDs, error) {
	r.mu.Lock()
	entry, ok := r.cache[seriesID]
	r.mu.Unlock()
	if ok && time.Since(entry.fetched) < seriesCacheTTL {
		return entry.ids, nil
	}

	item, err := r.client.GetItem(ctx, seriesID)
	if err != nil {
		return models.ExternalIDs{}, err
	}

	ids := translate.ExternalIDsFromProviders(item.ProviderIDs)

	r.mu.Lock()
	r.cache[seriesID] = seriesCacheEntry{ids: ids, fetched: time.Now()}
	r.mu.Unlock()

	return ids, nil
}
