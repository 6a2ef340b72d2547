// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trackbridge/trackbridge/internal/models"
)

func testKey(t *testing.T) Key {
	t.Helper()
	return Key{
		UserID: uuid.MustParse("a2f5c5e2-1f8a-4c8f-9a6b-0c6e2b9b7d11"),
		ItemID: "item-42",
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestStore_Admit_FirstObservationAccepted(t *testing.T) {
	store := NewStore()
	key := testKey(t)
	t0 := time.Now()

	if !store.Admit(key, obsAt(models.ActionPlaying, 0.10, t0)) {
		t.Fatal("first observation must be accepted")
	}

	entry, ok := store.Get(key)
	if !ok {
		t.Fatal("entry missing after acceptance")
	}
	if entry.Progress != 0.10 || entry.Action != models.ActionPlaying {
		t.Errorf("stored entry mismatch: %+v", entry)
	}
}

func TestStore_Admit_IdenticalRepeatsSkipped(t *testing.T) {
	store := NewStore()
	key := testKey(t)
	t0 := time.Now()

	if !store.Admit(key, obsAt(models.ActionPlaying, 0.25, t0)) {
		t.Fatal("first observation must be accepted")
	}
	for i := 1; i <= 5; i++ {
		if store.Admit(key, obsAt(models.ActionPlaying, 0.25, t0.Add(time.Duration(i)*time.Second))) {
			t.Errorf("identical repeat %d was accepted", i)
		}
	}
}

func TestStore_Admit_SkipDoesNotTouchEntry(t *testing.T) {
	store := NewStore()
	key := testKey(t)
	t0 := time.Now()

	store.Admit(key, obsAt(models.ActionPlaying, 0.40, t0))
	store.Admit(key, obsAt(models.ActionPlaying, 0.405, t0.Add(5*time.Second)))

	entry, _ := store.Get(key)
	if !entry.Timestamp.Equal(t0) || entry.Progress != 0.40 {
		t.Errorf("skipped observation mutated the entry: %+v", entry)
	}

	// The 30s timer keeps running from the original acceptance, so the
	// next sub-threshold sample after the boundary is accepted.
	if !store.Admit(key, obsAt(models.ActionPlaying, 0.406, t0.Add(31*time.Second))) {
		t.Error("sub-threshold sample after window boundary must be accepted")
	}
}

func TestStore_Admit_ActionChangeAlwaysSignificant(t *testing.T) {
	store := NewStore()
	key := testKey(t)
	t0 := time.Now()

	store.Admit(key, obsAt(models.ActionPlaying, 0.50, t0))
	if !store.Admit(key, obsAt(models.ActionPaused, 0.50, t0.Add(time.Second))) {
		t.Error("paused after playing must be accepted")
	}
	if !store.Admit(key, obsAt(models.ActionPlaying, 0.50, t0.Add(2*time.Second))) {
		t.Error("playing after paused must be accepted")
	}
}

func TestStore_TryMarkSeen_AtMostOnce(t *testing.T) {
	now := time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(fixedClock(now))
	key := testKey(t)

	if store.TryMarkSeen(key, 0.80) {
		t.Error("below threshold must not mark seen")
	}
	if !store.TryMarkSeen(key, 0.90) {
		t.Error("first crossing must mark seen")
	}
	for _, p := range []float64{0.91, 0.99, 1.0, 1.004} {
		if store.TryMarkSeen(key, p) {
			t.Errorf("repeat crossing at %v must be suppressed", p)
		}
	}
}

func TestStore_TryMarkSeen_EligibleAgainAfterDedupeWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 21, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(fixedClock(now))
	key := testKey(t)

	if !store.TryMarkSeen(key, 0.90) {
		t.Fatal("first crossing must mark seen")
	}

	// 12 hours later a cleanup evicts the marker and a rewatch is eligible.
	store.Cleanup(now.Add(SeenDedupeWindow))
	if !store.TryMarkSeen(key, 0.95) {
		t.Error("crossing after dedupe window must mark seen again")
	}
}

func TestStore_Cleanup_ExactBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(fixedClock(now))

	fresh := Key{UserID: uuid.New(), ItemID: "fresh"}
	stale := Key{UserID: uuid.New(), ItemID: "stale"}
	boundary := Key{UserID: uuid.New(), ItemID: "boundary"}

	store.Put(fresh, Entry{Action: models.ActionPlaying, Progress: 0.1, Timestamp: now.Add(-29 * time.Second)})
	store.Put(stale, Entry{Action: models.ActionPlaying, Progress: 0.2, Timestamp: now.Add(-31 * time.Second)})
	store.Put(boundary, Entry{Action: models.ActionPlaying, Progress: 0.3, Timestamp: now.Add(-ProgressUpdateInterval)})

	store.Cleanup(now)

	if _, ok := store.Get(fresh); !ok {
		t.Error("fresh entry evicted")
	}
	if _, ok := store.Get(stale); ok {
		t.Error("stale entry survived cleanup")
	}
	if _, ok := store.Get(boundary); ok {
		t.Error("entry exactly at the retention boundary must be evicted")
	}

	// Survivors are untouched.
	entry, _ := store.Get(fresh)
	if entry.Progress != 0.1 || !entry.Timestamp.Equal(now.Add(-29*time.Second)) {
		t.Errorf("surviving entry was modified: %+v", entry)
	}
}

func TestStore_Cleanup_SeenMarkers(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(fixedClock(now.Add(-11 * time.Hour)))

	recent := Key{UserID: uuid.New(), ItemID: "recent"}
	store.RecordSeenMarker(recent)

	old := Key{UserID: uuid.New(), ItemID: "old"}
	store.now = fixedClock(now.Add(-13 * time.Hour))
	store.RecordSeenMarker(old)

	store.Cleanup(now)

	if !store.HasSeenMarker(recent) {
		t.Error("marker within 12h evicted")
	}
	if store.HasSeenMarker(old) {
		t.Error("marker older than 12h survived cleanup")
	}
}

func TestStore_Admit_ConcurrentSameKey(t *testing.T) {
	store := NewStore()
	key := testKey(t)
	t0 := time.Now()

	// All goroutines race the identical observation; exactly one may win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Admit(key, obsAt(models.ActionPlaying, 0.33, t0)) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("expected exactly 1 acceptance, got %d", accepted)
	}
}

func TestStore_CleanupConcurrentWithAdmit(t *testing.T) {
	store := NewStore()
	t0 := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := Key{UserID: uuid.New(), ItemID: "item"}
			for j := 0; j < 100; j++ {
				store.Admit(key, obsAt(models.ActionPlaying, float64(j)/100, t0.Add(time.Duration(j)*time.Millisecond)))
				store.Cleanup(t0.Add(time.Duration(j) * time.Millisecond))
				store.TryMarkSeen(key, float64(j)/100)
			}
		}(i)
	}
	wg.Wait()
}
