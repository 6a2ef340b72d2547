// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package debounce

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trackbridge/trackbridge/internal/models"
)

// Key identifies a (user, item) pair. It is a plain value type so it can be
// used directly as a map key without relying on reference identity.
type Key struct {
	UserID uuid.UUID
	ItemID string
}

// Store holds the last accepted observation and the seen-marker history per
// (user, item) pair. It is pure in-memory state: nothing survives a restart.
//
// A single mutex guards both maps. Call volume is one event per active
// session every couple of seconds, so coarse locking is plenty; the critical
// sections contain only map operations and no I/O.
type Store struct {
	mu       sync.Mutex
	progress map[Key]Entry
	seen     map[Key]time.Time

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewStore creates an empty Store using the wall clock.
func NewStore() *Store {
	return &Store{
		progress: make(map[Key]Entry),
		seen:     make(map[Key]time.Time),
		now:      time.Now,
	}
}

// NewStoreWithClock creates an empty Store with an injectable clock.
func NewStoreWithClock(now func() time.Time) *Store {
	s := NewStore()
	s.now = now
	return s
}

// Get returns the debounce entry for the key, if any.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.progress[key]
	return e, ok
}

// Put replaces the debounce entry for the key.
func (s *Store) Put(key Key, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[key] = entry
}

// HasSeenMarker reports whether a seen notification was already dispatched
// for the key within the dedupe window.
func (s *Store) HasSeenMarker(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// RecordSeenMarker records the dispatch time of a seen notification.
func (s *Store) RecordSeenMarker(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = s.now()
}

// Admit runs the admission decision table for one observation and, when the
// observation is accepted, replaces the stored entry in the same critical
// section. The read-decide-replace sequence is atomic per key: two racing
// observations for the same key cannot both read the stale prior.
//
// Returns true when the observation should be synced.
func (s *Store) Admit(key Key, obs models.Observation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prior *Entry
	if e, ok := s.progress[key]; ok {
		prior = &e
	}

	if ShouldSkip(prior, obs) {
		return false
	}

	s.progress[key] = Entry{
		Action:    obs.Action,
		Progress:  obs.Progress,
		Timestamp: obs.Timestamp,
	}
	return true
}

// TryMarkSeen checks the seen threshold and, on the first crossing for the
// key, records the marker before returning. Recording up front keeps the
// notification at-most-once even when the outbound call afterwards is slow or
// fails; a lost notification is an accepted tradeoff and the marker is never
// rolled back.
func (s *Store) TryMarkSeen(key Key, progress float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hasMarker := s.seen[key]
	if !ShouldMarkSeen(progress, hasMarker) {
		return false
	}

	s.seen[key] = s.now()
	return true
}

// Cleanup evicts debounce entries older than ProgressUpdateInterval and seen
// markers older than SeenDedupeWindow. The bridge calls it once per incoming
// playback event, before any lookup, so stale state never influences a
// decision.
func (s *Store) Cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.progress {
		if now.Sub(entry.Timestamp) >= ProgressUpdateInterval {
			delete(s.progress, key)
		}
	}

	for key, markedAt := range s.seen {
		if now.Sub(markedAt) >= SeenDedupeWindow {
			delete(s.seen, key)
		}
	}
}

// Len returns the number of live debounce entries and seen markers.
func (s *Store) Len() (entries, markers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.progress), len(s.seen)
}
