// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestJellyfinWSMessage_CarriesRawData(t *testing.T) {
	raw := []byte(`{"MessageType":"Sessions","MessageId":"m1","Data":[{"Id":"s1","UserName":"alice"}]}`)

	var msg JellyfinWSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.MessageType != "Sessions" {
		t.Errorf("type = %s, want Sessions", msg.MessageType)
	}

	var sessions []JellyfinSession
	if err := json.Unmarshal(msg.Data, &sessions); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestJellyfinSession_Action(t *testing.T) {
	playing := &JellyfinSession{
		NowPlayingItem: &JellyfinNowPlayingItem{Name: "Movie"},
		PlayState:      &JellyfinPlayState{IsPaused: false},
	}
	if playing.Action() != ActionPlaying {
		t.Errorf("expected playing, got %s", playing.Action())
	}

	paused := &JellyfinSession{
		NowPlayingItem: &JellyfinNowPlayingItem{Name: "Movie"},
		PlayState:      &JellyfinPlayState{IsPaused: true},
	}
	if paused.Action() != ActionPaused {
		t.Errorf("expected paused, got %s", paused.Action())
	}
}

func TestNowPlayingItem_GetMediaKind(t *testing.T) {
	cases := []struct {
		itemType string
		want     MediaKind
	}{
		{"Movie", KindMovie},
		{"movie", KindMovie},
		{"Episode", KindEpisode},
		{"Audio", KindOther},
		{"MusicAlbum", KindOther},
		{"", KindOther},
	}
	for _, tc := range cases {
		item := &JellyfinNowPlayingItem{Type: tc.itemType}
		if got := item.GetMediaKind(); got != tc.want {
			t.Errorf("GetMediaKind(%q) = %s, want %s", tc.itemType, got, tc.want)
		}
	}
}

func TestJellyfinSession_GetContentTitle(t *testing.T) {
	season, episode := 2, 5
	s := &JellyfinSession{
		NowPlayingItem: &JellyfinNowPlayingItem{
			Name:              "The One With The Test",
			SeriesName:        "Friends",
			ParentIndexNumber: &season,
			IndexNumber:       &episode,
		},
	}
	if got := s.GetContentTitle(); got != "Friends - S02E05 - The One With The Test" {
		t.Errorf("unexpected title: %q", got)
	}

	movie := &JellyfinSession{NowPlayingItem: &JellyfinNowPlayingItem{Name: "Heat"}}
	if got := movie.GetContentTitle(); got != "Heat" {
		t.Errorf("unexpected movie title: %q", got)
	}
}

func TestExternalIDs_HasAny(t *testing.T) {
	imdb := "tt0113277"
	tmdb := int64(949)

	if (ExternalIDs{}).HasAny() {
		t.Error("empty IDs should not report HasAny")
	}
	if !(ExternalIDs{ImdbID: &imdb}).HasAny() {
		t.Error("imdb-only IDs should report HasAny")
	}
	if !(ExternalIDs{TmdbID: &tmdb}).HasAny() {
		t.Error("tmdb-only IDs should report HasAny")
	}
}

// The two outbound payload shapes are part of the MediaTracker wire contract:
// seen payloads must not carry action/progress/device, and absent external IDs
// serialize as JSON null inside the id object.
func TestPayloadShapes(t *testing.T) {
	imdb := "tt0113277"
	season, episode := 1, 3

	progress, err := json.Marshal(ProgressPayload{
		MediaType:     MediaTypeTV,
		ID:            ExternalIDs{ImdbID: &imdb},
		SeasonNumber:  &season,
		EpisodeNumber: &episode,
		Action:        ActionPlaying,
		Progress:      0.42,
		Duration:      5_400_000,
		Device:        "Living Room TV",
	})
	if err != nil {
		t.Fatalf("marshal progress payload: %v", err)
	}
	for _, want := range []string{`"mediaType":"tv"`, `"imdbId":"tt0113277"`, `"tmdbId":null`, `"seasonNumber":1`, `"episodeNumber":3`, `"action":"playing"`, `"device":"Living Room TV"`} {
		if !strings.Contains(string(progress), want) {
			t.Errorf("progress payload missing %s: %s", want, progress)
		}
	}

	seen, err := json.Marshal(SeenPayload{
		MediaType: MediaTypeMovie,
		ID:        ExternalIDs{ImdbID: &imdb},
		Duration:  6_900_000,
	})
	if err != nil {
		t.Fatalf("marshal seen payload: %v", err)
	}
	for _, absent := range []string{"action", "progress", "device", "seasonNumber"} {
		if strings.Contains(string(seen), absent) {
			t.Errorf("seen payload must not carry %q: %s", absent, seen)
		}
	}
	if !strings.Contains(string(seen), `"mediaType":"movie"`) {
		t.Errorf("seen payload missing media type: %s", seen)
	}
}
