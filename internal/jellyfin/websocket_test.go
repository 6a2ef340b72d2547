// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

package jellyfin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/trackbridge/trackbridge/internal/models"
)

// wsTestServer upgrades one connection, waits for the SessionsStart
// subscription, then pushes the given messages.
func wsTestServer(t *testing.T, push []models.JellyfinWSMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		// First client message must be the session subscription.
		var sub SessionsStartRequest
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscription: %v", err)
			return
		}
		if sub.MessageType != "SessionsStart" || sub.Data != "0,1500" {
			t.Errorf("unexpected subscription: %+v", sub)
		}

		for _, msg := range push {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket"
}

func TestWebSocketClient_ReceivesSessions(t *testing.T) {
	sessions := []models.JellyfinSession{{ID: "s1", UserName: "alice"}}
	data, _ := json.Marshal(sessions)

	srv := wsTestServer(t, []models.JellyfinWSMessage{
		{MessageType: "KeepAlive"},
		{MessageType: "Sessions", Data: data},
	})
	defer srv.Close()

	received := make(chan []models.JellyfinSession, 1)
	client := NewWebSocketClient(wsURL(srv))
	client.SetCallbacks(func(s []models.JellyfinSession) {
		select {
		case received <- s:
		default:
		}
	}, nil)

	if err := client.Connect(t.Context()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	select {
	case got := <-received:
		if len(got) != 1 || got[0].ID != "s1" {
			t.Errorf("sessions = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session callback never fired")
	}

	if !client.IsConnected() {
		t.Error("client should report connected")
	}
}

func TestWebSocketClient_PlaystateCallback(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{"SessionId": "s1", "Command": "Stop"})

	srv := wsTestServer(t, []models.JellyfinWSMessage{
		{MessageType: "Playstate", Data: payload},
	})
	defer srv.Close()

	type playstate struct{ session, command string }
	received := make(chan playstate, 1)

	client := NewWebSocketClient(wsURL(srv))
	client.SetCallbacks(nil, func(sessionID, command string) {
		select {
		case received <- playstate{sessionID, command}:
		default:
		}
	})

	if err := client.Connect(t.Context()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	select {
	case got := <-received:
		if got.session != "s1" || got.command != "Stop" {
			t.Errorf("playstate = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playstate callback never fired")
	}
}

func TestWebSocketClient_CloseIsIdempotent(t *testing.T) {
	srv := wsTestServer(t, nil)
	defer srv.Close()

	client := NewWebSocketClient(wsURL(srv))
	if err := client.Connect(t.Context()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = client.Close()
		}()
	}
	wg.Wait()

	if client.IsConnected() {
		t.Error("client should be disconnected after Close")
	}
}

func TestWebSocketClient_DialFailure(t *testing.T) {
	client := NewWebSocketClient("ws://127.0.0.1:1/socket")
	if err := client.Connect(t.Context()); err == nil {
		t.Error("expected dial error")
	}
}
