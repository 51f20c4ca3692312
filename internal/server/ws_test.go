package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handbox/internal/server/api"
	"github.com/ayusman/handbox/internal/tracker"
)

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients, have %d", n, h.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	srv := New(Config{Tracker: &fakeTracker{}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/players/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitForClients(t, srv.Hub(), 1)

	srv.Publish(tracker.Result{
		Frame:   7,
		Players: map[int]tracker.PlayerResult{3: {ID: 3, HalfExtent: 120}},
		Status:  []string{tracker.StatusCalibrating},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var snap api.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.Frame != 7 || len(snap.Players) != 1 || snap.Players[0].HalfExtent != 120 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	conn.Close()
	waitForClients(t, srv.Hub(), 0)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	h := NewHub()
	h.Publish(api.Snapshot{})
	if h.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", h.Clients())
	}
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	srv := New(Config{Tracker: &fakeTracker{}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	srv.Hub().Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/players/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the closed hub to drop the connection")
	}
	if srv.Hub().Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", srv.Hub().Clients())
	}
}
