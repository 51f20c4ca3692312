package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handbox/internal/app"
	"github.com/ayusman/handbox/internal/calibration"
	"github.com/ayusman/handbox/internal/server"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/store"
	"github.com/ayusman/handbox/internal/tracker"
	"github.com/ayusman/handbox/internal/testutil"
)

type hand struct {
	State string          `json:"state"`
	Box   json.RawMessage `json:"box"`
}

type player struct {
	ID                 int      `json:"id"`
	HalfExtent         float64  `json:"half_extent"`
	LeftHand           hand     `json:"left_hand"`
	RightHand          hand     `json:"right_hand"`
	CalibratedDistance *float64 `json:"calibrated_distance"`
}

type snapshot struct {
	Frame       uint64   `json:"frame"`
	Players     []player `json:"players"`
	Status      []string `json:"status"`
	Calibration struct {
		State string `json:"state"`
	} `json:"calibration"`
}

func trackerConfig(auto bool) tracker.Config {
	cfg := tracker.DefaultConfig()
	cfg.AutoCalibrate = auto
	cfg.Calibration = calibration.Config{Samples: 3}
	return cfg
}

func getJSON(t *testing.T, client *http.Client, url string, v any) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func waitDone(t *testing.T, a *app.App) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not finish")
	}
}

func TestE2E_RecordedSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	frames := testutil.MustLoadFrames(t, testutil.TwoPlayers)

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	rec, err := s.Record(&store.Session{Name: "two players", Source: "fixture"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	var srv *server.Server
	application := app.New(app.Config{
		Source:   skeleton.NewMockSource(frames, false),
		Tracker:  trackerConfig(true),
		Recorder: rec,
		Publishers: []app.Publisher{app.PublisherFunc(func(res tracker.Result) {
			srv.Publish(res)
		})},
	})
	srv = server.New(server.Config{Store: s, Tracker: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, application)
	application.Stop()
	if err := rec.Close(); err != nil {
		t.Fatalf("Recorder.Close() error = %v", err)
	}
	sessionID := rec.Session().ID

	t.Run("LatestSnapshot", func(t *testing.T) {
		var snap snapshot
		testutil.AssertStatusCode(t, getJSON(t, client, ts.URL+"/api/players", &snap), http.StatusOK)
		if snap.Frame != uint64(len(frames)) {
			t.Errorf("frame = %d, want %d", snap.Frame, len(frames))
		}
		if len(snap.Players) != 1 || snap.Players[0].ID != 2 {
			t.Fatalf("players = %+v, want only player 2", snap.Players)
		}
		// Player 2 entered after the one automatic calibration.
		if snap.Players[0].CalibratedDistance != nil {
			t.Error("player 2 should not be calibrated")
		}
		if len(snap.Players[0].RightHand.Box) != 0 {
			t.Error("uncalibrated player should have no box")
		}
	})

	t.Run("SessionListed", func(t *testing.T) {
		var list struct {
			Sessions []struct {
				ID     string `json:"id"`
				Frames int    `json:"frames"`
				Ended  string `json:"ended_at"`
			} `json:"sessions"`
		}
		getJSON(t, client, ts.URL+"/api/sessions", &list)
		if len(list.Sessions) != 1 {
			t.Fatalf("sessions = %d, want 1", len(list.Sessions))
		}
		got := list.Sessions[0]
		if got.ID != sessionID || got.Frames != len(frames) || got.Ended == "" {
			t.Errorf("session = %+v, want %s with %d frames, ended", got, sessionID, len(frames))
		}
	})

	t.Run("CalibrationAudit", func(t *testing.T) {
		var detail struct {
			Calibrations []struct {
				PlayerID int     `json:"player_id"`
				Distance float64 `json:"distance"`
			} `json:"calibrations"`
		}
		getJSON(t, client, ts.URL+"/api/sessions/"+sessionID, &detail)
		if len(detail.Calibrations) != 1 || detail.Calibrations[0].PlayerID != 1 {
			t.Fatalf("calibrations = %+v, want one for player 1", detail.Calibrations)
		}
		if detail.Calibrations[0].Distance <= 0 {
			t.Errorf("distance = %v, want positive", detail.Calibrations[0].Distance)
		}
	})

	t.Run("FramePages", func(t *testing.T) {
		var page struct {
			Frames []json.RawMessage `json:"frames"`
			Next   int64             `json:"next"`
		}
		getJSON(t, client, ts.URL+"/api/sessions/"+sessionID+"/frames?limit=10", &page)
		if len(page.Frames) != 10 || page.Next != 10 {
			t.Errorf("first page = %d frames, next %d; want 10, 10", len(page.Frames), page.Next)
		}

		page.Frames, page.Next = nil, 0
		getJSON(t, client, ts.URL+"/api/sessions/"+sessionID+"/frames?after=55&limit=10", &page)
		if len(page.Frames) != 5 || page.Next != 0 {
			t.Errorf("last page = %d frames, next %d; want 5, 0", len(page.Frames), page.Next)
		}

		// Pages carry the wire format, so they decode back into frames.
		if _, err := skeleton.DecodeFrame(page.Frames[0]); err != nil {
			t.Errorf("DecodeFrame() error = %v", err)
		}
	})

	t.Run("CalibrateAfterStop", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/calibrate", "application/json", nil)
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		testutil.AssertStatusCode(t, resp.StatusCode, http.StatusServiceUnavailable)
	})
}

func TestE2E_ManualCalibration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	frames := testutil.MustLoadFrames(t, testutil.TwoPlayers)
	// Loop the tail where only player 2 remains.
	last := frames[len(frames)-1]

	var srv *server.Server
	application := app.New(app.Config{
		Source:  skeleton.NewMockSource([]skeleton.Frame{last}, true),
		Tracker: trackerConfig(false),
		Publishers: []app.Publisher{app.PublisherFunc(func(res tracker.Result) {
			srv.Publish(res)
		})},
	})
	srv = server.New(server.Config{Tracker: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/players/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	var first snapshot
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if len(first.Players) != 1 || first.Players[0].CalibratedDistance != nil {
		t.Fatalf("first snapshot players = %+v, want one uncalibrated player", first.Players)
	}

	resp, err := client.Post(ts.URL+"/api/calibrate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("calibrate status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		var snap snapshot
		getJSON(t, client, ts.URL+"/api/players", &snap)
		if len(snap.Players) == 1 && snap.Players[0].CalibratedDistance != nil {
			if len(snap.Players[0].RightHand.Box) == 0 {
				t.Error("calibrated player should have a right hand box")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("player never calibrated, last snapshot %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}

	var status struct {
		Ready       bool `json:"ready"`
		Calibration struct {
			State string `json:"state"`
		} `json:"calibration"`
	}
	getJSON(t, client, ts.URL+"/api/status", &status)
	if !status.Ready || status.Calibration.State != "done" {
		t.Errorf("status = %+v, want ready and done", status)
	}
}
