package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handbox/internal/calibration"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/store"
	"github.com/ayusman/handbox/internal/tracker"
)

// fakeTracker wraps a real Processor behind a mutex.
type fakeTracker struct {
	mu     sync.Mutex
	proc   *tracker.Processor
	latest tracker.Result
	ready  bool
}

func newFakeTracker() *fakeTracker {
	cfg := tracker.DefaultConfig()
	cfg.AutoCalibrate = false
	cfg.Calibration = calibration.Config{Samples: 2, SampleInterval: 10 * time.Millisecond}
	return &fakeTracker{proc: tracker.New(cfg)}
}

func (f *fakeTracker) process(frame skeleton.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = f.proc.Process(frame)
	f.ready = true
}

func (f *fakeTracker) Latest() (tracker.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.ready
}

func (f *fakeTracker) Calibrate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proc == nil {
		return nil
	}
	return f.proc.Calibrate()
}

func (f *fakeTracker) CancelCalibration() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proc != nil {
		f.proc.CancelCalibration()
	}
	return nil
}

func TestAPI_CalibrationWorkflow(t *testing.T) {
	ft := newFakeTracker()
	srv := New(Config{Tracker: ft})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	base := time.UnixMilli(1700000000000)
	frame := func(i int) skeleton.Frame {
		return skeleton.Frame{
			Skeletons:   []skeleton.Skeleton{skeleton.StandingSkeleton(1)},
			ImageWidth:  1920,
			ImageHeight: 1080,
			Timestamp:   base.Add(time.Duration(i) * 10 * time.Millisecond),
		}
	}

	// 1. Request a calibration
	resp, err := client.Post(ts.URL+"/api/calibrate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/calibrate error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	// 2. A second request conflicts
	resp, _ = client.Post(ts.URL+"/api/calibrate", "application/json", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second POST status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// 3. Frames drive the calibration to completion
	for i := 0; i < 3; i++ {
		ft.process(frame(i))
	}

	// 4. Players now carry a box position
	resp, err = client.Get(ts.URL + "/api/players")
	if err != nil {
		t.Fatalf("GET /api/players error = %v", err)
	}
	var snap struct {
		Players []struct {
			ID                 int      `json:"id"`
			CalibratedDistance *float64 `json:"calibrated_distance"`
			LeftHand           struct {
				Box *struct {
					Corrected struct{ X, Y float64 } `json:"corrected"`
				} `json:"box"`
			} `json:"left_hand"`
		} `json:"players"`
	}
	json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()

	if len(snap.Players) != 1 {
		t.Fatalf("len(players) = %d, want 1", len(snap.Players))
	}
	if snap.Players[0].CalibratedDistance == nil || snap.Players[0].LeftHand.Box == nil {
		t.Fatalf("player should be calibrated: %+v", snap.Players[0])
	}

	// 5. Status reflects the finished calibration
	resp, _ = client.Get(ts.URL + "/api/status")
	var status struct {
		Ready       bool `json:"ready"`
		Calibration struct {
			State string `json:"state"`
		} `json:"calibration"`
	}
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()

	if !status.Ready || status.Calibration.State != "done" {
		t.Errorf("status = %+v, want ready and done", status)
	}
}

func TestAPI_SessionWorkflow(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	rec, err := st.Record(&store.Session{Name: "demo"})
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Frame(skeleton.Frame{Skeletons: []skeleton.Skeleton{skeleton.StandingSkeleton(2)}}); err != nil {
		t.Fatal(err)
	}
	rec.Close()

	srv := New(Config{Store: st})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. List sessions
	resp, _ := client.Get(ts.URL + "/api/sessions")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/sessions status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var listed struct {
		Sessions []struct {
			ID     string `json:"id"`
			Frames int    `json:"frames"`
		} `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Sessions) != 1 || listed.Sessions[0].Frames != 1 {
		t.Fatalf("listed = %+v", listed)
	}
	id := listed.Sessions[0].ID

	// 2. Delete it
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// 3. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/sessions/" + id)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
