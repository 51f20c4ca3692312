package hook

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/handbox/internal/tracker"
)

var epoch = time.Unix(1700000000, 0)

func result(frame uint64, players ...int) tracker.Result {
	res := tracker.Result{
		Frame:     frame,
		Timestamp: epoch.Add(time.Duration(frame) * 33 * time.Millisecond),
		Players:   make(map[int]tracker.PlayerResult),
	}
	for _, id := range players {
		res.Players[id] = tracker.PlayerResult{ID: id}
	}
	return res
}

func TestDispatcher_Events(t *testing.T) {
	d := NewDispatcher(NewManager(t.TempDir()), NewExecutor(0), 0)

	first := result(1, 1, 2)
	first.Calibrated = map[int]float64{1: 200}

	second := result(2, 2)
	second.Skipped = []int{3}

	third := result(3, 3)

	tests := []struct {
		name string
		res  tracker.Result
		want []*Request
	}{
		{
			name: "enter and calibrate",
			res:  first,
			want: []*Request{
				{Event: EventPlayerEntered, Frame: 1, Timestamp: first.Timestamp.UnixMilli(), Players: []int{1, 2}},
				{Event: EventCalibrated, Frame: 1, Timestamp: first.Timestamp.UnixMilli(), Players: []int{1}, Distances: map[int]float64{1: 200}},
			},
		},
		{
			name: "skipped player counts as present",
			res:  second,
			want: []*Request{
				{Event: EventPlayerEntered, Frame: 2, Timestamp: second.Timestamp.UnixMilli(), Players: []int{3}},
				{Event: EventPlayerLeft, Frame: 2, Timestamp: second.Timestamp.UnixMilli(), Players: []int{1}},
			},
		},
		{
			name: "leave",
			res:  third,
			want: []*Request{
				{Event: EventPlayerLeft, Frame: 3, Timestamp: third.Timestamp.UnixMilli(), Players: []int{2}},
			},
		},
		{
			name: "steady",
			res:  result(4, 3),
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, d.Events(tt.res)); diff != "" {
				t.Errorf("Events() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(NewManager(t.TempDir()), NewExecutor(0), 1)

	d.Publish(result(1, 1))
	d.Publish(result(2))

	if n := len(d.queue); n != 1 {
		t.Errorf("queued %d requests, want 1", n)
	}
}

func TestDispatcher_Delivers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	hooksDir := t.TempDir()
	writeManifest(t, hooksDir, Manifest{Name: "log", Executable: "log.sh", Events: []string{EventPlayerEntered, EventCalibrated}})
	script := "#!/bin/sh\ncat >> events.jsonl\necho >> events.jsonl\n"
	if err := os.WriteFile(filepath.Join(hooksDir, "log", "log.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	manager := NewManager(hooksDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(manager, NewExecutor(time.Second), 0)
	d.Start(ctx)

	res := result(1, 5)
	res.Calibrated = map[int]float64{5: 190}
	d.Publish(res)
	d.Publish(result(2)) // player_left has no subscriber

	out := filepath.Join(hooksDir, "log", "events.jsonl")
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, _ := os.ReadFile(out)
		if strings.Count(string(data), "\n") >= 2 {
			if !strings.Contains(string(data), `"event":"player_entered"`) || !strings.Contains(string(data), `"event":"calibrated"`) {
				t.Errorf("unexpected events: %s", data)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hook did not receive both events, got %q", data)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	d.Wait()
}
