// Package testutil provides shared test helpers and recorded skeleton
// sessions.
package testutil

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"testing"

	"github.com/ayusman/handbox/internal/skeleton"
)

//go:embed testdata/sessions/*.jsonl
var sessionsFS embed.FS

// Session names.
const (
	// TwoPlayers has 60 frames: player 1 leaves at frame 50, player 2 enters
	// at frame 10 and drops its left hand on frame 35.
	TwoPlayers = "two_players.jsonl"
	// SinglePlayer has 30 frames of player 7 waving the right hand.
	SinglePlayer = "single_player.jsonl"
)

// Open returns the raw wire-format lines of a session.
func Open(name string) ([]byte, error) {
	data, err := sessionsFS.ReadFile("testdata/sessions/" + name)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}
	return data, nil
}

// LoadFrames decodes every frame of a session.
func LoadFrames(name string) ([]skeleton.Frame, error) {
	data, err := Open(name)
	if err != nil {
		return nil, err
	}

	var frames []skeleton.Frame
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		frame, err := skeleton.DecodeFrame(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session %s: %w", name, err)
	}

	return frames, nil
}

// MustLoadFrames is LoadFrames that fails the test on error.
func MustLoadFrames(t testing.TB, name string) []skeleton.Frame {
	t.Helper()
	frames, err := LoadFrames(name)
	if err != nil {
		t.Fatalf("LoadFrames(%s) error = %v", name, err)
	}
	return frames
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
