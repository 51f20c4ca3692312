// Package main is an example handbox hook that shows a desktop notification
// when players enter, leave or finish calibrating.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// Request is the event written to stdin by handbox.
type Request struct {
	Event     string          `json:"event"`
	Frame     uint64          `json:"frame"`
	Timestamp int64           `json:"timestamp"`
	Players   []int           `json:"players"`
	Distances map[int]float64 `json:"distances,omitempty"`
}

// Response is written to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	msg := message(req)
	if msg == "" {
		writeResponse(nil)
		return
	}
	writeResponse(notify("Handbox", msg))
}

func message(req Request) string {
	switch req.Event {
	case "player_entered":
		return fmt.Sprintf("Player %s entered", join(req.Players))
	case "player_left":
		return fmt.Sprintf("Player %s left", join(req.Players))
	case "calibrated":
		ids := make([]int, 0, len(req.Distances))
		for id := range req.Distances {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf("player %d: %.0f", id, req.Distances[id])
		}
		return "Calibrated " + strings.Join(parts, ", ")
	}
	return ""
}

func join(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

// notify shows msg with osascript on macOS and notify-send elsewhere.
func notify(title, msg string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q", msg, title)
		cmd = exec.Command("osascript", "-e", script)
	} else {
		cmd = exec.Command("notify-send", title, msg)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
