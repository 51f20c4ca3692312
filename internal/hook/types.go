// Package hook runs external executables when tracking events occur.
package hook

// Event names delivered to hooks.
const (
	EventPlayerEntered = "player_entered"
	EventPlayerLeft    = "player_left"
	EventCalibrated    = "calibrated"
)

// Manifest describes a hook and the events it subscribes to. It is read
// from hook.json in the hook's directory.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
}

// Subscribes reports whether the manifest lists event.
func (m Manifest) Subscribes(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request is written to a hook's stdin as JSON.
type Request struct {
	Event     string `json:"event"`
	Frame     uint64 `json:"frame"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Players   []int  `json:"players"`
	// Distances is set for calibrated events.
	Distances map[int]float64 `json:"distances,omitempty"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
