// Package tracker turns per-frame skeletons into smoothed, calibrated,
// box-normalized hand positions for every tracked player.
package tracker

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/ayusman/handbox/internal/smoothing"
)

// PlayerState is everything retained about one player between frames.
type PlayerState struct {
	ID           int
	LeftHistory  *smoothing.Window
	RightHistory *smoothing.Window

	SmoothedLeft  r3.Vector
	SmoothedRight r3.Vector

	// CalibratedDistance is nil until calibration completes for this player.
	CalibratedDistance *float64
}

func newPlayerState(id, window int) *PlayerState {
	return &PlayerState{
		ID:           id,
		LeftHistory:  smoothing.NewWindow(window),
		RightHistory: smoothing.NewWindow(window),
	}
}

// Calibrated reports whether a calibration value is present.
func (p *PlayerState) Calibrated() bool {
	return p.CalibratedDistance != nil
}

// Players is the per-player state container, keyed by player id. It is owned
// by a single Processor.
type Players struct {
	window int
	byID   map[int]*PlayerState
}

// NewPlayers creates an empty container whose histories hold window points.
func NewPlayers(window int) *Players {
	return &Players{
		window: window,
		byID:   make(map[int]*PlayerState),
	}
}

// Get returns the state for id, if present.
func (ps *Players) Get(id int) (*PlayerState, bool) {
	p, ok := ps.byID[id]
	return p, ok
}

// GetOrCreate returns the state for id, creating an uncalibrated entry on
// first sight.
func (ps *Players) GetOrCreate(id int) *PlayerState {
	if p, ok := ps.byID[id]; ok {
		return p
	}
	p := newPlayerState(id, ps.window)
	ps.byID[id] = p
	return p
}

// Reconcile deletes every entry whose id is not in present and returns the
// evicted ids in ascending order.
func (ps *Players) Reconcile(present map[int]struct{}) []int {
	var evicted []int
	for id := range ps.byID {
		if _, ok := present[id]; !ok {
			delete(ps.byID, id)
			evicted = append(evicted, id)
		}
	}
	sort.Ints(evicted)
	return evicted
}

// IDs returns the tracked ids in ascending order.
func (ps *Players) IDs() []int {
	ids := make([]int, 0, len(ps.byID))
	for id := range ps.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of players held.
func (ps *Players) Len() int {
	return len(ps.byID)
}

// SetWindow resizes every history, keeping the most recent points. New
// players use the new size.
func (ps *Players) SetWindow(window int) {
	if window < 1 {
		window = 1
	}
	ps.window = window
	for _, p := range ps.byID {
		p.LeftHistory.Resize(window)
		p.RightHistory.Resize(window)
	}
}
