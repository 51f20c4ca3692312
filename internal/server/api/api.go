// Package api provides the HTTP API handlers for handbox.
package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/ayusman/handbox/internal/calibration"
	"github.com/ayusman/handbox/internal/mapping"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/tracker"
)

// Tracker is the view of the running tracker exposed over HTTP.
type Tracker interface {
	// Latest returns the most recent result and whether any frame has been
	// processed yet.
	Latest() (tracker.Result, bool)
	Calibrate() error
	CancelCalibration() error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Point is a 2D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a 3D position.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Box is a box-relative hand position.
type Box struct {
	Original  Point `json:"original"`
	Corrected Point `json:"corrected"`
}

// Hand is one hand of a player.
type Hand struct {
	Position Vector             `json:"position"`
	State    skeleton.HandState `json:"state"`
	Box      *Box               `json:"box,omitempty"`
}

// Player is one tracked player in a snapshot.
type Player struct {
	ID                 int      `json:"id"`
	SpineShoulder      Vector   `json:"spine_shoulder"`
	ShoulderLeft       Vector   `json:"shoulder_left"`
	ShoulderRight      Vector   `json:"shoulder_right"`
	HalfExtent         float64  `json:"half_extent"`
	LeftHand           Hand     `json:"left_hand"`
	RightHand          Hand     `json:"right_hand"`
	CalibratedDistance *float64 `json:"calibrated_distance,omitempty"`
}

// Snapshot is the JSON form of one tracker result, shared by the REST and
// WebSocket endpoints.
type Snapshot struct {
	Frame       uint64               `json:"frame"`
	Timestamp   int64                `json:"timestamp"`
	Players     []Player             `json:"players"`
	Status      []string             `json:"status"`
	Calibration calibration.Progress `json:"calibration"`
}

// NewSnapshot converts res into its JSON form. Players are ordered by id.
func NewSnapshot(res tracker.Result) Snapshot {
	snap := Snapshot{
		Frame:       res.Frame,
		Players:     make([]Player, 0, len(res.Players)),
		Status:      res.Status,
		Calibration: res.Calibration,
	}
	if !res.Timestamp.IsZero() {
		snap.Timestamp = res.Timestamp.UnixMilli()
	}
	if snap.Status == nil {
		snap.Status = []string{}
	}

	for _, pr := range res.Players {
		snap.Players = append(snap.Players, Player{
			ID:            pr.ID,
			SpineShoulder: vector(pr.SpineShoulder),
			ShoulderLeft:  vector(pr.ShoulderLeft),
			ShoulderRight: vector(pr.ShoulderRight),
			HalfExtent:    pr.HalfExtent,
			LeftHand: Hand{
				Position: vector(pr.LeftHand),
				State:    pr.LeftHandState,
				Box:      box(pr.LeftBox),
			},
			RightHand: Hand{
				Position: vector(pr.RightHand),
				State:    pr.RightHandState,
				Box:      box(pr.RightBox),
			},
			CalibratedDistance: pr.CalibratedDistance,
		})
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		return snap.Players[i].ID < snap.Players[j].ID
	})

	return snap
}

func vector(v r3.Vector) Vector {
	return Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func point(p r2.Point) Point {
	return Point{X: p.X, Y: p.Y}
}

func box(mc *mapping.MappedCoordinates) *Box {
	if mc == nil {
		return nil
	}
	return &Box{Original: point(mc.Original), Corrected: point(mc.Corrected)}
}
