// Package calibration measures each player's reference reach distance.
package calibration

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/handbox/internal/skeleton"
)

// ErrInProgress is returned by Start while a calibration is already running.
var ErrInProgress = errors.New("calibration already in progress")

// State is the calibrator's phase.
type State int

const (
	// StateIdle means no calibration has been requested.
	StateIdle State = iota
	// StateWarmup gives players time to settle before sampling starts.
	StateWarmup
	// StateSampling takes one raw distance sample per interval.
	StateSampling
	// StateDone means results are available.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarmup:
		return "warmup"
	case StateSampling:
		return "sampling"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateWarmup, StateSampling, StateDone} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown calibration state %q", text)
}

// Running reports whether s is a phase in which Start is rejected.
func (s State) Running() bool {
	return s == StateWarmup || s == StateSampling
}

// Config holds calibration timing.
type Config struct {
	// Samples is the number of sampling rounds.
	Samples int
	// SampleInterval is the minimum spacing between rounds.
	SampleInterval time.Duration
	// Warmup delays the first round after Start.
	Warmup time.Duration
}

// DefaultConfig returns ten samples 100ms apart after a three second warmup.
func DefaultConfig() Config {
	return Config{
		Samples:        10,
		SampleInterval: 100 * time.Millisecond,
		Warmup:         3 * time.Second,
	}
}

// Progress describes an in-flight or finished calibration.
type Progress struct {
	State  State `json:"state"`
	Sample int   `json:"sample"`
	Total  int   `json:"total"`
	// Players is the number of players with at least one sample.
	Players int `json:"players"`
}

// Calibrator is a frame-driven state machine: Start arms it and Observe,
// called once per frame, advances it without blocking. It is not safe for
// concurrent use.
type Calibrator struct {
	config    Config
	state     State
	startedAt time.Time
	nextAt    time.Time
	taken     int
	// roster holds the players tracked when sampling began; nobody else is sampled.
	roster    map[int]struct{}
	samples   map[int][]float64
	results   map[int]float64
}

// New creates a Calibrator. Non-positive sample counts fall back to the default.
func New(config Config) *Calibrator {
	if config.Samples <= 0 {
		config.Samples = DefaultConfig().Samples
	}
	return &Calibrator{
		config:  config,
		samples: make(map[int][]float64),
	}
}

// Config returns the calibrator's configuration.
func (c *Calibrator) Config() Config {
	return c.config
}

// State returns the current phase.
func (c *Calibrator) State() State {
	return c.state
}

// Start arms a new calibration at now. Previous results are discarded.
// Returns ErrInProgress if a calibration is already running.
func (c *Calibrator) Start(now time.Time) error {
	if c.state.Running() {
		return ErrInProgress
	}

	c.state = StateWarmup
	c.startedAt = now
	c.taken = 0
	c.roster = nil
	c.samples = make(map[int][]float64)
	c.results = nil

	return nil
}

// Cancel abandons a running calibration and returns to idle.
func (c *Calibrator) Cancel() {
	c.state = StateIdle
	c.taken = 0
	c.roster = nil
	c.samples = make(map[int][]float64)
	c.results = nil
}

// Observe advances the state machine with the current frame's skeletons.
// It returns true exactly once, on the frame the calibration completes.
func (c *Calibrator) Observe(now time.Time, skeletons []skeleton.Skeleton) bool {
	switch c.state {
	case StateWarmup:
		if now.Sub(c.startedAt) < c.config.Warmup {
			return false
		}
		c.state = StateSampling
		c.nextAt = now
		c.roster = make(map[int]struct{}, len(skeletons))
		for i := range skeletons {
			if skeletons[i].Tracked {
				c.roster[skeletons[i].ID] = struct{}{}
			}
		}
		fallthrough

	case StateSampling:
		if now.Before(c.nextAt) {
			return false
		}

		c.sample(skeletons)
		c.taken++
		c.nextAt = now.Add(c.config.SampleInterval)

		if c.taken < c.config.Samples {
			return false
		}

		c.results = Average(c.samples)
		c.state = StateDone
		return true
	}

	return false
}

func (c *Calibrator) sample(skeletons []skeleton.Skeleton) {
	for i := range skeletons {
		s := &skeletons[i]
		if !s.Tracked {
			continue
		}
		if _, ok := c.roster[s.ID]; !ok {
			continue
		}
		if d, ok := ReachDistance(s); ok {
			c.samples[s.ID] = append(c.samples[s.ID], d)
		}
	}
}

// Forget drops the given players from a running calibration along with their
// samples. An id that reappears later is treated as a new player and is not
// sampled.
func (c *Calibrator) Forget(ids ...int) {
	for _, id := range ids {
		delete(c.roster, id)
		delete(c.samples, id)
	}
}

// Progress reports the current phase and sample count.
func (c *Calibrator) Progress() Progress {
	return Progress{
		State:   c.state,
		Sample:  c.taken,
		Total:   c.config.Samples,
		Players: len(c.samples),
	}
}

// Results returns a copy of the per-player distances from the last completed
// calibration, or nil when none has completed.
func (c *Calibrator) Results() map[int]float64 {
	if c.results == nil {
		return nil
	}
	out := make(map[int]float64, len(c.results))
	for id, d := range c.results {
		out[id] = d
	}
	return out
}

// PlayerIDs returns the ids of the last results in ascending order.
func (c *Calibrator) PlayerIDs() []int {
	ids := make([]int, 0, len(c.results))
	for id := range c.results {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ReachDistance is the raw planar (x, y) sensor-space distance from the right
// shoulder to the right hand. No display mapping or smoothing is applied.
func ReachDistance(s *skeleton.Skeleton) (float64, bool) {
	shoulder := s.Joint(skeleton.ShoulderRight).Position
	hand := s.Joint(skeleton.HandRight).Position
	if !skeleton.Finite(shoulder) || !skeleton.Finite(hand) {
		return 0, false
	}

	d := hand.Sub(shoulder)
	d.Z = 0
	return d.Norm(), true
}

// Average returns the arithmetic mean of each player's samples. Players with
// no samples are omitted.
func Average(samples map[int][]float64) map[int]float64 {
	out := make(map[int]float64, len(samples))
	for id, values := range samples {
		if len(values) == 0 {
			continue
		}
		out[id] = stat.Mean(values, nil)
	}
	return out
}
