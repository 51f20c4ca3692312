package tracker

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ayusman/handbox/internal/calibration"
	"github.com/ayusman/handbox/internal/log"
	"github.com/ayusman/handbox/internal/mapping"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/smoothing"
)

// Status messages emitted in Result.Status.
const (
	StatusNoSkeletons         = "No skeletons detected"
	StatusCalibrating         = "CALIBRATING..."
	StatusCalibrationComplete = "CALIBRATION COMPLETE"
)

// DefaultBoxInflation scales the shoulder-to-shoulder distance into the
// normalization box half extent.
const DefaultBoxInflation = 1.2

// Config holds configuration options for the frame processor.
type Config struct {
	// Display is the size of the rendering surface positions are mapped onto.
	Display mapping.Size

	// WindowSize is the number of frames in each hand's smoothing window.
	WindowSize int
	// Smoothing selects how the window is reduced.
	Smoothing smoothing.Mode
	// SmoothingAlpha is used by the exponential mode.
	SmoothingAlpha float64

	// BoxInflation multiplies the shoulder distance to get the box half extent.
	BoxInflation float64

	// AutoCalibrate starts a calibration the first time a tracked skeleton appears.
	AutoCalibrate bool
	Calibration   calibration.Config
}

// DefaultConfig returns a Config for a 1728x972 display.
func DefaultConfig() Config {
	return Config{
		Display:        mapping.Size{Width: 1728, Height: 972},
		WindowSize:     smoothing.DefaultWindowSize,
		Smoothing:      smoothing.ModeAverage,
		SmoothingAlpha: smoothing.DefaultAlpha,
		BoxInflation:   DefaultBoxInflation,
		AutoCalibrate:  true,
		Calibration:    calibration.DefaultConfig(),
	}
}

// Tuning is the subset of Config that may change between frames.
type Tuning struct {
	WindowSize     int
	Smoothing      smoothing.Mode
	SmoothingAlpha float64
	BoxInflation   float64
}

// PlayerResult is one player's output for one frame. Positions are in
// display space.
type PlayerResult struct {
	ID int

	SpineShoulder r3.Vector
	ShoulderLeft  r3.Vector
	ShoulderRight r3.Vector

	// LeftHand and RightHand are the smoothed hand positions.
	LeftHand  r3.Vector
	RightHand r3.Vector

	LeftHandState  skeleton.HandState
	RightHandState skeleton.HandState

	// HalfExtent is the inflated shoulder distance used as the box half extent.
	HalfExtent float64

	// LeftBox and RightBox are nil until the player is calibrated.
	LeftBox  *mapping.MappedCoordinates
	RightBox *mapping.MappedCoordinates

	CalibratedDistance *float64
}

// Result is the processor's output for one frame.
type Result struct {
	Frame     uint64
	Timestamp time.Time

	Players map[int]PlayerResult
	// Skipped lists tracked players whose anchor or hand joints were invalid
	// this frame.
	Skipped []int
	// Evicted lists players removed because they were no longer tracked.
	Evicted []int

	// Calibrated holds the distances applied on the frame a calibration completed.
	Calibrated  map[int]float64
	Calibration calibration.Progress

	Status []string
}

// Processor runs the per-frame pipeline. It exclusively owns the player state
// and is not safe for concurrent use.
type Processor struct {
	config     Config
	mapper     *mapping.Mapper
	filter     smoothing.Filter
	players    *Players
	calibrator *calibration.Calibrator

	frames        uint64
	autoTriggered bool
	pending       bool
}

// New creates a Processor with the given configuration.
func New(config Config) *Processor {
	if config.WindowSize < 1 {
		config.WindowSize = smoothing.DefaultWindowSize
	}
	if config.BoxInflation <= 0 {
		config.BoxInflation = DefaultBoxInflation
	}

	return &Processor{
		config:     config,
		mapper:     mapping.NewMapper(config.Display),
		filter:     smoothing.NewFilter(config.Smoothing, config.SmoothingAlpha),
		players:    NewPlayers(config.WindowSize),
		calibrator: calibration.New(config.Calibration),
	}
}

// Calibrate requests a calibration. It starts on the next processed frame.
// Returns calibration.ErrInProgress if one is already pending or running.
func (p *Processor) Calibrate() error {
	if p.pending || p.calibrator.State().Running() {
		return calibration.ErrInProgress
	}
	p.pending = true
	return nil
}

// CancelCalibration abandons a pending or running calibration. Values already
// applied to players are kept.
func (p *Processor) CancelCalibration() {
	p.pending = false
	if p.calibrator.State().Running() {
		p.calibrator.Cancel()
		log.Info("calibration cancelled")
	}
}

// CalibrationProgress returns the calibrator's progress.
func (p *Processor) CalibrationProgress() calibration.Progress {
	return p.calibrator.Progress()
}

// SetTuning applies new tunables. Histories keep their most recent points.
func (p *Processor) SetTuning(t Tuning) {
	if t.WindowSize >= 1 && t.WindowSize != p.config.WindowSize {
		p.config.WindowSize = t.WindowSize
		p.players.SetWindow(t.WindowSize)
	}
	if t.BoxInflation > 0 {
		p.config.BoxInflation = t.BoxInflation
	}
	if t.Smoothing != "" {
		p.config.Smoothing = t.Smoothing
		p.config.SmoothingAlpha = t.SmoothingAlpha
		p.filter = smoothing.NewFilter(t.Smoothing, t.SmoothingAlpha)
	}
}

// PlayerIDs returns the ids currently holding state, in ascending order.
func (p *Processor) PlayerIDs() []int {
	return p.players.IDs()
}

// Player returns the retained state for id.
func (p *Processor) Player(id int) (*PlayerState, bool) {
	return p.players.Get(id)
}

// Process runs one frame through reconciliation, calibration, smoothing and
// box mapping.
func (p *Processor) Process(frame skeleton.Frame) Result {
	p.frames++

	now := frame.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	res := Result{
		Frame:     p.frames,
		Timestamp: now,
		Players:   make(map[int]PlayerResult),
	}

	tracked := frame.Tracked()

	// Reconcile: state exists for exactly the tracked ids.
	present := make(map[int]struct{}, len(tracked))
	for _, s := range tracked {
		present[s.ID] = struct{}{}
	}
	res.Evicted = p.players.Reconcile(present)
	p.calibrator.Forget(res.Evicted...)
	for _, id := range res.Evicted {
		log.Debug("player left", "player", id)
	}
	for _, s := range tracked {
		if _, ok := p.players.Get(s.ID); !ok {
			log.Debug("player entered", "player", s.ID)
		}
		p.players.GetOrCreate(s.ID)
	}

	p.driveCalibration(now, tracked, &res)

	image := mapping.Size{Width: frame.ImageWidth, Height: frame.ImageHeight}
	for i := range tracked {
		s := &tracked[i]
		state := p.players.GetOrCreate(s.ID)

		pr, ok := p.update(state, s, image)
		if !ok {
			res.Skipped = append(res.Skipped, s.ID)
			continue
		}
		res.Players[s.ID] = pr
	}

	res.Calibration = p.calibrator.Progress()
	res.Status = append(p.status(len(tracked)), res.Status...)

	return res
}

func (p *Processor) driveCalibration(now time.Time, tracked []skeleton.Skeleton, res *Result) {
	if len(tracked) > 0 && p.config.AutoCalibrate && !p.autoTriggered {
		p.autoTriggered = true
		if !p.calibrator.State().Running() {
			p.pending = true
		}
	}

	if p.pending {
		p.pending = false
		if err := p.calibrator.Start(now); err != nil {
			log.Warn("calibration not started", "error", err)
		} else {
			log.Info("calibration started", "players", len(tracked))
		}
	}

	if !p.calibrator.State().Running() {
		return
	}
	if !p.calibrator.Observe(now, tracked) {
		return
	}

	// Players that left mid-calibration were already reconciled away, so
	// only present players receive their value.
	results := p.calibrator.Results()
	res.Calibrated = make(map[int]float64, len(results))
	for _, id := range p.calibrator.PlayerIDs() {
		d := results[id]
		state, ok := p.players.Get(id)
		if !ok {
			log.Debug("calibrated player no longer tracked", "player", id)
			continue
		}
		state.CalibratedDistance = &d
		res.Calibrated[id] = d
		res.Status = append(res.Status, fmt.Sprintf("CALIBRATED PLAYER %d WITH DISTANCE %.2f", id, d))
		log.Info("player calibrated", "player", id, "distance", d)
	}
	res.Status = append(res.Status, StatusCalibrationComplete)
}

func (p *Processor) update(state *PlayerState, s *skeleton.Skeleton, image mapping.Size) (PlayerResult, bool) {
	spine := p.mapper.ToDisplay(s.Joint(skeleton.SpineShoulder).Position, image)
	shoulderLeft := p.mapper.ToDisplay(s.Joint(skeleton.ShoulderLeft).Position, image)
	shoulderRight := p.mapper.ToDisplay(s.Joint(skeleton.ShoulderRight).Position, image)
	handLeft := p.mapper.ToDisplay(s.Joint(skeleton.HandLeft).Position, image)
	handRight := p.mapper.ToDisplay(s.Joint(skeleton.HandRight).Position, image)

	// A transient dropout must not put NaN into the histories.
	for _, v := range []r3.Vector{spine, shoulderLeft, shoulderRight, handLeft, handRight} {
		if !mapping.IsValid(v) {
			return PlayerResult{}, false
		}
	}

	state.LeftHistory.Push(handLeft)
	state.RightHistory.Push(handRight)
	state.SmoothedLeft = p.filter.Apply(state.LeftHistory)
	state.SmoothedRight = p.filter.Apply(state.RightHistory)

	pr := PlayerResult{
		ID:             s.ID,
		SpineShoulder:  spine,
		ShoulderLeft:   shoulderLeft,
		ShoulderRight:  shoulderRight,
		LeftHand:       state.SmoothedLeft,
		RightHand:      state.SmoothedRight,
		LeftHandState:  s.Joint(skeleton.HandLeft).State,
		RightHandState: s.Joint(skeleton.HandRight).State,
		HalfExtent:     shoulderLeft.Distance(shoulderRight) * p.config.BoxInflation,
	}

	if !state.Calibrated() {
		return pr, true
	}

	d := *state.CalibratedDistance
	pr.CalibratedDistance = &d
	if left, ok := mapping.MapRelativeToBox(state.SmoothedLeft, shoulderLeft, pr.HalfExtent); ok {
		pr.LeftBox = &left
	}
	if right, ok := mapping.MapRelativeToBox(state.SmoothedRight, shoulderRight, pr.HalfExtent); ok {
		pr.RightBox = &right
	}

	return pr, true
}

func (p *Processor) status(tracked int) []string {
	progress := p.calibrator.Progress()
	switch progress.State {
	case calibration.StateWarmup:
		return []string{StatusCalibrating}
	case calibration.StateSampling:
		return []string{StatusCalibrating, fmt.Sprintf("CALIBRATING SAMPLE %d/%d", progress.Sample, progress.Total)}
	}
	if tracked == 0 {
		return []string{StatusNoSkeletons}
	}
	return nil
}
