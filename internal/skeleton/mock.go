package skeleton

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"
)

// MockSource is a test implementation of the Source interface.
// It plays back a fixed list of frames.
type MockSource struct {
	frames []Frame
	index  int
	loop   bool
	err    error
	mu     sync.Mutex
	closed bool
}

// NewMockSource creates a MockSource that plays frames once, or forever when loop is set.
func NewMockSource(frames []Frame, loop bool) *MockSource {
	return &MockSource{frames: frames, loop: loop}
}

// SetFrames replaces the frame sequence and restarts playback.
func (m *MockSource) SetFrames(frames []Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.index = 0
}

// SetError sets the error that will be returned by Next.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Next returns the next pre-configured frame.
func (m *MockSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Frame{}, m.err
	}
	if m.closed || len(m.frames) == 0 {
		return Frame{}, ErrSourceClosed
	}
	if m.index >= len(m.frames) {
		if !m.loop {
			return Frame{}, ErrSourceClosed
		}
		m.index = 0
	}

	f := m.frames[m.index]
	m.index++
	return f, nil
}

// Close marks the source as exhausted.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// StandingSkeleton returns a tracked skeleton of a person facing the sensor,
// arms relaxed, expressed in 1920x1080 color-image coordinates with depth in
// millimetres.
func StandingSkeleton(id int) Skeleton {
	s := Skeleton{Tracked: true, ID: id}

	set := func(t JointType, x, y, z float64) {
		s.Joints[t] = Joint{Position: r3.Vector{X: x, Y: y, Z: z}}
	}

	set(Head, 960, 220, 2000)
	set(Neck, 960, 330, 2000)
	set(SpineShoulder, 960, 380, 2000)
	set(SpineMid, 960, 520, 2010)
	set(SpineBase, 960, 660, 2020)

	set(ShoulderLeft, 860, 400, 2000)
	set(ElbowLeft, 830, 530, 1990)
	set(WristLeft, 820, 640, 1980)
	set(HandLeft, 815, 680, 1975)
	set(HandTipLeft, 812, 720, 1975)
	set(ThumbLeft, 830, 690, 1970)

	set(ShoulderRight, 1060, 400, 2000)
	set(ElbowRight, 1090, 530, 1990)
	set(WristRight, 1100, 640, 1980)
	set(HandRight, 1105, 680, 1975)
	set(HandTipRight, 1108, 720, 1975)
	set(ThumbRight, 1090, 690, 1970)

	set(HipLeft, 900, 670, 2020)
	set(KneeLeft, 895, 850, 2030)
	set(AnkleLeft, 890, 1010, 2040)
	set(FootLeft, 880, 1040, 2000)
	set(HipRight, 1020, 670, 2020)
	set(KneeRight, 1025, 850, 2030)
	set(AnkleRight, 1030, 1010, 2040)
	set(FootRight, 1040, 1040, 2000)

	s.Joints[HandLeft].State = HandOpen
	s.Joints[HandRight].State = HandOpen

	return s
}

// Untracked returns an untracked skeleton slot.
func Untracked(id int) Skeleton {
	return Skeleton{Tracked: false, ID: id}
}
