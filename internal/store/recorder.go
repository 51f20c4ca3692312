package store

import (
	"errors"
	"sync"
	"time"

	"github.com/ayusman/handbox/internal/skeleton"
)

// ErrRecorderClosed is returned when writing to a closed Recorder.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder appends the frames and calibrations of one live session.
type Recorder struct {
	store   *Store
	session *Session
	seq     int64
	closed  bool
	mu      sync.Mutex
}

// Record creates sess and returns a Recorder writing into it.
func (s *Store) Record(sess *Session) (*Recorder, error) {
	if err := s.Sessions().Create(sess); err != nil {
		return nil, err
	}
	return &Recorder{store: s, session: sess}, nil
}

// Session returns the session being recorded.
func (r *Recorder) Session() *Session {
	return r.session
}

// Frame appends frame with the next sequence number.
func (r *Recorder) Frame(frame skeleton.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	r.seq++
	return r.store.Frames().Append(r.session.ID, r.seq, frame)
}

// Calibration stores the distances applied at the given time.
func (r *Recorder) Calibration(at time.Time, distances map[int]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	return r.store.Calibrations().Record(r.session.ID, at, distances)
}

// Close marks the session ended. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	now := time.Now()
	r.session.EndedAt = &now
	return r.store.Sessions().End(r.session.ID, now)
}
