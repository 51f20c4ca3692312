package store

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/handbox/internal/skeleton"
)

// DefaultReplayBatch is the number of frames read from the database at once.
const DefaultReplayBatch = 256

// ReplayConfig holds configuration options for a ReplaySource.
type ReplayConfig struct {
	// Realtime paces frames by their recorded timestamps.
	Realtime bool
	// BatchSize is the number of frames loaded per query.
	BatchSize int
}

// ReplaySource plays a recorded session back as a skeleton.Source. Frames keep
// their recorded timestamps, so timing inside the tracker matches the original
// run regardless of pacing.
type ReplaySource struct {
	frames    *FrameRepository
	sessionID string
	config    ReplayConfig

	buf    []*FrameRecord
	after  int64
	lastTS time.Time
	closed bool
	mu     sync.Mutex
}

// Replay opens a ReplaySource for sessionID. Returns ErrNotFound for an
// unknown session.
func (s *Store) Replay(sessionID string, config ReplayConfig) (*ReplaySource, error) {
	if _, err := s.Sessions().GetByID(sessionID); err != nil {
		return nil, err
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReplayBatch
	}

	return &ReplaySource{
		frames:    s.Frames(),
		sessionID: sessionID,
		config:    config,
	}, nil
}

// Next returns the next recorded frame, or skeleton.ErrSourceClosed once the
// session is exhausted.
func (r *ReplaySource) Next(ctx context.Context) (skeleton.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return skeleton.Frame{}, skeleton.ErrSourceClosed
	}

	if len(r.buf) == 0 {
		records, err := r.frames.Range(r.sessionID, r.after, r.config.BatchSize)
		if err != nil {
			return skeleton.Frame{}, err
		}
		if len(records) == 0 {
			r.closed = true
			return skeleton.Frame{}, skeleton.ErrSourceClosed
		}
		r.buf = records
	}

	rec := r.buf[0]
	r.buf = r.buf[1:]
	r.after = rec.Sequence

	frame, err := rec.Frame()
	if err != nil {
		return skeleton.Frame{}, err
	}

	if r.config.Realtime && !r.lastTS.IsZero() {
		if wait := frame.Timestamp.Sub(r.lastTS); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return skeleton.Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.lastTS = frame.Timestamp

	return frame, nil
}

// Close stops the replay.
func (r *ReplaySource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.buf = nil
	return nil
}
