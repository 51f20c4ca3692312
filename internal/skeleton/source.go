package skeleton

import (
	"context"
	"errors"
	"time"
)

// ErrSourceClosed is returned by Next once a source has no more frames.
var ErrSourceClosed = errors.New("skeleton source closed")

// Frame is everything the sensor reports for one tick.
type Frame struct {
	Skeletons   []Skeleton
	ImageWidth  int
	ImageHeight int
	Timestamp   time.Time
}

// Tracked returns the tracked skeletons in frame order. When several share an
// id only the first is kept.
func (f *Frame) Tracked() []Skeleton {
	tracked := make([]Skeleton, 0, len(f.Skeletons))
	seen := make(map[int]struct{}, len(f.Skeletons))
	for _, s := range f.Skeletons {
		if !s.Tracked {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		tracked = append(tracked, s)
	}
	return tracked
}

// Source defines the interface for skeleton stream implementations.
type Source interface {
	// Next blocks until the next frame is available or ctx is done.
	// Returns ErrSourceClosed when the stream has ended.
	Next(ctx context.Context) (Frame, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds configuration options for sensor bridge sources.
type Config struct {
	// Command is the bridge executable and its arguments.
	Command []string

	// DefaultImageWidth and DefaultImageHeight are used when a frame omits
	// its color image size.
	DefaultImageWidth  int
	DefaultImageHeight int
}

// DefaultConfig returns a Config for the Kinect v2 color stream.
func DefaultConfig() Config {
	return Config{
		DefaultImageWidth:  1920,
		DefaultImageHeight: 1080,
	}
}
