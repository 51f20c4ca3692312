// Package app runs the skeleton source through the tracker and fans results
// out to the recorder, the server and the overlay.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/ayusman/handbox/internal/log"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/store"
	"github.com/ayusman/handbox/internal/tracker"
)

// ErrNotRunning is returned by commands issued while the pipeline is stopped.
var ErrNotRunning = errors.New("tracker not running")

// Publisher receives every processed result.
type Publisher interface {
	Publish(res tracker.Result)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(res tracker.Result)

// Publish calls f(res).
func (f PublisherFunc) Publish(res tracker.Result) {
	f(res)
}

// Config holds configuration options for the application.
type Config struct {
	Source  skeleton.Source
	Tracker tracker.Config
	// Recorder, when set, stores every processed frame and calibration.
	Recorder   *store.Recorder
	Publishers []Publisher
}

type commandKind int

const (
	cmdCalibrate commandKind = iota
	cmdCancelCalibration
	cmdTuning
)

type command struct {
	kind   commandKind
	tuning tracker.Tuning
	reply  chan error
}

// App owns the frame processor. All processor access happens on the
// pipeline goroutine; other goroutines talk to it through commands.
type App struct {
	config    Config
	processor *tracker.Processor
	commands  chan command

	enabled   bool
	latest    tracker.Result
	hasLatest bool
	mu        sync.RWMutex

	started  bool
	stopped  bool
	stopCh   chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	return &App{
		config:    config,
		processor: tracker.New(config.Tracker),
		commands:  make(chan command),
		enabled:   true,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetEnabled pauses or resumes processing. Frames read while paused are dropped.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Latest returns the most recent result and whether any frame has been
// processed yet.
func (a *App) Latest() (tracker.Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.hasLatest
}

// Calibrate requests a calibration of every tracked player.
func (a *App) Calibrate() error {
	return a.send(command{kind: cmdCalibrate})
}

// CancelCalibration abandons a running calibration.
func (a *App) CancelCalibration() error {
	return a.send(command{kind: cmdCancelCalibration})
}

// SetTuning applies new smoothing and box settings from the next frame on.
func (a *App) SetTuning(t tracker.Tuning) error {
	return a.send(command{kind: cmdTuning, tuning: t})
}

func (a *App) send(cmd command) error {
	a.mu.RLock()
	started := a.started
	a.mu.RUnlock()
	if !started {
		return ErrNotRunning
	}

	cmd.reply = make(chan error, 1)
	select {
	case a.commands <- cmd:
	case <-a.done:
		return ErrNotRunning
	}
	return <-cmd.reply
}

// Start begins reading frames. It returns immediately; the pipeline runs
// until Stop is called, ctx is cancelled, or the source ends.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return ErrNotRunning
	}
	// Don't start if already running
	if a.started {
		return nil
	}
	if a.config.Source == nil {
		return errors.New("app: no skeleton source configured")
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.started = true

	frames := make(chan skeleton.Frame, 1)
	go a.readFrames(ctx, frames)
	go a.runPipeline(ctx, frames)

	log.Info("tracking pipeline started")
	return nil
}

// Stop halts the pipeline and closes the source. It blocks until the
// pipeline goroutine has exited.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		started := a.started
		a.stopped = true
		a.mu.Unlock()

		close(a.stopCh)
		if !started {
			close(a.done)
			return
		}

		a.cancel()
		<-a.done

		if err := a.config.Source.Close(); err != nil {
			log.Warn("error closing skeleton source", "error", err)
		}
		log.Info("tracking pipeline stopped")
	})
}

// Done is closed once the pipeline has exited.
func (a *App) Done() <-chan struct{} {
	return a.done
}
