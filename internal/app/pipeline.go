package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ayusman/handbox/internal/log"
	"github.com/ayusman/handbox/internal/skeleton"
)

// sourceRetryDelay throttles reads after a recoverable source error.
const sourceRetryDelay = 100 * time.Millisecond

// readFrames pulls frames from the source until it ends or ctx is done.
// frames is closed on return.
func (a *App) readFrames(ctx context.Context, frames chan<- skeleton.Frame) {
	defer close(frames)

	for {
		frame, err := a.config.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, skeleton.ErrSourceClosed) || errors.Is(err, io.EOF) {
				log.Info("skeleton source ended")
				return
			}
			log.Warn("error reading skeleton frame", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(sourceRetryDelay):
			}
			continue
		}

		if frame.Timestamp.IsZero() {
			frame.Timestamp = time.Now()
		}

		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// runPipeline is the single goroutine that owns the processor. It serves
// commands between frames so results never race with state changes.
func (a *App) runPipeline(ctx context.Context, frames <-chan skeleton.Frame) {
	defer close(a.done)

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case cmd := <-a.commands:
			cmd.reply <- a.handle(cmd)
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if !a.IsEnabled() {
				continue
			}
			a.process(frame)
		}
	}
}

func (a *App) handle(cmd command) error {
	switch cmd.kind {
	case cmdCalibrate:
		if err := a.processor.Calibrate(); err != nil {
			return err
		}
		log.Info("calibration requested")
	case cmdCancelCalibration:
		a.processor.CancelCalibration()
	case cmdTuning:
		a.processor.SetTuning(cmd.tuning)
		log.Debug("tuning updated",
			"window", cmd.tuning.WindowSize,
			"smoothing", cmd.tuning.Smoothing,
			"inflation", cmd.tuning.BoxInflation)
	}
	return nil
}

func (a *App) process(frame skeleton.Frame) {
	res := a.processor.Process(frame)

	a.mu.Lock()
	a.latest = res
	a.hasLatest = true
	a.mu.Unlock()

	if rec := a.config.Recorder; rec != nil {
		if err := rec.Frame(frame); err != nil {
			log.Warn("failed to record frame", "frame", res.Frame, "error", err)
		}
		if len(res.Calibrated) > 0 {
			if err := rec.Calibration(res.Timestamp, res.Calibrated); err != nil {
				log.Warn("failed to record calibration", "error", err)
			}
		}
	}

	for _, p := range a.config.Publishers {
		p.Publish(res)
	}
}
