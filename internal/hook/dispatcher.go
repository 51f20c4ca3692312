package hook

import (
	"context"
	"sort"
	"sync"

	"github.com/ayusman/handbox/internal/log"
	"github.com/ayusman/handbox/internal/tracker"
)

// DefaultQueueSize is the number of pending requests kept before new events
// are dropped.
const DefaultQueueSize = 64

// Dispatcher turns tracker results into hook events and runs subscribed
// hooks on a worker goroutine so the frame loop never waits on them.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	queue    chan *Request

	// present is only touched by Publish, which the frame loop calls serially.
	present map[int]struct{}

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Call Start to begin delivering events.
func NewDispatcher(manager *Manager, executor *Executor, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		queue:    make(chan *Request, queueSize),
		present:  make(map[int]struct{}),
	}
}

// Publish derives events from res and queues them. Events that do not fit
// in the queue are dropped.
func (d *Dispatcher) Publish(res tracker.Result) {
	for _, req := range d.Events(res) {
		select {
		case d.queue <- req:
		default:
			log.Warn("hook queue full, dropping event", "event", req.Event, "frame", req.Frame)
		}
	}
}

// Events returns the events res represents relative to the previous result
// and records its players as present.
func (d *Dispatcher) Events(res tracker.Result) []*Request {
	var entered, left []int

	current := make(map[int]struct{}, len(res.Players)+len(res.Skipped))
	for id := range res.Players {
		current[id] = struct{}{}
	}
	// Skipped players are still tracked this frame.
	for _, id := range res.Skipped {
		current[id] = struct{}{}
	}
	for id := range current {
		if _, ok := d.present[id]; !ok {
			entered = append(entered, id)
		}
	}
	for id := range d.present {
		if _, ok := current[id]; !ok {
			left = append(left, id)
		}
	}
	d.present = current

	ts := res.Timestamp.UnixMilli()
	var events []*Request
	if len(entered) > 0 {
		sort.Ints(entered)
		events = append(events, &Request{Event: EventPlayerEntered, Frame: res.Frame, Timestamp: ts, Players: entered})
	}
	if len(left) > 0 {
		sort.Ints(left)
		events = append(events, &Request{Event: EventPlayerLeft, Frame: res.Frame, Timestamp: ts, Players: left})
	}
	if len(res.Calibrated) > 0 {
		ids := make([]int, 0, len(res.Calibrated))
		distances := make(map[int]float64, len(res.Calibrated))
		for id, dist := range res.Calibrated {
			ids = append(ids, id)
			distances[id] = dist
		}
		sort.Ints(ids)
		events = append(events, &Request{Event: EventCalibrated, Frame: res.Frame, Timestamp: ts, Players: ids, Distances: distances})
	}
	return events
}

// Start delivers queued events on a new goroutine until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			d.deliver(ctx, req)
		}
	}
}

// Wait blocks until the delivery goroutine has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, req *Request) {
	for _, h := range d.manager.For(req.Event) {
		resp, err := d.executor.Execute(ctx, h, req)
		if err != nil {
			log.Warn("hook failed", "hook", h.Manifest.Name, "event", req.Event, "error", err)
			continue
		}
		if !resp.Success {
			log.Warn("hook reported failure", "hook", h.Manifest.Name, "event", req.Event, "error", resp.Error)
			continue
		}
		log.Debug("hook ran", "hook", h.Manifest.Name, "event", req.Event)
	}
}
