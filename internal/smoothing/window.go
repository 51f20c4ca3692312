// Package smoothing damps sensor jitter with a bounded history of recent
// positions.
package smoothing

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// DefaultWindowSize is the number of frames averaged per hand.
const DefaultWindowSize = 5

// Window is a fixed-capacity sliding window of positions. Pushing past
// capacity evicts the oldest point. The zero value is not usable; use NewWindow.
type Window struct {
	buf   []r3.Vector
	start int // index of the oldest point
	n     int
}

// NewWindow creates a Window holding at most size points. Sizes below 1 are
// raised to 1.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]r3.Vector, size)}
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return len(w.buf)
}

// Len returns the number of points currently retained.
func (w *Window) Len() int {
	return w.n
}

// Push appends p, evicting the oldest point when the window is full.
func (w *Window) Push(p r3.Vector) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = p
		w.n++
		return
	}
	w.buf[w.start] = p
	w.start = (w.start + 1) % len(w.buf)
}

// Points returns the retained points, oldest first.
func (w *Window) Points() []r3.Vector {
	points := make([]r3.Vector, w.n)
	for i := 0; i < w.n; i++ {
		points[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return points
}

// Average returns the componentwise arithmetic mean of the retained points.
// Averaging an empty window is a programming error and panics.
func (w *Window) Average() r3.Vector {
	if w.n == 0 {
		panic("smoothing: Average called on empty window")
	}

	var sum r3.Vector
	for i := 0; i < w.n; i++ {
		sum = sum.Add(w.buf[(w.start+i)%len(w.buf)])
	}
	return sum.Mul(1 / float64(w.n))
}

// Resize changes the capacity, keeping the most recent points.
func (w *Window) Resize(size int) {
	if size < 1 {
		size = 1
	}
	if size == len(w.buf) {
		return
	}

	points := w.Points()
	if len(points) > size {
		points = points[len(points)-size:]
	}

	w.buf = make([]r3.Vector, size)
	copy(w.buf, points)
	w.start = 0
	w.n = len(points)
}

// Reset drops every retained point.
func (w *Window) Reset() {
	w.start = 0
	w.n = 0
}

func (w *Window) String() string {
	return fmt.Sprintf("Window(%d/%d)", w.n, len(w.buf))
}
