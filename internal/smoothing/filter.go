package smoothing

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Mode selects how a window is reduced to one position.
type Mode string

const (
	// ModeAverage is the plain moving average of the window.
	ModeAverage Mode = "average"
	// ModeExponential folds the window oldest-first with exponential decay.
	ModeExponential Mode = "exponential"
)

// DefaultAlpha is the weight given to each newer point in ModeExponential.
const DefaultAlpha = 0.2

// ParseMode validates a mode name. The empty string selects ModeAverage.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAverage:
		return ModeAverage, nil
	case ModeExponential:
		return ModeExponential, nil
	default:
		return "", fmt.Errorf("unknown smoothing mode %q", s)
	}
}

// Filter reduces a Window to a single estimate.
type Filter struct {
	Mode  Mode
	Alpha float64
}

// NewFilter creates a Filter. Alpha is only used by ModeExponential and falls
// back to DefaultAlpha when outside (0, 1].
func NewFilter(mode Mode, alpha float64) Filter {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return Filter{Mode: mode, Alpha: alpha}
}

// Apply returns the filtered estimate for w. Like Average, it panics on an
// empty window.
func (f Filter) Apply(w *Window) r3.Vector {
	if f.Mode == ModeExponential {
		return Exponential(w.Points(), f.Alpha)
	}
	return w.Average()
}

// Exponential folds points oldest-first: s = alpha*p + (1-alpha)*s, seeded
// with the oldest point.
func Exponential(points []r3.Vector, alpha float64) r3.Vector {
	if len(points) == 0 {
		panic("smoothing: Exponential called with no points")
	}

	s := points[0]
	for _, p := range points[1:] {
		s = p.Mul(alpha).Add(s.Mul(1 - alpha))
	}
	return s
}
