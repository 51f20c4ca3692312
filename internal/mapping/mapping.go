// Package mapping converts sensor-space joint positions into display space and
// normalizes hand positions against a body-derived box.
package mapping

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Depth scaling constants.
const (
	// MaxDepth is the deepest value the sensor reports, in depth units (mm).
	MaxDepth = 4500
	// DepthRange is the display-space range MaxDepth maps onto.
	DepthRange = 100
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MappedCoordinates is a box-relative hand position.
type MappedCoordinates struct {
	// Original is the unclamped normalized position.
	Original r2.Point `json:"original"`
	// Corrected is Original clamped to [-1, 1] on each axis.
	Corrected r2.Point `json:"corrected"`
}

// Invalid returns the sentinel position produced for unusable measurements.
// Every component is NaN.
func Invalid() r3.Vector {
	nan := math.NaN()
	return r3.Vector{X: nan, Y: nan, Z: nan}
}

// IsValid reports whether every component of v is finite.
func IsValid(v r3.Vector) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Rescale linearly maps v from [inMin, inMax] to [outMin, outMax]. Values
// outside the input range extrapolate. A degenerate input range yields NaN.
func Rescale(v, inMin, inMax, outMin, outMax float64) float64 {
	span := inMax - inMin
	if span == 0 {
		return math.NaN()
	}
	return outMin + (v-inMin)*(outMax-outMin)/span
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampPoint clamps both axes of p to [-1, 1].
func ClampPoint(p r2.Point) r2.Point {
	return r2.Point{X: Clamp(p.X, -1, 1), Y: Clamp(p.Y, -1, 1)}
}

// MapToDisplay rescales a sensor-space position into display space:
// x from [0, image.Width] to [0, display.Width], y from [0, image.Height] to
// [0, display.Height] and z from [0, MaxDepth] to [0, DepthRange].
// Non-finite input, or an empty image size, yields Invalid().
func MapToDisplay(p r3.Vector, image, display Size) r3.Vector {
	if !IsValid(p) || image.Width <= 0 || image.Height <= 0 {
		return Invalid()
	}

	return r3.Vector{
		X: Rescale(p.X, 0, float64(image.Width), 0, float64(display.Width)),
		Y: Rescale(p.Y, 0, float64(image.Height), 0, float64(display.Height)),
		Z: Rescale(p.Z, 0, MaxDepth, 0, DepthRange),
	}
}

// MapRelativeToBox expresses point relative to anchor inside a square box of
// the given half extent. Both axes use the same convention: +halfExtent maps to
// -1 and -halfExtent maps to +1, so positive X is left of the anchor on the
// display (the user's own right in a mirrored view) and positive Y is above it.
//
// ok is false when the inputs are invalid or halfExtent is not a positive
// finite number; the returned coordinates are then NaN.
func MapRelativeToBox(point, anchor r3.Vector, halfExtent float64) (mc MappedCoordinates, ok bool) {
	if !IsValid(point) || !IsValid(anchor) || !isFinite(halfExtent) || halfExtent <= 0 {
		nan := math.NaN()
		p := r2.Point{X: nan, Y: nan}
		return MappedCoordinates{Original: p, Corrected: p}, false
	}

	rel := point.Sub(anchor)
	original := r2.Point{
		X: Rescale(rel.X, halfExtent, -halfExtent, -1, 1),
		Y: Rescale(rel.Y, halfExtent, -halfExtent, -1, 1),
	}

	return MappedCoordinates{
		Original:  original,
		Corrected: ClampPoint(original),
	}, true
}

// Mapper binds the display size so per-frame callers only pass the sensor's
// current image size.
type Mapper struct {
	Display Size
}

// NewMapper creates a Mapper for the given display size.
func NewMapper(display Size) *Mapper {
	return &Mapper{Display: display}
}

// ToDisplay maps p from an image of the given size into the mapper's display.
func (m *Mapper) ToDisplay(p r3.Vector, image Size) r3.Vector {
	return MapToDisplay(p, image, m.Display)
}
