package mapping

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMapToDisplay(t *testing.T) {
	image := Size{Width: 1920, Height: 1080}
	display := Size{Width: 960, Height: 540}

	t.Run("scales each axis linearly", func(t *testing.T) {
		got := MapToDisplay(r3.Vector{X: 960, Y: 270, Z: 2250}, image, display)
		want := r3.Vector{X: 480, Y: 135, Z: 50}
		if !approx(got.X, want.X) || !approx(got.Y, want.Y) || !approx(got.Z, want.Z) {
			t.Errorf("MapToDisplay() = %v, want %v", got, want)
		}
	})

	t.Run("range endpoints map to display endpoints", func(t *testing.T) {
		got := MapToDisplay(r3.Vector{X: 1920, Y: 1080, Z: MaxDepth}, image, display)
		if !approx(got.X, 960) || !approx(got.Y, 540) || !approx(got.Z, DepthRange) {
			t.Errorf("MapToDisplay(max) = %v", got)
		}
		got = MapToDisplay(r3.Vector{}, image, display)
		if got != (r3.Vector{}) {
			t.Errorf("MapToDisplay(origin) = %v, want origin", got)
		}
	})

	t.Run("non-finite input yields all-NaN output", func(t *testing.T) {
		bad := []r3.Vector{
			{X: math.NaN(), Y: 1, Z: 1},
			{X: 1, Y: math.NaN(), Z: 1},
			{X: 1, Y: 1, Z: math.NaN()},
			{X: math.Inf(1), Y: 1, Z: 1},
			{X: 1, Y: math.Inf(-1), Z: 1},
			{X: 1, Y: 1, Z: math.Inf(1)},
		}
		for _, p := range bad {
			got := MapToDisplay(p, image, display)
			if !math.IsNaN(got.X) || !math.IsNaN(got.Y) || !math.IsNaN(got.Z) {
				t.Errorf("MapToDisplay(%v) = %v, want all NaN", p, got)
			}
			if IsValid(got) {
				t.Errorf("IsValid(MapToDisplay(%v)) = true", p)
			}
		}
	})

	t.Run("empty image size is invalid", func(t *testing.T) {
		got := MapToDisplay(r3.Vector{X: 1, Y: 1, Z: 1}, Size{}, display)
		if IsValid(got) {
			t.Errorf("expected invalid position, got %v", got)
		}
	})
}

func TestMapper_ToDisplay(t *testing.T) {
	m := NewMapper(Size{Width: 100, Height: 100})
	got := m.ToDisplay(r3.Vector{X: 50, Y: 25, Z: 0}, Size{Width: 200, Height: 100})
	if !approx(got.X, 25) || !approx(got.Y, 25) {
		t.Errorf("ToDisplay() = %v, want (25, 25, 0)", got)
	}
}

func TestRescale(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		in   [2]float64
		out  [2]float64
		want float64
	}{
		{"midpoint", 5, [2]float64{0, 10}, [2]float64{0, 100}, 50},
		{"reversed output", 0, [2]float64{-1, 1}, [2]float64{10, -10}, 0},
		{"extrapolates", 20, [2]float64{0, 10}, [2]float64{0, 1}, 2},
		{"negative box", -60, [2]float64{-120, 120}, [2]float64{-1, 1}, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rescale(tt.v, tt.in[0], tt.in[1], tt.out[0], tt.out[1]); !approx(got, tt.want) {
				t.Errorf("Rescale() = %f, want %f", got, tt.want)
			}
		})
	}

	if got := Rescale(1, 3, 3, 0, 1); !math.IsNaN(got) {
		t.Errorf("degenerate range = %f, want NaN", got)
	}
}

func TestClamp_Idempotent(t *testing.T) {
	values := []float64{-1e9, -3, -1, -0.999, -0.25, 0, 0.5, 1, 1.0001, 42, math.Inf(1), math.Inf(-1)}
	for _, v := range values {
		once := Clamp(v, -1, 1)
		if once < -1 || once > 1 {
			t.Errorf("Clamp(%v) = %v outside [-1, 1]", v, once)
		}
		if twice := Clamp(once, -1, 1); twice != once {
			t.Errorf("Clamp(Clamp(%v)) = %v, want %v", v, twice, once)
		}
		if v >= -1 && v <= 1 && once != v {
			t.Errorf("Clamp(%v) changed an in-range value to %v", v, once)
		}
	}
}

func TestMapRelativeToBox(t *testing.T) {
	t.Run("hand inside box is unchanged by clamping", func(t *testing.T) {
		shoulder := r3.Vector{X: 100, Y: 100, Z: 0}
		hand := r3.Vector{X: 90, Y: 90, Z: 0}

		mc, ok := MapRelativeToBox(hand, shoulder, 120)
		if !ok {
			t.Fatal("expected ok mapping")
		}
		want := 10.0 / 120.0
		if !approx(mc.Original.X, want) || !approx(mc.Original.Y, want) {
			t.Errorf("original = %v, want (%f, %f)", mc.Original, want, want)
		}
		if mc.Corrected != mc.Original {
			t.Errorf("corrected = %v, want equal to original %v", mc.Corrected, mc.Original)
		}
	})

	t.Run("both axes share one sign convention", func(t *testing.T) {
		anchor := r3.Vector{X: 0, Y: 0, Z: 0}
		tests := []struct {
			name string
			hand r3.Vector
			want r2.Point
		}{
			{"right", r3.Vector{X: 60}, r2.Point{X: -0.5}},
			{"left", r3.Vector{X: -60}, r2.Point{X: 0.5}},
			{"below", r3.Vector{Y: 60}, r2.Point{Y: -0.5}},
			{"above", r3.Vector{Y: -60}, r2.Point{Y: 0.5}},
			{"corner", r3.Vector{X: 120, Y: -120}, r2.Point{X: -1, Y: 1}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mc, ok := MapRelativeToBox(tt.hand, anchor, 120)
				if !ok {
					t.Fatal("expected ok mapping")
				}
				if !approx(mc.Original.X, tt.want.X) || !approx(mc.Original.Y, tt.want.Y) {
					t.Errorf("original = %v, want %v", mc.Original, tt.want)
				}
			})
		}
	})

	t.Run("outside box is clamped but original kept", func(t *testing.T) {
		mc, ok := MapRelativeToBox(r3.Vector{X: 300, Y: -240}, r3.Vector{}, 100)
		if !ok {
			t.Fatal("expected ok mapping")
		}
		if !approx(mc.Original.X, -3) || !approx(mc.Original.Y, 2.4) {
			t.Errorf("original = %v, want (-3, 2.4)", mc.Original)
		}
		if mc.Corrected != (r2.Point{X: -1, Y: 1}) {
			t.Errorf("corrected = %v, want (-1, 1)", mc.Corrected)
		}
		if ClampPoint(mc.Corrected) != mc.Corrected {
			t.Error("clamping a corrected point changed it")
		}
	})

	t.Run("z is ignored", func(t *testing.T) {
		a, _ := MapRelativeToBox(r3.Vector{X: 10, Y: 10, Z: 0}, r3.Vector{}, 100)
		b, _ := MapRelativeToBox(r3.Vector{X: 10, Y: 10, Z: 90}, r3.Vector{}, 100)
		if a != b {
			t.Errorf("z changed the mapping: %v vs %v", a, b)
		}
	})

	t.Run("rejects unusable input", func(t *testing.T) {
		cases := []struct {
			name   string
			point  r3.Vector
			anchor r3.Vector
			half   float64
		}{
			{"zero extent", r3.Vector{X: 1}, r3.Vector{}, 0},
			{"negative extent", r3.Vector{X: 1}, r3.Vector{}, -5},
			{"nan extent", r3.Vector{X: 1}, r3.Vector{}, math.NaN()},
			{"invalid point", Invalid(), r3.Vector{}, 10},
			{"invalid anchor", r3.Vector{}, Invalid(), 10},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				mc, ok := MapRelativeToBox(c.point, c.anchor, c.half)
				if ok {
					t.Error("expected ok == false")
				}
				if !math.IsNaN(mc.Original.X) || !math.IsNaN(mc.Corrected.Y) {
					t.Errorf("expected NaN coordinates, got %v", mc)
				}
			})
		}
	})
}
