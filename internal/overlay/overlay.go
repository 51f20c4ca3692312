// Package overlay draws tracker results for the debug stream.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"

	"github.com/ayusman/handbox/internal/capture"
	"github.com/ayusman/handbox/internal/log"
	"github.com/ayusman/handbox/internal/mapping"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/tracker"
)

// Colors used by the renderer.
var (
	colorWhite   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorGray    = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	colorGreen   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorRed     = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	colorBlue    = color.RGBA{R: 0, G: 120, B: 255, A: 255}
	colorYellow  = color.RGBA{R: 255, G: 210, B: 0, A: 255}
	colorMagenta = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

const (
	handRadius   = 12
	jointRadius  = 5
	fontScale    = 0.7
	lineHeight   = 28
	textMarginPx = 12

	// fpsSmoothing is the weight of the newest frame interval in the FPS estimate.
	fpsSmoothing = 0.1
)

// Config holds configuration options for the renderer.
type Config struct {
	// Display is the canvas size; it matches the tracker's display space.
	Display mapping.Size
	// Scale resizes the encoded JPEG. Values outside (0, 1] encode at full size.
	Scale float64
}

// Renderer draws the latest tracker result over a black canvas or an
// optional camera backdrop. It is safe for concurrent use.
type Renderer struct {
	config   Config
	backdrop capture.Camera

	mu     sync.RWMutex
	result tracker.Result
	fps    float64
}

// New creates a Renderer. backdrop may be nil.
func New(config Config, backdrop capture.Camera) *Renderer {
	return &Renderer{config: config, backdrop: backdrop}
}

// Update replaces the result drawn by subsequent renders and folds the
// interval since the previous result into the frame rate estimate.
func (r *Renderer) Update(res tracker.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.result.Timestamp; !prev.IsZero() {
		if dt := res.Timestamp.Sub(prev); dt > 0 {
			r.fps = smoothFPS(r.fps, dt)
		}
	}
	r.result = res
}

// FPS returns the estimated rate at which results arrive, or 0 before two
// results with distinct timestamps have been seen.
func (r *Renderer) FPS() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fps
}

func smoothFPS(current float64, dt time.Duration) float64 {
	instant := float64(time.Second) / float64(dt)
	if current == 0 {
		return instant
	}
	return current + fpsSmoothing*(instant-current)
}

// Render draws the latest result. The caller closes the returned Mat.
func (r *Renderer) Render() gocv.Mat {
	r.mu.RLock()
	res, fps := r.result, r.fps
	r.mu.RUnlock()

	canvas := r.canvas()

	ids := make([]int, 0, len(res.Players))
	for id := range res.Players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		drawPlayer(&canvas, res.Players[id])
	}

	for i, line := range res.Status {
		pt := image.Pt(textMarginPx, lineHeight*(i+1))
		gocv.PutText(&canvas, line, pt, gocv.FontHersheySimplex, fontScale, colorMagenta, 2)
	}

	fpsText := fmt.Sprintf("FPS %.0f", fps)
	size := gocv.GetTextSize(fpsText, gocv.FontHersheySimplex, fontScale, 2)
	fpsAt := image.Pt(r.config.Display.Width-size.X-textMarginPx, lineHeight)
	gocv.PutText(&canvas, fpsText, fpsAt, gocv.FontHersheySimplex, fontScale, colorWhite, 2)

	return canvas
}

// JPEG renders and encodes the latest result.
func (r *Renderer) JPEG() ([]byte, error) {
	img := r.Render()
	defer img.Close()

	if s := r.config.Scale; s > 0 && s < 1 {
		scaled := gocv.NewMat()
		defer scaled.Close()
		gocv.Resize(img, &scaled, image.Point{}, s, s, gocv.InterpolationArea)
		return encode(scaled)
	}
	return encode(img)
}

func encode(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// canvas returns a display-sized image: the resized backdrop frame when one
// is available, otherwise black.
func (r *Renderer) canvas() gocv.Mat {
	w, h := r.config.Display.Width, r.config.Display.Height

	if r.backdrop != nil && r.backdrop.IsOpen() {
		frame, err := r.backdrop.ReadFrame()
		if err == nil {
			defer frame.Close()
			canvas := gocv.NewMat()
			gocv.Resize(*frame, &canvas, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
			return canvas
		}
		log.Debug("backdrop frame unavailable", "error", err)
	}

	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

func drawPlayer(img *gocv.Mat, p tracker.PlayerResult) {
	calibrated := p.CalibratedDistance != nil

	boxColor := colorGray
	if calibrated {
		boxColor = colorGreen
	}

	half := int(math.Round(p.HalfExtent))
	for _, side := range []struct {
		anchor r3.Vector
		hand   r3.Vector
		state  skeleton.HandState
		box    *mapping.MappedCoordinates
	}{
		{p.ShoulderLeft, p.LeftHand, p.LeftHandState, p.LeftBox},
		{p.ShoulderRight, p.RightHand, p.RightHandState, p.RightBox},
	} {
		anchor := toPoint(side.anchor)
		hand := toPoint(side.hand)

		gocv.Rectangle(img, BoxRect(anchor, half), boxColor, 2)
		gocv.Line(img, anchor, hand, colorWhite, 1)
		gocv.Circle(img, anchor, jointRadius, colorWhite, -1)
		gocv.Circle(img, hand, handRadius, HandColor(side.state), -1)

		if side.box != nil {
			label := fmt.Sprintf("%.2f,%.2f", side.box.Corrected.X, side.box.Corrected.Y)
			gocv.PutText(img, label, hand.Add(image.Pt(handRadius+4, 0)), gocv.FontHersheySimplex, 0.5, colorWhite, 1)
		}
	}

	spine := toPoint(p.SpineShoulder)
	gocv.Circle(img, spine, jointRadius, colorWhite, -1)

	label := fmt.Sprintf("P%d", p.ID)
	if calibrated {
		label += fmt.Sprintf(" d=%.0f", *p.CalibratedDistance)
	}
	gocv.PutText(img, label, spine.Sub(image.Pt(0, 2*handRadius)), gocv.FontHersheySimplex, fontScale, boxColor, 2)
}

// BoxRect is the square of half extent half centered on anchor.
func BoxRect(anchor image.Point, half int) image.Rectangle {
	return image.Rect(anchor.X-half, anchor.Y-half, anchor.X+half, anchor.Y+half)
}

// HandColor maps a hand state to its marker color.
func HandColor(state skeleton.HandState) color.RGBA {
	switch state {
	case skeleton.HandOpen:
		return colorGreen
	case skeleton.HandClosed:
		return colorRed
	case skeleton.HandLasso:
		return colorBlue
	default:
		return colorYellow
	}
}

func toPoint(v r3.Vector) image.Point {
	return image.Pt(int(math.Round(v.X)), int(math.Round(v.Y)))
}
