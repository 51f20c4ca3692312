package skeleton

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// jsonFrame is the line-delimited wire format shared by the sensor bridge and
// session recordings. Non-finite coordinates travel as null.
type jsonFrame struct {
	Image     jsonImage      `json:"image"`
	Timestamp int64          `json:"timestamp,omitempty"` // unix milliseconds
	Skeletons []jsonSkeleton `json:"skeletons"`
}

type jsonImage struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type jsonSkeleton struct {
	Tracked bool        `json:"tracked"`
	ID      int         `json:"id"`
	Joints  []jsonJoint `json:"joints"`
}

type jsonJoint struct {
	X     *float64  `json:"x"`
	Y     *float64  `json:"y"`
	Z     *float64  `json:"z"`
	State HandState `json:"state,omitempty"`
}

// EncodeFrame serializes a frame into the wire format.
func EncodeFrame(f Frame) ([]byte, error) {
	jf := jsonFrame{
		Image:     jsonImage{Width: f.ImageWidth, Height: f.ImageHeight},
		Skeletons: make([]jsonSkeleton, len(f.Skeletons)),
	}
	if !f.Timestamp.IsZero() {
		jf.Timestamp = f.Timestamp.UnixMilli()
	}

	for i, s := range f.Skeletons {
		js := jsonSkeleton{
			Tracked: s.Tracked,
			ID:      s.ID,
			Joints:  make([]jsonJoint, NumJoints),
		}
		for j, joint := range s.Joints {
			js.Joints[j] = jsonJoint{
				X:     finiteOrNil(joint.Position.X),
				Y:     finiteOrNil(joint.Position.Y),
				Z:     finiteOrNil(joint.Position.Z),
				State: joint.State,
			}
		}
		jf.Skeletons[i] = js
	}

	return json.Marshal(jf)
}

// DecodeFrame parses one wire-format frame. Missing image dimensions are left
// at zero for the caller to default.
func DecodeFrame(data []byte) (Frame, error) {
	var jf jsonFrame
	if err := json.Unmarshal(data, &jf); err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}

	f := Frame{
		ImageWidth:  jf.Image.Width,
		ImageHeight: jf.Image.Height,
		Skeletons:   make([]Skeleton, len(jf.Skeletons)),
	}
	if jf.Timestamp != 0 {
		f.Timestamp = time.UnixMilli(jf.Timestamp)
	}

	for i, js := range jf.Skeletons {
		if len(js.Joints) > NumJoints {
			return Frame{}, fmt.Errorf("skeleton %d has %d joints, expected at most %d", js.ID, len(js.Joints), NumJoints)
		}
		s := Skeleton{Tracked: js.Tracked, ID: js.ID}
		// Joints the bridge did not report stay invalid rather than zero.
		for j := range s.Joints {
			s.Joints[j].Position = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
		}
		for j, jj := range js.Joints {
			s.Joints[j] = Joint{
				Position: r3.Vector{X: nilToNaN(jj.X), Y: nilToNaN(jj.Y), Z: nilToNaN(jj.Z)},
				State:    jj.State,
			}
		}
		f.Skeletons[i] = s
	}

	return f, nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nilToNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
