// Package skeleton provides the per-frame body-tracking data model and the
// sources that deliver it.
package skeleton

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// JointType indexes a Skeleton's joints following the Kinect v2 body layout.
type JointType int

// Joint indices.
const (
	SpineBase JointType = iota
	SpineMid
	Neck
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	SpineShoulder
	HandTipLeft
	ThumbLeft
	HandTipRight
	ThumbRight
	NumJoints = 25
)

var jointNames = [NumJoints]string{
	"spine_base", "spine_mid", "neck", "head",
	"shoulder_left", "elbow_left", "wrist_left", "hand_left",
	"shoulder_right", "elbow_right", "wrist_right", "hand_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
	"spine_shoulder", "hand_tip_left", "thumb_left", "hand_tip_right", "thumb_right",
}

func (j JointType) String() string {
	if j < 0 || j >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// HandState is the discrete open/closed classification reported for hand joints.
type HandState int

const (
	HandUnknown HandState = iota
	HandNotTracked
	HandOpen
	HandClosed
	HandLasso
)

var handStateNames = map[HandState]string{
	HandUnknown:    "unknown",
	HandNotTracked: "not_tracked",
	HandOpen:       "open",
	HandClosed:     "closed",
	HandLasso:      "lasso",
}

func (s HandState) String() string {
	if name, ok := handStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s HandState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized names decode
// as HandUnknown.
func (s *HandState) UnmarshalText(text []byte) error {
	for state, name := range handStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	*s = HandUnknown
	return nil
}

// Joint is one named anatomical point in sensor space.
type Joint struct {
	Position r3.Vector
	State    HandState // only meaningful for hand joints
}

// Skeleton is one detected person's joint set for one frame.
type Skeleton struct {
	Tracked bool
	ID      int
	Joints  [NumJoints]Joint
}

// Joint returns the joint of the given type.
func (s *Skeleton) Joint(t JointType) Joint {
	return s.Joints[t]
}

// Finite reports whether every component of v is a finite number.
func Finite(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}
