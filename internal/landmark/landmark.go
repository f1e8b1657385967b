// Package landmark defines the normalized landmark data model shared by the
// gaze and gesture pipelines, and the frame sources that deliver per-frame
// detections from an external landmark detector.
package landmark

import (
	"encoding/json"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist             = 0
	ThumbCMC          = 1
	ThumbMCP          = 2
	ThumbIP           = 3
	ThumbTip          = 4
	IndexMCP          = 5
	IndexPIP          = 6
	IndexDIP          = 7
	IndexTip          = 8
	MiddleMCP         = 9
	MiddlePIP         = 10
	MiddleDIP         = 11
	MiddleTip         = 12
	RingMCP           = 13
	RingPIP           = 14
	RingDIP           = 15
	RingTip           = 16
	PinkyMCP          = 17
	PinkyPIP          = 18
	PinkyDIP          = 19
	PinkyTip          = 20
	HandLandmarkCount = 21
)

// Face landmark indices for the refined face mesh (478 points). The iris
// center positions are part of the detector's positional contract and must
// not change once chosen; they are pinned by tests.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	LeftIrisCenter    = 468
	RightIrisCenter   = 473
	FaceLandmarkCount = 478

	// MinFacePoints is the shortest face landmark set that still contains
	// both iris centers.
	MinFacePoints = RightIrisCenter + 1
)

// Point is a 2D landmark coordinate normalized to [0,1] in both axes,
// with y increasing downward. It has value semantics and no identity.
//
// On the wire a Point is the JSON array [x, y]. Detectors that report extra
// per-point fields (depth, visibility) append them to the same array; decode
// keeps the first two elements and discards the rest.
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as the two-element array [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes [x, y, ...] into the point, ignoring any elements
// past the first two.
func (p *Point) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	if len(coords) < 2 {
		return fmt.Errorf("landmark: point needs 2 coordinates, got %d", len(coords))
	}
	p.X = coords[0]
	p.Y = coords[1]
	return nil
}

// Clamp returns a copy of the point with both coordinates clamped to [0,1].
func (p Point) Clamp() Point {
	return Point{X: clamp01(p.X), Y: clamp01(p.Y)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Dist calculates the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Hand is one detected hand: 21 positional keypoints plus the detector's
// handedness tag and confidence score. Points arrive as a slice straight off
// the wire; consumers must tolerate short sets (see gesture.Classify).
type Hand struct {
	Points     []Point `json:"points"`
	Handedness string  `json:"handedness"` // "Left" or "Right"
	Score      float64 `json:"score"`
}

// Face is one detected face landmark set with the detector's confidence
// score. Only the iris centers are consumed here; all other points ride
// along untouched.
type Face struct {
	Points []Point `json:"points"`
	Score  float64 `json:"score"`
}

// IrisCenters returns the left and right iris center landmarks, or (nil, nil)
// when the face set is too short to contain them.
func (f *Face) IrisCenters() (left, right *Point) {
	if f == nil || len(f.Points) < MinFacePoints {
		return nil, nil
	}
	l := f.Points[LeftIrisCenter]
	r := f.Points[RightIrisCenter]
	return &l, &r
}

// GazeSample returns the raw gaze proxy for this face: the midpoint of the
// two iris centers. Returns nil when the iris centers are unavailable.
func (f *Face) GazeSample() *Point {
	left, right := f.IrisCenters()
	if left == nil || right == nil {
		return nil
	}
	mid := Midpoint(*left, *right)
	return &mid
}

// Frame is the opaque per-frame record delivered by a landmark source:
// zero-or-one face result and zero-or-many hand results, stamped with the
// detector's capture time in Unix milliseconds.
type Frame struct {
	TS    int64  `json:"ts_ms"`
	Face  *Face  `json:"face,omitempty"`
	Hands []Hand `json:"hands,omitempty"`
}
