// Package gesture classifies a single hand's landmark set into a discrete
// gesture label with a confidence score, using a fixed-threshold decision
// tree over joint positions.
package gesture

import (
	"math"

	"github.com/ayusman/drishti/internal/landmark"
)

// Label is a discrete hand gesture. The string values are stable wire and
// storage identifiers.
type Label string

const (
	LabelClosedFist Label = "CLOSED_FIST"
	LabelOpenPalm   Label = "OPEN_PALM"
	LabelPointing   Label = "POINTING"
	LabelPinch      Label = "PINCH"
	LabelPeaceSign  Label = "PEACE_SIGN"
	LabelUnknown    Label = "UNKNOWN"

	// LabelError is the sentinel for malformed input. It carries zero
	// confidence and is never produced by a well-formed landmark set.
	LabelError Label = "ERROR"
)

// Result pairs a gesture label with the classifier's confidence in it.
type Result struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Config holds the decision-tree thresholds, in normalized coordinates.
type Config struct {
	// ThumbSpread is the minimum |tip.x - ip.x| for the thumb to count
	// as extended. The thumb moves laterally, so the vertical test used
	// for the other fingers does not apply.
	ThumbSpread float64

	// PinchDistance is the largest thumb-to-index tip distance still read
	// as a pinch.
	PinchDistance float64
}

// DefaultConfig returns the stock classification thresholds.
func DefaultConfig() Config {
	return Config{
		ThumbSpread:   0.04,
		PinchDistance: 0.05,
	}
}

// Classifier maps one hand's 21 keypoints to a gesture label. It holds no
// mutable state: classification is deterministic and safe to repeat per
// frame.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a Classifier. Non-positive thresholds fall back to
// the defaults.
func NewClassifier(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.ThumbSpread <= 0 {
		cfg.ThumbSpread = def.ThumbSpread
	}
	if cfg.PinchDistance <= 0 {
		cfg.PinchDistance = def.PinchDistance
	}
	return &Classifier{cfg: cfg}
}

// Classify runs the decision tree over points. A landmark set shorter than
// the 21-point hand contract yields LabelError with zero confidence; one
// malformed frame must never take down the caller's loop.
//
// Image coordinates grow downward, so a fingertip above its PIP joint has
// the smaller y value.
func (c *Classifier) Classify(points []landmark.Point) Result {
	if len(points) < landmark.HandLandmarkCount {
		return Result{Label: LabelError, Confidence: 0}
	}

	indexExt := tipAbovePIP(points, landmark.IndexTip, landmark.IndexPIP)
	middleExt := tipAbovePIP(points, landmark.MiddleTip, landmark.MiddlePIP)
	ringExt := tipAbovePIP(points, landmark.RingTip, landmark.RingPIP)
	pinkyExt := tipAbovePIP(points, landmark.PinkyTip, landmark.PinkyPIP)
	thumbExt := math.Abs(points[landmark.ThumbTip].X-points[landmark.ThumbIP].X) > c.cfg.ThumbSpread

	extended := 0
	for _, ext := range []bool{thumbExt, indexExt, middleExt, ringExt, pinkyExt} {
		if ext {
			extended++
		}
	}

	switch {
	case extended == 0:
		return Result{Label: LabelClosedFist, Confidence: 0.9}
	case extended >= 4:
		return Result{Label: LabelOpenPalm, Confidence: 0.9}
	case extended == 1 && indexExt:
		return Result{Label: LabelPointing, Confidence: 0.9}
	case extended == 2 && thumbExt && indexExt:
		pinch := landmark.Dist(points[landmark.ThumbTip], points[landmark.IndexTip])
		if pinch < c.cfg.PinchDistance {
			return Result{Label: LabelPinch, Confidence: 0.9}
		}
		return Result{Label: LabelPeaceSign, Confidence: 0.8}
	default:
		return Result{Label: LabelUnknown, Confidence: 0.5}
	}
}

func tipAbovePIP(points []landmark.Point, tip, pip int) bool {
	return points[tip].Y < points[pip].Y
}
