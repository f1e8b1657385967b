package gesture

import (
	"testing"

	"github.com/ayusman/drishti/internal/landmark"
)

func TestClassifier_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		hand      landmark.Hand
		wantLabel Label
		wantConf  float64
	}{
		{"closed fist", landmark.FistHand(), LabelClosedFist, 0.9},
		{"open palm", landmark.OpenPalmHand(), LabelOpenPalm, 0.9},
		{"pointing", landmark.PointingHand(), LabelPointing, 0.9},
		{"pinch", landmark.PinchHand(), LabelPinch, 0.9},
		{"peace sign", landmark.PeaceHand(), LabelPeaceSign, 0.8},
		{"middle and ring only", landmark.MiddleRingHand(), LabelUnknown, 0.5},
	}

	c := NewClassifier(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.hand.Points)
			if got.Label != tt.wantLabel {
				t.Errorf("Classify() label = %s, want %s", got.Label, tt.wantLabel)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Classify() confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

// thumbIndexHand builds a hand with thumb and index extended and the index
// tip exactly dist below the thumb tip.
func thumbIndexHand(dist float64) landmark.Hand {
	h := landmark.PinchHand()
	thumbTip := h.Points[landmark.ThumbTip]
	h.Points[landmark.IndexTip] = landmark.Point{X: thumbTip.X, Y: thumbTip.Y - dist}
	return h
}

func TestClassifier_PinchDistance(t *testing.T) {
	tests := []struct {
		name string
		dist float64
		want Label
	}{
		{"tips nearly touching", 0.02, LabelPinch},
		{"tips at threshold", 0.05, LabelPeaceSign},
		{"tips far apart", 0.2, LabelPeaceSign},
	}

	c := NewClassifier(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := thumbIndexHand(tt.dist)
			got := c.Classify(hand.Points)
			if got.Label != tt.want {
				t.Errorf("Classify() label = %s, want %s", got.Label, tt.want)
			}
		})
	}
}

func TestClassifier_ThumbSpreadThreshold(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	t.Run("at threshold stays a fist", func(t *testing.T) {
		hand := landmark.FistHand()
		ip := hand.Points[landmark.ThumbIP]
		hand.Points[landmark.ThumbTip] = landmark.Point{X: ip.X + 0.04, Y: ip.Y - 0.02}
		got := c.Classify(hand.Points)
		if got.Label != LabelClosedFist {
			t.Errorf("Classify() label = %s, want %s", got.Label, LabelClosedFist)
		}
	})

	t.Run("thumb alone is not a named gesture", func(t *testing.T) {
		hand := landmark.FistHand()
		ip := hand.Points[landmark.ThumbIP]
		hand.Points[landmark.ThumbTip] = landmark.Point{X: ip.X + 0.08, Y: ip.Y - 0.02}
		got := c.Classify(hand.Points)
		if got.Label != LabelUnknown {
			t.Errorf("Classify() label = %s, want %s", got.Label, LabelUnknown)
		}
		if got.Confidence != 0.5 {
			t.Errorf("Classify() confidence = %v, want 0.5", got.Confidence)
		}
	})
}

func TestClassifier_FourExtendedIsOpenPalm(t *testing.T) {
	hand := landmark.OpenPalmHand()
	// Tuck the thumb back in: four extended fingers still read as a palm.
	hand.Points[landmark.ThumbIP] = landmark.Point{X: 0.57, Y: 0.66}
	hand.Points[landmark.ThumbTip] = landmark.Point{X: 0.58, Y: 0.63}

	got := NewClassifier(DefaultConfig()).Classify(hand.Points)
	if got.Label != LabelOpenPalm {
		t.Errorf("Classify() label = %s, want %s", got.Label, LabelOpenPalm)
	}
}

func TestClassifier_MalformedInput(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	tests := []struct {
		name   string
		points []landmark.Point
	}{
		{"nil set", nil},
		{"empty set", []landmark.Point{}},
		{"ten points", make([]landmark.Point, 10)},
		{"twenty points", make([]landmark.Point, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.points)
			if got.Label != LabelError {
				t.Errorf("Classify() label = %s, want %s", got.Label, LabelError)
			}
			if got.Confidence != 0 {
				t.Errorf("Classify() confidence = %v, want 0", got.Confidence)
			}
		})
	}

	t.Run("extra points are tolerated", func(t *testing.T) {
		points := append(landmark.OpenPalmHand().Points, make([]landmark.Point, 4)...)
		got := c.Classify(points)
		if got.Label != LabelOpenPalm {
			t.Errorf("Classify() label = %s, want %s", got.Label, LabelOpenPalm)
		}
	})
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	hand := landmark.PinchHand()

	first := c.Classify(hand.Points)
	for i := 0; i < 5; i++ {
		if got := c.Classify(hand.Points); got != first {
			t.Fatalf("Classify() call %d = %+v, want %+v", i+2, got, first)
		}
	}
}

func TestClassifier_ConfigFallbacks(t *testing.T) {
	c := NewClassifier(Config{})
	if c.cfg.ThumbSpread != 0.04 {
		t.Errorf("ThumbSpread = %v, want 0.04", c.cfg.ThumbSpread)
	}
	if c.cfg.PinchDistance != 0.05 {
		t.Errorf("PinchDistance = %v, want 0.05", c.cfg.PinchDistance)
	}
}
