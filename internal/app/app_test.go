package app

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/gesture"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/store"
)

// newTestApp builds an App on a mock source with no store.
func newTestApp(t *testing.T, tuning *config.Tuning) *App {
	t.Helper()

	a, err := New(Config{
		Source:     landmark.NewMockSource(),
		SourceName: "mock",
		Tuning:     tuning,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

// setRaw injects the gaze sample the next calibration capture will pair with,
// standing in for a processed frame.
func setRaw(a *App, p *landmark.Point) {
	a.mu.Lock()
	a.lastRaw = p
	a.mu.Unlock()
}

// affineIris mirrors where a fixating operator's iris lands for a target.
func affineIris(target landmark.Point) landmark.Point {
	return landmark.Point{
		X: 0.8*target.X + 0.1*target.Y + 0.1,
		Y: -0.05*target.X + 0.7*target.Y + 0.15,
	}
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New() without a source should fail")
	}
}

func TestNew_RejectsUnknownStrategy(t *testing.T) {
	strategy := "parabolic"
	_, err := New(Config{
		Source: landmark.NewMockSource(),
		Tuning: &config.Tuning{Strategy: &strategy},
	})
	if !errors.Is(err, gaze.ErrUnknownStrategy) {
		t.Fatalf("New() error = %v, want ErrUnknownStrategy", err)
	}
}

func TestApp_SubscribePublish(t *testing.T) {
	a := newTestApp(t, nil)

	ch := a.Subscribe()
	out := Output{TS: 42}
	a.publish(out)

	select {
	case got := <-ch:
		if got.TS != 42 {
			t.Errorf("TS = %d, want 42", got.TS)
		}
	default:
		t.Fatal("subscriber should have received the output")
	}

	// After unsubscribing, nothing arrives
	a.Unsubscribe(ch)
	a.publish(Output{TS: 43})
	select {
	case got := <-ch:
		t.Errorf("unexpected output after unsubscribe: %+v", got)
	default:
	}
}

func TestApp_PublishDropsWhenFull(t *testing.T) {
	a := newTestApp(t, nil)
	ch := a.Subscribe()

	// Publish past the buffer; the loop must not block
	for i := 0; i < OutputBuffer+5; i++ {
		a.publish(Output{TS: int64(i)})
	}

	if len(ch) != OutputBuffer {
		t.Errorf("buffered outputs = %d, want %d", len(ch), OutputBuffer)
	}
	// The oldest outputs survive; overflow is dropped
	got := <-ch
	if got.TS != 0 {
		t.Errorf("first buffered TS = %d, want 0", got.TS)
	}
}

func TestApp_CalibrationDriver(t *testing.T) {
	a := newTestApp(t, nil)

	targets := a.BeginCalibration()
	if len(targets) != 9 {
		t.Fatalf("BeginCalibration() returned %d targets, want 9", len(targets))
	}
	if state := a.CalibrationState(); !state.Active {
		t.Error("calibration should be active after begin")
	}

	// Out-of-range indexes are rejected
	if _, err := a.CaptureCalibrationPoint(-1); err != ErrPointOutOfRange {
		t.Errorf("capture(-1) error = %v, want ErrPointOutOfRange", err)
	}
	if _, err := a.CaptureCalibrationPoint(9); err != ErrPointOutOfRange {
		t.Errorf("capture(9) error = %v, want ErrPointOutOfRange", err)
	}

	// No frame has carried a gaze sample yet
	if _, err := a.CaptureCalibrationPoint(0); err != ErrNoGaze {
		t.Errorf("capture without gaze error = %v, want ErrNoGaze", err)
	}

	for i, target := range targets {
		iris := affineIris(target)
		setRaw(a, &iris)
		count, err := a.CaptureCalibrationPoint(i)
		if err != nil {
			t.Fatalf("capture(%d) error = %v", i, err)
		}
		if count != i+1 {
			t.Errorf("capture(%d) count = %d, want %d", i, count, i+1)
		}
	}

	result, err := a.FinishCalibration()
	if err != nil {
		t.Fatalf("FinishCalibration() error = %v", err)
	}
	if !result.OK {
		t.Fatal("fit should succeed on a full grid")
	}
	if result.Samples != 9 {
		t.Errorf("Samples = %d, want 9", result.Samples)
	}
	if result.ResidualX > 1e-6 || result.ResidualY > 1e-6 {
		t.Errorf("residuals (%g, %g) too large for exactly-affine data",
			result.ResidualX, result.ResidualY)
	}

	state := a.CalibrationState()
	if state.Active {
		t.Error("calibration should end after a successful fit")
	}
	if !state.Fitted {
		t.Error("a model should be fitted")
	}

	// The session is over
	if _, err := a.CaptureCalibrationPoint(0); err != ErrNotCalibrating {
		t.Errorf("capture after finish error = %v, want ErrNotCalibrating", err)
	}
}

func TestApp_FinishCalibration_NotActive(t *testing.T) {
	a := newTestApp(t, nil)
	if _, err := a.FinishCalibration(); err != ErrNotCalibrating {
		t.Errorf("FinishCalibration() error = %v, want ErrNotCalibrating", err)
	}
}

func TestApp_RefusedFitKeepsSessionOpen(t *testing.T) {
	a := newTestApp(t, nil)

	targets := a.BeginCalibration()
	for i := 0; i < 3; i++ {
		iris := affineIris(targets[i])
		setRaw(a, &iris)
		if _, err := a.CaptureCalibrationPoint(i); err != nil {
			t.Fatalf("capture(%d) error = %v", i, err)
		}
	}

	result, err := a.FinishCalibration()
	if err != nil {
		t.Fatalf("FinishCalibration() error = %v", err)
	}
	if result.OK {
		t.Fatal("fit should be refused with 3 samples")
	}
	if state := a.CalibrationState(); !state.Active {
		t.Fatal("a refused fit should keep the session open")
	}

	// One more sample crosses the threshold
	iris := affineIris(targets[3])
	setRaw(a, &iris)
	if _, err := a.CaptureCalibrationPoint(3); err != nil {
		t.Fatalf("capture(3) error = %v", err)
	}
	result, err = a.FinishCalibration()
	if err != nil {
		t.Fatalf("FinishCalibration() retry error = %v", err)
	}
	if !result.OK {
		t.Error("fit should succeed with 4 samples")
	}
}

func TestApp_CancelCalibration(t *testing.T) {
	a := newTestApp(t, nil)

	targets := a.BeginCalibration()
	iris := affineIris(targets[0])
	setRaw(a, &iris)
	if _, err := a.CaptureCalibrationPoint(0); err != nil {
		t.Fatalf("capture error = %v", err)
	}

	a.CancelCalibration()

	state := a.CalibrationState()
	if state.Active {
		t.Error("calibration should be inactive after cancel")
	}
	if state.Collected != 0 {
		t.Errorf("collected = %d after cancel, want 0", state.Collected)
	}
	if state.Fitted {
		t.Error("no model should be fitted after cancel")
	}

	// Cancel outside a session is a no-op
	a.CancelCalibration()
}

func TestApp_ApplyTuning(t *testing.T) {
	a := newTestApp(t, nil)

	// Invalid values are rejected before anything is rebuilt
	badSamples := 3
	if err := a.ApplyTuning(config.Tuning{MinSamples: &badSamples}); err == nil {
		t.Fatal("ApplyTuning() should reject min_samples below 4")
	}

	strategy := gaze.StrategyMovingAverage
	window := 3
	tuning := config.Tuning{Strategy: &strategy, Window: &window}
	if err := a.ApplyTuning(tuning); err != nil {
		t.Fatalf("ApplyTuning() error = %v", err)
	}

	got := a.Tuning()
	if got.Strategy == nil || *got.Strategy != gaze.StrategyMovingAverage {
		t.Error("applied strategy should be readable back")
	}
	if got.Window == nil || *got.Window != 3 {
		t.Error("applied window should be readable back")
	}
}

func TestApp_ApplyTuning_PersistsToSettings(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a, err := New(Config{Source: landmark.NewMockSource(), Store: s})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	noise := 0.002
	if err := a.ApplyTuning(config.Tuning{ProcessNoise: &noise}); err != nil {
		t.Fatalf("ApplyTuning() error = %v", err)
	}

	raw, err := s.Settings().Get(TuningKey)
	if err != nil {
		t.Fatalf("settings should hold the override: %v", err)
	}
	var stored config.Tuning
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored tuning should be valid JSON: %v", err)
	}
	if stored.ProcessNoise == nil || *stored.ProcessNoise != noise {
		t.Errorf("stored process noise = %v, want %v", stored.ProcessNoise, noise)
	}
}

func TestApp_ApplyTuning_KeepsFittedModel(t *testing.T) {
	a := newTestApp(t, nil)

	targets := a.BeginCalibration()
	for i, target := range targets {
		iris := affineIris(target)
		setRaw(a, &iris)
		if _, err := a.CaptureCalibrationPoint(i); err != nil {
			t.Fatalf("capture(%d) error = %v", i, err)
		}
	}
	if result, err := a.FinishCalibration(); err != nil || !result.OK {
		t.Fatalf("fit failed: result=%+v err=%v", result, err)
	}

	noise := 0.005
	if err := a.ApplyTuning(config.Tuning{ProcessNoise: &noise}); err != nil {
		t.Fatalf("ApplyTuning() error = %v", err)
	}

	if !a.CalibrationState().Fitted {
		t.Error("a tuning change must not discard the fitted model")
	}
}

func TestApp_LastOutput_Empty(t *testing.T) {
	a := newTestApp(t, nil)
	if _, ok := a.LastOutput(); ok {
		t.Error("LastOutput() should report absent before any frame")
	}
}

func TestApp_ProcessFrame_ScoreGating(t *testing.T) {
	a := newTestApp(t, nil)

	face := landmark.SyntheticFace(landmark.Point{X: 0.5, Y: 0.5})
	face.Score = 0.2
	weak := landmark.OpenPalmHand()
	weak.Score = 0.5

	out := a.processFrame(&landmark.Frame{TS: 1, Face: face, Hands: []landmark.Hand{weak}})
	if out.Raw != nil {
		t.Error("a low-score face should be gated out")
	}
	if out.Gesture != nil {
		t.Error("a low-score hand should be gated out")
	}

	// The first hand above threshold wins, even behind a gated one
	confident := landmark.FistHand()
	out = a.processFrame(&landmark.Frame{TS: 2, Hands: []landmark.Hand{weak, confident}})
	if out.Gesture == nil || out.Gesture.Label != gesture.LabelClosedFist {
		t.Errorf("gesture = %+v, want CLOSED_FIST from the confident hand", out.Gesture)
	}

	if got, ok := a.LastOutput(); !ok || got.TS != 2 {
		t.Errorf("LastOutput() = %+v, %v; want the latest frame", got, ok)
	}
}
