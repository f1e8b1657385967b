package app

import (
	"errors"
	"log"
	"time"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/store"
)

// Calibration session errors.
var (
	// ErrNotCalibrating is returned for capture or fit calls outside an
	// active calibration session.
	ErrNotCalibrating = errors.New("calibration not active")
	// ErrNoGaze is returned when a capture is requested but the current
	// frame carried no usable gaze sample.
	ErrNoGaze = errors.New("no gaze sample available")
	// ErrPointOutOfRange is returned for a target index outside the grid.
	ErrPointOutOfRange = errors.New("calibration point index out of range")
)

// CalibrationState is a snapshot of the calibration session for the API.
type CalibrationState struct {
	Active    bool             `json:"active"`
	Collected int              `json:"collected"`
	Fitted    bool             `json:"fitted"`
	Targets   []landmark.Point `json:"targets"`
	ResidualX float64          `json:"residual_x"`
	ResidualY float64          `json:"residual_y"`
}

// FitResult reports the outcome of a calibration fit attempt.
type FitResult struct {
	OK        bool    `json:"ok"`
	Samples   int     `json:"samples"`
	ResidualX float64 `json:"residual_x"`
	ResidualY float64 `json:"residual_y"`
}

// BeginCalibration starts a calibration session and returns the target grid
// the operator should fixate, in capture order. Any fitted model and any
// smoother state are discarded; until the new fit lands, gaze output is
// absent.
func (a *App) BeginCalibration() []landmark.Point {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calibrator.Reset()
	a.smoother.Reset()
	a.calibrating = true

	log.Println("Calibration started")
	return gaze.Grid()
}

// CaptureCalibrationPoint pairs the grid target at index with the gaze
// sample from the most recent frame and returns the new sample count.
// ErrNoGaze means the current frame had no usable face; the operator should
// hold the fixation and retry.
func (a *App) CaptureCalibrationPoint(index int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.calibrating {
		return 0, ErrNotCalibrating
	}
	grid := gaze.Grid()
	if index < 0 || index >= len(grid) {
		return a.calibrator.SampleCount(), ErrPointOutOfRange
	}
	if a.lastRaw == nil {
		return a.calibrator.SampleCount(), ErrNoGaze
	}

	a.calibrator.Collect(grid[index], a.lastRaw)
	return a.calibrator.SampleCount(), nil
}

// FinishCalibration fits the collected samples. On success the session ends
// and the smoother restarts so stale velocity never bridges two different
// mappings. On a refused fit the session stays open so the operator can
// capture more points and retry. Every attempt is recorded.
func (a *App) FinishCalibration() (FitResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.calibrating {
		return FitResult{}, ErrNotCalibrating
	}

	result := FitResult{
		OK:      a.calibrator.Fit(),
		Samples: a.calibrator.SampleCount(),
	}
	if result.OK {
		result.ResidualX, result.ResidualY = a.calibrator.Residuals()
		a.smoother.Reset()
		a.calibrating = false
		log.Printf("Calibration fitted on %d samples (residuals %.4f, %.4f)",
			result.Samples, result.ResidualX, result.ResidualY)
	} else {
		log.Printf("Calibration fit refused with %d samples", result.Samples)
	}

	a.recordFit(result)
	return result, nil
}

// CancelCalibration abandons the session, discarding collected samples.
// No-op outside a session.
func (a *App) CancelCalibration() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.calibrating {
		return
	}
	a.calibrator.Reset()
	a.smoother.Reset()
	a.calibrating = false
	log.Println("Calibration cancelled")
}

// CalibrationState returns a snapshot of the calibration session.
func (a *App) CalibrationState() CalibrationState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	resX, resY := a.calibrator.Residuals()
	return CalibrationState{
		Active:    a.calibrating,
		Collected: a.calibrator.SampleCount(),
		Fitted:    a.calibrator.Fitted(),
		Targets:   gaze.Grid(),
		ResidualX: resX,
		ResidualY: resY,
	}
}

// recordFit persists one fit attempt. Caller holds a.mu.
func (a *App) recordFit(result FitResult) {
	if a.store == nil || a.sessionID == "" {
		return
	}
	fit := &store.Fit{
		SessionID: a.sessionID,
		TS:        time.Now().UnixMilli(),
		Samples:   result.Samples,
		OK:        result.OK,
		ResidualX: result.ResidualX,
		ResidualY: result.ResidualY,
	}
	if err := a.store.Fits().Create(fit); err != nil {
		log.Printf("Error recording calibration fit: %v", err)
	}
}
