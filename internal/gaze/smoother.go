package gaze

import (
	"errors"
	"fmt"

	"github.com/ayusman/drishti/internal/landmark"
)

// Smoothing strategy names, selected explicitly at construction.
const (
	StrategyKalman        = "kalman"
	StrategyMovingAverage = "moving_average"
)

// ErrUnknownStrategy is returned by NewSmoother for a strategy name outside
// the supported set.
var ErrUnknownStrategy = errors.New("unknown smoothing strategy")

// Config carries the gaze pipeline tunables. The zero value selects the
// defaults from DefaultConfig.
type Config struct {
	// Strategy selects the smoothing implementation: StrategyKalman or
	// StrategyMovingAverage. Empty selects Kalman.
	Strategy string

	// ProcessNoise is the Kalman process noise Q. Lower values smooth more
	// at the cost of lag.
	ProcessNoise float64

	// MeasurementNoise is the Kalman measurement noise R. Higher values
	// trust the motion model over the raw reading.
	MeasurementNoise float64

	// Window is the moving-average history length.
	Window int

	// MinSamples is the smallest calibration sample count Fit accepts.
	// Values below 4 are raised to 4.
	MinSamples int
}

// DefaultConfig returns the stock gaze tuning.
func DefaultConfig() Config {
	return Config{
		Strategy:         StrategyKalman,
		ProcessNoise:     1e-3,
		MeasurementNoise: 1e-1,
		Window:           5,
		MinSamples:       minFitSamples,
	}
}

// Smoother stabilizes a per-frame gaze point. An absent observation (nil)
// always yields an absent estimate: the filter never extrapolates through
// missing detections. Implementations are owned by a single goroutine.
type Smoother interface {
	// Update consumes one frame's observation and returns the smoothed
	// estimate, clamped to [0,1] per axis, or nil when obs is nil.
	Update(obs *landmark.Point) *landmark.Point

	// Reset discards all filter state; the next observation re-seeds it.
	Reset()
}

// NewSmoother constructs the smoothing strategy named by cfg.Strategy.
// The choice is fixed for the life of the smoother; both strategies satisfy
// the same contract, so callers can swap them freely at construction.
func NewSmoother(cfg Config) (Smoother, error) {
	switch cfg.Strategy {
	case "", StrategyKalman:
		return NewKalmanSmoother(cfg), nil
	case StrategyMovingAverage:
		return NewMovingAverageSmoother(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}
