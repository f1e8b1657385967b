package gaze

import "github.com/ayusman/drishti/internal/landmark"

// MovingAverageSmoother is the fallback smoothing strategy: the estimate is
// the arithmetic mean of the last Window observations per axis. Jitter
// reduction is comparable to the Kalman strategy, with lag proportional to
// the window size.
type MovingAverageSmoother struct {
	window int
	xs, ys []float64
}

// NewMovingAverageSmoother creates a MovingAverageSmoother from cfg.
// A non-positive window falls back to the default.
func NewMovingAverageSmoother(cfg Config) *MovingAverageSmoother {
	window := cfg.Window
	if window <= 0 {
		window = DefaultConfig().Window
	}
	return &MovingAverageSmoother{window: window}
}

// Update appends the observation to the history and returns the per-axis
// mean, clamped to [0,1]. A nil observation returns nil and leaves the
// history untouched.
func (s *MovingAverageSmoother) Update(obs *landmark.Point) *landmark.Point {
	if obs == nil {
		return nil
	}

	s.xs = push(s.xs, obs.X, s.window)
	s.ys = push(s.ys, obs.Y, s.window)

	out := landmark.Point{X: mean(s.xs), Y: mean(s.ys)}.Clamp()
	return &out
}

// Reset discards the observation history.
func (s *MovingAverageSmoother) Reset() {
	s.xs = nil
	s.ys = nil
}

func push(buf []float64, v float64, window int) []float64 {
	buf = append(buf, v)
	if len(buf) > window {
		buf = buf[1:]
	}
	return buf
}

func mean(buf []float64) float64 {
	var sum float64
	for _, v := range buf {
		sum += v
	}
	return sum / float64(len(buf))
}
