// Package gaze turns raw iris samples into calibrated, temporally smoothed
// screen coordinates. A Calibrator learns an affine iris-to-screen mapping
// from operator-driven samples; a Smoother stabilizes the mapped point
// frame to frame.
package gaze

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/drishti/internal/landmark"
)

// minFitSamples is the smallest sample count that keeps the 3-parameter
// per-axis regression overdetermined.
const minFitSamples = 4

// Sample pairs a screen target the operator fixated with the raw iris
// observation captured at that moment. Samples are append-only within a
// calibration session.
type Sample struct {
	Target landmark.Point
	Iris   landmark.Point
}

// Model is a fitted affine map from homogeneous iris coordinates [ix, iy, 1]
// to each screen axis. A Model is immutable once fitted.
type Model struct {
	WX [3]float64 // screen x = WX[0]*ix + WX[1]*iy + WX[2]
	WY [3]float64 // screen y = WY[0]*ix + WY[1]*iy + WY[2]
}

// apply evaluates the map without clamping.
func (m Model) apply(p landmark.Point) landmark.Point {
	return landmark.Point{
		X: m.WX[0]*p.X + m.WX[1]*p.Y + m.WX[2],
		Y: m.WY[0]*p.X + m.WY[1]*p.Y + m.WY[2],
	}
}

// Calibrator collects (screen target, iris observation) pairs during a
// calibration session and fits the per-axis least-squares regression.
// It is owned and called by a single goroutine.
type Calibrator struct {
	minSamples int
	samples    []Sample
	model      *Model
	resX, resY float64
}

// NewCalibrator creates a Calibrator. Config values at or below the
// supported minimum fall back to defaults.
func NewCalibrator(cfg Config) *Calibrator {
	min := cfg.MinSamples
	if min < minFitSamples {
		min = minFitSamples
	}
	return &Calibrator{minSamples: min}
}

// Grid returns the standard 9-point calibration target layout: a 3x3 grid
// over {0.1, 0.5, 0.9} in both axes, ordered row by row from the top.
func Grid() []landmark.Point {
	coords := []float64{0.1, 0.5, 0.9}
	points := make([]landmark.Point, 0, 9)
	for _, y := range coords {
		for _, x := range coords {
			points = append(points, landmark.Point{X: x, Y: y})
		}
	}
	return points
}

// Reset clears all collected samples and invalidates any fitted model.
// Idempotent.
func (c *Calibrator) Reset() {
	c.samples = nil
	c.model = nil
	c.resX, c.resY = 0, 0
}

// Collect appends one calibration sample. It is a no-op when the iris
// observation is absent.
func (c *Calibrator) Collect(target landmark.Point, iris *landmark.Point) {
	if iris == nil {
		return
	}
	c.samples = append(c.samples, Sample{Target: target, Iris: *iris})
}

// SampleCount reports how many samples the session has collected.
func (c *Calibrator) SampleCount() int {
	return len(c.samples)
}

// Fitted reports whether a model is currently fitted.
func (c *Calibrator) Fitted() bool {
	return c.model != nil
}

// Model returns a copy of the fitted model, if any.
func (c *Calibrator) Model() (Model, bool) {
	if c.model == nil {
		return Model{}, false
	}
	return *c.model, true
}

// Restore installs a previously fitted model, discarding any collected
// samples. Residual diagnostics are unknown for a restored model and read as
// zero until the next fit.
func (c *Calibrator) Restore(model Model) {
	c.samples = nil
	c.model = &model
	c.resX, c.resY = 0, 0
}

// Residuals returns the per-axis RMS residual of the current fit, zero when
// no model is fitted. A large residual signals a poor calibration run.
func (c *Calibrator) Residuals() (x, y float64) {
	return c.resX, c.resY
}

// Fit solves, independently per axis, the ordinary least-squares problem
// screen ~= w1*ix + w2*iy + w3 over all collected samples. It returns false
// and leaves any prior model untouched when fewer than the minimum samples
// were collected. Degenerate sample sets never fail: the solver falls back
// to the minimum-norm solution when the system is singular.
func (c *Calibrator) Fit() bool {
	if len(c.samples) < c.minSamples {
		return false
	}

	n := len(c.samples)
	a := mat.NewDense(n, 3, nil)
	bx := make([]float64, n)
	by := make([]float64, n)
	for i, s := range c.samples {
		a.SetRow(i, []float64{s.Iris.X, s.Iris.Y, 1})
		bx[i] = s.Target.X
		by[i] = s.Target.Y
	}

	wx, wy, ok := solveAxes(a, bx, by)
	if !ok {
		return false
	}

	model := &Model{WX: wx, WY: wy}
	c.model = model
	c.resX, c.resY = c.residuals(*model)
	return true
}

// Map evaluates the fitted model on a raw iris observation and clamps each
// axis to [0,1], so the emitted point is always addressable on screen.
// Returns nil when no model is fitted or the observation is absent.
func (c *Calibrator) Map(iris *landmark.Point) *landmark.Point {
	if c.model == nil || iris == nil {
		return nil
	}
	out := c.model.apply(*iris).Clamp()
	return &out
}

// residuals computes the per-axis RMS error of model over the collected
// samples, before clamping.
func (c *Calibrator) residuals(model Model) (x, y float64) {
	if len(c.samples) == 0 {
		return 0, 0
	}
	var sx, sy float64
	for _, s := range c.samples {
		got := model.apply(s.Iris)
		dx := got.X - s.Target.X
		dy := got.Y - s.Target.Y
		sx += dx * dx
		sy += dy * dy
	}
	n := float64(len(c.samples))
	return math.Sqrt(sx / n), math.Sqrt(sy / n)
}

// solveAxes solves a*w = b for both axes through one thin SVD of the design
// matrix. Singular values below the rcond-style cutoff are dropped, which
// yields the minimum-norm solution for rank-deficient systems instead of an
// error.
func solveAxes(a *mat.Dense, bx, by []float64) (wx, wy [3]float64, ok bool) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return wx, wy, false
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	n, _ := a.Dims()
	eps := math.Nextafter(1, 2) - 1
	tol := float64(n) * eps * sv[0]

	wx = applyPseudoInverse(&u, &v, sv, tol, bx)
	wy = applyPseudoInverse(&u, &v, sv, tol, by)
	return wx, wy, true
}

// applyPseudoInverse computes w = V * pinv(S) * U^T * b for one axis,
// treating singular values at or below tol as zero.
func applyPseudoInverse(u, v *mat.Dense, sv []float64, tol float64, b []float64) [3]float64 {
	var w [3]float64
	n := len(b)
	for k := 0; k < len(sv) && k < 3; k++ {
		if sv[k] <= tol {
			continue
		}
		var utb float64
		for i := 0; i < n; i++ {
			utb += u.At(i, k) * b[i]
		}
		utb /= sv[k]
		for j := 0; j < 3; j++ {
			w[j] += v.At(j, k) * utb
		}
	}
	return w
}
