package gaze

import "github.com/ayusman/drishti/internal/landmark"

// minInnovationVar guards the gain division; the innovation variance is at
// least R in any sane configuration.
const minInnovationVar = 1e-12

// kalmanAxis is a constant-velocity Kalman filter for one screen axis:
// state [position, velocity], transition position += velocity per frame,
// measurement observing position only. Covariance is kept as the four
// entries of the symmetric 2x2 matrix.
type kalmanAxis struct {
	pos, vel float64

	p00, p01 float64
	p10, p11 float64

	q, r   float64
	seeded bool
}

func (k *kalmanAxis) reset() {
	*k = kalmanAxis{q: k.q, r: k.r}
}

// step runs one predict-then-correct cycle against measurement z and
// returns the filtered position. The first measurement seeds the state
// directly instead of correcting against an arbitrary prior.
func (k *kalmanAxis) step(z float64) float64 {
	if !k.seeded {
		k.pos = z
		k.vel = 0
		k.p00, k.p01 = 1, 0
		k.p10, k.p11 = 0, 1
		k.seeded = true
		return k.pos
	}

	// Predict: x' = F*x, P' = F*P*F^T + Q with F = [[1,1],[0,1]], Q = q*I.
	k.pos += k.vel
	p00 := k.p00 + k.p10 + k.p01 + k.p11 + k.q
	p01 := k.p01 + k.p11
	p10 := k.p10 + k.p11
	p11 := k.p11 + k.q
	k.p00, k.p01, k.p10, k.p11 = p00, p01, p10, p11

	// Correct against z with H = [1 0].
	s := k.p00 + k.r
	if s < minInnovationVar {
		return k.pos
	}
	y := z - k.pos
	g0 := k.p00 / s
	g1 := k.p10 / s
	k.pos += g0 * y
	k.vel += g1 * y

	p00 = (1 - g0) * k.p00
	p01 = (1 - g0) * k.p01
	p10 = k.p10 - g1*k.p00
	p11 = k.p11 - g1*k.p01
	k.p00, k.p01, k.p10, k.p11 = p00, p01, p10, p11

	return k.pos
}

// KalmanSmoother applies an independent constant-velocity Kalman filter to
// each gaze axis. It is the primary smoothing strategy.
type KalmanSmoother struct {
	x, y kalmanAxis
}

// NewKalmanSmoother creates a KalmanSmoother from cfg. Non-positive noise
// values fall back to the defaults.
func NewKalmanSmoother(cfg Config) *KalmanSmoother {
	def := DefaultConfig()
	q := cfg.ProcessNoise
	if q <= 0 {
		q = def.ProcessNoise
	}
	r := cfg.MeasurementNoise
	if r <= 0 {
		r = def.MeasurementNoise
	}
	return &KalmanSmoother{
		x: kalmanAxis{q: q, r: r},
		y: kalmanAxis{q: q, r: r},
	}
}

// Update runs one filter cycle per axis. A nil observation returns nil and
// leaves the filter state untouched.
func (s *KalmanSmoother) Update(obs *landmark.Point) *landmark.Point {
	if obs == nil {
		return nil
	}
	out := landmark.Point{X: s.x.step(obs.X), Y: s.y.step(obs.Y)}.Clamp()
	return &out
}

// Reset returns both axes to the unseeded state.
func (s *KalmanSmoother) Reset() {
	s.x.reset()
	s.y.reset()
}
