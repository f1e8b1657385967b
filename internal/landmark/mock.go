package landmark

import "io"

// MockSource is a test implementation of the Source interface. It plays back
// a preset sequence of frames, then reports io.EOF.
type MockSource struct {
	frames []*Frame
	err    error
	pos    int
}

// NewMockSource creates a MockSource with no frames queued.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// SetFrames replaces the playback queue.
func (m *MockSource) SetFrames(frames []*Frame) {
	m.frames = frames
	m.pos = 0
}

// Append adds a frame to the end of the playback queue.
func (m *MockSource) Append(f *Frame) {
	m.frames = append(m.frames, f)
}

// SetError makes Next return err instead of a frame.
func (m *MockSource) SetError(err error) {
	m.err = err
}

// Next returns the next queued frame, the configured error, or io.EOF once
// the queue is exhausted.
func (m *MockSource) Next() (*Frame, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.pos >= len(m.frames) {
		return nil, io.EOF
	}
	f := m.frames[m.pos]
	m.pos++
	return f, nil
}

// Close is a no-op for the mock source.
func (m *MockSource) Close() error {
	return nil
}

// curled copies the closed-fist pose for the four non-thumb fingers into
// points: every tip sits below its PIP joint.
func curled(points []Point) {
	// Index finger curled (knuckles close together, tip near palm)
	points[IndexMCP] = Point{X: 0.55, Y: 0.70}
	points[IndexPIP] = Point{X: 0.55, Y: 0.68}
	points[IndexDIP] = Point{X: 0.52, Y: 0.70}
	points[IndexTip] = Point{X: 0.50, Y: 0.72}

	// Middle finger curled
	points[MiddleMCP] = Point{X: 0.50, Y: 0.68}
	points[MiddlePIP] = Point{X: 0.50, Y: 0.66}
	points[MiddleDIP] = Point{X: 0.47, Y: 0.68}
	points[MiddleTip] = Point{X: 0.45, Y: 0.70}

	// Ring finger curled
	points[RingMCP] = Point{X: 0.45, Y: 0.70}
	points[RingPIP] = Point{X: 0.45, Y: 0.68}
	points[RingDIP] = Point{X: 0.42, Y: 0.70}
	points[RingTip] = Point{X: 0.40, Y: 0.72}

	// Pinky finger curled
	points[PinkyMCP] = Point{X: 0.40, Y: 0.72}
	points[PinkyPIP] = Point{X: 0.40, Y: 0.70}
	points[PinkyDIP] = Point{X: 0.37, Y: 0.72}
	points[PinkyTip] = Point{X: 0.35, Y: 0.74}
}

// thumbTucked places the thumb alongside the palm, with tip and IP nearly
// level on the x axis so the lateral extension test fails.
func thumbTucked(points []Point) {
	points[ThumbCMC] = Point{X: 0.55, Y: 0.75}
	points[ThumbMCP] = Point{X: 0.57, Y: 0.70}
	points[ThumbIP] = Point{X: 0.57, Y: 0.66}
	points[ThumbTip] = Point{X: 0.58, Y: 0.63}
}

// thumbSpread extends the thumb laterally, well past the extension threshold.
func thumbSpread(points []Point) {
	points[ThumbCMC] = Point{X: 0.55, Y: 0.75}
	points[ThumbMCP] = Point{X: 0.62, Y: 0.70}
	points[ThumbIP] = Point{X: 0.68, Y: 0.65}
	points[ThumbTip] = Point{X: 0.73, Y: 0.60}
}

func newHand() Hand {
	h := Hand{
		Points:     make([]Point, HandLandmarkCount),
		Handedness: "Right",
		Score:      0.95,
	}
	h.Points[Wrist] = Point{X: 0.50, Y: 0.80}
	return h
}

// FistHand returns a preset Hand representing a closed fist: every finger
// curled and the thumb tucked in.
func FistHand() Hand {
	h := newHand()
	thumbTucked(h.Points)
	curled(h.Points)
	return h
}

// OpenPalmHand returns a preset Hand with all five fingers extended.
func OpenPalmHand() Hand {
	h := newHand()
	thumbSpread(h.Points)

	// Index finger extended upward
	h.Points[IndexMCP] = Point{X: 0.55, Y: 0.68}
	h.Points[IndexPIP] = Point{X: 0.57, Y: 0.55}
	h.Points[IndexDIP] = Point{X: 0.58, Y: 0.45}
	h.Points[IndexTip] = Point{X: 0.58, Y: 0.35}

	// Middle finger extended upward (slightly longer)
	h.Points[MiddleMCP] = Point{X: 0.50, Y: 0.66}
	h.Points[MiddlePIP] = Point{X: 0.50, Y: 0.52}
	h.Points[MiddleDIP] = Point{X: 0.50, Y: 0.40}
	h.Points[MiddleTip] = Point{X: 0.50, Y: 0.28}

	// Ring finger extended upward
	h.Points[RingMCP] = Point{X: 0.45, Y: 0.68}
	h.Points[RingPIP] = Point{X: 0.43, Y: 0.55}
	h.Points[RingDIP] = Point{X: 0.42, Y: 0.45}
	h.Points[RingTip] = Point{X: 0.42, Y: 0.35}

	// Pinky finger extended upward
	h.Points[PinkyMCP] = Point{X: 0.40, Y: 0.70}
	h.Points[PinkyPIP] = Point{X: 0.37, Y: 0.60}
	h.Points[PinkyDIP] = Point{X: 0.35, Y: 0.50}
	h.Points[PinkyTip] = Point{X: 0.34, Y: 0.42}

	return h
}

// PointingHand returns a preset Hand with only the index finger extended.
func PointingHand() Hand {
	h := FistHand()

	// Index finger extended upward
	h.Points[IndexMCP] = Point{X: 0.55, Y: 0.70}
	h.Points[IndexPIP] = Point{X: 0.57, Y: 0.55}
	h.Points[IndexDIP] = Point{X: 0.58, Y: 0.45}
	h.Points[IndexTip] = Point{X: 0.58, Y: 0.35}

	return h
}

// PinchHand returns a preset Hand with thumb and index extended and their
// tips nearly touching.
func PinchHand() Hand {
	h := newHand()
	curled(h.Points)

	// Thumb extended toward the index tip
	h.Points[ThumbCMC] = Point{X: 0.55, Y: 0.75}
	h.Points[ThumbMCP] = Point{X: 0.60, Y: 0.68}
	h.Points[ThumbIP] = Point{X: 0.63, Y: 0.60}
	h.Points[ThumbTip] = Point{X: 0.68, Y: 0.52}

	// Index finger extended, tip converging on the thumb tip
	h.Points[IndexMCP] = Point{X: 0.60, Y: 0.68}
	h.Points[IndexPIP] = Point{X: 0.63, Y: 0.58}
	h.Points[IndexDIP] = Point{X: 0.65, Y: 0.53}
	h.Points[IndexTip] = Point{X: 0.67, Y: 0.49}

	return h
}

// PeaceHand returns a preset Hand with thumb and index extended far apart.
func PeaceHand() Hand {
	h := newHand()
	curled(h.Points)
	thumbSpread(h.Points)

	// Index finger extended upward, away from the thumb
	h.Points[IndexMCP] = Point{X: 0.55, Y: 0.68}
	h.Points[IndexPIP] = Point{X: 0.57, Y: 0.55}
	h.Points[IndexDIP] = Point{X: 0.58, Y: 0.45}
	h.Points[IndexTip] = Point{X: 0.58, Y: 0.35}

	return h
}

// MiddleRingHand returns a preset Hand with middle and ring fingers extended,
// a pose outside every named gesture.
func MiddleRingHand() Hand {
	h := FistHand()

	// Middle finger extended upward
	h.Points[MiddleMCP] = Point{X: 0.50, Y: 0.66}
	h.Points[MiddlePIP] = Point{X: 0.50, Y: 0.52}
	h.Points[MiddleDIP] = Point{X: 0.50, Y: 0.40}
	h.Points[MiddleTip] = Point{X: 0.50, Y: 0.28}

	// Ring finger extended upward
	h.Points[RingMCP] = Point{X: 0.45, Y: 0.68}
	h.Points[RingPIP] = Point{X: 0.43, Y: 0.55}
	h.Points[RingDIP] = Point{X: 0.42, Y: 0.45}
	h.Points[RingTip] = Point{X: 0.42, Y: 0.35}

	return h
}

// SyntheticFace returns a full refined-mesh face whose iris centers sit
// symmetrically around gaze, so GazeSample returns exactly gaze. All other
// points hold a neutral filler position.
func SyntheticFace(gaze Point) *Face {
	f := &Face{
		Points: make([]Point, FaceLandmarkCount),
		Score:  0.95,
	}
	for i := range f.Points {
		f.Points[i] = Point{X: 0.5, Y: 0.5}
	}
	f.Points[LeftIrisCenter] = Point{X: gaze.X - 0.02, Y: gaze.Y}
	f.Points[RightIrisCenter] = Point{X: gaze.X + 0.02, Y: gaze.Y}
	return f
}
