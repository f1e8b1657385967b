// Package app provides the main application logic for the Drishti gaze and
// gesture control daemon. It owns the frame pipeline that turns landmark
// frames into control signals, the calibration session driver, and the
// subscriber registry the live output stream feeds from.
package app

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/gesture"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/monitor"
	"github.com/ayusman/drishti/internal/store"
)

// Pipeline tuning constants.
const (
	// OutputBuffer is the per-subscriber channel depth. A subscriber that
	// falls this far behind starts losing frames.
	OutputBuffer = 16
	// TraceBatchSize is how many gaze trace rows accumulate before a flush.
	TraceBatchSize = 30
)

// TuningKey is the settings row that stores the last applied tuning override.
const TuningKey = "tuning"

// Output is one processed frame of control signals. Raw is the unmapped iris
// sample; Gaze is the calibrated, smoothed screen point. Either may be absent
// on any given frame.
type Output struct {
	TS         int64           `json:"ts_ms"`
	Raw        *landmark.Point `json:"raw,omitempty"`
	Gaze       *landmark.Point `json:"gaze,omitempty"`
	Gesture    *gesture.Result `json:"gesture,omitempty"`
	Handedness string          `json:"handedness,omitempty"`
}

// Config holds configuration options for the application.
type Config struct {
	Store      *store.Store
	Source     landmark.Source
	SourceName string
	Tuning     *config.Tuning
	RecordGaze bool

	// MinFaceScore and MinHandScore gate low-confidence detections.
	MinFaceScore float64
	MinHandScore float64
}

// App orchestrates the frame pipeline: landmark frames in, gaze points and
// gesture events out.
type App struct {
	config  Config
	source  landmark.Source
	store   *store.Store
	monitor *monitor.Monitor

	mu          sync.RWMutex
	calibrator  *gaze.Calibrator
	smoother    gaze.Smoother
	classifier  *gesture.Classifier
	tuning      config.Tuning
	calibrating bool
	lastRaw     *landmark.Point
	lastOutput  *Output
	subscribers map[chan Output]struct{}
	sessionID   string
	stopCh      chan struct{}
	done        chan struct{}
}

// New creates a new App instance with the given configuration.
func New(cfg Config) (*App, error) {
	if cfg.Source == nil {
		return nil, errors.New("app: a landmark source is required")
	}

	tuning := cfg.Tuning
	if tuning == nil {
		tuning = &config.Tuning{}
	}

	smoother, err := gaze.NewSmoother(tuning.Gaze())
	if err != nil {
		return nil, err
	}

	if cfg.MinFaceScore <= 0 {
		cfg.MinFaceScore = 0.5
	}
	if cfg.MinHandScore <= 0 {
		cfg.MinHandScore = 0.7
	}

	return &App{
		config:      cfg,
		source:      cfg.Source,
		store:       cfg.Store,
		monitor:     monitor.New(tuning.Monitor()),
		calibrator:  gaze.NewCalibrator(tuning.Gaze()),
		smoother:    smoother,
		classifier:  gesture.NewClassifier(tuning.Gesture()),
		tuning:      *tuning,
		subscribers: make(map[chan Output]struct{}),
	}, nil
}

// Start creates the session row and begins the pipeline goroutine.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}

	sessionID := uuid.NewString()
	if a.store != nil {
		session := &store.Session{ID: sessionID, Source: a.config.SourceName}
		if err := a.store.Sessions().Create(session); err != nil {
			return err
		}
	}
	a.sessionID = sessionID

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	log.Printf("Pipeline started (session %s)", sessionID)
	return nil
}

// Stop halts the pipeline, closes the source, and finalizes the session row.
// Idempotent; returns after the pipeline goroutine has drained.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.stopCh = nil
	done := a.done
	a.mu.Unlock()

	// Closing the source unblocks a pipeline waiting in Next.
	if err := a.source.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}
	<-done

	log.Println("Pipeline stopped")
}

// Wait blocks until the pipeline goroutine has exited, which happens when the
// source drains or Stop is called. Returns immediately if the pipeline never
// started.
func (a *App) Wait() {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	if done == nil {
		return
	}
	<-done
}

// Subscribe registers a buffered output channel. The pipeline drops frames
// for subscribers whose buffer is full rather than stalling.
func (a *App) Subscribe() chan Output {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan Output, OutputBuffer)
	a.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a channel registered with Subscribe.
func (a *App) Unsubscribe(ch chan Output) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.subscribers, ch)
}

// ApplyTuning validates a tuning override, rebuilds the smoother and
// classifier with the new values, and persists the override so it survives a
// restart. The smoother restarts from scratch; the monitor window is fixed at
// construction.
func (a *App) ApplyTuning(t config.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}

	smoother, err := gaze.NewSmoother(t.Gaze())
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.smoother = smoother
	a.classifier = gesture.NewClassifier(t.Gesture())
	a.calibrator = rebuildCalibrator(a.calibrator, t.Gaze())
	a.calibrating = false
	a.tuning = t
	a.mu.Unlock()

	if a.store != nil {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := a.store.Settings().Put(TuningKey, string(data)); err != nil {
			return err
		}
	}

	log.Println("Applied tuning override")
	return nil
}

// rebuildCalibrator carries the fitted model of the old calibrator into a new
// one so a tuning change never silently discards a working calibration.
func rebuildCalibrator(old *gaze.Calibrator, cfg gaze.Config) *gaze.Calibrator {
	c := gaze.NewCalibrator(cfg)
	if model, ok := old.Model(); ok {
		c.Restore(model)
	}
	return c
}

// Tuning returns the currently applied tuning override.
func (a *App) Tuning() config.Tuning {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tuning
}

// Stats returns the rolling pipeline statistics.
func (a *App) Stats() monitor.Stats {
	return a.monitor.Stats()
}

// SessionID returns the active session's ID, empty when no session is live.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// LastOutput returns the most recently emitted output, if any.
func (a *App) LastOutput() (Output, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastOutput == nil {
		return Output{}, false
	}
	return *a.lastOutput, true
}

// Store returns the diagnostics store, nil when persistence is disabled.
func (a *App) Store() *store.Store {
	return a.store
}
