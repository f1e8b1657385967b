// Package config loads process configuration from the environment and an
// optional JSON tuning file. Components never read configuration globally;
// the values resolved here are injected at construction.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/gesture"
	"github.com/ayusman/drishti/internal/monitor"
)

// Config is the process-level configuration, read from DRISHTI_* environment
// variables.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"DRISHTI_ADDR" envDefault:":8080"`

	// DataDir holds the sqlite database and recordings. Empty means the
	// caller resolves a per-user default.
	DataDir string `env:"DRISHTI_DATA_DIR"`

	// TuningPath points at the optional JSON tuning file.
	TuningPath string `env:"DRISHTI_TUNING"`

	// StaticDir serves a dashboard from disk when set.
	StaticDir string `env:"DRISHTI_STATIC_DIR"`

	// RecordGaze enables persisting the per-frame gaze trace.
	RecordGaze bool `env:"DRISHTI_RECORD_GAZE" envDefault:"false"`

	// MinFaceScore and MinHandScore gate low-confidence detections before
	// they reach the pipeline.
	MinFaceScore float64 `env:"DRISHTI_MIN_FACE_SCORE" envDefault:"0.5"`
	MinHandScore float64 `env:"DRISHTI_MIN_HAND_SCORE" envDefault:"0.7"`

	// IngestBuffer is the frame backlog accepted from the detector before
	// frames are dropped.
	IngestBuffer int `env:"DRISHTI_INGEST_BUFFER" envDefault:"30"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Tuning overrides the numeric pipeline tunables. Every field is optional;
// nil keeps the component default. The file is plain JSON:
//
//	{"strategy": "moving_average", "process_noise": 0.002, "window": 7}
type Tuning struct {
	Strategy         *string  `json:"strategy,omitempty"`
	ProcessNoise     *float64 `json:"process_noise,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`
	Window           *int     `json:"window,omitempty"`
	MinSamples       *int     `json:"min_samples,omitempty"`
	ThumbSpread      *float64 `json:"thumb_spread,omitempty"`
	PinchDistance    *float64 `json:"pinch_distance,omitempty"`
	MonitorWindow    *int     `json:"monitor_window,omitempty"`
}

// LoadTuning reads a tuning file. An empty path or a missing file yields an
// empty Tuning, so every tunable keeps its default.
func LoadTuning(path string) (*Tuning, error) {
	if path == "" {
		return &Tuning{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Tuning{}, nil
		}
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	var t Tuning
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return &t, nil
}

// Validate checks every set field against its supported range.
func (t *Tuning) Validate() error {
	if t.Strategy != nil {
		switch *t.Strategy {
		case gaze.StrategyKalman, gaze.StrategyMovingAverage:
		default:
			return fmt.Errorf("strategy must be %q or %q, got %q",
				gaze.StrategyKalman, gaze.StrategyMovingAverage, *t.Strategy)
		}
	}
	if t.ProcessNoise != nil && *t.ProcessNoise <= 0 {
		return fmt.Errorf("process_noise must be positive, got %v", *t.ProcessNoise)
	}
	if t.MeasurementNoise != nil && *t.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %v", *t.MeasurementNoise)
	}
	if t.Window != nil && *t.Window < 1 {
		return fmt.Errorf("window must be at least 1, got %d", *t.Window)
	}
	if t.MinSamples != nil && *t.MinSamples < 4 {
		return fmt.Errorf("min_samples must be at least 4, got %d", *t.MinSamples)
	}
	if t.ThumbSpread != nil && (*t.ThumbSpread <= 0 || *t.ThumbSpread >= 0.5) {
		return fmt.Errorf("thumb_spread must be in (0, 0.5), got %v", *t.ThumbSpread)
	}
	if t.PinchDistance != nil && (*t.PinchDistance <= 0 || *t.PinchDistance >= 0.5) {
		return fmt.Errorf("pinch_distance must be in (0, 0.5), got %v", *t.PinchDistance)
	}
	if t.MonitorWindow != nil && *t.MonitorWindow < 2 {
		return fmt.Errorf("monitor_window must be at least 2, got %d", *t.MonitorWindow)
	}
	return nil
}

// Gaze resolves the gaze pipeline configuration: defaults overlaid with the
// set tuning fields.
func (t *Tuning) Gaze() gaze.Config {
	cfg := gaze.DefaultConfig()
	if t.Strategy != nil {
		cfg.Strategy = *t.Strategy
	}
	if t.ProcessNoise != nil {
		cfg.ProcessNoise = *t.ProcessNoise
	}
	if t.MeasurementNoise != nil {
		cfg.MeasurementNoise = *t.MeasurementNoise
	}
	if t.Window != nil {
		cfg.Window = *t.Window
	}
	if t.MinSamples != nil {
		cfg.MinSamples = *t.MinSamples
	}
	return cfg
}

// Gesture resolves the classifier configuration.
func (t *Tuning) Gesture() gesture.Config {
	cfg := gesture.DefaultConfig()
	if t.ThumbSpread != nil {
		cfg.ThumbSpread = *t.ThumbSpread
	}
	if t.PinchDistance != nil {
		cfg.PinchDistance = *t.PinchDistance
	}
	return cfg
}

// Monitor resolves the rolling stats window.
func (t *Tuning) Monitor() int {
	if t.MonitorWindow != nil {
		return *t.MonitorWindow
	}
	return monitor.DefaultWindow
}
