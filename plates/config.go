package plates

import (
	"fmt"
	"math"
	"sync"
)

// Rotation is a camera mounting correction applied to stream frames.
type Rotation string

const (
	RotationOff Rotation = "off"
	// Rotation90 turns frames clockwise by 90 degrees
	Rotation90  Rotation = "90"
	Rotation180 Rotation = "180"
	// Rotation270 turns frames counter-clockwise by 90 degrees
	Rotation270 Rotation = "270"
)

// ParseRotation validates rotation setting
func ParseRotation(value string) (Rotation, error) {
	switch r := Rotation(value); r {
	case RotationOff, Rotation90, Rotation180, Rotation270:
		return r, nil
	}
	return "", &ValidationError{Field: "rotation", Value: value, Reason: "must be one of off, 90, 180, 270"}
}

const (
	DefaultConfidence     = 0.75
	DefaultIOU            = 0.4
	DefaultFrameSkip      = 1
	DefaultSessionTimeout = 2
	DefaultStreamDuration = 60
	// MinStreamDuration is the shortest allowed stream run in seconds
	MinStreamDuration = 10
)

// Config is the set of parameters a single run works with.
// It is a value: setters return an updated copy and leave the receiver unchanged.
type Config struct {
	// Detection threshold controlled by the "accuracy" knob, [0, 1]
	Confidence float64
	// Overlap threshold passed to the detectors, [0, 1]
	IOU float64
	// Only every FrameSkip-th frame is run through detection
	FrameSkip int
	// Number of processed frames without a sighting that closes a session
	SessionTimeout int
	Rotation       Rotation
	// Stream run length in seconds
	StreamDuration int
}

// DefaultConfig returns configuration used when nothing else is provided
func DefaultConfig() Config {
	return Config{
		Confidence:     DefaultConfidence,
		IOU:            DefaultIOU,
		FrameSkip:      DefaultFrameSkip,
		SessionTimeout: DefaultSessionTimeout,
		Rotation:       RotationOff,
		StreamDuration: DefaultStreamDuration,
	}
}

// ValidationError is returned when a setting is rejected.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// AdjustedConfidence is the threshold actually handed to the detectors.
// Both detection stages run with it.
func (cfg Config) AdjustedConfidence() float64 {
	return math.Max(0.1, cfg.Confidence*0.7)
}

// Accuracy returns Confidence as percent
func (cfg Config) Accuracy() int {
	return int(math.Round(cfg.Confidence * 100))
}

// WithAccuracy sets Confidence from percent in range [0, 100]
func (cfg Config) WithAccuracy(percent int) (Config, error) {
	if percent < 0 || percent > 100 {
		return cfg, &ValidationError{Field: "accuracy", Value: percent, Reason: "must be between 0 and 100"}
	}
	cfg.Confidence = float64(percent) / 100.0
	return cfg, nil
}

// WithIOU sets overlap threshold in range [0, 1]
func (cfg Config) WithIOU(iou float64) (Config, error) {
	if math.IsNaN(iou) || iou < 0 || iou > 1 {
		return cfg, &ValidationError{Field: "iou", Value: iou, Reason: "must be between 0 and 1"}
	}
	cfg.IOU = iou
	return cfg, nil
}

// WithFrameSkip sets sampling stride. Values below 1 are raised to 1
func (cfg Config) WithFrameSkip(n int) Config {
	cfg.FrameSkip = maxInt(1, n)
	return cfg
}

// WithSessionTimeout sets session timeout in processed frames. Values below 1 are raised to 1
func (cfg Config) WithSessionTimeout(n int) Config {
	cfg.SessionTimeout = maxInt(1, n)
	return cfg
}

func (cfg Config) WithRotation(value string) (Config, error) {
	r, err := ParseRotation(value)
	if err != nil {
		return cfg, err
	}
	cfg.Rotation = r
	return cfg, nil
}

// WithStreamDuration sets stream run length; must be at least MinStreamDuration seconds
func (cfg Config) WithStreamDuration(seconds int) (Config, error) {
	if seconds < MinStreamDuration {
		return cfg, &ValidationError{Field: "stream_duration", Value: seconds, Reason: fmt.Sprintf("must be at least %d seconds", MinStreamDuration)}
	}
	cfg.StreamDuration = seconds
	return cfg, nil
}

// Validate checks every field. It is used for configuration coming from outside the setters
func (cfg Config) Validate() error {
	if math.IsNaN(cfg.Confidence) || cfg.Confidence < 0 || cfg.Confidence > 1 {
		return &ValidationError{Field: "confidence", Value: cfg.Confidence, Reason: "must be between 0 and 1"}
	}
	if _, err := cfg.WithIOU(cfg.IOU); err != nil {
		return err
	}
	if cfg.FrameSkip < 1 {
		return &ValidationError{Field: "frame_skip", Value: cfg.FrameSkip, Reason: "must be positive"}
	}
	if cfg.SessionTimeout < 1 {
		return &ValidationError{Field: "session_timeout", Value: cfg.SessionTimeout, Reason: "must be positive"}
	}
	if _, err := ParseRotation(string(cfg.Rotation)); err != nil {
		return err
	}
	if _, err := cfg.WithStreamDuration(cfg.StreamDuration); err != nil {
		return err
	}
	return nil
}

// Settings holds the process-wide current configuration.
// Runs take a Snapshot when they start, so updates never leak into a run in progress.
type Settings struct {
	mu  sync.RWMutex
	cfg Config
}

func NewSettings(cfg Config) *Settings {
	return &Settings{cfg: cfg}
}

// Snapshot returns copy of current configuration
func (s *Settings) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to current configuration. On error nothing changes
func (s *Settings) Update(fn func(Config) (Config, error)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.cfg)
	if err != nil {
		return s.cfg, err
	}
	s.cfg = next
	return next, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
