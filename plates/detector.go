package plates

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Frame is a decoded picture. Implementations own pixel memory, so every
// frame returned by Crop, Rotate or a reader has to be closed by the caller.
type Frame interface {
	Bounds() image.Rectangle
	// Crop returns a copy of region r. r is already limited to Bounds
	Crop(r image.Rectangle) (Frame, error)
	// Rotate returns a rotated copy. It is never called with RotationOff
	Rotate(rotation Rotation) (Frame, error)
	Close() error
}

// Detector is a recognition model: it finds boxes in a picture.
// The same contract serves plate regions and character glyphs; glyph boxes carry the character class in ClassID.
type Detector interface {
	Detect(ctx context.Context, frame Frame, confidence, iou float64) ([]BoundingBox, error)
}

// Models is a loaded pair of detectors
type Models struct {
	Plates     Detector
	Characters Detector
}

// ModelLoader creates detectors. It may be slow and is called at most once
// at a time; a failed call is retried by the next user.
type ModelLoader func(ctx context.Context) (*Models, error)

var ErrNotLoaded = errors.New("recognition models are not loaded")

// Recognizer loads models lazily and shares them between runs.
type Recognizer struct {
	load ModelLoader
	// one-slot semaphore: holder is the only one allowed to load
	sem    chan struct{}
	models atomic.Pointer[Models]
	logger zerolog.Logger
}

func NewRecognizer(load ModelLoader, logger zerolog.Logger) *Recognizer {
	return &Recognizer{
		load:   load,
		sem:    make(chan struct{}, 1),
		logger: logger,
	}
}

// Warmup starts loading models in background. Errors are only logged:
// the next Ready call will try again.
func (r *Recognizer) Warmup() {
	if r.models.Load() != nil {
		return
	}
	go func() {
		r.logger.Info().Msg("starting background model loading")
		if _, err := r.Ready(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("background model loading failed")
			return
		}
		r.logger.Info().Msg("models loaded in background")
	}()
}

// Loaded reports whether models are available without blocking
func (r *Recognizer) Loaded() bool {
	return r.models.Load() != nil
}

// Ready blocks until models are loaded, loading them when nobody else does.
func (r *Recognizer) Ready(ctx context.Context) (*Models, error) {
	if m := r.models.Load(); m != nil {
		return m, nil
	}
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for model loading")
	}
	defer func() { <-r.sem }()

	// Someone may have finished while we waited
	if m := r.models.Load(); m != nil {
		return m, nil
	}
	if r.load == nil {
		return nil, ErrNotLoaded
	}
	m, err := r.load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't load recognition models")
	}
	if m == nil || m.Plates == nil || m.Characters == nil {
		return nil, errors.Wrap(ErrNotLoaded, "loader returned incomplete models")
	}
	r.models.Store(m)
	return m, nil
}
