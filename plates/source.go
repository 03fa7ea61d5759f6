package plates

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// FrameReader delivers decoded frames in order.
type FrameReader interface {
	// Next returns the next frame. ok is false once the source has no more frames
	Next() (frame Frame, ok bool)
	Close() error
}

// StreamReader is a live source with unknown length.
type StreamReader interface {
	FrameReader
	// ProbeFPS returns frame rate reported by the source; it may be garbage
	ProbeFPS() float64
	// Live reports whether the connection is still open
	Live() bool
}

// FileOpener opens a finite source such as a video file
type FileOpener func(ctx context.Context, uri string) (FrameReader, error)

// StreamOpener connects to a live source such as an RTSP camera
type StreamOpener func(ctx context.Context, uri string) (StreamReader, error)

var ErrSourceUnavailable = errors.New("frame source unavailable")

const (
	// DefaultStreamFPS replaces frame rates outside (0, MaxStreamFPS]
	DefaultStreamFPS = 30.0
	MaxStreamFPS     = 100.0
)

// EffectiveFPS sanitizes probed frame rate
func EffectiveFPS(probed float64) float64 {
	if math.IsNaN(probed) || probed <= 0 || probed > MaxStreamFPS {
		return DefaultStreamFPS
	}
	return probed
}

// FrameBudget returns how many frames a stream run may read
func FrameBudget(fps float64, durationSeconds int) int {
	return int(math.Floor(fps * float64(durationSeconds)))
}

// shouldProcess tells whether 1-based frame index is sampled with given stride
func shouldProcess(index, frameSkip int) bool {
	return index%maxInt(1, frameSkip) == 0
}
