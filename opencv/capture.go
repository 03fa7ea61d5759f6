package opencv

import (
	"context"
	"os"

	"github.com/LdDl/plate-passages/plates"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// CaptureReader reads frames from a video file or a network stream
type CaptureReader struct {
	capture *gocv.VideoCapture
	uri     string
	logger  zerolog.Logger
}

// Next decodes next frame. Read failures end the source
func (r *CaptureReader) Next() (plates.Frame, bool) {
	mat := gocv.NewMat()
	if ok := r.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, false
	}
	return NewMatFrame(mat), true
}

// ProbeFPS returns frame rate as reported by the container or the camera
func (r *CaptureReader) ProbeFPS() float64 {
	return r.capture.Get(gocv.VideoCaptureFPS)
}

func (r *CaptureReader) Live() bool {
	return r.capture.IsOpened()
}

func (r *CaptureReader) Close() error {
	r.logger.Debug().Str("uri", r.uri).Msg("closing capture")
	return r.capture.Close()
}

// FileOpener returns plates.FileOpener reading local video files
func FileOpener(logger zerolog.Logger) plates.FileOpener {
	return func(ctx context.Context, uri string) (plates.FrameReader, error) {
		if _, err := os.Stat(uri); err != nil {
			return nil, errors.Wrapf(plates.ErrSourceUnavailable, "video file %q: %v", uri, err)
		}
		capture, err := gocv.VideoCaptureFile(uri)
		if err != nil {
			return nil, errors.Wrapf(plates.ErrSourceUnavailable, "video file %q: %v", uri, err)
		}
		if !capture.IsOpened() {
			capture.Close()
			return nil, errors.Wrapf(plates.ErrSourceUnavailable, "video file %q can't be decoded", uri)
		}
		return &CaptureReader{capture: capture, uri: uri, logger: logger}, nil
	}
}

// StreamOpener returns plates.StreamOpener connecting to cameras.
// Capture buffer is kept to a single frame so reads stay close to real time.
func StreamOpener(logger zerolog.Logger) plates.StreamOpener {
	return func(ctx context.Context, uri string) (plates.StreamReader, error) {
		capture, err := gocv.OpenVideoCapture(uri)
		if err != nil {
			return nil, errors.Wrapf(plates.ErrSourceUnavailable, "stream %q: %v", uri, err)
		}
		if !capture.IsOpened() {
			capture.Close()
			return nil, errors.Wrapf(plates.ErrSourceUnavailable, "stream %q is not reachable", uri)
		}
		capture.Set(gocv.VideoCaptureBufferSize, 1)
		logger.Info().Str("uri", uri).Float64("fps", capture.Get(gocv.VideoCaptureFPS)).Msg("stream opened")
		return &CaptureReader{capture: capture, uri: uri, logger: logger}, nil
	}
}
