package service

import (
	"context"
	"image"
	"strings"

	"github.com/LdDl/plate-passages/plates"
	"github.com/pkg/errors"
)

// scene is a frame showing plates side by side, each 100px wide
type scene struct {
	plates []string
	text   string
}

func (f *scene) Bounds() image.Rectangle { return image.Rect(0, 0, 1000, 100) }

func (f *scene) Crop(r image.Rectangle) (plates.Frame, error) {
	return &scene{text: f.plates[r.Min.X/100]}, nil
}

func (f *scene) Rotate(plates.Rotation) (plates.Frame, error) {
	return &scene{plates: f.plates}, nil
}

func (f *scene) Close() error { return nil }

type regions struct{}

func (regions) Detect(_ context.Context, frame plates.Frame, _, _ float64) ([]plates.BoundingBox, error) {
	f := frame.(*scene)
	boxes := make([]plates.BoundingBox, len(f.plates))
	for i := range f.plates {
		boxes[i] = plates.NewBox(float64(i*100), 0, float64(i*100+90), 30, 0, 0.9)
	}
	return boxes, nil
}

type glyphs struct {
	err error
}

func (g glyphs) Detect(_ context.Context, frame plates.Frame, _, _ float64) ([]plates.BoundingBox, error) {
	if g.err != nil {
		return nil, g.err
	}
	text := frame.(*scene).text
	boxes := make([]plates.BoundingBox, len(text))
	for i := range text {
		boxes[i] = plates.NewBox(float64(i*10), 0, float64(i*10+8), 20, strings.IndexByte(plates.Alphabet, text[i]), 0.9)
	}
	return boxes, nil
}

func recognizer(characters plates.Detector) *plates.Recognizer {
	return plates.NewRecognizer(func(context.Context) (*plates.Models, error) {
		return &plates.Models{Plates: regions{}, Characters: characters}, nil
	}, testLogger())
}

type reader struct {
	frames [][]string
	pos    int
}

func (r *reader) Next() (plates.Frame, bool) {
	if r.pos >= len(r.frames) {
		return nil, false
	}
	r.pos++
	return &scene{plates: r.frames[r.pos-1]}, true
}

func (r *reader) ProbeFPS() float64 { return 30 }
func (r *reader) Live() bool        { return true }
func (r *reader) Close() error      { return nil }

func fileOpener(frames ...[]string) plates.FileOpener {
	return func(context.Context, string) (plates.FrameReader, error) {
		return &reader{frames: frames}, nil
	}
}

func streamOpener(frames ...[]string) plates.StreamOpener {
	return func(context.Context, string) (plates.StreamReader, error) {
		return &reader{frames: frames}, nil
	}
}

func unreachable(context.Context, string) (plates.StreamReader, error) {
	return nil, errors.Wrap(plates.ErrSourceUnavailable, "connection refused")
}
