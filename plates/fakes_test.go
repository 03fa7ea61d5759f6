package plates

import (
	"context"
	"image"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeFrame is a picture showing a known set of plates laid out horizontally:
// plate i occupies x in [i*100, i*100+90), y in [0, 30).
type fakeFrame struct {
	plates    []string
	text      string // set on crops: plate shown by this crop
	rotations []Rotation
	closed    bool
	bounds    image.Rectangle
}

func newFakeFrame(plates ...string) *fakeFrame {
	return &fakeFrame{
		plates: plates,
		bounds: image.Rect(0, 0, 1000, 100),
	}
}

func (f *fakeFrame) Bounds() image.Rectangle {
	return f.bounds
}

func (f *fakeFrame) Crop(r image.Rectangle) (Frame, error) {
	idx := r.Min.X / 100
	if idx < 0 || idx >= len(f.plates) {
		return nil, errors.Errorf("nothing to crop at %v", r)
	}
	return &fakeFrame{text: f.plates[idx], bounds: image.Rect(0, 0, r.Dx(), r.Dy())}, nil
}

func (f *fakeFrame) Rotate(rotation Rotation) (Frame, error) {
	rotated := &fakeFrame{
		plates:    f.plates,
		rotations: append(append([]Rotation{}, f.rotations...), rotation),
		bounds:    f.bounds,
	}
	return rotated, nil
}

func (f *fakeFrame) Close() error {
	f.closed = true
	return nil
}

// platesDetector finds one region per plate of a fakeFrame
type platesDetector struct {
	calls       int
	confidences []float64
	seen        []*fakeFrame
	err         error
}

func (d *platesDetector) Detect(_ context.Context, frame Frame, confidence, iou float64) ([]BoundingBox, error) {
	d.calls++
	d.confidences = append(d.confidences, confidence)
	if d.err != nil {
		return nil, d.err
	}
	f := frame.(*fakeFrame)
	d.seen = append(d.seen, f)
	boxes := make([]BoundingBox, len(f.plates))
	for i := range f.plates {
		x := float64(i * 100)
		boxes[i] = NewBox(x, 0, x+90, 30, 0, 0.5)
	}
	return boxes, nil
}

// glyphsDetector reads text of a crop and reports its glyphs right to left
type glyphsDetector struct {
	calls int
}

func (d *glyphsDetector) Detect(_ context.Context, frame Frame, confidence, iou float64) ([]BoundingBox, error) {
	d.calls++
	text := frame.(*fakeFrame).text
	boxes := make([]BoundingBox, 0, len(text))
	for j := len(text) - 1; j >= 0; j-- {
		class := strings.IndexByte(Alphabet, text[j])
		x := float64(j*10) + 0.7
		boxes = append(boxes, NewBox(x, 2, x+8, 28, class, 0.9))
	}
	return boxes, nil
}

func fakeModels() (*platesDetector, *glyphsDetector, *Recognizer) {
	pd := &platesDetector{}
	gd := &glyphsDetector{}
	recognizer := NewRecognizer(func(context.Context) (*Models, error) {
		return &Models{Plates: pd, Characters: gd}, nil
	}, testLogger())
	return pd, gd, recognizer
}

// sliceReader yields one fake frame per observation
type sliceReader struct {
	frames []*fakeFrame
	pos    int
	fps    float64
	// frames after which Live starts returning false, -1 for never
	liveFor int
	closed  bool
}

func newSliceReader(observations ...[]string) *sliceReader {
	frames := make([]*fakeFrame, len(observations))
	for i, obs := range observations {
		frames[i] = newFakeFrame(obs...)
	}
	return &sliceReader{frames: frames, fps: 30, liveFor: -1}
}

// endlessReader returns reader yielding n empty frames
func endlessReader(n int, fps float64) *sliceReader {
	r := newSliceReader(make([][]string, n)...)
	r.fps = fps
	return r
}

func (r *sliceReader) Next() (Frame, bool) {
	if r.pos >= len(r.frames) {
		return nil, false
	}
	f := r.frames[r.pos]
	r.pos++
	return f, true
}

func (r *sliceReader) ProbeFPS() float64 {
	return r.fps
}

func (r *sliceReader) Live() bool {
	return r.liveFor < 0 || r.pos < r.liveFor
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}
