package opencv

import (
	"image"

	"github.com/LdDl/plate-passages/plates"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MatFrame is a plates.Frame backed by an OpenCV matrix in BGR order
type MatFrame struct {
	mat gocv.Mat
}

// NewMatFrame takes ownership of mat
func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// Mat exposes underlying matrix. It stays owned by the frame
func (f *MatFrame) Mat() gocv.Mat {
	return f.mat
}

func (f *MatFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

func (f *MatFrame) Crop(r image.Rectangle) (plates.Frame, error) {
	if r.Empty() || !r.In(f.Bounds()) {
		return nil, errors.Errorf("crop %v is outside of frame %v", r, f.Bounds())
	}
	region := f.mat.Region(r)
	defer region.Close()
	return NewMatFrame(region.Clone()), nil
}

func (f *MatFrame) Rotate(rotation plates.Rotation) (plates.Frame, error) {
	code, ok := rotateCodes[rotation]
	if !ok {
		return nil, errors.Errorf("unsupported rotation %q", rotation)
	}
	dst := gocv.NewMat()
	gocv.Rotate(f.mat, &dst, code)
	if dst.Empty() {
		dst.Close()
		return nil, errors.New("rotation produced empty frame")
	}
	return NewMatFrame(dst), nil
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}

var rotateCodes = map[plates.Rotation]gocv.RotateFlag{
	plates.Rotation90:  gocv.Rotate90Clockwise,
	plates.Rotation180: gocv.Rotate180Clockwise,
	plates.Rotation270: gocv.Rotate90CounterClockwise,
}
