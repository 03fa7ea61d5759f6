package yolo

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tensor lays anchors out column-wise the same way the detection head does
func tensor(classes int, anchors ...[]float32) []float32 {
	rows := 4 + classes
	data := make([]float32, rows*len(anchors))
	for a, values := range anchors {
		for r := 0; r < rows; r++ {
			data[r*len(anchors)+a] = values[r]
		}
	}
	return data
}

func TestHeadFor(t *testing.T) {
	head, err := HeadFor(40*8400, 36)
	require.NoError(t, err)
	assert.Equal(t, Head{Classes: 36, Anchors: 8400}, head)

	_, err = HeadFor(41, 36)
	assert.Error(t, err)
	_, err = HeadFor(10, 0)
	assert.Error(t, err)
}

func TestDecodeBestClass(t *testing.T) {
	data := tensor(3,
		[]float32{50, 50, 20, 10, 0.1, 0.8, 0.3},
		[]float32{200, 100, 40, 20, 0.2, 0.1, 0.05},
	)
	head, err := HeadFor(len(data), 3)
	require.NoError(t, err)
	boxes, err := Decode(data, head, Letterbox{Scale: 1}, 0.5, 0.4)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, 1, boxes[0].ClassID)
	assert.InDelta(t, 0.8, boxes[0].Confidence, 1e-6)
	assert.InDelta(t, 40, boxes[0].X1, 1e-6)
	assert.InDelta(t, 45, boxes[0].Y1, 1e-6)
	assert.InDelta(t, 60, boxes[0].X2, 1e-6)
	assert.InDelta(t, 55, boxes[0].Y2, 1e-6)
}

func TestDecodeSuppressesOverlaps(t *testing.T) {
	data := tensor(1,
		[]float32{100, 100, 50, 20, 0.6},
		[]float32{102, 100, 50, 20, 0.9},
		[]float32{300, 100, 50, 20, 0.7},
	)
	head, _ := HeadFor(len(data), 1)
	boxes, err := Decode(data, head, Letterbox{Scale: 1}, 0.5, 0.4)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.InDelta(t, 0.9, boxes[0].Confidence, 1e-6)
	assert.InDelta(t, 0.7, boxes[1].Confidence, 1e-6)
}

func TestDecodeLengthMismatch(t *testing.T) {
	_, err := Decode(make([]float32, 9), Head{Classes: 1, Anchors: 2}, Letterbox{Scale: 1}, 0.5, 0.4)
	assert.Error(t, err)
}

func TestLetterbox(t *testing.T) {
	lb := NewLetterbox(image.Rect(0, 0, 1280, 640), 640)
	assert.InDelta(t, 0.5, lb.Scale, 1e-9)
	assert.Equal(t, 0.0, lb.PadX)
	assert.Equal(t, 160.0, lb.PadY)
	assert.Equal(t, image.Rect(0, 160, 640, 480), lb.Content())

	x, y := lb.Unproject(320, 320)
	assert.InDelta(t, 640, x, 1e-9)
	assert.InDelta(t, 320, y, 1e-9)
}

func TestDecodeWithLetterbox(t *testing.T) {
	lb := NewLetterbox(image.Rect(0, 0, 1280, 640), 640)
	data := tensor(1, []float32{320, 320, 100, 50, 0.9})
	head, _ := HeadFor(len(data), 1)
	boxes, err := Decode(data, head, lb, 0.25, 0.4)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.InDelta(t, 540, boxes[0].X1, 1e-6)
	assert.InDelta(t, 270, boxes[0].Y1, 1e-6)
	assert.InDelta(t, 740, boxes[0].X2, 1e-6)
	assert.InDelta(t, 370, boxes[0].Y2, 1e-6)
}
