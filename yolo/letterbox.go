package yolo

import (
	"image"
	"math"
)

// Letterbox describes how a picture was fitted into the square network input:
// scaled uniformly and padded symmetrically.
type Letterbox struct {
	Scale float64
	PadX  float64
	PadY  float64
	// Size of resized content inside the input
	Width  int
	Height int
}

// NewLetterbox fits picture of given bounds into size x size input
func NewLetterbox(bounds image.Rectangle, size int) Letterbox {
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || size <= 0 {
		return Letterbox{Scale: 1}
	}
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	return Letterbox{
		Scale:  scale,
		PadX:   float64((size - newW) / 2),
		PadY:   float64((size - newH) / 2),
		Width:  newW,
		Height: newH,
	}
}

// Content returns rectangle of input occupied by the picture
func (lb Letterbox) Content() image.Rectangle {
	x, y := int(lb.PadX), int(lb.PadY)
	return image.Rect(x, y, x+lb.Width, y+lb.Height)
}

// Unproject maps a point of network input back to picture coordinates
func (lb Letterbox) Unproject(x, y float64) (float64, float64) {
	if lb.Scale == 0 {
		return x, y
	}
	return (x - lb.PadX) / lb.Scale, (y - lb.PadY) / lb.Scale
}
