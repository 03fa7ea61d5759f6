package plates

import (
	"image"
)

// BoundingBox is a single detection returned by a Detector.
// Coordinates are corners in pixels of the image the detector was run on.
type BoundingBox struct {
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
	ClassID    int
	Confidence float64
}

func NewBox(x1, y1, x2, y2 float64, classID int, confidence float64) BoundingBox {
	return BoundingBox{
		X1:         x1,
		Y1:         y1,
		X2:         x2,
		Y2:         y2,
		ClassID:    classID,
		Confidence: confidence,
	}
}

// NewBoxFrom builds box from integer rectangle
func NewBoxFrom(rect image.Rectangle, classID int, confidence float64) BoundingBox {
	return BoundingBox{
		X1:         float64(rect.Min.X),
		Y1:         float64(rect.Min.Y),
		X2:         float64(rect.Max.X),
		Y2:         float64(rect.Max.Y),
		ClassID:    classID,
		Confidence: confidence,
	}
}

// Width returns horizontal size of the box
func (box BoundingBox) Width() float64 {
	return box.X2 - box.X1
}

// Height returns vertical size of the box
func (box BoundingBox) Height() float64 {
	return box.Y2 - box.Y1
}

// Area returns box area. Degenerate boxes have zero area
func (box BoundingBox) Area() float64 {
	return maxFloat64(0, box.Width()) * maxFloat64(0, box.Height())
}

// Rect truncates corners to integer pixels the same way a crop does.
// Corners are not swapped: an inverted box gives an empty rectangle.
func (box BoundingBox) Rect() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(int(box.X1), int(box.Y1)),
		Max: image.Pt(int(box.X2), int(box.Y2)),
	}
}

// ClampTo returns integer crop rectangle limited to bounds. Result may be empty
func (box BoundingBox) ClampTo(bounds image.Rectangle) image.Rectangle {
	return box.Rect().Intersect(bounds)
}
