package yolo

import (
	"github.com/LdDl/plate-passages/plates"
	"github.com/pkg/errors"
)

// Head is the shape of a YOLOv8 detection output: [1, 4+Classes, Anchors].
// Each anchor column holds center x, center y, width, height and one score per class.
type Head struct {
	Classes int
	Anchors int
}

// HeadFor infers anchors count from tensor length
func HeadFor(length, classes int) (Head, error) {
	if classes < 1 {
		return Head{}, errors.Errorf("bad number of classes %d", classes)
	}
	rows := 4 + classes
	if length == 0 || length%rows != 0 {
		return Head{}, errors.Errorf("tensor of %d values can't hold %d rows", length, rows)
	}
	return Head{Classes: classes, Anchors: length / rows}, nil
}

func (h Head) at(data []float32, row, anchor int) float64 {
	return float64(data[row*h.Anchors+anchor])
}

// Decode turns raw output into boxes in picture coordinates.
// Anchors whose best class score is below confidence are dropped,
// then overlapping boxes of the same class are suppressed by iou.
func Decode(data []float32, head Head, lb Letterbox, confidence, iou float64) ([]plates.BoundingBox, error) {
	if len(data) != (4+head.Classes)*head.Anchors {
		return nil, errors.Errorf("tensor has %d values, expected %d", len(data), (4+head.Classes)*head.Anchors)
	}
	boxes := make([]plates.BoundingBox, 0)
	for a := 0; a < head.Anchors; a++ {
		class, score := 0, head.at(data, 4, a)
		for c := 1; c < head.Classes; c++ {
			if s := head.at(data, 4+c, a); s > score {
				class, score = c, s
			}
		}
		if score < confidence {
			continue
		}
		cx, cy := head.at(data, 0, a), head.at(data, 1, a)
		w, h := head.at(data, 2, a), head.at(data, 3, a)
		x1, y1 := lb.Unproject(cx-w/2, cy-h/2)
		x2, y2 := lb.Unproject(cx+w/2, cy+h/2)
		boxes = append(boxes, plates.NewBox(x1, y1, x2, y2, class, score))
	}
	return plates.SuppressOverlaps(boxes, iou), nil
}
