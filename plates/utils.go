package plates

import "sort"

// IoU calculates Intersection over Union between two boxes.
func IoU(b1, b2 BoundingBox) float64 {
	xA := maxFloat64(b1.X1, b2.X1)
	yA := maxFloat64(b1.Y1, b2.Y1)
	xB := minFloat64(b1.X2, b2.X2)
	yB := minFloat64(b1.Y2, b2.Y2)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}
	return interArea / (b1.Area() + b2.Area() - interArea)
}

// SuppressOverlaps runs greedy non-maximum suppression: boxes are visited by descending
// confidence and a box is dropped when it overlaps an already kept box of the same class
// by more than iouThreshold.
func SuppressOverlaps(boxes []BoundingBox, iouThreshold float64) []BoundingBox {
	if len(boxes) < 2 {
		return boxes
	}
	ordered := make([]BoundingBox, len(boxes))
	copy(ordered, boxes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})
	kept := make([]BoundingBox, 0, len(ordered))
	for _, candidate := range ordered {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == candidate.ClassID && IoU(k, candidate) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
