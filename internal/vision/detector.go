package vision

import "image"

// DetectorConfig tunes the face detector.
type DetectorConfig struct {
	// CascadePath points to the cascade file (pigo binary or OpenCV XML).
	CascadePath  string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
	ShiftFactor  float64
	IoUThreshold float64
}

// DefaultDetectorConfig returns the tuning used in production.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      48,
		ShiftFactor:  0.1,
		IoUThreshold: 0.2,
	}
}

// iou returns intersection over union of two rectangles.
func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	i := float64(area(inter))
	u := float64(area(a)+area(b)) - i
	if u <= 0 {
		return 0
	}
	return i / u
}

// filterByNeighbors keeps clusters backed by at least minNeighbors raw
// detections overlapping them by more than threshold.
func filterByNeighbors(clusters, raw []image.Rectangle, threshold float64, minNeighbors int) []image.Rectangle {
	kept := make([]image.Rectangle, 0, len(clusters))
	for _, c := range clusters {
		n := 0
		for _, r := range raw {
			if iou(c, r) > threshold {
				n++
			}
		}
		if n >= minNeighbors {
			kept = append(kept, c)
		}
	}
	return kept
}
