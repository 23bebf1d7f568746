//go:build opencv

package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeDetector runs an OpenCV Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	cfg        DetectorConfig
}

// NewDetector loads the OpenCV Haar cascade XML from cfg.CascadePath.
func NewDetector(cfg DetectorConfig) (Detector, error) {
	def := DefaultDetectorConfig()
	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = def.ScaleFactor
	}
	if cfg.MinNeighbors <= 0 {
		cfg.MinNeighbors = def.MinNeighbors
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = def.MinSize
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", cfg.CascadePath)
	}
	return &CascadeDetector{classifier: classifier, cfg: cfg}, nil
}

// Detect implements Detector.
func (d *CascadeDetector) Detect(gray *image.Gray) []image.Rectangle {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil
	}
	defer mat.Close()

	minSize := image.Pt(d.cfg.MinSize, d.cfg.MinSize)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.DetectMultiScaleWithParams(mat, d.cfg.ScaleFactor, d.cfg.MinNeighbors, 0, minSize, image.Point{})
}

// Close releases the native classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
