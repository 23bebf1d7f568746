//go:build !opencv

package vision

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoDetector is the pure-Go cascade face detector.
type PigoDetector struct {
	classifier *pigo.Pigo
	cfg        DetectorConfig
}

// NewDetector loads the pigo cascade from cfg.CascadePath.
func NewDetector(cfg DetectorConfig) (Detector, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}
	return NewPigoDetector(cascade, cfg)
}

// NewPigoDetector unpacks a pigo cascade.
// Parameters:
//   - cascade: binary cascade contents (e.g. "facefinder").
//   - cfg: detection tuning; zero fields fall back to DefaultDetectorConfig.
//
// Returns:
//   - *PigoDetector: detector safe for concurrent use.
//   - error: non-nil if the cascade cannot be unpacked.
func NewPigoDetector(cascade []byte, cfg DetectorConfig) (*PigoDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier, cfg: withDefaults(cfg)}, nil
}

// Detect implements Detector.
func (d *PigoDetector) Detect(gray *image.Gray) []image.Rectangle {
	params, ok := d.cascadeParams(gray)
	if !ok {
		return nil
	}

	raw := d.classifier.RunCascade(params, 0.0)
	if len(raw) == 0 {
		return nil
	}
	clustered := d.classifier.ClusterDetections(raw, d.cfg.IoUThreshold)

	return filterByNeighbors(toRects(clustered), toRects(raw), d.cfg.IoUThreshold, d.cfg.MinNeighbors)
}

// cascadeParams builds the pigo scan over gray. ok is false when the image
// is smaller than the minimum face size.
func (d *PigoDetector) cascadeParams(gray *image.Gray) (pigo.CascadeParams, bool) {
	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()
	maxSize := cols
	if rows < maxSize {
		maxSize = rows
	}
	if maxSize < d.cfg.MinSize {
		return pigo.CascadeParams{}, false
	}

	return pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}, true
}

// toRects converts pigo center/scale detections into Scale×Scale rectangles.
func toRects(dets []pigo.Detection) []image.Rectangle {
	rects := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		x0, y0 := det.Col-det.Scale/2, det.Row-det.Scale/2
		rects = append(rects, image.Rect(x0, y0, x0+det.Scale, y0+det.Scale))
	}
	return rects
}

func withDefaults(cfg DetectorConfig) DetectorConfig {
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
	if cfg.ShiftFactor <= 0 {
		cfg.ShiftFactor = def.ShiftFactor
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	return cfg
}
