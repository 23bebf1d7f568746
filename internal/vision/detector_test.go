package vision

import (
	"image"
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{name: "identical", a: image.Rect(0, 0, 10, 10), b: image.Rect(0, 0, 10, 10), want: 1},
		{name: "disjoint", a: image.Rect(0, 0, 10, 10), b: image.Rect(20, 20, 30, 30), want: 0},
		{name: "half overlap", a: image.Rect(0, 0, 10, 10), b: image.Rect(5, 0, 15, 10), want: 50.0 / 150.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iou(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("iou() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterByNeighbors(t *testing.T) {
	face := image.Rect(100, 100, 200, 200)
	noise := image.Rect(400, 400, 450, 450)

	raw := []image.Rectangle{
		face,
		face.Add(image.Pt(2, 0)),
		face.Add(image.Pt(0, 2)),
		face.Add(image.Pt(-2, 0)),
		face.Add(image.Pt(0, -2)),
		noise,
		noise.Add(image.Pt(1, 1)),
	}

	got := filterByNeighbors([]image.Rectangle{face, noise}, raw, 0.2, 5)
	if len(got) != 1 || got[0] != face {
		t.Errorf("filterByNeighbors() = %v, want [%v]", got, face)
	}

	if got := filterByNeighbors([]image.Rectangle{face, noise}, raw, 0.2, 1); len(got) != 2 {
		t.Errorf("with minNeighbors=1 kept %d clusters, want 2", len(got))
	}
}

func TestDefaultDetectorConfig(t *testing.T) {
	cfg := DefaultDetectorConfig()
	if cfg.ScaleFactor != 1.1 || cfg.MinNeighbors != 5 || cfg.MinSize != 48 {
		t.Errorf("DefaultDetectorConfig() = %+v", cfg)
	}
}
