package vision

import (
	"image"
	"image/color"
	"testing"
)

func fixedDetector(rects ...image.Rectangle) Detector {
	return DetectorFunc(func(*image.Gray) []image.Rectangle {
		return rects
	})
}

func TestLocator_NoFace(t *testing.T) {
	l := NewLocator(fixedDetector(), DefaultPadding, DefaultCropSize)

	got := l.Locate(solidRGBA(100, 100, color.White))
	if got.Found() {
		t.Fatal("Locate() found a face in an image the detector rejected")
	}
	if got.Crop != nil {
		t.Error("NotFound result carries a crop")
	}
}

func TestLocator_PicksLargestFace(t *testing.T) {
	tests := []struct {
		name    string
		rects   []image.Rectangle
		wantBox image.Rectangle
	}{
		{
			name:    "single face padded",
			rects:   []image.Rectangle{image.Rect(100, 100, 200, 200)},
			wantBox: image.Rect(90, 90, 210, 210),
		},
		{
			name: "largest wins",
			rects: []image.Rectangle{
				image.Rect(10, 10, 60, 60),
				image.Rect(200, 200, 300, 300),
				image.Rect(300, 10, 340, 50),
			},
			wantBox: image.Rect(190, 190, 310, 310),
		},
		{
			name: "tie keeps first",
			rects: []image.Rectangle{
				image.Rect(0, 300, 50, 350),
				image.Rect(300, 0, 350, 50),
			},
			// int(0.1*50) = 5, clamped at the left edge
			wantBox: image.Rect(0, 295, 55, 355),
		},
		{
			name:    "clamped to bounds",
			rects:   []image.Rectangle{image.Rect(350, 350, 400, 400)},
			wantBox: image.Rect(345, 345, 400, 400),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLocator(fixedDetector(tt.rects...), DefaultPadding, DefaultCropSize)

			got := l.Locate(solidRGBA(400, 400, color.Gray{Y: 128}))
			if !got.Found() {
				t.Fatal("Locate() = NotFound, want a face")
			}
			if got.Crop.Box != tt.wantBox {
				t.Errorf("Box = %v, want %v", got.Crop.Box, tt.wantBox)
			}
			if got.Crop.Size() != DefaultCropSize {
				t.Errorf("Size() = %d, want %d", got.Crop.Size(), DefaultCropSize)
			}
			if b := got.Crop.Gray.Bounds(); b.Dx() != b.Dy() {
				t.Errorf("crop is not square: %v", b)
			}
			if got.Candidates != len(tt.rects) {
				t.Errorf("Candidates = %d, want %d", got.Candidates, len(tt.rects))
			}
		})
	}
}

func TestLocator_CropIsGrayscale(t *testing.T) {
	l := NewLocator(fixedDetector(image.Rect(0, 0, 100, 100)), 0, 48)

	got := l.Locate(solidRGBA(100, 100, color.RGBA{R: 255, A: 255}))
	if !got.Found() {
		t.Fatal("Locate() = NotFound")
	}
	// Pure red maps to luma ~76 with the 0.299/0.587/0.114 weights.
	if y := got.Crop.Gray.GrayAt(24, 24).Y; y < 74 || y > 78 {
		t.Errorf("gray value = %d, want ~76", y)
	}
}

func TestNewLocator_Defaults(t *testing.T) {
	l := NewLocator(fixedDetector(), -1, 0)
	if l.padding != DefaultPadding || l.size != DefaultCropSize {
		t.Errorf("defaults = (%v, %d), want (%v, %d)", l.padding, l.size, DefaultPadding, DefaultCropSize)
	}
}
