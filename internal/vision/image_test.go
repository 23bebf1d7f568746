package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/timmy/moodtune/internal/domain"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func solidRGBA(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeImage(t *testing.T) {
	img := solidRGBA(64, 32, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    error
	}{
		{name: "png", data: encodePNG(t, img), wantFormat: "png"},
		{name: "jpeg", data: encodeJPEG(t, img), wantFormat: "jpeg"},
		{name: "empty", data: nil, wantErr: domain.ErrInvalidImage},
		{name: "garbage", data: []byte("definitely not an image"), wantErr: domain.ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeImage(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeImage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeImage() error = %v", err)
			}
			if got.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", got.Format, tt.wantFormat)
			}
			if got.Width != 64 || got.Height != 32 {
				t.Errorf("size = %dx%d, want 64x32", got.Width, got.Height)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"webp": "image/webp",
		"tiff": "image/tiff",
		"heic": "application/octet-stream",
	}
	for format, want := range tests {
		if got := ContentType(format); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestGrayscale(t *testing.T) {
	src := solidRGBA(10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	sub := src.SubImage(image.Rect(2, 3, 8, 7))

	gray := Grayscale(sub)
	if gray.Bounds() != image.Rect(0, 0, 6, 4) {
		t.Fatalf("bounds = %v, want origin-based 6x4", gray.Bounds())
	}
	if gray.Stride != 6 {
		t.Errorf("Stride = %d, want 6", gray.Stride)
	}
	if v := gray.GrayAt(0, 0).Y; v != 255 {
		t.Errorf("pixel = %d, want 255", v)
	}
}
