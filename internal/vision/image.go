// Package vision decodes uploaded images and locates the dominant face in
// them, producing the fixed-size grayscale crop the emotion model consumes.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/timmy/moodtune/internal/domain"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageArtifact is one decoded input image.
type ImageArtifact struct {
	Data   []byte
	Image  image.Image
	Format string
	Width  int
	Height int
}

// DecodeImage decodes JPEG, PNG, GIF, WebP, BMP or TIFF bytes.
// Parameters:
//   - data: raw image bytes.
//
// Returns:
//   - *ImageArtifact: decoded image with its format name.
//   - error: wraps domain.ErrInvalidImage when data is empty or undecodable.
func DecodeImage(data []byte) (*ImageArtifact, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrInvalidImage)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", domain.ErrInvalidImage)
	}

	return &ImageArtifact{
		Data:   data,
		Image:  img,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// ContentType maps a decoder format name to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// Grayscale converts img to an 8-bit grayscale image whose bounds start at
// the origin, so Pix is row-major with Stride == width.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) && g.Stride == b.Dx() {
		return g
	}

	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
