package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultCropSize is the side of the square crop fed to the emotion model.
const DefaultCropSize = 48

// DefaultPadding is the fraction of the face width added on every side.
const DefaultPadding = 0.1

// Detector finds candidate face rectangles in a grayscale image, in
// detector order. Implementations must be safe for concurrent use.
type Detector interface {
	Detect(gray *image.Gray) []image.Rectangle
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(gray *image.Gray) []image.Rectangle

// Detect implements Detector.
func (f DetectorFunc) Detect(gray *image.Gray) []image.Rectangle {
	return f(gray)
}

// FaceCrop is the square grayscale face region resized for the model.
type FaceCrop struct {
	Gray *image.Gray
	// Box is the padded region of the source image the crop was taken from.
	Box image.Rectangle
}

// Size returns the side length of the crop.
func (c *FaceCrop) Size() int {
	return c.Gray.Bounds().Dx()
}

// FaceResult is the outcome of Locate: either a crop or no face.
type FaceResult struct {
	Crop       *FaceCrop
	Candidates int
}

// Found reports whether a face was located.
func (r FaceResult) Found() bool {
	return r.Crop != nil
}

// NotFound is the FaceResult for images without a detectable face.
var NotFound = FaceResult{}

// Locator picks the dominant face in an image and crops it.
type Locator struct {
	detector Detector
	padding  float64
	size     int
}

// NewLocator creates a Locator.
// Parameters:
//   - detector: face detector.
//   - padding: fraction of the face width added on all sides; negative uses 0.1.
//   - size: output side length; non-positive uses 48.
//
// Returns:
//   - *Locator: stateless locator safe for concurrent use.
func NewLocator(detector Detector, padding float64, size int) *Locator {
	if padding < 0 {
		padding = DefaultPadding
	}
	if size <= 0 {
		size = DefaultCropSize
	}
	return &Locator{detector: detector, padding: padding, size: size}
}

// Locate finds the largest face in img and returns it as a padded,
// grayscale, size×size crop. Ties on area keep the first candidate.
func (l *Locator) Locate(img image.Image) FaceResult {
	gray := Grayscale(img)

	candidates := l.detector.Detect(gray)
	if len(candidates) == 0 {
		return NotFound
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if area(c) > area(best) {
			best = c
		}
	}

	box := expand(best, l.padding, gray.Bounds())
	if box.Empty() {
		return NotFound
	}

	dst := image.NewGray(image.Rect(0, 0, l.size, l.size))
	draw.BiLinear.Scale(dst, dst.Bounds(), gray, box, draw.Src, nil)

	return FaceResult{
		Crop:       &FaceCrop{Gray: dst, Box: box},
		Candidates: len(candidates),
	}
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// expand grows r by int(padding*width) on every side and clamps it to bounds.
func expand(r image.Rectangle, padding float64, bounds image.Rectangle) image.Rectangle {
	pad := int(padding * float64(r.Dx()))
	grown := image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad)
	return grown.Intersect(bounds)
}
