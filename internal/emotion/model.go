// Package emotion classifies a face crop into one of seven emotion
// categories and applies the confidence gate.
package emotion

import (
	"context"
	"fmt"

	"github.com/timmy/moodtune/internal/vision"
)

// Tensor is a dense float32 input batch in NHWC layout.
type Tensor struct {
	Shape [4]int // batch, height, width, channels
	Data  []float32
}

// Instances returns the first batch element as nested [height][width][channels]
// slices, the row format TensorFlow Serving expects in "instances".
func (t Tensor) Instances() [][][]float32 {
	h, w, ch := t.Shape[1], t.Shape[2], t.Shape[3]
	rows := make([][][]float32, h)
	for y := 0; y < h; y++ {
		row := make([][]float32, w)
		for x := 0; x < w; x++ {
			off := (y*w + x) * ch
			row[x] = t.Data[off : off+ch : off+ch]
		}
		rows[y] = row
	}
	return rows
}

// Model predicts class probabilities for a normalized input tensor.
type Model interface {
	// Predict returns one probability per emotion, in domain.Emotions order.
	Predict(ctx context.Context, input Tensor) ([]float32, error)
}

// Loader produces a ready Model. It is called at most once per artifact
// lifetime, through the artifact cache.
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Model, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Model, error) {
	return f(ctx)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, input Tensor) ([]float32, error)

// Predict implements Model.
func (f ModelFunc) Predict(ctx context.Context, input Tensor) ([]float32, error) {
	return f(ctx, input)
}

// Normalize scales crop pixels to [-1, 1] via (x-127.5)/127.5 and shapes
// them as [1, size, size, 1].
func Normalize(crop *vision.FaceCrop) (Tensor, error) {
	if crop == nil || crop.Gray == nil {
		return Tensor{}, fmt.Errorf("normalize: nil crop")
	}

	b := crop.Gray.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float32(crop.Gray.GrayAt(x, y).Y)
			data = append(data, (v-127.5)/127.5)
		}
	}

	return Tensor{Shape: [4]int{1, h, w, 1}, Data: data}, nil
}
