package emotion

import (
	"context"
	"errors"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/moodtune/internal/cache"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/vision"
)

func probs(values ...float32) []float32 {
	return values
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name          string
		probs         []float32
		wantLabel     domain.Emotion
		wantPredicted domain.Emotion
		wantConf      float64
		wantErr       error
	}{
		{
			name:          "confident happy",
			probs:         probs(0.01, 0.01, 0.01, 0.9, 0.03, 0.02, 0.02),
			wantLabel:     domain.EmotionHappy,
			wantPredicted: domain.EmotionHappy,
			wantConf:      0.9,
		},
		{
			name:          "low confidence angry falls back to neutral",
			probs:         probs(0.4, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1),
			wantLabel:     domain.EmotionNeutral,
			wantPredicted: domain.EmotionAngry,
			wantConf:      0.4,
		},
		{
			name:          "exactly at threshold is kept",
			probs:         probs(0, 0, 0, 0, 0, 0.6, 0.4),
			wantLabel:     domain.EmotionSad,
			wantPredicted: domain.EmotionSad,
			wantConf:      0.6,
		},
		{
			name:          "tie keeps first category",
			probs:         probs(0, 0, 0.5, 0.5, 0, 0, 0),
			wantLabel:     domain.EmotionNeutral,
			wantPredicted: domain.EmotionFear,
			wantConf:      0.5,
		},
		{
			name:    "wrong length",
			probs:   probs(0.5, 0.5),
			wantErr: domain.ErrInference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(tt.probs, DefaultConfidenceThreshold)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decide() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if got.Label != tt.wantLabel || got.Predicted != tt.wantPredicted {
				t.Errorf("Decide() = %+v, want label %s predicted %s", got, tt.wantLabel, tt.wantPredicted)
			}
			if math.Abs(got.Confidence-tt.wantConf) > 1e-6 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func grayCrop(size int, value uint8) *vision.FaceCrop {
	g := image.NewGray(image.Rect(0, 0, size, size))
	for i := range g.Pix {
		g.Pix[i] = value
	}
	return &vision.FaceCrop{Gray: g, Box: g.Bounds()}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		value uint8
		want  float32
	}{
		{value: 0, want: -1},
		{value: 255, want: 1},
		{value: 127, want: -0.5 / 127.5},
	}
	for _, tt := range tests {
		got, err := Normalize(grayCrop(48, tt.value))
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if got.Shape != [4]int{1, 48, 48, 1} {
			t.Fatalf("Shape = %v, want [1 48 48 1]", got.Shape)
		}
		if len(got.Data) != 48*48 {
			t.Fatalf("len(Data) = %d, want %d", len(got.Data), 48*48)
		}
		if d := got.Data[0] - tt.want; d > 1e-6 || d < -1e-6 {
			t.Errorf("Normalize(%d) = %v, want %v", tt.value, got.Data[0], tt.want)
		}
	}

	if _, err := Normalize(nil); err == nil {
		t.Error("Normalize(nil) should fail")
	}
}

func TestTensor_Instances(t *testing.T) {
	tensor := Tensor{Shape: [4]int{1, 2, 3, 1}, Data: []float32{1, 2, 3, 4, 5, 6}}

	rows := tensor.Instances()
	if len(rows) != 2 || len(rows[0]) != 3 || len(rows[0][0]) != 1 {
		t.Fatalf("Instances() shape = %dx%dx%d", len(rows), len(rows[0]), len(rows[0][0]))
	}
	if rows[1][2][0] != 6 {
		t.Errorf("rows[1][2][0] = %v, want 6", rows[1][2][0])
	}
}

func staticModel(p []float32) Model {
	return ModelFunc(func(context.Context, Tensor) ([]float32, error) {
		return p, nil
	})
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name      string
		model     Model
		crop      *vision.FaceCrop
		wantLabel domain.Emotion
		wantErr   error
	}{
		{
			name:      "happy",
			model:     staticModel(probs(0, 0, 0, 0.95, 0.05, 0, 0)),
			crop:      grayCrop(48, 100),
			wantLabel: domain.EmotionHappy,
		},
		{
			name:      "gated to neutral",
			model:     staticModel(probs(0.4, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1)),
			crop:      grayCrop(48, 100),
			wantLabel: domain.EmotionNeutral,
		},
		{
			name:    "malformed output",
			model:   staticModel(probs(1)),
			crop:    grayCrop(48, 100),
			wantErr: domain.ErrInference,
		},
		{
			name: "predict failure",
			model: ModelFunc(func(context.Context, Tensor) ([]float32, error) {
				return nil, errors.New("connection reset")
			}),
			crop:    grayCrop(48, 100),
			wantErr: domain.ErrInference,
		},
		{
			name:    "wrong crop size",
			model:   staticModel(probs(0, 0, 0, 1, 0, 0, 0)),
			crop:    grayCrop(32, 100),
			wantErr: domain.ErrInference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := tt.model
			loader := LoaderFunc(func(context.Context) (Model, error) { return model, nil })
			c := NewClassifier(loader, cache.NewArtifactCache(time.Hour), DefaultConfidenceThreshold, 48)

			got, err := c.Classify(context.Background(), tt.crop)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Classify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("Label = %s, want %s", got.Label, tt.wantLabel)
			}
		})
	}
}

func TestClassifier_LoadFailureIsNotCached(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(context.Context) (Model, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("model file missing")
		}
		return staticModel(probs(0, 0, 0, 1, 0, 0, 0)), nil
	})
	c := NewClassifier(loader, cache.NewArtifactCache(time.Hour), DefaultConfidenceThreshold, 48)

	_, err := c.Classify(context.Background(), grayCrop(48, 0))
	if !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("first Classify() error = %v, want ErrLoad", err)
	}
	var loadErr *domain.LoadError
	if !errors.As(err, &loadErr) || loadErr.Artifact != cache.ArtifactModel {
		t.Fatalf("error = %v, want *LoadError for %s", err, cache.ArtifactModel)
	}

	got, err := c.Classify(context.Background(), grayCrop(48, 0))
	if err != nil {
		t.Fatalf("second Classify() error = %v", err)
	}
	if got.Label != domain.EmotionHappy {
		t.Errorf("Label = %s, want happy", got.Label)
	}
	if calls.Load() != 2 {
		t.Errorf("loader called %d times, want 2", calls.Load())
	}
}

func TestClassifier_ModelLoadedOnceConcurrently(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(context.Context) (Model, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return staticModel(probs(0, 0, 0, 0, 0, 0, 1)), nil
	})
	c := NewClassifier(loader, cache.NewArtifactCache(time.Hour), DefaultConfidenceThreshold, 48)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Classify(context.Background(), grayCrop(48, 50)); err != nil {
				t.Errorf("Classify() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", calls.Load())
	}
}

func TestNewClassifier_Defaults(t *testing.T) {
	c := NewClassifier(nil, cache.NewArtifactCache(0), 2, 0)
	if c.threshold != DefaultConfidenceThreshold {
		t.Errorf("threshold = %v, want %v", c.threshold, DefaultConfidenceThreshold)
	}
	if c.inputSize != vision.DefaultCropSize {
		t.Errorf("inputSize = %d, want %d", c.inputSize, vision.DefaultCropSize)
	}
}
