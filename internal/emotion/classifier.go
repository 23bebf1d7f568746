package emotion

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/moodtune/internal/cache"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/metrics"
	"github.com/timmy/moodtune/internal/vision"
)

// DefaultConfidenceThreshold is the minimum arg-max probability for a label
// to be reported as-is.
const DefaultConfidenceThreshold = 0.6

// Classifier maps a face crop to an EmotionResult.
type Classifier struct {
	loader    Loader
	artifacts *cache.ArtifactCache
	threshold float64
	inputSize int
}

// NewClassifier creates a Classifier whose model is fetched lazily through
// artifacts under cache.ArtifactModel.
// Parameters:
//   - loader: model loader.
//   - artifacts: shared artifact cache.
//   - threshold: confidence gate; out of [0,1] uses 0.6.
//   - inputSize: expected crop side; non-positive uses 48.
//
// Returns:
//   - *Classifier: classifier safe for concurrent use.
func NewClassifier(loader Loader, artifacts *cache.ArtifactCache, threshold float64, inputSize int) *Classifier {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	if inputSize <= 0 {
		inputSize = vision.DefaultCropSize
	}
	return &Classifier{
		loader:    loader,
		artifacts: artifacts,
		threshold: threshold,
		inputSize: inputSize,
	}
}

// Model returns the cached model, loading it on first use.
// Load failures are returned as *domain.LoadError and are not cached.
func (c *Classifier) Model(ctx context.Context) (Model, error) {
	model, err := cache.Fetch(ctx, c.artifacts, cache.ArtifactModel, func(ctx context.Context) (Model, error) {
		m, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, errors.New("loader returned no model")
		}
		return m, nil
	})
	if err != nil {
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &domain.LoadError{Artifact: cache.ArtifactModel, Err: err}
	}
	return model, nil
}

// Classify runs the model on crop and applies the confidence gate.
func (c *Classifier) Classify(ctx context.Context, crop *vision.FaceCrop) (domain.EmotionResult, error) {
	if crop == nil || crop.Gray == nil {
		return domain.EmotionResult{}, fmt.Errorf("%w: no face crop", domain.ErrInference)
	}
	if crop.Size() != c.inputSize {
		return domain.EmotionResult{}, fmt.Errorf("%w: crop is %d px, model expects %d", domain.ErrInference, crop.Size(), c.inputSize)
	}

	model, err := c.Model(ctx)
	if err != nil {
		return domain.EmotionResult{}, err
	}

	input, err := Normalize(crop)
	if err != nil {
		return domain.EmotionResult{}, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}

	probs, err := model.Predict(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrInference) {
			return domain.EmotionResult{}, err
		}
		return domain.EmotionResult{}, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}

	result, err := Decide(probs, c.threshold)
	if err != nil {
		return domain.EmotionResult{}, err
	}

	metrics.EmotionsDetected.WithLabelValues(result.Label.String(), fmt.Sprint(result.Overridden())).Inc()
	if result.Overridden() {
		logger.With(logger.Fields{
			logger.FieldConfidence: result.Confidence,
			"predicted":            result.Predicted.String(),
		}).Warn(ctx, "Low confidence (%.2f), defaulting to %s", result.Confidence, result.Label)
	}

	return result, nil
}

// Decide picks the arg-max emotion of probs. Below threshold the label falls
// back to neutral while Confidence and Predicted keep the raw values.
// Ties keep the earliest category.
func Decide(probs []float32, threshold float64) (domain.EmotionResult, error) {
	if len(probs) != len(domain.Emotions) {
		return domain.EmotionResult{}, fmt.Errorf("%w: got %d probabilities, want %d", domain.ErrInference, len(probs), len(domain.Emotions))
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	predicted := domain.Emotions[best]
	confidence := float64(probs[best])
	label := predicted
	if confidence < threshold {
		label = domain.FallbackEmotion
	}

	return domain.EmotionResult{
		Label:      label,
		Predicted:  predicted,
		Confidence: confidence,
	}, nil
}
