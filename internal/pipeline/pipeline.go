package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/timmy/moodtune/internal/cache"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/metrics"
	"github.com/timmy/moodtune/internal/vision"
)

// StatusSuccess is the status of every successful Result.
const StatusSuccess = "success"

// Cache key prefixes.
const (
	fingerprintPrefix = "result:fp:"
	moodPrefix        = "result:mood:"
)

// Result is the outcome of one pipeline call.
type Result struct {
	Status          string                  `json:"status"`
	Emotion         domain.Emotion          `json:"emotion"`
	Confidence      float64                 `json:"confidence"`
	Recommendations []domain.Recommendation `json:"recommendations"`

	// Fingerprint is the sha256 hex digest of the image bytes.
	Fingerprint string `json:"-"`
	// Cached is true when the whole result came from the fingerprint cache.
	Cached bool `json:"-"`

	payload []byte
}

// Payload returns the JSON document stored in the fingerprint cache. For a
// cached Result it is byte-identical to the first computation.
func (r *Result) Payload() []byte {
	return r.payload
}

// Pipeline turns face images into emotion-matched recommendations.
type Pipeline struct {
	rt *Runtime
}

// New creates a Pipeline over rt.
func New(rt *Runtime) *Pipeline {
	return &Pipeline{rt: rt}
}

// Runtime returns the pipeline's runtime.
func (p *Pipeline) Runtime() *Runtime {
	return p.rt
}

// Fingerprint returns the sha256 hex digest used as the result cache key.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Warmup loads the model and the catalog ahead of the first request.
// Both are attempted; their errors are joined.
func (p *Pipeline) Warmup(ctx context.Context) error {
	start := time.Now()
	_, modelErr := p.rt.Classifier.Model(ctx)
	_, catalogErr := p.rt.Catalog.Load(ctx)
	if err := errors.Join(modelErr, catalogErr); err != nil {
		return err
	}
	logger.Since(start).Info(ctx, "Pipeline artifacts warmed up")
	return nil
}

// ArtifactsLoadedAt reports when the model and the catalog were loaded.
// Artifacts that are not cached, or have expired, are omitted.
func (p *Pipeline) ArtifactsLoadedAt() map[string]time.Time {
	out := make(map[string]time.Time, 2)
	for _, name := range []string{cache.ArtifactModel, cache.ArtifactCatalog} {
		if at, ok := p.rt.Artifacts.LoadedAt(name); ok {
			out[name] = at
		}
	}
	return out
}

// ensureArtifacts makes sure the model and catalog are loaded, model first.
func (p *Pipeline) ensureArtifacts(ctx context.Context) error {
	if _, err := p.rt.Classifier.Model(ctx); err != nil {
		return err
	}
	_, err := p.rt.Catalog.Load(ctx)
	return err
}

// Process reads the image at path and runs ProcessImage on it.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidImage, path, err)
	}
	return p.ProcessImage(ctx, data)
}

// ProcessImage runs Evaluate on raw image bytes and caches a fresh result
// under its fingerprint straight away. Callers that record the result
// elsewhere first should use Evaluate and CacheResult instead.
func (p *Pipeline) ProcessImage(ctx context.Context, data []byte) (*Result, error) {
	result, err := p.Evaluate(ctx, data)
	if err != nil {
		return nil, err
	}
	p.CacheResult(ctx, result)
	return result, nil
}

// CacheResult stores a freshly computed result under its fingerprint.
// Results that came from the cache are left alone.
func (p *Pipeline) CacheResult(ctx context.Context, result *Result) {
	if result == nil || result.Cached || len(result.payload) == 0 {
		return
	}
	p.store(ctx, fingerprintPrefix+result.Fingerprint, result.payload)
}

// Evaluate runs the pipeline on raw image bytes without writing the
// fingerprint cache.
// A fingerprint cache hit returns the stored payload without touching the
// model. Otherwise the image is decoded, its largest face classified, and
// songs drawn for the emotion (reusing a draw from the same mood bucket when
// one is cached).
// Parameters:
//   - ctx: request context; carries the logger.
//   - data: raw image bytes.
//
// Returns:
//   - *Result: emotion and recommendations with the JSON payload.
//   - error: domain.ErrInvalidImage, domain.ErrFaceNotFound, a load error,
//     domain.ErrInference or domain.ErrDataUnavailable.
func (p *Pipeline) Evaluate(ctx context.Context, data []byte) (result *Result, err error) {
	start := time.Now()
	fingerprint := Fingerprint(data)
	ctx = logger.SetImageHash(ctx, fingerprint)

	defer func() {
		metrics.ObserveStage("total", start)
		metrics.PipelineRuns.WithLabelValues(outcome(result, err)).Inc()
	}()

	if cached, ok := p.cachedResult(ctx, fingerprint); ok {
		logger.Since(start).Info(ctx, "Using cached results for image")
		return cached, nil
	}

	if err := p.ensureArtifacts(ctx); err != nil {
		return nil, err
	}

	img, err := vision.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	face := p.rt.Locator.Locate(img.Image)
	metrics.ObserveStage("locate", stageStart)
	if !face.Found() {
		logger.CtxInfo(ctx, "No face detected in image")
		return nil, domain.ErrFaceNotFound
	}

	stageStart = time.Now()
	emo, err := p.rt.Classifier.Classify(ctx, face.Crop)
	metrics.ObserveStage("classify", stageStart)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithField(ctx, logger.FieldEmotion, emo.Label.String())

	stageStart = time.Now()
	recs, err := p.recommend(ctx, emo.Label)
	metrics.ObserveStage("recommend", stageStart)
	if err != nil {
		return nil, err
	}

	result = &Result{
		Status:          StatusSuccess,
		Emotion:         emo.Label,
		Confidence:      emo.Confidence,
		Recommendations: recs,
		Fingerprint:     fingerprint,
	}
	result.payload, err = json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	logger.Since(start).
		WithField(logger.FieldConfidence, emo.Confidence).
		WithField(logger.FieldCount, len(recs)).
		Info(ctx, "Detected emotion: %s", emo.Label)

	return result, nil
}

// recommend serves the mood bucket cache or asks the Selector.
func (p *Pipeline) recommend(ctx context.Context, e domain.Emotion) ([]domain.Recommendation, error) {
	key := p.moodKey(e)

	if raw, ok := p.lookup(ctx, "mood", key); ok {
		var recs []domain.Recommendation
		if err := json.Unmarshal(raw, &recs); err == nil && len(recs) > 0 {
			logger.CtxDebug(ctx, "Reusing recommendations from the current mood bucket")
			return recs, nil
		}
		logger.CtxWarn(ctx, "Discarding unreadable mood cache entry")
	}

	recs, err := p.rt.Selector.Recommend(ctx, e)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(recs); err == nil {
		p.store(ctx, key, raw)
	}
	return recs, nil
}

func (p *Pipeline) moodKey(e domain.Emotion) string {
	width := int64(p.rt.MoodBucket / time.Second)
	if width <= 0 {
		width = 1
	}
	bucket := p.rt.Now().Unix() / width
	return fmt.Sprintf("%s%s:%d", moodPrefix, e, bucket)
}

func (p *Pipeline) cachedResult(ctx context.Context, fingerprint string) (*Result, bool) {
	raw, ok := p.lookup(ctx, "fingerprint", fingerprintPrefix+fingerprint)
	if !ok {
		return nil, false
	}

	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Discarding unreadable cached result")
		return nil, false
	}
	r.Fingerprint = fingerprint
	r.Cached = true
	r.payload = raw
	return &r, true
}

// lookup reads the result store. Failures degrade to a miss.
func (p *Pipeline) lookup(ctx context.Context, namespace, key string) ([]byte, bool) {
	raw, ok, err := p.rt.Results.Get(ctx, key)
	metrics.RecordCacheLookup(namespace, ok, err)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Result cache read failed")
		return nil, false
	}
	return raw, ok
}

// store writes to the result store. Failures are logged and ignored.
func (p *Pipeline) store(ctx context.Context, key string, value []byte) {
	if err := p.rt.Results.Set(ctx, key, value, p.rt.ResultTTL); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Result cache write failed")
	}
}

func outcome(result *Result, err error) string {
	switch {
	case err == nil && result != nil && result.Cached:
		return "cached"
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrFaceNotFound):
		return "no_face"
	case errors.Is(err, domain.ErrInvalidImage):
		return "invalid_image"
	default:
		return "error"
	}
}
