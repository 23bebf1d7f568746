// Package pipeline wires face location, emotion classification, song
// selection and result caching into a single call.
package pipeline

import (
	"errors"
	"time"

	"github.com/timmy/moodtune/internal/cache"
	"github.com/timmy/moodtune/internal/catalog"
	"github.com/timmy/moodtune/internal/emotion"
	"github.com/timmy/moodtune/internal/recommend"
	"github.com/timmy/moodtune/internal/vision"
)

const (
	// DefaultResultTTL is how long a fingerprint or mood result is reused.
	DefaultResultTTL = time.Hour
	// DefaultMoodBucket is the width of the emotion freshness window.
	DefaultMoodBucket = time.Hour
)

// Runtime owns the long-lived state shared by every pipeline call: the
// detector, the lazily loaded model and catalog, playback history and the
// result cache. Create it once and reuse it.
type Runtime struct {
	Locator    *vision.Locator
	Classifier *emotion.Classifier
	Catalog    *catalog.Store
	Selector   *recommend.Selector
	History    *recommend.History
	Artifacts  *cache.ArtifactCache
	Results    cache.Store

	ResultTTL  time.Duration
	MoodBucket time.Duration
	Now        func() time.Time
}

// Deps are the pluggable parts of a Runtime.
type Deps struct {
	Detector      vision.Detector
	ModelLoader   emotion.Loader
	CatalogSource catalog.Source
	Results       cache.Store
}

// Settings tunes a Runtime. Start from DefaultSettings; zero TTLs use the
// defaults.
type Settings struct {
	Padding             float64
	InputSize           int
	ConfidenceThreshold float64
	Recommend           recommend.Options
	ArtifactTTL         time.Duration
	ResultTTL           time.Duration
	MoodBucket          time.Duration
}

// DefaultSettings returns the production tuning.
func DefaultSettings() Settings {
	return Settings{
		Padding:             vision.DefaultPadding,
		InputSize:           vision.DefaultCropSize,
		ConfidenceThreshold: emotion.DefaultConfidenceThreshold,
		Recommend: recommend.Options{
			Size:        recommend.DefaultSize,
			MinUnplayed: recommend.DefaultMinUnplayed,
		},
		ArtifactTTL: cache.DefaultArtifactTTL,
		ResultTTL:   DefaultResultTTL,
		MoodBucket:  DefaultMoodBucket,
	}
}

// NewRuntime assembles a Runtime. Nothing is loaded until first use or Warmup.
// Parameters:
//   - deps: detector, model loader, catalog source and result store.
//   - settings: tuning values.
//
// Returns:
//   - *Runtime: ready runtime.
//   - error: non-nil if a required dependency is missing.
func NewRuntime(deps Deps, settings Settings) (*Runtime, error) {
	switch {
	case deps.Detector == nil:
		return nil, errors.New("pipeline: detector is required")
	case deps.ModelLoader == nil:
		return nil, errors.New("pipeline: model loader is required")
	case deps.CatalogSource == nil:
		return nil, errors.New("pipeline: catalog source is required")
	}

	results := deps.Results
	if results == nil {
		results = cache.NewMemoryStore(0, 0)
	}
	if settings.ResultTTL <= 0 {
		settings.ResultTTL = DefaultResultTTL
	}
	if settings.MoodBucket <= 0 {
		settings.MoodBucket = DefaultMoodBucket
	}

	artifacts := cache.NewArtifactCache(settings.ArtifactTTL)
	store := catalog.NewStore(deps.CatalogSource, artifacts)
	history := recommend.NewHistory()

	return &Runtime{
		Locator:    vision.NewLocator(deps.Detector, settings.Padding, settings.InputSize),
		Classifier: emotion.NewClassifier(deps.ModelLoader, artifacts, settings.ConfidenceThreshold, settings.InputSize),
		Catalog:    store,
		Selector:   recommend.NewSelector(store, history, settings.Recommend),
		History:    history,
		Artifacts:  artifacts,
		Results:    results,
		ResultTTL:  settings.ResultTTL,
		MoodBucket: settings.MoodBucket,
		Now:        time.Now,
	}, nil
}

// Close clears playback history and cached artifacts and closes the result
// store.
func (r *Runtime) Close() error {
	r.History.Clear()
	r.Artifacts.Clear()
	return r.Results.Close()
}
