package pipeline

import (
	"fmt"

	"github.com/timmy/moodtune/internal/cache"
	"github.com/timmy/moodtune/internal/catalog"
	"github.com/timmy/moodtune/internal/config"
	"github.com/timmy/moodtune/internal/emotion"
	"github.com/timmy/moodtune/internal/recommend"
	"github.com/timmy/moodtune/internal/storage"
	"github.com/timmy/moodtune/internal/vision"
)

// resultKeyPrefix namespaces result entries in a shared Badger database.
const resultKeyPrefix = "moodtune:"

// NewRuntimeFromConfig builds the production Runtime.
// Parameters:
//   - cfg: application configuration.
//   - objects: object storage; used for the catalog when catalog.object_key is set. May be nil.
//
// Returns:
//   - *Runtime: runtime with the configured detector, model server and cache backend.
//   - error: non-nil if the cascade or the cache backend cannot be opened.
func NewRuntimeFromConfig(cfg *config.Config, objects storage.ObjectStorage) (*Runtime, error) {
	detector, err := vision.NewDetector(vision.DetectorConfig{
		CascadePath:  cfg.Vision.CascadePath,
		ScaleFactor:  cfg.Vision.ScaleFactor,
		MinNeighbors: cfg.Vision.MinNeighbors,
		MinSize:      cfg.Vision.MinSize,
		ShiftFactor:  cfg.Vision.ShiftFactor,
		IoUThreshold: cfg.Vision.IoUThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}

	loader := emotion.NewTFServingLoader(&emotion.TFServingConfig{
		BaseURL:          cfg.Model.BaseURL,
		ModelName:        cfg.Model.Name,
		APIKey:           cfg.Model.APIKey,
		Timeout:          cfg.Model.Timeout,
		FailureThreshold: cfg.Model.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Model.Breaker.OpenTimeout,
	})

	var source catalog.Source = catalog.NewFileSource(cfg.Catalog.Path)
	if cfg.Catalog.ObjectKey != "" {
		if objects == nil {
			return nil, fmt.Errorf("catalog.object_key is set but object storage is disabled")
		}
		source = catalog.NewObjectSource(objects, cfg.Catalog.ObjectKey)
	}

	results, err := NewResultStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	rt, err := NewRuntime(Deps{
		Detector:      detector,
		ModelLoader:   loader,
		CatalogSource: source,
		Results:       results,
	}, Settings{
		Padding:             cfg.Vision.Padding,
		InputSize:           cfg.Model.InputSize,
		ConfidenceThreshold: cfg.Model.ConfidenceThreshold,
		Recommend: recommend.Options{
			Size:        cfg.Recommend.Size,
			MinUnplayed: cfg.Recommend.MinUnplayed,
			LinkBase:    cfg.Recommend.LinkBase,
		},
		ArtifactTTL: cfg.Cache.ArtifactTTL,
		ResultTTL:   cfg.Cache.ResultTTL,
		MoodBucket:  cfg.Cache.MoodBucket,
	})
	if err != nil {
		results.Close()
		return nil, err
	}
	return rt, nil
}

// NewResultStore opens the configured result cache backend.
func NewResultStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryStore(cfg.Shards, 0), nil
	case "badger":
		store, err := cache.OpenBadgerStore(cfg.BadgerPath, resultKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open result cache: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
