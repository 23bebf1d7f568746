package catalog

import (
	"context"
	"errors"

	"github.com/timmy/moodtune/internal/cache"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/logger"
)

// Store loads the catalog lazily through the artifact cache.
type Store struct {
	source    Source
	artifacts *cache.ArtifactCache
}

// NewStore creates a Store reading from source and caching under
// cache.ArtifactCatalog.
func NewStore(source Source, artifacts *cache.ArtifactCache) *Store {
	return &Store{source: source, artifacts: artifacts}
}

// Load returns the cached Index, reading the source on a miss.
// Schema errors are returned as *domain.SchemaError; every other failure as
// *domain.LoadError. Neither is cached.
func (s *Store) Load(ctx context.Context) (*Index, error) {
	return cache.Fetch(ctx, s.artifacts, cache.ArtifactCatalog, s.read)
}

func (s *Store) read(ctx context.Context) (*Index, error) {
	rc, err := s.source.Open(ctx)
	if err != nil {
		return nil, &domain.LoadError{Artifact: cache.ArtifactCatalog, Err: err}
	}
	defer rc.Close()

	idx, err := Parse(rc)
	if err != nil {
		if errors.Is(err, domain.ErrSchema) {
			return nil, err
		}
		return nil, &domain.LoadError{Artifact: cache.ArtifactCatalog, Err: err}
	}

	logger.With(logger.Fields{
		logger.FieldCount: idx.Len(),
		"source":          s.source.Name(),
		"moods":           idx.Moods(),
	}).Info(ctx, "Loaded music catalog")

	return idx, nil
}
