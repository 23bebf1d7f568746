package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Artifact names used by the pipeline.
const (
	ArtifactModel   = "face_emotion_model"
	ArtifactCatalog = "music_catalog"
)

// DefaultArtifactTTL is how long a loaded artifact is reused before reloading.
const DefaultArtifactTTL = time.Hour

type artifact struct {
	value    interface{}
	loadedAt time.Time
}

// ArtifactCache holds process-wide artifacts keyed by fixed names.
// Concurrent first access to a name triggers exactly one load; failed
// loads are not stored, so the next caller retries.
type ArtifactCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]artifact
	group   singleflight.Group
}

// NewArtifactCache creates an artifact cache. A non-positive ttl uses one hour.
func NewArtifactCache(ttl time.Duration) *ArtifactCache {
	if ttl <= 0 {
		ttl = DefaultArtifactTTL
	}
	return &ArtifactCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]artifact),
	}
}

// SetClock replaces time.Now, mainly for tests.
func (c *ArtifactCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *ArtifactCache) lookup(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.entries[name]
	if !ok || !c.now().Before(a.loadedAt.Add(c.ttl)) {
		return nil, false
	}
	return a.value, true
}

func (c *ArtifactCache) store(name string, value interface{}) {
	c.mu.Lock()
	c.entries[name] = artifact{value: value, loadedAt: c.now()}
	c.mu.Unlock()
}

// LoadedAt reports when name was last loaded, if it is cached and fresh.
func (c *ArtifactCache) LoadedAt(name string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.entries[name]
	if !ok || !c.now().Before(a.loadedAt.Add(c.ttl)) {
		return time.Time{}, false
	}
	return a.loadedAt, true
}

// Clear drops every artifact.
func (c *ArtifactCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]artifact)
	c.mu.Unlock()
}

// Fetch returns the artifact cached under name, loading it with load on a
// miss or after TTL expiry.
// Parameters:
//   - ctx: context passed to load by the goroutine that performs it.
//   - c: artifact cache.
//   - name: fixed artifact name.
//   - load: loader; its error is returned to every waiting caller.
//
// Returns:
//   - T: the cached or freshly loaded artifact.
//   - error: load error, or a type mismatch for name.
func Fetch[T any](ctx context.Context, c *ArtifactCache, name string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	v, ok := c.lookup(name)
	if !ok {
		var err error
		v, err, _ = c.group.Do(name, func() (interface{}, error) {
			// A flight that finished just before this one may have stored it.
			if cached, ok := c.lookup(name); ok {
				return cached, nil
			}

			start := time.Now()
			loaded, err := load(ctx)
			metrics.ArtifactLoadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.ArtifactLoads.WithLabelValues(name, "error").Inc()
				logger.FromContext(ctx).WithField(logger.FieldArtifact, name).WithError(err).Error("Artifact load failed")
				return nil, err
			}
			metrics.ArtifactLoads.WithLabelValues(name, "success").Inc()
			logger.Since(start).WithField(logger.FieldArtifact, name).Info(ctx, "Artifact loaded")

			c.store(name, loaded)
			return loaded, nil
		})
		if err != nil {
			return zero, err
		}
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("artifact %q holds %T", name, v)
	}
	return typed, nil
}
