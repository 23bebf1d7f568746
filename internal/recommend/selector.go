package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/timmy/moodtune/internal/catalog"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/metrics"
)

const (
	// DefaultSize is the maximum number of songs per recommendation.
	DefaultSize = 5
	// DefaultMinUnplayed is the smallest unplayed pool drawn from before the
	// history of an emotion is reset.
	DefaultMinUnplayed = 5
)

// Catalog provides the loaded song catalog.
type Catalog interface {
	Load(ctx context.Context) (*catalog.Index, error)
}

// Options tunes a Selector.
type Options struct {
	Size int
	// MinUnplayed below which history resets; negative uses the default.
	// An empty unplayed pool always resets.
	MinUnplayed int
	LinkBase    string
	// IntN returns a uniform integer in [0, n). It must be safe for
	// concurrent use. Nil uses math/rand/v2.
	IntN func(n int) int
}

// Selector picks recommendations for an emotion while avoiding repeats.
type Selector struct {
	catalog     Catalog
	history     *History
	size        int
	minUnplayed int
	linkBase    string
	intN        func(n int) int
}

// NewSelector creates a Selector.
// Parameters:
//   - cat: catalog provider, usually *catalog.Store.
//   - history: playback history shared across requests.
//   - opts: tuning; zero Size, LinkBase and IntN use the defaults.
//
// Returns:
//   - *Selector: selector safe for concurrent use.
func NewSelector(cat Catalog, history *History, opts Options) *Selector {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.MinUnplayed < 0 {
		opts.MinUnplayed = DefaultMinUnplayed
	}
	if opts.LinkBase == "" {
		opts.LinkBase = domain.DefaultLinkBase
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	return &Selector{
		catalog:     cat,
		history:     history,
		size:        opts.Size,
		minUnplayed: opts.MinUnplayed,
		linkBase:    opts.LinkBase,
		intN:        opts.IntN,
	}
}

// History returns the selector's playback history.
func (s *Selector) History() *History {
	return s.history
}

// Recommend returns up to Size songs for emotion.
// The pool is the catalog filtered by MoodsFor(emotion), or the whole catalog
// when nothing matches. Rows already played for emotion are skipped; once
// fewer than MinUnplayed remain the emotion's history is reset. The draw and
// the history update happen atomically per emotion.
func (s *Selector) Recommend(ctx context.Context, emotion domain.Emotion) ([]domain.Recommendation, error) {
	idx, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Len() == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", domain.ErrDataUnavailable)
	}

	moods := MoodsFor(emotion)
	pool := idx.ByMood(moods...)
	if len(pool) == 0 {
		metrics.CatalogFallbacks.WithLabelValues(emotion.String()).Inc()
		logger.With(logger.Fields{logger.FieldEmotion: emotion.String(), "moods": moods}).
			Info(ctx, "No songs match moods, falling back to the full catalog")
		pool = idx.Entries()
	}

	eh := s.history.acquire(emotion)
	defer eh.mu.Unlock()

	if eh.version != idx.Version {
		if len(eh.played) > 0 {
			metrics.HistoryResets.WithLabelValues(emotion.String(), "catalog_changed").Inc()
			logger.With(logger.Fields{logger.FieldEmotion: emotion.String()}).
				Info(ctx, "Catalog changed, resetting playback history")
		}
		eh.reset()
		eh.version = idx.Version
	}

	unplayed := make([]domain.CatalogEntry, 0, len(pool))
	for _, entry := range pool {
		if !eh.has(entry.Row) {
			unplayed = append(unplayed, entry)
		}
	}

	if len(unplayed) < s.minUnplayed || len(unplayed) == 0 {
		metrics.HistoryResets.WithLabelValues(emotion.String(), "exhausted").Inc()
		logger.With(logger.Fields{
			logger.FieldEmotion: emotion.String(),
			"unplayed":          len(unplayed),
		}).Info(ctx, "Resetting playback history for %s", emotion)
		eh.reset()
		unplayed = append(unplayed[:0], pool...)
	}

	picked := s.sample(unplayed, s.size)

	recs := make([]domain.Recommendation, 0, len(picked))
	for _, entry := range picked {
		eh.record(entry.Row)
		recs = append(recs, domain.NewRecommendation(entry, emotion, s.linkBase))
	}

	logger.With(logger.Fields{
		logger.FieldEmotion: emotion.String(),
		logger.FieldCount:   len(recs),
		"pool":              len(pool),
	}).Debug(ctx, "Selected recommendations")

	return recs, nil
}

// sample draws min(k, len(entries)) entries uniformly without replacement
// using a partial Fisher-Yates shuffle. entries is reordered in place.
func (s *Selector) sample(entries []domain.CatalogEntry, k int) []domain.CatalogEntry {
	if k > len(entries) {
		k = len(entries)
	}
	for i := 0; i < k; i++ {
		j := i + s.intN(len(entries)-i)
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries[:k]
}
