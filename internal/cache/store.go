// Package cache provides the two caching layers of the recommendation
// pipeline: an artifact cache for lazily loaded process-wide objects (the
// emotion model and the song catalog) and a byte-oriented result Store for
// per-request payloads.
//
// Both layers are advisory. A miss or a backend failure changes latency,
// never the result.
package cache

import (
	"context"
	"time"
)

// Store is a key-value backend with per-entry TTL.
// Implementations must be safe for concurrent use. Writes to the same key
// are last-writer-wins.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl. A non-positive ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Entry is one cached value with its insertion time and lifetime.
type Entry struct {
	Key        string
	Value      []byte
	InsertedAt time.Time
	TTL        time.Duration
}

// Expired reports whether the entry is past its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.InsertedAt.Add(e.TTL))
}
