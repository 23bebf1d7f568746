package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultShards        = 32
	defaultSweepInterval = 5 * time.Minute
)

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// MemoryStore is an in-process Store. Keys are spread over independently
// locked shards so that traffic on different keys rarely contends.
type MemoryStore struct {
	shards []*shard
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-memory store with the given shard count
// (non-positive uses 32) and a background sweep that drops expired entries.
// Parameters:
//   - shards: number of independently locked partitions.
//   - sweepInterval: cleanup period; non-positive uses 5 minutes.
//   - opts: optional settings.
//
// Returns:
//   - *MemoryStore: store with its sweeper running until Close.
func NewMemoryStore(shards int, sweepInterval time.Duration, opts ...MemoryOption) *MemoryStore {
	if shards <= 0 {
		shards = defaultShards
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	s := &MemoryStore{
		shards: make([]*shard, shards),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop(sweepInterval)

	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Get implements Store. Expired entries are removed on read.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	entry, exists := sh.entries[key]
	sh.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if entry.Expired(s.now()) {
		sh.mu.Lock()
		// Only drop it if nobody replaced it in between.
		if current, ok := sh.entries[key]; ok && current.InsertedAt.Equal(entry.InsertedAt) {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Set implements Store. The value is copied.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = Entry{
		Key:        key,
		Value:      buf,
		InsertedAt: s.now(),
		TTL:        ttl,
	}
	sh.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included until swept.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if entry.Expired(now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Close stops the background sweeper. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}
