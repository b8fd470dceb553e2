package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local store. It serves as the fallback when
// Redis is unreachable and as the backend for unit tests. Reads and
// writes to disjoint keys never contend beyond the map lock.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	done      chan struct{}
	closeOnce sync.Once

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an in-memory store and starts a background
// sweep that drops expired entries. The sweep is an optimization only;
// Get never returns an expired entry regardless. Call Close to stop
// the sweep when the store is no longer needed.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go s.sweepLoop()
	return s
}

// newMemoryStoreAt creates a store without the sweep goroutine, using
// the supplied clock. Test constructor.
func newMemoryStoreAt(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		done:    make(chan struct{}),
		now:     now,
	}
}

// Close stops the background sweep. The store stays usable; only the
// periodic cleanup of expired entries ends. Safe to call repeatedly.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Get retrieves a non-expired entry.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key.String()]
	s.mu.RUnlock()

	if !ok || entry.isExpiredAt(s.now()) {
		cacheMisses.WithLabelValues(string(key.Namespace)).Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues(string(key.Namespace)).Inc()
	return entry, nil
}

// Set stores a payload. Last write wins.
func (s *MemoryStore) Set(_ context.Context, key Key, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := s.now()
	entry := &Entry{
		Data:     data,
		CachedAt: now,
		Expires:  now.Add(ttl),
		Version:  versionCounter.Add(1),
	}

	s.mu.Lock()
	s.entries[key.String()] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key.String())
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for k, e := range s.entries {
				if e.isExpiredAt(now) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}
