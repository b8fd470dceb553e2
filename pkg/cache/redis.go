package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore persists cache entries in Redis. Redis handles eviction
// via per-key TTL; Get additionally checks the entry's own expiry so a
// clock-skewed or TTL-less key is never returned stale.
type RedisStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		logger: logger.With().Str("component", "cache-redis").Logger(),
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.WithLabelValues(string(key.Namespace)).Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		// Remove the stale key so the next lookup is a clean miss.
		_ = s.Delete(ctx, key)
		cacheMisses.WithLabelValues(string(key.Namespace)).Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues(string(key.Namespace)).Inc()
	return &entry, nil
}

// Set stores a payload with the given TTL. Already-expired TTLs are
// not written.
func (s *RedisStore) Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	entry := NewEntry(data, ttl)

	raw, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	s.logger.Debug().
		Str("key", key.String()).
		Dur("ttl", ttl).
		Uint64("version", entry.Version).
		Msg("Cached entry")

	return nil
}

// Delete removes a cache entry.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
