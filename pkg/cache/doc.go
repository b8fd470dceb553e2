// Package cache provides namespace-keyed caching for resolved music
// resources with Redis and in-memory backends.
//
// Every cacheable resource belongs to one of four namespaces (search,
// video_details, comments, stream_url), each with its own TTL. Stream
// URLs get the shortest TTL because the upstream URLs themselves expire;
// search results are short-lived; details and comments live longer.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create store
//	store := cache.NewRedisStore(redisClient, logger)
//
//	// Build a key
//	key := cache.Key{
//		Namespace: cache.NamespaceSearch,
//		ID:        "daft punk",
//	}
//
//	// Get from cache
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - resolve upstream
//	}
//
//	// Store a payload
//	err = store.Set(ctx, key, payload, ttls.For(cache.NamespaceSearch))
//
// Entries are immutable once written; refreshing a key writes a
// replacement entry with a new version number. Expired entries are
// reported as ErrCacheMiss, never returned stale.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - tunedeck_cache_hits_total{namespace} - Cache hits
//   - tunedeck_cache_misses_total{namespace} - Cache misses
//   - tunedeck_cache_errors_total{operation} - Backend errors
package cache
