package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	// or the entry had expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the cache contract consumed by the router. Any error other
// than ErrCacheMiss is a backend failure; callers treat it the same as
// a miss so a broken cache degrades to pass-through instead of failing
// the request.
type Store interface {
	// Get retrieves a non-expired entry by key.
	// Returns ErrCacheMiss if the key doesn't exist or is expired.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores a payload under key with the given TTL. Writes to the
	// same key are last-write-wins by completion order.
	Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error

	// Delete removes an entry.
	Delete(ctx context.Context, key Key) error
}

// Default namespace TTLs. Stream URLs expire upstream, so they get the
// shortest TTL.
const (
	DefaultSearchTTL       = 1 * time.Hour
	DefaultVideoDetailsTTL = 1 * time.Hour
	DefaultCommentsTTL     = 30 * time.Minute
	DefaultStreamURLTTL    = 15 * time.Minute
)

// TTLConfig holds the per-namespace entry lifetimes.
type TTLConfig struct {
	Search       time.Duration
	VideoDetails time.Duration
	Comments     time.Duration
	StreamURL    time.Duration
}

// DefaultTTLConfig returns the default namespace TTLs.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Search:       DefaultSearchTTL,
		VideoDetails: DefaultVideoDetailsTTL,
		Comments:     DefaultCommentsTTL,
		StreamURL:    DefaultStreamURLTTL,
	}
}

// For returns the TTL for a namespace.
func (c TTLConfig) For(ns Namespace) time.Duration {
	switch ns {
	case NamespaceSearch:
		return c.Search
	case NamespaceVideoDetails:
		return c.VideoDetails
	case NamespaceComments:
		return c.Comments
	case NamespaceStreamURL:
		return c.StreamURL
	default:
		return c.Search
	}
}
