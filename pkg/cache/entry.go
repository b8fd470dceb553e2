package cache

import (
	"sync/atomic"
	"time"
)

// versionCounter issues process-local entry versions, diagnostics only.
var versionCounter atomic.Uint64

// Entry represents a cached resolved payload. Entries are immutable
// once written; a refresh creates a replacement entry with a new
// version, never a mutation in place.
type Entry struct {
	// Data is the opaque resolved payload (namespace-specific JSON).
	Data []byte `json:"data"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// Version is a monotonically increasing counter used only for
	// diagnostics. It carries no ordering guarantee across processes.
	Version uint64 `json:"version"`
}

// NewEntry builds an entry for a payload with the given TTL.
func NewEntry(data []byte, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Data:     data,
		CachedAt: now,
		Expires:  now.Add(ttl),
		Version:  versionCounter.Add(1),
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return e.isExpiredAt(time.Now())
}

func (e *Entry) isExpiredAt(now time.Time) bool {
	return now.After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
