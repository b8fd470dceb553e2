package cache

import (
	"fmt"
	"strings"
)

// Namespace identifies the kind of resource a cache entry holds.
// Each namespace carries its own TTL and quota cost.
type Namespace string

const (
	// NamespaceSearch holds search result pages keyed by query.
	NamespaceSearch Namespace = "search"

	// NamespaceVideoDetails holds per-video metadata.
	NamespaceVideoDetails Namespace = "video_details"

	// NamespaceComments holds comment pages.
	NamespaceComments Namespace = "comments"

	// NamespaceStreamURL holds resolved playable stream URLs.
	NamespaceStreamURL Namespace = "stream_url"
)

// Namespaces lists all valid namespaces.
var Namespaces = []Namespace{
	NamespaceSearch,
	NamespaceVideoDetails,
	NamespaceComments,
	NamespaceStreamURL,
}

// Valid reports whether the namespace is one of the known namespaces.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceSearch, NamespaceVideoDetails, NamespaceComments, NamespaceStreamURL:
		return true
	}
	return false
}

// Key uniquely identifies a cached resource. It is used verbatim as the
// Redis key and as the singleflight de-duplication key, so String()
// must be deterministic.
type Key struct {
	// Namespace is the resource kind.
	Namespace Namespace

	// ID is the canonicalized identifier: a search query or a video ID.
	ID string

	// Cursor is the optional pagination cursor (continuation token or
	// page token). Empty for the first page.
	Cursor string
}

// String generates a deterministic cache key string.
// Format: tunedeck:namespace:id[:cursor=token]
//
// Example:
//
//	tunedeck:search:daft punk
//	tunedeck:comments:dQw4w9WgXcQ:cursor=QURTSl9p
func (k Key) String() string {
	parts := []string{"tunedeck", string(k.Namespace), canonicalizeID(k.Namespace, k.ID)}

	if k.Cursor != "" {
		parts = append(parts, fmt.Sprintf("cursor=%s", k.Cursor))
	}

	return strings.Join(parts, ":")
}

// canonicalizeID normalizes an identifier for stable keying. Search
// queries differing only in case or interior whitespace collapse to
// the same key. Every other namespace holds a video ID, which is
// case-sensitive upstream and passes through with only surrounding
// whitespace trimmed.
func canonicalizeID(ns Namespace, id string) string {
	trimmed := strings.TrimSpace(id)
	if ns == NamespaceSearch {
		return strings.ToLower(strings.Join(strings.Fields(trimmed), " "))
	}
	return trimmed
}
