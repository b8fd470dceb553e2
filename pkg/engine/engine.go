// Package engine is the typed inbound surface. It translates music
// lookups into resource requests for the router and decodes the
// resolved payloads, collapsing the internal failure taxonomy into the
// two categories a caller can act on.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/media"
	"github.com/tunedeck/tunedeck/pkg/quota"
	"github.com/tunedeck/tunedeck/pkg/router"
	"github.com/tunedeck/tunedeck/pkg/strategy"
)

var (
	// ErrNotFound indicates the resource does not exist or the request
	// can never succeed as given. Retrying is pointless.
	ErrNotFound = errors.New("resource not found")

	// ErrUnavailable indicates every resolution path is currently
	// exhausted, throttled or blocked. The same request may succeed
	// later.
	ErrUnavailable = errors.New("resource temporarily unavailable")
)

// Stats merges the router counters with the quota windows.
type Stats struct {
	Router router.Stats                     `json:"router"`
	Quota  map[cache.Namespace]quota.Window `json:"quota"`
}

// Engine resolves typed music resources through the router.
type Engine struct {
	router *router.Router
	ledger *quota.Ledger
	logger zerolog.Logger
}

// New creates an engine over a router and its quota ledger.
func New(r *router.Router, ledger *quota.Ledger, logger zerolog.Logger) *Engine {
	if r == nil {
		panic("router cannot be nil")
	}
	if ledger == nil {
		panic("quota ledger cannot be nil")
	}
	return &Engine{
		router: r,
		ledger: ledger,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// GetSearch resolves a page of search results for a query. cursor is
// the continuation token from a previous page, empty for the first.
func (e *Engine) GetSearch(ctx context.Context, query, cursor string) (*media.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrNotFound)
	}

	req := strategy.Request{
		Key:    cache.Key{Namespace: cache.NamespaceSearch, ID: query, Cursor: cursor},
		Query:  query,
		Cursor: cursor,
	}

	var result media.SearchResult
	if err := e.resolve(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetVideoDetails resolves the full metadata for one video.
func (e *Engine) GetVideoDetails(ctx context.Context, videoID string) (*media.VideoDetails, error) {
	if !media.ValidVideoID(videoID) {
		return nil, fmt.Errorf("%w: malformed video id %q", ErrNotFound, videoID)
	}

	req := strategy.Request{
		Key:     cache.Key{Namespace: cache.NamespaceVideoDetails, ID: videoID},
		VideoID: videoID,
	}

	var details media.VideoDetails
	if err := e.resolve(ctx, req, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetComments resolves a page of comments for one video.
func (e *Engine) GetComments(ctx context.Context, videoID, cursor string) (*media.CommentPage, error) {
	if !media.ValidVideoID(videoID) {
		return nil, fmt.Errorf("%w: malformed video id %q", ErrNotFound, videoID)
	}

	req := strategy.Request{
		Key:     cache.Key{Namespace: cache.NamespaceComments, ID: videoID, Cursor: cursor},
		VideoID: videoID,
		Cursor:  cursor,
	}

	var page media.CommentPage
	if err := e.resolve(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetStreamURL resolves a playable stream URL for one video.
func (e *Engine) GetStreamURL(ctx context.Context, videoID string) (*media.StreamInfo, error) {
	if !media.ValidVideoID(videoID) {
		return nil, fmt.Errorf("%w: malformed video id %q", ErrNotFound, videoID)
	}

	req := strategy.Request{
		Key:     cache.Key{Namespace: cache.NamespaceStreamURL, ID: videoID},
		VideoID: videoID,
	}

	var info media.StreamInfo
	if err := e.resolve(ctx, req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Stats snapshots the router counters and quota windows.
func (e *Engine) Stats() Stats {
	return Stats{
		Router: e.router.Stats(),
		Quota:  e.ledger.Snapshot(),
	}
}

// resolve runs one router resolution and decodes the payload into out.
func (e *Engine) resolve(ctx context.Context, req strategy.Request, out any) error {
	payload, err := e.router.Resolve(ctx, req)
	if err != nil {
		return e.mapError(req, err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		// A payload that resolved but does not decode points at a cache
		// entry written by an older format version.
		e.logger.Error().
			Err(err).
			Str("key", req.Key.String()).
			Msg("Resolved payload failed to decode")
		return fmt.Errorf("%w: payload decode failed", ErrUnavailable)
	}
	return nil
}

// mapError collapses the resolution failure taxonomy: permanent means
// the resource is gone or the request is broken, everything else means
// try again later.
func (e *Engine) mapError(req strategy.Request, err error) error {
	class := strategy.ClassOf(err)

	var exh *router.ExhaustedError
	if errors.As(err, &exh) {
		class = exh.Class
	}

	e.logger.Debug().
		Str("key", req.Key.String()).
		Str("class", string(class)).
		Err(err).
		Msg("Resolution failed")

	if class == strategy.ClassPermanent {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
