package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/media"
)

// BrowserName is the strategy name used in logs, metrics and circuit
// state.
const BrowserName = "browser"

// DefaultBrowserTimeout bounds one full browser resolution: allocator
// start, navigation and extraction together. A hung browser session
// must never block a caller past this.
const DefaultBrowserTimeout = 45 * time.Second

// BrowserConfig configures the browser-automation strategy.
type BrowserConfig struct {
	// Timeout is the hard wall-clock bound per resolution.
	Timeout time.Duration

	// Headless runs Chrome without a display. Disable only for local
	// debugging.
	Headless bool

	// UserAgent overrides the browser's user agent when non-empty.
	UserAgent string
}

// DefaultBrowserConfig returns a safe default configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Timeout:  DefaultBrowserTimeout,
		Headless: true,
	}
}

// sessionRunner abstracts one browser session so tests can script
// outcomes without Chrome. The production runner drives chromedp.
type sessionRunner interface {
	// extract navigates and pulls the payload for the request. It must
	// release every session resource before returning, on every path.
	extract(ctx context.Context, req Request) ([]byte, error)
}

// Browser reproduces a human browsing session when the cheaper
// strategies are blocked or throttled. It is the heaviest strategy:
// each resolution spins a browser tab, so the router keeps it last in
// the priority order.
type Browser struct {
	config BrowserConfig
	logger zerolog.Logger
	runner sessionRunner
}

// NewBrowser creates the browser-automation strategy.
func NewBrowser(cfg BrowserConfig, logger zerolog.Logger) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBrowserTimeout
	}
	b := &Browser{
		config: cfg,
		logger: logger.With().Str("component", "strategy-browser").Logger(),
	}
	b.runner = &chromeRunner{config: cfg, logger: b.logger}
	return b
}

// Name implements Strategy.
func (b *Browser) Name() string { return BrowserName }

// Supports implements Strategy. A real browser session can reach every
// namespace.
func (b *Browser) Supports(ns cache.Namespace) bool { return ns.Valid() }

// Resolve implements Strategy. The session context carries the hard
// timeout; its cancel runs on every exit path, which tears down the
// browser even when the automation driver hangs or crashes.
func (b *Browser) Resolve(ctx context.Context, req Request) ([]byte, error) {
	if req.Key.Namespace != cache.NamespaceSearch && !media.ValidVideoID(req.VideoID) {
		return nil, errInvalidVideoID(req.VideoID)
	}

	sessionID := uuid.NewString()
	logger := b.logger.With().Str("session_id", sessionID).Logger()

	sessionCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	logger.Debug().
		Str("namespace", string(req.Key.Namespace)).
		Msg("Starting browser session")

	start := time.Now()
	payload, err := b.runner.extract(sessionCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || sessionCtx.Err() != nil {
			logger.Warn().
				Dur("elapsed", elapsed).
				Msg("Browser session timed out, torn down")
			return nil, &Error{Class: ClassTransient, Message: "browser session timed out", Err: err}
		}
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("Browser session failed")
		return nil, &Error{Class: ClassTransient, Message: "browser session failed", Err: err}
	}

	logger.Debug().Dur("elapsed", elapsed).Msg("Browser session finished")
	return payload, nil
}

// chromeRunner drives a headless Chrome via chromedp. Allocator and
// tab contexts are both deferred-cancelled, so teardown happens on the
// timeout path exactly as on success.
type chromeRunner struct {
	config BrowserConfig
	logger zerolog.Logger
}

func (r *chromeRunner) extract(ctx context.Context, req Request) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("mute-audio", true),
	)
	if r.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.config.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	switch req.Key.Namespace {
	case cache.NamespaceSearch:
		return r.extractSearch(tabCtx, req)
	case cache.NamespaceVideoDetails:
		return r.extractDetails(tabCtx, req)
	case cache.NamespaceComments:
		return r.extractComments(tabCtx, req)
	case cache.NamespaceStreamURL:
		return r.extractStream(tabCtx, req)
	default:
		return nil, &Error{Class: ClassPermanent, Message: fmt.Sprintf("unknown namespace %s", req.Key.Namespace)}
	}
}

func (r *chromeRunner) extractSearch(ctx context.Context, req Request) ([]byte, error) {
	target := "https://music.youtube.com/search?q=" + url.QueryEscape(req.Query)

	var result media.SearchResult
	err := chromedp.Run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("ytmusic-shelf-renderer", chromedp.ByQuery),
		chromedp.Evaluate(searchExtractJS, &result),
	)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		// A rendered results page with zero shelves is the browser-side
		// face of a challenge interstitial.
		return nil, &Error{Class: ClassBlocked, Message: "search page rendered empty"}
	}
	return marshalPayload(result)
}

func (r *chromeRunner) extractDetails(ctx context.Context, req Request) ([]byte, error) {
	var details media.VideoDetails
	err := chromedp.Run(ctx,
		chromedp.Navigate(watchURL(req.VideoID)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(detailsExtractJS, &details),
	)
	if err != nil {
		return nil, err
	}
	if details.VideoID == "" {
		return nil, &Error{Class: ClassBlocked, Message: "player response missing"}
	}
	return marshalPayload(details)
}

func (r *chromeRunner) extractComments(ctx context.Context, req Request) ([]byte, error) {
	var page media.CommentPage
	err := chromedp.Run(ctx,
		chromedp.Navigate(watchURL(req.VideoID)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Comments lazy-load below the fold.
		chromedp.Evaluate(`window.scrollTo(0, document.documentElement.scrollHeight)`, nil),
		chromedp.WaitReady("ytd-comment-thread-renderer", chromedp.ByQuery),
		chromedp.Evaluate(commentsExtractJS, &page),
	)
	if err != nil {
		return nil, err
	}
	return marshalPayload(page)
}

func (r *chromeRunner) extractStream(ctx context.Context, req Request) ([]byte, error) {
	var info media.StreamInfo
	err := chromedp.Run(ctx,
		chromedp.Navigate(watchURL(req.VideoID)),
		chromedp.WaitReady("video", chromedp.ByQuery),
		chromedp.Evaluate(streamExtractJS, &info),
	)
	if err != nil {
		return nil, err
	}
	if info.URL == "" {
		return nil, &Error{Class: ClassBlocked, Message: "player yielded no stream url"}
	}
	info.VideoID = req.VideoID
	info.Normalize()
	return marshalPayload(info)
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// Extraction scripts evaluate inside the page and return objects shaped
// like the media types' JSON encoding.
const (
	searchExtractJS = `(() => {
		const results = [];
		document.querySelectorAll('ytmusic-responsive-list-item-renderer').forEach(el => {
			const link = el.querySelector('a[href*="watch?v="]');
			if (!link) return;
			const id = new URL(link.href).searchParams.get('v');
			const cols = el.querySelectorAll('yt-formatted-string');
			results.push({
				video_id: id,
				title: cols[0] ? cols[0].textContent.trim() : '',
				artist: cols[1] ? cols[1].textContent.trim() : '',
				thumbnail: (el.querySelector('img') || {}).src || '',
			});
		});
		return { results: results };
	})()`

	detailsExtractJS = `(() => {
		const pr = window.ytInitialPlayerResponse || {};
		const vd = pr.videoDetails || {};
		const thumbs = ((vd.thumbnail || {}).thumbnails) || [];
		return {
			video_id: vd.videoId || '',
			title: vd.title || '',
			description: vd.shortDescription || '',
			channel_title: vd.author || '',
			thumbnail: thumbs.length ? thumbs[thumbs.length - 1].url : '',
			view_count: parseInt(vd.viewCount || '0', 10),
			like_count: 0,
			comment_count: 0,
			duration: parseInt(vd.lengthSeconds || '0', 10),
			tags: vd.keywords || [],
		};
	})()`

	commentsExtractJS = `(() => {
		const comments = [];
		document.querySelectorAll('ytd-comment-thread-renderer').forEach(el => {
			const author = el.querySelector('#author-text');
			const text = el.querySelector('#content-text');
			comments.push({
				comment_id: '',
				author: author ? author.textContent.trim() : '',
				text: text ? text.textContent.trim() : '',
				like_count: 0,
			});
		});
		return { comments: comments, total_results: comments.length };
	})()`

	streamExtractJS = `(() => {
		const pr = window.ytInitialPlayerResponse || {};
		const sd = pr.streamingData || {};
		const vd = pr.videoDetails || {};
		let streamUrl = sd.hlsManifestUrl || '';
		let protocol = streamUrl ? 'm3u8' : '';
		if (!streamUrl) {
			const video = document.querySelector('video');
			streamUrl = (video && video.currentSrc) || '';
			protocol = streamUrl ? 'https' : '';
		}
		return {
			video_id: vd.videoId || '',
			url: streamUrl,
			title: vd.title || '',
			duration: parseInt(vd.lengthSeconds || '0', 10),
			protocol: protocol,
			is_hls: false,
		};
	})()`
)
