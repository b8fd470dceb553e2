package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/media"
)

// HeadlessName is the strategy name used in logs, metrics and circuit
// state.
const HeadlessName = "headless"

// Headless resolves resources by speaking the innertube protocol the
// way a regular client would. It consumes no official quota but is the
// strategy most likely to trip anti-automation defenses; a detected
// challenge surfaces as ClassBlocked after at most one internal retry.
// Further retries are the router's job, so circuit accounting stays
// centralized.
type Headless struct {
	client *ytdl.Client
	logger zerolog.Logger
}

// NewHeadless creates the innertube-library strategy.
func NewHeadless(client *ytdl.Client, logger zerolog.Logger) *Headless {
	if client == nil {
		client = &ytdl.Client{}
	}
	return &Headless{
		client: client,
		logger: logger.With().Str("component", "strategy-headless").Logger(),
	}
}

// Name implements Strategy.
func (h *Headless) Name() string { return HeadlessName }

// Supports implements Strategy. The innertube client works per-video;
// it has no search or comments surface.
func (h *Headless) Supports(ns cache.Namespace) bool {
	switch ns {
	case cache.NamespaceVideoDetails, cache.NamespaceStreamURL:
		return true
	}
	return false
}

// Resolve implements Strategy.
func (h *Headless) Resolve(ctx context.Context, req Request) ([]byte, error) {
	if !media.ValidVideoID(req.VideoID) {
		return nil, errInvalidVideoID(req.VideoID)
	}

	payload, err := h.resolveOnce(ctx, req)
	if err == nil {
		return payload, nil
	}

	// A single internal retry for blocked-looking failures; challenges
	// are sometimes transient per-request fingerprints.
	if ClassOf(err) == ClassBlocked && ctx.Err() == nil {
		h.logger.Debug().
			Str("video_id", req.VideoID).
			Msg("Challenge detected, retrying once")
		if payload, retryErr := h.resolveOnce(ctx, req); retryErr == nil {
			return payload, nil
		}
	}

	return nil, err
}

func (h *Headless) resolveOnce(ctx context.Context, req Request) ([]byte, error) {
	video, err := h.client.GetVideoContext(ctx, req.VideoID)
	if err != nil {
		return nil, h.classify(err)
	}

	switch req.Key.Namespace {
	case cache.NamespaceVideoDetails:
		return marshalPayload(videoToDetails(video))

	case cache.NamespaceStreamURL:
		return h.streamInfo(ctx, video)

	default:
		return nil, &Error{
			Class:   ClassPermanent,
			Message: fmt.Sprintf("namespace %s not served by the innertube client", req.Key.Namespace),
		}
	}
}

func (h *Headless) streamInfo(ctx context.Context, video *ytdl.Video) ([]byte, error) {
	info := media.StreamInfo{
		VideoID:   video.ID,
		Title:     video.Title,
		Duration:  int(video.Duration.Seconds()),
		Thumbnail: firstThumbnail(video),
	}

	// An HLS manifest is preferred when present: one URL serves every
	// bitrate and survives longer than per-format URLs.
	if video.HLSManifestURL != "" {
		info.URL = video.HLSManifestURL
		info.Protocol = "m3u8"
		info.Normalize()
		return marshalPayload(info)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		// Metadata without any usable format is the shape a soft block
		// takes with this client.
		return nil, &Error{
			Class:   ClassBlocked,
			Message: fmt.Sprintf("no playable formats for %s", video.ID),
		}
	}

	url, err := h.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, h.classify(err)
	}

	info.URL = url
	info.MimeType = format.MimeType
	info.Protocol = "https"
	info.Normalize()
	return marshalPayload(info)
}

// classify maps an innertube client failure onto the taxonomy.
// Challenge walls and login gates are blocked, not permanent: the
// browser strategy may still get through.
func (h *Headless) classify(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Class: ClassTransient, Message: "innertube deadline exceeded", Err: err}
	}

	var playErr *ytdl.ErrPlayabiltyStatus
	if errors.As(err, &playErr) {
		if isChallengeReason(playErr.Reason) {
			return &Error{Class: ClassBlocked, Message: "playability challenge", Err: err}
		}
		return &Error{Class: ClassPermanent, Message: "video not playable", Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isChallengeReason(msg):
		return &Error{Class: ClassBlocked, Message: "bot challenge detected", Err: err}
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return &Error{Class: ClassRateLimited, Status: http.StatusTooManyRequests, Message: "innertube throttled", Err: err}
	case strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
		return &Error{Class: ClassPermanent, Message: "video not found", Err: err}
	default:
		return &Error{Class: ClassTransient, Message: "innertube request failed", Err: err}
	}
}

// isChallengeReason recognizes the phrasings upstream uses when it has
// flagged automated access.
func isChallengeReason(reason string) bool {
	r := strings.ToLower(reason)
	for _, marker := range []string{
		"sign in to confirm",
		"login required",
		"captcha",
		"not a bot",
		"unusual traffic",
	} {
		if strings.Contains(r, marker) {
			return true
		}
	}
	return false
}

func videoToDetails(video *ytdl.Video) media.VideoDetails {
	return media.VideoDetails{
		VideoID:      video.ID,
		Title:        video.Title,
		Description:  video.Description,
		ChannelTitle: video.Author,
		PublishedAt:  video.PublishDate.Format("2006-01-02T15:04:05Z"),
		Thumbnail:    firstThumbnail(video),
		ViewCount:    uint64(video.Views),
		Duration:     int(video.Duration.Seconds()),
	}
}

func firstThumbnail(video *ytdl.Video) string {
	if len(video.Thumbnails) == 0 {
		return ""
	}
	// Thumbnails are ordered smallest first; take the largest.
	return video.Thumbnails[len(video.Thumbnails)-1].URL
}

// bestAudioFormat picks the highest-bitrate format that carries audio,
// preferring audio-only streams over muxed ones.
func bestAudioFormat(formats ytdl.FormatList) *ytdl.Format {
	var best *ytdl.Format
	bestScore := -1

	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		score := f.Bitrate
		if strings.HasPrefix(f.MimeType, "audio/") {
			// Audio-only saves bandwidth for the same quality.
			score += 1 << 30
		}
		if score > bestScore {
			best = f
			bestScore = score
		}
	}
	return best
}
