package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tunedeck/tunedeck/pkg/cache"
	"github.com/tunedeck/tunedeck/pkg/media"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

// DirectAPIName is the strategy name used in logs, metrics and circuit
// state.
const DirectAPIName = "api"

// defaultPageSize bounds search and comment pages when the caller
// passes no limit.
const defaultPageSize = 20

// DirectAPI resolves resources through the official Data API. It is
// the cheapest strategy to reason about but every call is metered
// against the daily quota. Stream URLs are not served by the official
// API, so the strategy does not support that namespace.
type DirectAPI struct {
	svc    *youtube.Service
	logger zerolog.Logger
}

// NewDirectAPI creates the official-API strategy.
func NewDirectAPI(svc *youtube.Service, logger zerolog.Logger) *DirectAPI {
	if svc == nil {
		panic("youtube service cannot be nil")
	}
	return &DirectAPI{
		svc:    svc,
		logger: logger.With().Str("component", "strategy-api").Logger(),
	}
}

// Name implements Strategy.
func (d *DirectAPI) Name() string { return DirectAPIName }

// Supports implements Strategy.
func (d *DirectAPI) Supports(ns cache.Namespace) bool {
	switch ns {
	case cache.NamespaceSearch, cache.NamespaceVideoDetails, cache.NamespaceComments:
		return true
	}
	return false
}

// Resolve implements Strategy.
func (d *DirectAPI) Resolve(ctx context.Context, req Request) ([]byte, error) {
	switch req.Key.Namespace {
	case cache.NamespaceSearch:
		return d.search(ctx, req)
	case cache.NamespaceVideoDetails:
		return d.videoDetails(ctx, req)
	case cache.NamespaceComments:
		return d.comments(ctx, req)
	default:
		return nil, &Error{
			Class:   ClassPermanent,
			Message: fmt.Sprintf("namespace %s not served by the official API", req.Key.Namespace),
		}
	}
}

func (d *DirectAPI) search(ctx context.Context, req Request) ([]byte, error) {
	limit := int64(req.Limit)
	if limit <= 0 {
		limit = defaultPageSize
	}

	call := d.svc.Search.List([]string{"snippet"}).
		Q(req.Query).
		Type("video").
		VideoCategoryId("10"). // Music
		MaxResults(limit).
		Context(ctx)
	if req.Cursor != "" {
		call = call.PageToken(req.Cursor)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, d.classify(err, "search.list")
	}

	result := media.SearchResult{
		Results:      make([]media.SongItem, 0, len(resp.Items)),
		Continuation: resp.NextPageToken,
	}
	for _, item := range resp.Items {
		if item.Id == nil || item.Snippet == nil {
			continue
		}
		result.Results = append(result.Results, media.SongItem{
			VideoID:   item.Id.VideoId,
			Title:     item.Snippet.Title,
			Artist:    item.Snippet.ChannelTitle,
			Thumbnail: bestThumbnail(item.Snippet.Thumbnails),
		})
	}

	return marshalPayload(result)
}

func (d *DirectAPI) videoDetails(ctx context.Context, req Request) ([]byte, error) {
	if !media.ValidVideoID(req.VideoID) {
		return nil, errInvalidVideoID(req.VideoID)
	}

	resp, err := d.svc.Videos.
		List([]string{"snippet", "statistics", "contentDetails"}).
		Id(req.VideoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, d.classify(err, "videos.list")
	}

	if len(resp.Items) == 0 {
		return nil, &Error{
			Class:   ClassPermanent,
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("video %s not found", req.VideoID),
		}
	}

	video := resp.Items[0]
	details := media.VideoDetails{VideoID: req.VideoID}
	if sn := video.Snippet; sn != nil {
		details.Title = sn.Title
		details.Description = sn.Description
		details.ChannelTitle = sn.ChannelTitle
		details.PublishedAt = sn.PublishedAt
		details.Thumbnail = bestThumbnail(sn.Thumbnails)
		details.Tags = sn.Tags
	}
	if st := video.Statistics; st != nil {
		details.ViewCount = st.ViewCount
		details.LikeCount = st.LikeCount
		details.CommentCount = st.CommentCount
	}
	if cd := video.ContentDetails; cd != nil {
		details.Duration = parseISODuration(cd.Duration)
	}

	return marshalPayload(details)
}

func (d *DirectAPI) comments(ctx context.Context, req Request) ([]byte, error) {
	if !media.ValidVideoID(req.VideoID) {
		return nil, errInvalidVideoID(req.VideoID)
	}

	limit := int64(req.Limit)
	if limit <= 0 {
		limit = defaultPageSize
	}

	call := d.svc.CommentThreads.
		List([]string{"snippet", "replies"}).
		VideoId(req.VideoID).
		MaxResults(limit).
		Order("relevance").
		TextFormat("plainText").
		Context(ctx)
	if req.Cursor != "" {
		call = call.PageToken(req.Cursor)
	}

	resp, err := call.Do()
	if err != nil {
		// Comments turned off by the uploader is a successful empty
		// page, not a failure.
		if isCommentsDisabled(err) {
			d.logger.Debug().Str("video_id", req.VideoID).Msg("Comments disabled")
			return marshalPayload(media.CommentPage{
				Comments: []media.Comment{},
				Disabled: true,
			})
		}
		return nil, d.classify(err, "commentThreads.list")
	}

	page := media.CommentPage{
		Comments:      make([]media.Comment, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}

	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		top := item.Snippet.TopLevelComment.Snippet
		comment := media.Comment{
			CommentID:          item.Id,
			Author:             top.AuthorDisplayName,
			AuthorProfileImage: top.AuthorProfileImageUrl,
			Text:               top.TextDisplay,
			LikeCount:          top.LikeCount,
			PublishedAt:        top.PublishedAt,
			ReplyCount:         item.Snippet.TotalReplyCount,
		}
		if item.Replies != nil {
			for _, reply := range item.Replies.Comments {
				if reply.Snippet == nil {
					continue
				}
				comment.Replies = append(comment.Replies, media.Comment{
					CommentID:          reply.Id,
					Author:             reply.Snippet.AuthorDisplayName,
					AuthorProfileImage: reply.Snippet.AuthorProfileImageUrl,
					Text:               reply.Snippet.TextDisplay,
					LikeCount:          reply.Snippet.LikeCount,
					PublishedAt:        reply.Snippet.PublishedAt,
				})
			}
		}
		page.Comments = append(page.Comments, comment)
	}

	return marshalPayload(page)
}

// classify maps an API call failure onto the strategy error taxonomy.
// Quota and rate responses both come back as 403/429 from this API.
func (d *DirectAPI) classify(err error, op string) *Error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		class := classifyStatus(gErr.Code, apiErrorReasons(gErr))
		d.logger.Warn().
			Str("op", op).
			Int("status", gErr.Code).
			Str("class", string(class)).
			Msg("API request failed")
		return &Error{Class: class, Status: gErr.Code, Message: op, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Class: ClassTransient, Message: op + " deadline exceeded", Err: err}
	}

	return &Error{Class: ClassTransient, Message: op + " network error", Err: err}
}

// classifyStatus maps an HTTP status (plus API error reasons) onto a
// class: 403/429 rate or quota responses are rate_limited, other 4xx
// are permanent, 5xx transient.
func classifyStatus(status int, reasons []string) Class {
	switch {
	case status == http.StatusForbidden, status == http.StatusTooManyRequests:
		for _, r := range reasons {
			switch r {
			case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
				return ClassRateLimited
			}
		}
		// A bare 403 still reads as throttling for this API.
		return ClassRateLimited
	case status >= 500:
		return ClassTransient
	case status >= 400:
		return ClassPermanent
	default:
		return ClassTransient
	}
}

func apiErrorReasons(err *googleapi.Error) []string {
	reasons := make([]string, 0, len(err.Errors))
	for _, item := range err.Errors {
		reasons = append(reasons, item.Reason)
	}
	return reasons
}

func isCommentsDisabled(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	for _, item := range gErr.Errors {
		if item.Reason == "commentsDisabled" {
			return true
		}
	}
	return false
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*youtube.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

// marshalPayload encodes a resolved payload. A marshal failure is
// local and permanent.
func marshalPayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Class: ClassPermanent, Message: "encode payload", Err: err}
	}
	return data, nil
}

// isoDurationPattern matches API durations like PT4M13S or PT1H2M3S.
var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO 8601 duration to whole seconds.
// Returns 0 for anything it cannot parse.
func parseISODuration(s string) int {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	minutes, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	seconds, _ := strconv.Atoi(zeroIfEmpty(m[3]))
	return hours*3600 + minutes*60 + seconds
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
