// Package media defines the resolved payload types the engine serves:
// search results, video details, comment pages, and stream info. All
// types are plain serializable data; resolution strategies produce
// them and the cache stores their JSON encoding.
package media

import (
	"regexp"
	"strings"
)

// videoIDPattern matches the upstream's 11-character video identifiers.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidVideoID reports whether id is a well-formed video identifier.
// Malformed IDs are rejected locally before any upstream call.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// SongItem is one search result row.
type SongItem struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`
	Duration  int    `json:"duration,omitempty"` // seconds
	Thumbnail string `json:"thumbnail,omitempty"`
}

// SearchResult is a page of search results with an optional
// continuation token for the next page.
type SearchResult struct {
	Results      []SongItem `json:"results"`
	Continuation string     `json:"continuation,omitempty"`
}

// VideoDetails is the full metadata for one video.
type VideoDetails struct {
	VideoID      string   `json:"video_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	ChannelTitle string   `json:"channel_title,omitempty"`
	PublishedAt  string   `json:"published_at,omitempty"`
	Thumbnail    string   `json:"thumbnail,omitempty"`
	ViewCount    uint64   `json:"view_count"`
	LikeCount    uint64   `json:"like_count"`
	CommentCount uint64   `json:"comment_count"`
	Duration     int      `json:"duration,omitempty"` // seconds
	Tags         []string `json:"tags,omitempty"`
}

// Comment is one comment, optionally with its replies.
type Comment struct {
	CommentID          string    `json:"comment_id"`
	Author             string    `json:"author"`
	AuthorProfileImage string    `json:"author_profile_image,omitempty"`
	Text               string    `json:"text"`
	LikeCount          int64     `json:"like_count"`
	PublishedAt        string    `json:"published_at,omitempty"`
	ReplyCount         int64     `json:"reply_count,omitempty"`
	Replies            []Comment `json:"replies,omitempty"`
}

// CommentPage is a page of top-level comments.
type CommentPage struct {
	Comments      []Comment `json:"comments"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	TotalResults  int64     `json:"total_results"`

	// Disabled is set when the uploader turned comments off; the page
	// is then empty but still a successful resolution.
	Disabled bool `json:"disabled,omitempty"`
}

// StreamInfo is a resolved playable stream URL with its delivery
// characteristics.
type StreamInfo struct {
	VideoID   string `json:"video_id"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Duration  int    `json:"duration,omitempty"` // seconds
	Thumbnail string `json:"thumbnail,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
	IsHLS     bool   `json:"is_hls"`
}

// Normalize fixes up HLS detection: a manifest URL or m3u8 protocol
// marks the stream as HLS with the matching MIME type, whatever the
// extractor reported.
func (s *StreamInfo) Normalize() {
	proto := strings.ToLower(s.Protocol)
	isHLS := strings.Contains(s.URL, ".m3u8") || proto == "m3u8" || proto == "m3u8_native"
	if !isHLS {
		return
	}

	s.IsHLS = true
	s.MimeType = "application/vnd.apple.mpegurl"
	if proto == "" {
		s.Protocol = "m3u8"
	}
}
