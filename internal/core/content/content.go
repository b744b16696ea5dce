// Package content holds the platform agnostic shape of collected profiles, posts and comments.
// Every adapter maps its payloads into these types; counts are populated per platform
package content

import (
	"time"

	"audiencepulse/internal/core/links"
)

// Profile is the account side of a collection
type Profile struct {
	Platform    links.Platform `json:"platform"`
	TargetID    string         `json:"target_id"`
	DisplayName string         `json:"display_name"`
	Audience    int64          `json:"audience"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// ItemType is post for Instagram/Facebook and video for YouTube
type ItemType string

// Item types
const (
	Post  ItemType = "post"
	Video ItemType = "video"
)

// Comment is one top level comment
type Comment struct {
	Text   string `json:"text"`
	Lang   string `json:"lang,omitempty"`
	Author string `json:"author,omitempty"`
}

// Counts carries interaction totals. Instagram fills likes and comments, Facebook fills
// comments, shares and reactions (likes are one kind of reaction); YouTube fills views,
// likes and comments
type Counts struct {
	Likes     int64 `json:"likes,omitempty"`
	Comments  int64 `json:"comments,omitempty"`
	Shares    int64 `json:"shares,omitempty"`
	Reactions int64 `json:"reactions,omitempty"`
	Views     int64 `json:"views,omitempty"`
}

// Item is one post or video with its sampled comments
type Item struct {
	Platform          links.Platform `json:"platform"`
	ID                string         `json:"id"`
	Type              ItemType       `json:"type"`
	Text              string         `json:"text"`
	Comments          []Comment      `json:"comments"`
	Counts            Counts         `json:"counts"`
	PublishedAt       time.Time      `json:"published_at"`
	CommentsTruncated bool           `json:"comments_truncated"`
}

// CapComments keeps at most limit comments and sets CommentsTruncated iff available exceeds limit.
// available is the platform's reported comment count; it is never less than what was fetched
func (it *Item) CapComments(limit int, available int64) {
	if n := int64(len(it.Comments)); available < n {
		available = n
	}
	if limit >= 0 && len(it.Comments) > limit {
		it.Comments = it.Comments[:limit]
	}
	it.CommentsTruncated = available > int64(limit)
}
