// Package metrics computes audience engagement from collected content
package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
)

// UndefinedLabel is the JSON form of an engagement rate that cannot be computed
const UndefinedLabel = "EngagementUndefined"

// Reasons an engagement rate is undefined
const (
	ReasonZeroAudience = "zero_audience"
	ReasonNoItems      = "no_items"
)

// Engagement is a ratio or the EngagementUndefined sentinel
type Engagement struct {
	Rate    float64
	Defined bool
}

// Rate wraps a defined engagement ratio
func Rate(r float64) Engagement { return Engagement{Rate: r, Defined: true} }

// Undefined is the EngagementUndefined sentinel
var Undefined = Engagement{}

// String renders the ratio or the sentinel label
func (e Engagement) String() string {
	if !e.Defined {
		return UndefinedLabel
	}
	return fmt.Sprintf("%.6f", e.Rate)
}

// MarshalJSON encodes a number or the string "EngagementUndefined"
func (e Engagement) MarshalJSON() ([]byte, error) {
	if !e.Defined {
		return json.Marshal(UndefinedLabel)
	}
	return json.Marshal(e.Rate)
}

// UnmarshalJSON accepts both forms produced by MarshalJSON
func (e *Engagement) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s != UndefinedLabel {
			return fmt.Errorf("metrics: unknown engagement label %q", s)
		}
		*e = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*e = Rate(f)
	return nil
}

// Result is the engagement of one collected target
type Result struct {
	Platform        links.Platform `json:"platform"`
	Audience        int64          `json:"audience"`
	Engagement      Engagement     `json:"engagement_rate"`
	UndefinedReason string         `json:"undefined_reason,omitempty"`
	SampleSize      int            `json:"sample_size"`
	Interactions    int64          `json:"interactions"`
	// Truncated is set when either the post sample or a comment cap cut collection short
	Truncated         bool `json:"truncated"`
	PostsTruncated    bool `json:"posts_truncated"`
	CommentsTruncated bool `json:"comments_truncated"`
}

// Interactions sums the platform's engagement counts for one item
func Interactions(p links.Platform, c content.Counts) int64 {
	switch p {
	case links.YouTube:
		return c.Views + c.Likes + c.Comments
	default:
		return c.Likes + c.Comments + c.Shares + c.Reactions
	}
}

// ComputeEngagement averages interactions over the sampled items and divides by audience.
// The ratio is not clamped; zero audience or an empty sample yield EngagementUndefined.
// postsTruncated is the adapter's report that more posts existed than were sampled
func ComputeEngagement(p links.Platform, profile content.Profile, items []content.Item, postsTruncated bool) Result {
	res := Result{
		Platform:       p,
		Audience:       profile.Audience,
		SampleSize:     len(items),
		Engagement:     Undefined,
		PostsTruncated: postsTruncated,
	}
	for _, it := range items {
		res.Interactions += Interactions(p, it.Counts)
		res.CommentsTruncated = res.CommentsTruncated || it.CommentsTruncated
	}
	res.Truncated = res.PostsTruncated || res.CommentsTruncated
	switch {
	case profile.Audience <= 0:
		res.UndefinedReason = ReasonZeroAudience
	case len(items) == 0:
		res.UndefinedReason = ReasonNoItems
	default:
		avg := float64(res.Interactions) / float64(len(items))
		res.Engagement = Rate(avg / float64(profile.Audience))
	}
	return res
}
