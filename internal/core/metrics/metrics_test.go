package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
)

func items(p links.Platform, counts ...content.Counts) []content.Item {
	out := make([]content.Item, len(counts))
	for i, c := range counts {
		out[i] = content.Item{Platform: p, ID: string(rune('a' + i)), Counts: c}
	}
	return out
}

func TestComputeEngagement(t *testing.T) {
	tests := []struct {
		name     string
		p        links.Platform
		audience int64
		items    []content.Item
		want     float64
		defined  bool
		reason   string
	}{
		{
			name:     "instagram sums likes comments shares reactions",
			p:        links.Instagram,
			audience: 1000,
			items:    items(links.Instagram, content.Counts{Likes: 80, Comments: 20}, content.Counts{Likes: 60, Comments: 10, Shares: 5, Reactions: 25}),
			want:     0.1,
			defined:  true,
		},
		{
			name:     "youtube counts views likes comments and ignores shares",
			p:        links.YouTube,
			audience: 500,
			items:    items(links.YouTube, content.Counts{Views: 900, Likes: 90, Comments: 10, Shares: 1000}),
			want:     2.0,
			defined:  true,
		},
		{
			name:     "viral account exceeds one",
			p:        links.Facebook,
			audience: 10,
			items:    items(links.Facebook, content.Counts{Reactions: 50}),
			want:     5.0,
			defined:  true,
		},
		{
			name:     "zero audience is undefined",
			p:        links.YouTube,
			audience: 0,
			items:    items(links.YouTube, content.Counts{Views: 10}),
			reason:   ReasonZeroAudience,
		},
		{
			name:     "no items is undefined",
			p:        links.Instagram,
			audience: 100,
			reason:   ReasonNoItems,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeEngagement(tt.p, content.Profile{Platform: tt.p, Audience: tt.audience}, tt.items, false)
			if res.Engagement.Defined != tt.defined {
				t.Fatalf("defined = %v, want %v", res.Engagement.Defined, tt.defined)
			}
			if res.UndefinedReason != tt.reason {
				t.Fatalf("reason = %q, want %q", res.UndefinedReason, tt.reason)
			}
			if tt.defined && math.Abs(res.Engagement.Rate-tt.want) > 1e-9 {
				t.Fatalf("rate = %v, want %v", res.Engagement.Rate, tt.want)
			}
			if res.SampleSize != len(tt.items) {
				t.Fatalf("sample size = %d", res.SampleSize)
			}
		})
	}
}

func TestTruncated(t *testing.T) {
	tests := []struct {
		name                  string
		postsCut, commentsCut bool
	}{
		{name: "complete sample"},
		{name: "comment cap hit", commentsCut: true},
		{name: "post sample limit hit", postsCut: true},
		{name: "both limits hit", postsCut: true, commentsCut: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			its := items(links.YouTube, content.Counts{Views: 1}, content.Counts{Views: 1})
			its[1].CommentsTruncated = tt.commentsCut
			res := ComputeEngagement(links.YouTube, content.Profile{Audience: 1}, its, tt.postsCut)
			if res.PostsTruncated != tt.postsCut || res.CommentsTruncated != tt.commentsCut {
				t.Fatalf("posts=%v comments=%v, want %v %v", res.PostsTruncated, res.CommentsTruncated, tt.postsCut, tt.commentsCut)
			}
			if want := tt.postsCut || tt.commentsCut; res.Truncated != want {
				t.Fatalf("truncated = %v, want %v", res.Truncated, want)
			}
		})
	}
}

func TestEngagementJSON(t *testing.T) {
	b, err := json.Marshal(Result{Engagement: Undefined, UndefinedReason: ReasonZeroAudience})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["engagement_rate"] != UndefinedLabel {
		t.Fatalf("engagement_rate = %v", m["engagement_rate"])
	}

	for _, e := range []Engagement{Rate(0.25), Undefined} {
		b, _ := json.Marshal(e)
		var back Engagement
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if back != e {
			t.Fatalf("roundtrip %s = %+v, want %+v", b, back, e)
		}
	}
	var bad Engagement
	if err := json.Unmarshal([]byte(`"nope"`), &bad); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}
