package graph

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/normalize"
	"audiencepulse/internal/services/pulse/domain"
)

// comment page size; Graph caps edges at 100
const pageSize = 100

// MsgNoBusinessAccount is returned for Instagram targets without a business account id
const MsgNoBusinessAccount = "Instagram business account is not configured."

// Facebook fetches public pages
type Facebook struct {
	c   *Client
	now func() time.Time
}

// Instagram fetches professional accounts through business discovery; igUserID is the
// caller's own business account
type Instagram struct {
	c        *Client
	igUserID string
	now      func() time.Time
}

var (
	_ domain.Adapter       = (*Facebook)(nil)
	_ domain.Adapter       = (*Instagram)(nil)
	_ domain.CostEstimator = (*Facebook)(nil)
	_ domain.CostEstimator = (*Instagram)(nil)
)

// NewFacebook builds the Facebook adapter
func NewFacebook(c *Client) *Facebook { return &Facebook{c: c, now: time.Now} }

// NewInstagram builds the Instagram adapter
func NewInstagram(c *Client, igUserID string) *Instagram {
	return &Instagram{c: c, igUserID: igUserID, now: time.Now}
}

// Platform implements domain.Adapter
func (*Facebook) Platform() links.Platform { return links.Facebook }

// Platform implements domain.Adapter
func (*Instagram) Platform() links.Platform { return links.Instagram }

// EstimateCost is one page call, one posts call and one comment page per post and hundred comments
func (*Facebook) EstimateCost(_ links.Target, l content.Limits) int {
	return 2 + l.Posts*commentPages(l.Comments)
}

// EstimateCost is one discovery call and one comment page per post and hundred comments
func (*Instagram) EstimateCost(_ links.Target, l content.Limits) int {
	return 1 + l.Posts*commentPages(l.Comments)
}

func commentPages(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Fetch implements domain.Adapter
func (f *Facebook) Fetch(ctx context.Context, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error) {
	if !f.c.Configured() {
		return content.Profile{}, nil, false, domain.NotConfigured(links.Facebook, MsgNoToken, nil)
	}
	l = l.For(links.Facebook)
	cred := f.c.pick(links.Facebook)
	node := "/" + url.PathEscape(t.ID)

	var page fbPage
	if err := f.c.get(ctx, links.Facebook, cred, node, url.Values{"fields": {"id,name,followers_count,fan_count"}}, &page); err != nil {
		return content.Profile{}, nil, false, err
	}
	audience := page.FollowersCount
	if audience == 0 {
		audience = page.FanCount
	}
	prof := content.Profile{
		Platform:    links.Facebook,
		TargetID:    t.ID,
		DisplayName: page.Name,
		Audience:    audience,
		FetchedAt:   f.now().UTC(),
	}

	var posts fbPosts
	q := url.Values{
		"fields": {"id,message,created_time,shares,reactions.summary(total_count).limit(0),comments.summary(total_count).limit(0)"},
		"limit":  {strconv.Itoa(l.Posts + 1)},
	}
	if err := f.c.get(ctx, links.Facebook, cred, node+"/posts", q, &posts); err != nil {
		return content.Profile{}, nil, false, err
	}
	truncated := len(posts.Data) > l.Posts
	if truncated {
		posts.Data = posts.Data[:l.Posts]
	}

	items := make([]content.Item, 0, len(posts.Data))
	for _, p := range posts.Data {
		it := content.Item{
			Platform:    links.Facebook,
			ID:          p.ID,
			Type:        content.Post,
			Text:        normalize.StripHTML(p.Message),
			PublishedAt: p.CreatedTime.Time,
			// reactions already include likes, so Likes stays zero for pages
			Counts: content.Counts{
				Comments:  p.Comments.Summary.TotalCount,
				Shares:    p.Shares.Count,
				Reactions: p.Reactions.Summary.TotalCount,
			},
		}
		if p.Comments.Summary.TotalCount > 0 {
			cs, err := f.comments(ctx, cred, p.ID, l.Comments)
			if err != nil {
				return content.Profile{}, nil, false, err
			}
			it.Comments = cs
		}
		it.CapComments(l.Comments, p.Comments.Summary.TotalCount)
		items = append(items, it)
	}
	return prof, items, truncated, nil
}

func (f *Facebook) comments(ctx context.Context, cred int, postID string, limit int) ([]content.Comment, error) {
	var out []content.Comment
	after := ""
	for len(out) < limit {
		q := url.Values{
			"fields": {"message,from{name}"},
			"filter": {"toplevel"},
			"order":  {"reverse_chronological"},
			"limit":  {strconv.Itoa(min(pageSize, limit-len(out)))},
		}
		if after != "" {
			q.Set("after", after)
		}
		var page fbComments
		if err := f.c.get(ctx, links.Facebook, cred, "/"+url.PathEscape(postID)+"/comments", q, &page); err != nil {
			return nil, err
		}
		for _, c := range page.Data {
			out = append(out, content.Comment{Text: c.Message, Author: c.From.Name})
		}
		if page.Paging.Next == "" || page.Paging.Cursors.After == "" || len(page.Data) == 0 {
			break
		}
		after = page.Paging.Cursors.After
	}
	return out, nil
}

// Fetch implements domain.Adapter
func (g *Instagram) Fetch(ctx context.Context, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error) {
	if !g.c.Configured() {
		return content.Profile{}, nil, false, domain.NotConfigured(links.Instagram, MsgNoToken, nil)
	}
	if g.igUserID == "" {
		return content.Profile{}, nil, false, domain.NotConfigured(links.Instagram, MsgNoBusinessAccount, nil)
	}
	l = l.For(links.Instagram)
	cred := g.c.pick(links.Instagram)

	fields := "business_discovery.username(" + t.ID + "){id,username,name,followers_count," +
		"media.limit(" + strconv.Itoa(l.Posts+1) + "){id,caption,comments_count,like_count,timestamp}}"
	var d igDiscovery
	if err := g.c.get(ctx, links.Instagram, cred, "/"+url.PathEscape(g.igUserID), url.Values{"fields": {fields}}, &d); err != nil {
		return content.Profile{}, nil, false, err
	}
	bd := d.BusinessDiscovery
	name := bd.Name
	if name == "" {
		name = bd.Username
	}
	prof := content.Profile{
		Platform:    links.Instagram,
		TargetID:    t.ID,
		DisplayName: name,
		Audience:    bd.FollowersCount,
		FetchedAt:   g.now().UTC(),
	}

	media := bd.Media.Data
	truncated := len(media) > l.Posts
	if truncated {
		media = media[:l.Posts]
	}
	items := make([]content.Item, 0, len(media))
	for _, m := range media {
		it := content.Item{
			Platform:    links.Instagram,
			ID:          m.ID,
			Type:        content.Post,
			Text:        normalize.StripHTML(m.Caption),
			PublishedAt: m.Timestamp.Time,
			Counts:      content.Counts{Likes: m.LikeCount, Comments: m.CommentsCount},
		}
		if m.CommentsCount > 0 {
			cs, err := g.comments(ctx, cred, m.ID, l.Comments)
			if err != nil {
				return content.Profile{}, nil, false, err
			}
			it.Comments = cs
		}
		it.CapComments(l.Comments, m.CommentsCount)
		items = append(items, it)
	}
	return prof, items, truncated, nil
}

// comments reads a media's comments; media the token cannot read yields none
func (g *Instagram) comments(ctx context.Context, cred int, mediaID string, limit int) ([]content.Comment, error) {
	var out []content.Comment
	after := ""
	for len(out) < limit {
		q := url.Values{
			"fields": {"text,username"},
			"limit":  {strconv.Itoa(min(pageSize, limit-len(out)))},
		}
		if after != "" {
			q.Set("after", after)
		}
		var page igComments
		err := g.c.get(ctx, links.Instagram, cred, "/"+url.PathEscape(mediaID)+"/comments", q, &page)
		if ae, ok := domain.AsAdapterError(err); ok && ae.Kind == domain.KindPrivate {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		for _, c := range page.Data {
			out = append(out, content.Comment{Text: c.Text, Author: c.Username})
		}
		if page.Paging.Next == "" || page.Paging.Cursors.After == "" || len(page.Data) == 0 {
			break
		}
		after = page.Paging.Cursors.After
	}
	return out, nil
}
