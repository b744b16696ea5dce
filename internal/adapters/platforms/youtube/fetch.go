package youtube

import (
	"context"
	"strings"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/normalize"
	"audiencepulse/internal/services/pulse/domain"
)

var (
	channelParts = []string{"snippet", "statistics", "contentDetails"}
	videoParts   = []string{"snippet", "statistics"}
)

func notFound(msg string) error {
	return domain.NewAdapterError(domain.KindNotFound, links.YouTube, msg, nil)
}

// fetchVideo analyses one video; the audience is its channel's subscriber count
func (a *Adapter) fetchVideo(ctx context.Context, key int, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error) {
	vids, err := a.videos(ctx, key, []string{t.ID})
	if err != nil {
		return content.Profile{}, nil, false, err
	}
	if len(vids) == 0 {
		return content.Profile{}, nil, false, notFound("video not found")
	}
	v := vids[0]

	var ch *yt.Channel
	err = a.do(ctx, key, "channels.list", func(s *yt.Service) error {
		resp, err := s.Channels.List(channelParts).Id(v.Snippet.ChannelId).Context(ctx).Do()
		if err == nil && len(resp.Items) > 0 {
			ch = resp.Items[0]
		}
		return err
	})
	if err != nil {
		return content.Profile{}, nil, false, err
	}
	if ch == nil {
		return content.Profile{}, nil, false, notFound("channel of video not found")
	}

	it, err := a.item(ctx, key, v, l)
	if err != nil {
		return content.Profile{}, nil, false, err
	}
	return a.profile(t, ch), []content.Item{it}, false, nil
}

// fetchChannel analyses the most recent uploads of a channel
func (a *Adapter) fetchChannel(ctx context.Context, key int, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error) {
	var ch *yt.Channel
	err := a.do(ctx, key, "channels.list", func(s *yt.Service) error {
		call := s.Channels.List(channelParts)
		switch {
		case strings.HasPrefix(t.ID, "@"):
			call = call.ForHandle(t.ID)
		case strings.HasPrefix(t.ID, "user:"):
			call = call.ForUsername(strings.TrimPrefix(t.ID, "user:"))
		default:
			call = call.Id(t.ID)
		}
		resp, err := call.Context(ctx).Do()
		if err == nil && len(resp.Items) > 0 {
			ch = resp.Items[0]
		}
		return err
	})
	if err != nil {
		return content.Profile{}, nil, false, err
	}
	if ch == nil {
		return content.Profile{}, nil, false, notFound("channel not found")
	}
	prof := a.profile(t, ch)

	uploads := ""
	if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
		uploads = ch.ContentDetails.RelatedPlaylists.Uploads
	}
	if uploads == "" {
		return prof, nil, false, nil
	}

	var ids []string
	err = a.do(ctx, key, "playlistItems.list", func(s *yt.Service) error {
		resp, err := s.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(uploads).
			MaxResults(int64(l.Posts + 1)).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, pi := range resp.Items {
			if pi.ContentDetails != nil && pi.ContentDetails.VideoId != "" {
				ids = append(ids, pi.ContentDetails.VideoId)
			}
		}
		return nil
	})
	if err != nil {
		// an empty uploads playlist answers 404
		if ae, ok := domain.AsAdapterError(err); ok && ae.Kind == domain.KindNotFound {
			return prof, nil, false, nil
		}
		return content.Profile{}, nil, false, err
	}
	truncated := len(ids) > l.Posts
	if truncated {
		ids = ids[:l.Posts]
	}
	if len(ids) == 0 {
		return prof, nil, false, nil
	}

	vids, err := a.videos(ctx, key, ids)
	if err != nil {
		return content.Profile{}, nil, false, err
	}
	items := make([]content.Item, 0, len(vids))
	for _, v := range vids {
		it, err := a.item(ctx, key, v, l)
		if err != nil {
			return content.Profile{}, nil, false, err
		}
		items = append(items, it)
	}
	return prof, items, truncated, nil
}

func (a *Adapter) profile(t links.Target, ch *yt.Channel) content.Profile {
	p := content.Profile{Platform: links.YouTube, TargetID: t.ID, FetchedAt: a.now().UTC()}
	if ch.Snippet != nil {
		p.DisplayName = ch.Snippet.Title
	}
	// hidden subscriber counts read as zero and leave engagement undefined
	if ch.Statistics != nil && !ch.Statistics.HiddenSubscriberCount {
		p.Audience = int64(ch.Statistics.SubscriberCount)
	}
	return p
}

// videos loads ids in one call and returns them in the order asked for
func (a *Adapter) videos(ctx context.Context, key int, ids []string) ([]*yt.Video, error) {
	byID := map[string]*yt.Video{}
	err := a.do(ctx, key, "videos.list", func(s *yt.Service) error {
		resp, err := s.Videos.List(videoParts).Id(ids...).Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, v := range resp.Items {
			byID[v.Id] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*yt.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok && v.Snippet != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (a *Adapter) item(ctx context.Context, key int, v *yt.Video, l content.Limits) (content.Item, error) {
	it := content.Item{Platform: links.YouTube, ID: v.Id, Type: content.Video}
	text := v.Snippet.Title
	if d := strings.TrimSpace(v.Snippet.Description); d != "" {
		text += "\n" + d
	}
	it.Text = text
	if ts, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
		it.PublishedAt = ts.UTC()
	}
	var available int64
	if st := v.Statistics; st != nil {
		available = int64(st.CommentCount)
		it.Counts = content.Counts{Views: int64(st.ViewCount), Likes: int64(st.LikeCount), Comments: available}
	}
	if available > 0 {
		cs, err := a.comments(ctx, key, v.Id, l.Comments)
		if err != nil {
			return content.Item{}, err
		}
		it.Comments = cs
	}
	it.CapComments(l.Comments, available)
	return it, nil
}

// comments pages top level comment threads; disabled comments yield none
func (a *Adapter) comments(ctx context.Context, key int, videoID string, limit int) ([]content.Comment, error) {
	var out []content.Comment
	token := ""
	for len(out) < limit {
		var resp *yt.CommentThreadListResponse
		err := a.do(ctx, key, "commentThreads.list", func(s *yt.Service) error {
			call := s.CommentThreads.List([]string{"snippet"}).
				VideoId(videoID).
				MaxResults(int64(min(commentPage, limit-len(out)))).
				Order("relevance").
				TextFormat("html")
			if token != "" {
				call = call.PageToken(token)
			}
			r, err := call.Context(ctx).Do()
			resp = r
			return err
		})
		if err != nil {
			if hasReason(err, "commentsDisabled") {
				return out, nil
			}
			return nil, err
		}
		for _, th := range resp.Items {
			if th.Snippet == nil || th.Snippet.TopLevelComment == nil || th.Snippet.TopLevelComment.Snippet == nil {
				continue
			}
			cs := th.Snippet.TopLevelComment.Snippet
			out = append(out, content.Comment{Text: normalize.StripHTML(cs.TextDisplay), Author: cs.AuthorDisplayName})
		}
		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		token = resp.NextPageToken
	}
	return out, nil
}
