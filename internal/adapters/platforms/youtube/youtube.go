// Package youtube fetches channels and videos through the YouTube Data API v3
package youtube

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// MsgNoKey is returned per target when no API key is configured
const MsgNoKey = "YouTube API Key is not configured."

const (
	defaultRetryBase = 500 * time.Millisecond
	defaultMaxWait   = 2 * time.Second
	commentPage      = 100
)

// Options configures the Adapter
type Options struct {
	// Comma separated API keys; each one is a governor credential
	APIKeysCSV string
	// Endpoint overrides the API base URL
	Endpoint string

	RetryBase    time.Duration
	MaxRetryWait time.Duration
}

// Adapter implements domain.Adapter for YouTube
type Adapter struct {
	opts     Options
	services []*yt.Service
	cur      atomic.Int32
	gov      domain.Governor
	log      logger.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

var (
	_ domain.Adapter       = (*Adapter)(nil)
	_ domain.CostEstimator = (*Adapter)(nil)
)

// New builds one API service per key; with no keys every fetch fails with MsgNoKey
func New(ctx context.Context, o Options, gov domain.Governor) (*Adapter, error) {
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.MaxRetryWait <= 0 {
		o.MaxRetryWait = defaultMaxWait
	}
	a := &Adapter{opts: o, gov: gov, log: *logger.Named("youtube"), now: time.Now, sleep: sleepCtx}
	for _, key := range splitCSV(o.APIKeysCSV) {
		opts := []option.ClientOption{option.WithAPIKey(key)}
		if o.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(o.Endpoint))
		}
		svc, err := yt.NewService(ctx, opts...)
		if err != nil {
			return nil, err
		}
		a.services = append(a.services, svc)
	}
	return a, nil
}

// Credentials names the configured keys for the governor: key0, key1, ...
func Credentials(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "key" + strconv.Itoa(i)
	}
	return out
}

// Credentials names this adapter's keys
func (a *Adapter) Credentials() []string { return Credentials(len(a.services)) }

// Platform implements domain.Adapter
func (*Adapter) Platform() links.Platform { return links.YouTube }

// EstimateCost counts quota units: a video costs videos + channels + comment pages;
// a channel adds the channel lookup, the uploads page and one videos call
func (*Adapter) EstimateCost(t links.Target, l content.Limits) int {
	pages := (l.Comments + commentPage - 1) / commentPage
	if t.Kind == links.KindVideo {
		return 2 + pages
	}
	return 3 + l.Posts*pages
}

func (a *Adapter) pick() int {
	if len(a.services) == 0 {
		return -1
	}
	if a.gov != nil {
		if name := a.gov.Pick(links.YouTube); strings.HasPrefix(name, "key") {
			if i, err := strconv.Atoi(strings.TrimPrefix(name, "key")); err == nil && i < len(a.services) {
				return i
			}
		}
	}
	return int(a.cur.Add(1)) % len(a.services)
}

// Fetch implements domain.Adapter
func (a *Adapter) Fetch(ctx context.Context, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error) {
	key := a.pick()
	if key < 0 {
		return content.Profile{}, nil, false, domain.NotConfigured(links.YouTube, MsgNoKey, nil)
	}
	l = l.For(links.YouTube)
	if t.Kind == links.KindVideo {
		return a.fetchVideo(ctx, key, t, l)
	}
	return a.fetchChannel(ctx, key, t, l)
}

// do runs one API call behind a governor reservation; transient failures get one retry
func (a *Adapter) do(ctx context.Context, key int, op string, fn func(*yt.Service) error) error {
	name := "key" + strconv.Itoa(key)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.gov != nil {
			if r := a.gov.Reserve(links.YouTube, name, 1); !r.Granted {
				return domain.RateLimited(links.YouTube, r.Wait, "youtube quota budget exhausted")
			}
		}
		start := time.Now()
		err := fn(a.services[key])
		a.log.Debug().Str("op", op).Int("attempt", attempt).Dur("latency", time.Since(start)).Err(err).Msg("youtube call")
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ae := classify(err)
		if attempt == 0 && retryInline(ae, a.opts.MaxRetryWait) {
			back := max(a.opts.RetryBase, ae.RetryAfter)
			a.log.Warn().Str("op", op).Str("kind", string(ae.Kind)).Dur("retry_in", back).Msg("youtube transient error retrying")
			if err := a.sleep(ctx, back); err != nil {
				return err
			}
			continue
		}
		return ae
	}
}

func retryInline(ae *domain.AdapterError, maxWait time.Duration) bool {
	switch ae.Kind {
	case domain.KindUpstreamUnavailable:
		return !ae.Permanent
	case domain.KindRateLimited:
		return ae.RetryAfter <= maxWait
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func splitCSV(s string) []string {
	var out []string
	for t := range strings.SplitSeq(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
