// Package graph fetches Instagram and Facebook pages through the Meta Graph API
package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"audiencepulse/internal/core/links"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

const (
	baseURLDefault   = "https://graph.facebook.com"
	versionDefault   = "v19.0"
	defaultTimeout   = 10 * time.Second
	defaultUA        = "audiencepulse"
	defaultRetryBase = 500 * time.Millisecond
	defaultMaxWait   = 2 * time.Second
	maxBody          = 1 << 20
)

// MsgNoToken is returned per target when no access token is configured
const MsgNoToken = "Graph API token is not configured."

// Options configures the Client
type Options struct {
	BaseURL   string
	Version   string
	UserAgent string
	Timeout   time.Duration

	// Comma separated access tokens; each one is a governor credential
	TokensCSV string

	// RetryBase is the backoff before the single transient retry
	RetryBase time.Duration
	// MaxRetryWait is the longest upstream retry hint waited out inline
	MaxRetryWait time.Duration
}

// Client is a Graph API client with one bearer transport per token
type Client struct {
	opts    Options
	clients []*http.Client
	cur     atomic.Int32
	gov     domain.Governor
	log     logger.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewClient builds a client; gov may be nil for ungated use
func NewClient(o Options, gov domain.Governor) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Version == "" {
		o.Version = versionDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.MaxRetryWait <= 0 {
		o.MaxRetryWait = defaultMaxWait
	}
	c := &Client{opts: o, gov: gov, log: *logger.Named("graph"), sleep: sleepCtx}
	for _, tok := range splitCSV(o.TokensCSV) {
		hc := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}))
		hc.Timeout = o.Timeout
		c.clients = append(c.clients, hc)
	}
	return c
}

// Credentials names the configured tokens for the governor: token0, token1, ...
func (c *Client) Credentials() []string { return Credentials(len(c.clients)) }

// Credentials returns n credential names
func Credentials(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "token" + strconv.Itoa(i)
	}
	return out
}

// Configured reports whether at least one token is present
func (c *Client) Configured() bool { return len(c.clients) > 0 }

// pick chooses a credential: the governor's least loaded one, else round robin
func (c *Client) pick(p links.Platform) int {
	if len(c.clients) == 0 {
		return -1
	}
	if c.gov != nil {
		if name := c.gov.Pick(p); strings.HasPrefix(name, "token") {
			if i, err := strconv.Atoi(strings.TrimPrefix(name, "token")); err == nil && i < len(c.clients) {
				return i
			}
		}
	}
	return int(c.cur.Add(1)) % len(c.clients)
}

// get issues one GET, reserving budget first; transient failures get one retry
func (c *Client) get(ctx context.Context, p links.Platform, cred int, path string, q url.Values, out any) error {
	if cred < 0 || cred >= len(c.clients) {
		return domain.NotConfigured(p, MsgNoToken, nil)
	}
	u := c.opts.BaseURL + "/" + c.opts.Version + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	name := "token" + strconv.Itoa(cred)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.gov != nil {
			if r := c.gov.Reserve(p, name, 1); !r.Granted {
				return domain.RateLimited(p, r.Wait, "graph call budget exhausted")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return domain.NewAdapterError(domain.KindUpstreamUnavailable, p, "graph new request failed", err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.clients[cred].Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt == 0 {
				c.log.Warn().Err(err).Str("path", path).Msg("graph transport error retrying")
				if err := c.sleep(ctx, c.opts.RetryBase); err != nil {
					return err
				}
				continue
			}
			return domain.NewAdapterError(domain.KindUpstreamUnavailable, p, "graph request failed", err)
		}

		body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()
		wait := computeWait(resp.Header)
		c.log.Debug().
			Str("platform", string(p)).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", time.Since(start)).
			Dur("retry_hint", wait).
			Msg("graph http response")

		if resp.StatusCode == http.StatusOK && rerr == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return domain.NewAdapterError(domain.KindUpstreamUnavailable, p, "graph response decode failed", err)
			}
			return nil
		}

		ae := classify(p, resp.StatusCode, body, wait)
		if attempt == 0 && retryInline(ae, c.opts.MaxRetryWait) {
			back := c.opts.RetryBase
			if ae.RetryAfter > back {
				back = ae.RetryAfter
			}
			c.log.Warn().Str("kind", string(ae.Kind)).Dur("retry_in", back).Msg("graph transient error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return err
			}
			continue
		}
		return ae
	}
}

// retryInline allows the one internal retry for transient failures and short rate limit hints
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
