// Package governor tracks upstream call budgets per (platform, credential) over a sliding window
package governor

import (
	"sort"
	"sync"
	"time"

	"audiencepulse/internal/core/links"
	ptime "audiencepulse/internal/platform/time"
	"audiencepulse/internal/services/pulse/domain"
)

// DefaultWindow is the sliding window length
const DefaultWindow = time.Minute

// Config sets per-platform budgets
type Config struct {
	Window time.Duration
	// Limits is calls per window per credential; platforms without an entry are unlimited
	Limits map[links.Platform]int
	// Credentials are the credential names per platform; empty means one shared "default"
	Credentials map[links.Platform][]string
}

// DefaultLimits are conservative per-minute call budgets
func DefaultLimits() map[links.Platform]int {
	return map[links.Platform]int{
		links.YouTube:   100,
		links.Instagram: 60,
		links.Facebook:  60,
	}
}

const defaultCredential = "default"

type event struct {
	at   time.Time
	cost int
}

type bucket struct {
	events []event // ordered by time
	used   int
}

// Governor is safe for concurrent use
type Governor struct {
	mu      sync.Mutex
	clock   ptime.Clock
	window  time.Duration
	limits  map[links.Platform]int
	creds   map[links.Platform][]string
	buckets map[string]*bucket
}

var _ domain.Governor = (*Governor)(nil)

// New builds a governor; a nil clock uses the wall clock
func New(cfg Config, clock ptime.Clock) *Governor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Limits == nil {
		cfg.Limits = DefaultLimits()
	}
	creds := make(map[links.Platform][]string, len(cfg.Credentials))
	for p, cs := range cfg.Credentials {
		if len(cs) > 0 {
			creds[p] = append([]string(nil), cs...)
		}
	}
	return &Governor{
		clock:   ptime.OrSystem(clock),
		window:  cfg.Window,
		limits:  cfg.Limits,
		creds:   creds,
		buckets: map[string]*bucket{},
	}
}

func bucketKey(p links.Platform, cred string) string { return string(p) + "|" + cred }

func (g *Governor) credentials(p links.Platform) []string {
	if cs := g.creds[p]; len(cs) > 0 {
		return cs
	}
	return []string{defaultCredential}
}

// bucket returns the pruned bucket for key; callers hold mu
func (g *Governor) bucket(key string, now time.Time) *bucket {
	b := g.buckets[key]
	if b == nil {
		b = &bucket{}
		g.buckets[key] = b
	}
	cut := now.Add(-g.window)
	i := 0
	for i < len(b.events) && !b.events[i].at.After(cut) {
		b.used -= b.events[i].cost
		i++
	}
	b.events = b.events[i:]
	return b
}

// waitFor is how long until cost fits in b; callers hold mu
func (g *Governor) waitFor(b *bucket, limit, cost int, now time.Time) time.Duration {
	if limit <= 0 {
		return 0
	}
	if cost > limit {
		return g.window
	}
	over := b.used + cost - limit
	if over <= 0 {
		return 0
	}
	freed := 0
	for _, e := range b.events {
		freed += e.cost
		if freed >= over {
			return e.at.Add(g.window).Sub(now)
		}
	}
	return g.window
}

// Reserve consumes cost from the credential's budget when it fits, otherwise reports the wait.
// Check and consume happen under one lock
func (g *Governor) Reserve(p links.Platform, credential string, cost int) domain.Reservation {
	if cost <= 0 {
		return domain.Reservation{Granted: true}
	}
	if credential == "" {
		credential = defaultCredential
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	limit := g.limits[p]
	b := g.bucket(bucketKey(p, credential), now)
	if wait := g.waitFor(b, limit, cost, now); wait > 0 {
		return domain.Reservation{Wait: wait}
	}
	b.events = append(b.events, event{at: now, cost: cost})
	b.used += cost
	return domain.Reservation{Granted: true}
}

// Estimate returns the smallest wait across p's credentials without consuming anything
func (g *Governor) Estimate(p links.Platform, cost int) time.Duration {
	if cost <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	limit := g.limits[p]
	best := time.Duration(-1)
	for _, c := range g.credentials(p) {
		w := g.waitFor(g.bucket(bucketKey(p, c), now), limit, cost, now)
		if best < 0 || w < best {
			best = w
		}
	}
	return best
}

// Pick returns the least loaded credential of p; ties go to the first configured
func (g *Governor) Pick(p links.Platform) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	cs := g.credentials(p)
	best, bestUsed := cs[0], -1
	for _, c := range cs {
		used := g.bucket(bucketKey(p, c), now).used
		if bestUsed < 0 || used < bestUsed {
			best, bestUsed = c, used
		}
	}
	return best
}

// Usage is a point in time view of one bucket
type Usage struct {
	Platform   links.Platform `json:"platform"`
	Credential string         `json:"credential"`
	Used       int            `json:"used"`
	Limit      int            `json:"limit"`
}

// Snapshot reports current usage of every known bucket, sorted for stable output
func (g *Governor) Snapshot() []Usage {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	var out []Usage
	for _, p := range links.Platforms() {
		for _, c := range g.credentials(p) {
			out = append(out, Usage{Platform: p, Credential: c, Used: g.bucket(bucketKey(p, c), now).used, Limit: g.limits[p]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}
