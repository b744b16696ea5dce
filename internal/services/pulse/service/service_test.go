package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/lexicon"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/pipeline"
	perr "audiencepulse/internal/platform/errors"
	kit "audiencepulse/internal/platform/testkit"
	"audiencepulse/internal/services/pulse/cache"
	"audiencepulse/internal/services/pulse/domain"
)

const (
	ytChef  = "https://www.youtube.com/@chef"
	igChef  = "https://www.instagram.com/chef"
	igBaker = "https://www.instagram.com/baker"
	fbPage  = "https://www.facebook.com/bakery"
)

type fetchFunc func(ctx context.Context, t links.Target, call int) (content.Profile, []content.Item, bool, error)

type fakeAdapter struct {
	p     links.Platform
	fn    fetchFunc
	mu    sync.Mutex
	calls map[string]int
}

func newFake(p links.Platform, fn fetchFunc) *fakeAdapter {
	if fn == nil {
		fn = sample(p, 1000)
	}
	return &fakeAdapter{p: p, fn: fn, calls: map[string]int{}}
}

func (f *fakeAdapter) Platform() links.Platform { return f.p }

func (f *fakeAdapter) Fetch(ctx context.Context, t links.Target, _ content.Limits) (content.Profile, []content.Item, bool, error) {
	f.mu.Lock()
	f.calls[t.Key()]++
	n := f.calls[t.Key()]
	f.mu.Unlock()
	return f.fn(ctx, t, n)
}

func (f *fakeAdapter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func sample(p links.Platform, audience int64) fetchFunc {
	return func(_ context.Context, t links.Target, _ int) (content.Profile, []content.Item, bool, error) {
		prof := content.Profile{Platform: p, TargetID: t.ID, DisplayName: "Chef " + t.ID, Audience: audience}
		items := []content.Item{{
			Platform: p, ID: t.ID + "-1", Type: content.Post,
			Text:   "Weeknight pasta recipe with garlic. Quick dinner ideas for busy families.",
			Counts: content.Counts{Likes: 40, Comments: 3, Views: 900},
			Comments: []content.Comment{
				{Text: "Love this pasta recipe, amazing!"},
				{Text: "This was terrible and boring"},
				{Text: "Garlic pasta tonight"},
			},
		}}
		return prof, items, false, nil
	}
}

func failWith(kind domain.ErrorKind) fetchFunc {
	return func(_ context.Context, t links.Target, _ int) (content.Profile, []content.Item, bool, error) {
		return content.Profile{}, nil, false, domain.NewAdapterError(kind, t.Platform, "nope", nil)
	}
}

type countingNotifier struct {
	mu  sync.Mutex
	got []domain.JobNotification
}

func (n *countingNotifier) Notify(_ context.Context, x domain.JobNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, x)
	return nil
}

func (n *countingNotifier) count(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.got {
		if x.JobID == id {
			c++
		}
	}
	return c
}

type fixedGov struct{ wait time.Duration }

func (g fixedGov) Reserve(links.Platform, string, int) domain.Reservation {
	return domain.Reservation{Granted: true}
}
func (g fixedGov) Estimate(links.Platform, int) time.Duration { return g.wait }
func (fixedGov) Pick(links.Platform) string                   { return "default" }

type harness struct {
	svc   *Svc
	cache *cache.Memory
	note  *countingNotifier
}

func newHarness(t *testing.T, cfg Config, gov domain.Governor, adapters ...domain.Adapter) harness {
	t.Helper()
	if cfg.RetryMin == 0 {
		cfg.RetryMin = 5 * time.Millisecond
	}
	h := harness{cache: cache.NewMemory(cache.Options{}, nil), note: &countingNotifier{}}
	h.svc = New(Deps{
		Adapters: adapters,
		Governor: gov,
		Cache:    h.cache,
		Notifier: h.note,
		Pipeline: pipeline.New(lexicon.MustLoad(), pipeline.DefaultOptions()),
	}, cfg)
	t.Cleanup(func() { _ = h.svc.Close() })
	return h
}

func (h harness) waitTerminal(t *testing.T, id string) domain.Job {
	t.Helper()
	var snap domain.Job
	kit.Eventually(t, 5*time.Second, func() bool {
		j, err := h.svc.Job(context.Background(), id)
		snap = j
		return err == nil && j.State.Terminal()
	}, "job "+id+" never finished")
	return snap
}

func TestAnalyzeSyncCompletes(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	h := newHarness(t, Config{}, nil, yt)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Async || out.Cached || out.Job.State != domain.StateCompleted || out.Job.Status != domain.StatusCompleted {
		t.Fatalf("outcome = %+v", out)
	}
	r := out.Job.Report
	if r == nil || len(r.Platforms) != 1 || r.Transparency.Partial {
		t.Fatalf("report = %+v", r)
	}
	if !r.Platforms[0].Engagement.Defined || r.Platforms[0].SampleSize != 1 {
		t.Fatalf("engagement = %+v", r.Platforms[0].Result)
	}
	sen := r.Sentiment
	if sen.PositiveCount+sen.NeutralCount+sen.NegativeCount != sen.Classified || sen.Classified == 0 {
		t.Fatalf("sentiment counts do not add up: %+v", sen)
	}
	if sum := sen.PositiveTenths + sen.NeutralTenths + sen.NegativeTenths; sum != 1000 {
		t.Fatalf("sentiment tenths sum to %d", sum)
	}
	if r.Summary == "" || len(r.Keywords) == 0 {
		t.Fatalf("empty text analysis: summary=%q keywords=%d", r.Summary, len(r.Keywords))
	}
	if out.Job.Mode != domain.ModeSync || h.note.count(out.Job.ID) != 1 {
		t.Fatalf("mode=%s notifications=%d", out.Job.Mode, h.note.count(out.Job.ID))
	}
}

func TestDuplicatesCollectOnce(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	h := newHarness(t, Config{}, nil, yt)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef, "youtube.com/@Chef"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if yt.total() != 1 {
		t.Fatalf("fetches = %d, want 1", yt.total())
	}
	if len(out.Job.Targets) != 1 || len(out.Job.Report.Transparency.Duplicates) != 1 {
		t.Fatalf("targets=%d duplicates=%v", len(out.Job.Targets), out.Job.Report.Transparency.Duplicates)
	}
}

func TestPartialCompletes(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	ig := newFake(links.Instagram, failWith(domain.KindNotFound))
	h := newHarness(t, Config{}, nil, yt, ig)

	// 12x1000 + 8x1000 stays at the size threshold, so the job runs sync
	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{igChef, ytChef}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Async || out.Job.State != domain.StateCompleted {
		t.Fatalf("outcome = %+v", out.Job)
	}
	tr := out.Job.Report.Transparency
	if !tr.Partial || len(tr.Targets) != 2 {
		t.Fatalf("transparency = %+v", tr)
	}
	if tr.Targets[0].Status != domain.TargetFailed || tr.Targets[0].ErrorKind != domain.KindNotFound {
		t.Fatalf("instagram status = %+v", tr.Targets[0])
	}
	if tr.Targets[1].Status != domain.TargetOK || len(out.Job.Report.Platforms) != 1 {
		t.Fatalf("youtube status = %+v", tr.Targets[1])
	}
}

func TestAllTargetsFailing(t *testing.T) {
	yt := newFake(links.YouTube, failWith(domain.KindPrivate))
	ig := newFake(links.Instagram, failWith(domain.KindNotFound))
	h := newHarness(t, Config{}, nil, yt, ig)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef, igChef}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Job.State != domain.StateFailed || out.Job.Error == nil || out.Job.Error.Code != domain.FailAllPlatformsUnavailable {
		t.Fatalf("job = %+v", out.Job)
	}
	// the failure still enumerates every target and why it failed
	tr := out.Job.Error.Transparency
	if tr == nil || len(tr.Targets) != 2 {
		t.Fatalf("failure transparency = %+v", tr)
	}
	want := map[links.Platform]domain.ErrorKind{links.YouTube: domain.KindPrivate, links.Instagram: domain.KindNotFound}
	for _, st := range tr.Targets {
		if st.Status != domain.TargetFailed || st.ErrorKind != want[st.Platform] || st.Link == "" || st.Message == "" {
			t.Fatalf("target status = %+v", st)
		}
	}
	polled, err := h.svc.Job(context.Background(), out.Job.ID)
	if err != nil || polled.Error == nil || polled.Error.Transparency == nil || len(polled.Error.Transparency.Targets) != 2 {
		t.Fatalf("poll = %+v, %v", polled, err)
	}
	if h.note.count(out.Job.ID) != 1 {
		t.Fatalf("notifications = %d", h.note.count(out.Job.ID))
	}
	// failures are not cached as answers
	if _, ok, _ := h.cache.Completed(context.Background(), out.Job.Fingerprint); ok {
		t.Fatalf("failed job cached as completed")
	}
}

func TestPostSampleLimitMarksEngagementTruncated(t *testing.T) {
	full := sample(links.YouTube, 1000)
	yt := newFake(links.YouTube, func(ctx context.Context, tg links.Target, n int) (content.Profile, []content.Item, bool, error) {
		prof, items, _, err := full(ctx, tg, n)
		return prof, items, true, err
	})
	h := newHarness(t, Config{}, nil, yt)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
	if err != nil || out.Job.State != domain.StateCompleted {
		t.Fatalf("Analyze = %+v, %v", out.Job, err)
	}
	rep := out.Job.Report
	if !rep.Transparency.Targets[0].PostsTruncated {
		t.Fatalf("transparency = %+v", rep.Transparency.Targets[0])
	}
	if res := rep.Platforms[0].Result; !res.Truncated || !res.PostsTruncated || res.CommentsTruncated {
		t.Fatalf("engagement = %+v", res)
	}
}

func TestUnconfiguredPlatformIsSkipped(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	h := newHarness(t, Config{}, nil, yt)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef, fbPage}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	tr := out.Job.Report.Transparency
	var fb domain.TargetStatus
	for _, st := range tr.Targets {
		if st.Platform == links.Facebook {
			fb = st
		}
	}
	if fb.Status != domain.TargetSkipped || !tr.Partial {
		t.Fatalf("facebook status = %+v", fb)
	}
}

func TestZeroSubscriberYouTube(t *testing.T) {
	yt := newFake(links.YouTube, sample(links.YouTube, 0))
	h := newHarness(t, Config{}, nil, yt)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{"https://youtu.be/dQw4w9WgXcQ"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	p := out.Job.Report.Platforms[0]
	if p.Engagement.Defined || p.UndefinedReason != "zero_audience" {
		t.Fatalf("engagement = %+v", p.Result)
	}
}

func TestSizeThresholdForcesAsync(t *testing.T) {
	ig := newFake(links.Instagram, nil)
	h := newHarness(t, Config{}, nil, ig)

	// 2 x 12 x 1000 comments is above 20000
	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{igChef, igBaker}, Mode: domain.ModeSync})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !out.Async || out.Job.Status != domain.StatusProcessing || out.Job.Mode != domain.ModeAsync {
		t.Fatalf("outcome = %+v", out)
	}
	if snap := h.waitTerminal(t, out.Job.ID); snap.State != domain.StateCompleted {
		t.Fatalf("final state = %s", snap.State)
	}

	// the same two targets with a smaller comment cap fit a sync run
	out, err = h.svc.Analyze(context.Background(), domain.Request{Links: []string{igChef, igBaker}, CommentLimit: 500})
	if err != nil || out.Async {
		t.Fatalf("small request async=%v err=%v", out.Async, err)
	}
}

func TestGovernorWaitForcesAsync(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	h := newHarness(t, Config{}, fixedGov{wait: 10 * time.Second}, yt)

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
	if err != nil || !out.Async {
		t.Fatalf("async=%v err=%v", out.Async, err)
	}
	h.waitTerminal(t, out.Job.ID)
}

func TestConcurrentIdenticalRequestsShareJob(t *testing.T) {
	release := make(chan struct{})
	yt := newFake(links.YouTube, func(ctx context.Context, t links.Target, n int) (content.Profile, []content.Item, bool, error) {
		<-release
		return sample(links.YouTube, 100)(ctx, t, n)
	})
	h := newHarness(t, Config{}, nil, yt)

	const callers = 8
	ids := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}, Mode: domain.ModeAsync})
			if err != nil {
				t.Errorf("Analyze: %v", err)
				return
			}
			ids <- out.Job.ID
		}()
	}
	wg.Wait()
	close(ids)
	first := ""
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("jobs differ: %s vs %s", id, first)
		}
	}
	close(release)
	h.waitTerminal(t, first)
	if yt.total() != 1 {
		t.Fatalf("fetches = %d, want 1", yt.total())
	}
}

func TestSyncCallersAttach(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	yt := newFake(links.YouTube, func(ctx context.Context, t links.Target, n int) (content.Profile, []content.Item, bool, error) {
		once.Do(func() { close(started) })
		<-release
		return sample(links.YouTube, 100)(ctx, t, n)
	})
	h := newHarness(t, Config{}, nil, yt)

	type res struct {
		out domain.Outcome
		err error
	}
	results := make(chan res, 2)
	go func() {
		out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
		results <- res{out, err}
	}()
	<-started
	go func() {
		out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
		results <- res{out, err}
	}()
	kit.Eventually(t, 2*time.Second, func() bool {
		j := h.svc.live(h.onlyLiveID())
		if j == nil {
			return false
		}
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.waiters == 2
	}, "second caller never attached")
	close(release)

	a, b := <-results, <-results
	if a.err != nil || b.err != nil {
		t.Fatalf("errors: %v %v", a.err, b.err)
	}
	if a.out.Job.ID != b.out.Job.ID || a.out.Attached == b.out.Attached {
		t.Fatalf("outcomes: %+v / %+v", a.out, b.out)
	}
	if yt.total() != 1 {
		t.Fatalf("fetches = %d", yt.total())
	}
}

func (h harness) onlyLiveID() string {
	h.svc.mu.Lock()
	defer h.svc.mu.Unlock()
	for id := range h.svc.jobs {
		return id
	}
	return ""
}

func TestCompletedIsServedFromCache(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	h := newHarness(t, Config{}, nil, yt)

	first, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{"youtube.com/@CHEF"}})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Cached || second.Job.ID != first.Job.ID || !second.Job.Report.Transparency.Cached {
		t.Fatalf("second = %+v", second)
	}
	if first.Job.Report.Transparency.Cached {
		t.Fatalf("cached flag leaked into the stored report")
	}
	if yt.total() != 1 {
		t.Fatalf("fetches = %d", yt.total())
	}
}

func TestCollectionReuseAcrossJobs(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	ig := newFake(links.Instagram, nil)
	h := newHarness(t, Config{}, nil, yt, ig)

	if _, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}}); err != nil {
		t.Fatalf("first: %v", err)
	}
	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef, igChef}})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	var ytStatus domain.TargetStatus
	for _, st := range out.Job.Report.Transparency.Targets {
		if st.Platform == links.YouTube {
			ytStatus = st
		}
	}
	if !ytStatus.FromCache || yt.total() != 1 {
		t.Fatalf("youtube status=%+v fetches=%d", ytStatus, yt.total())
	}
}

func TestSyncRetry(t *testing.T) {
	tests := []struct {
		name     string
		wait     time.Duration
		want     string
		attempts int
	}{
		{name: "short hint retried once", wait: 10 * time.Millisecond, want: domain.TargetOK, attempts: 2},
		{name: "long hint fails", wait: 10 * time.Second, want: domain.TargetFailed, attempts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yt := newFake(links.YouTube, func(ctx context.Context, tg links.Target, n int) (content.Profile, []content.Item, bool, error) {
				if n == 1 {
					return content.Profile{}, nil, false, domain.RateLimited(links.YouTube, tt.wait, "slow down")
				}
				return sample(links.YouTube, 100)(ctx, tg, n)
			})
			ig := newFake(links.Instagram, nil)
			h := newHarness(t, Config{}, nil, yt, ig)
			out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef, igChef}})
			if err != nil || out.Async {
				t.Fatalf("async=%v err=%v", out.Async, err)
			}
			var st domain.TargetStatus
			for _, x := range out.Job.Report.Transparency.Targets {
				if x.Platform == links.YouTube {
					st = x
				}
			}
			if st.Status != tt.want || st.Attempts != tt.attempts {
				t.Fatalf("status = %+v", st)
			}
		})
	}
}

func TestAsyncContinuation(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantState domain.State
		wantCalls int
	}{
		{name: "recovers within budget", failures: 3, wantState: domain.StateCompleted, wantCalls: 4},
		{name: "budget exhausted", failures: 100, wantState: domain.StateFailed, wantCalls: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yt := newFake(links.YouTube, func(ctx context.Context, tg links.Target, n int) (content.Profile, []content.Item, bool, error) {
				if n <= tt.failures {
					return content.Profile{}, nil, false, domain.NewAdapterError(domain.KindUpstreamUnavailable, links.YouTube, "503", nil)
				}
				return sample(links.YouTube, 100)(ctx, tg, n)
			})
			h := newHarness(t, Config{RetryBudget: 3}, nil, yt)
			out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}, Mode: domain.ModeAsync})
			if err != nil || !out.Async {
				t.Fatalf("async=%v err=%v", out.Async, err)
			}
			snap := h.waitTerminal(t, out.Job.ID)
			if snap.State != tt.wantState || yt.total() != tt.wantCalls {
				t.Fatalf("state=%s calls=%d", snap.State, yt.total())
			}
			if h.note.count(out.Job.ID) != 1 {
				t.Fatalf("notifications = %d", h.note.count(out.Job.ID))
			}
		})
	}
}

func blockingFake(p links.Platform, started chan<- struct{}) *fakeAdapter {
	var once sync.Once
	return newFake(p, func(ctx context.Context, _ links.Target, _ int) (content.Profile, []content.Item, bool, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return content.Profile{}, nil, false, ctx.Err()
	})
}

func TestCancelJob(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, Config{}, nil, blockingFake(links.YouTube, started))

	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}, Mode: domain.ModeAsync})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	<-started
	snap, err := h.svc.Cancel(context.Background(), out.Job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if snap.State != domain.StateFailed || snap.Error == nil || snap.Error.Code != domain.FailCancelled {
		t.Fatalf("snapshot = %+v", snap)
	}
	// idempotent on a finished job
	again, err := h.svc.Cancel(context.Background(), out.Job.ID)
	if err != nil || again.State != domain.StateFailed {
		t.Fatalf("second cancel = %+v, %v", again, err)
	}
	if h.note.count(out.Job.ID) != 1 {
		t.Fatalf("notifications = %d", h.note.count(out.Job.ID))
	}
	if _, err := h.svc.Cancel(context.Background(), "nope"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("unknown job err = %v", err)
	}
}

func TestSyncCallerLeavingCancels(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, Config{}, nil, blockingFake(links.YouTube, started))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := h.svc.Analyze(ctx, domain.Request{Links: []string{ytChef}})
		errCh <- err
	}()
	<-started
	id := h.onlyLiveID()
	cancel()
	if err := <-errCh; !perr.IsCode(err, perr.ErrorCodeCancelled) {
		t.Fatalf("err = %v", err)
	}
	snap := h.waitTerminal(t, id)
	if snap.Error == nil || snap.Error.Code != domain.FailCancelled {
		t.Fatalf("job = %+v", snap)
	}
}

func TestInvalidInputCreatesNoJob(t *testing.T) {
	h := newHarness(t, Config{}, nil, newFake(links.YouTube, nil))
	many := make([]string, 11)
	for i := range many {
		many[i] = fmt.Sprintf("https://www.youtube.com/@chef%d", i)
	}
	tests := []struct {
		name string
		req  domain.Request
	}{
		{"empty", domain.Request{}},
		{"too many", domain.Request{Links: many}},
		{"unsupported host", domain.Request{Links: []string{"https://example.com/x"}}},
		{"bad mode", domain.Request{Links: []string{ytChef}, Mode: "later"}},
		{"negative limit", domain.Request{Links: []string{ytChef}, PostLimit: -1}},
	}
	for _, tt := range tests {
		_, err := h.svc.Analyze(context.Background(), tt.req)
		if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("%s: err = %v", tt.name, err)
		}
	}
	if id := h.onlyLiveID(); id != "" {
		t.Fatalf("job created for invalid input: %s", id)
	}
}

func TestSubscribeStreamsUntilTerminal(t *testing.T) {
	release := make(chan struct{})
	yt := newFake(links.YouTube, func(ctx context.Context, tg links.Target, n int) (content.Profile, []content.Item, bool, error) {
		<-release
		return sample(links.YouTube, 100)(ctx, tg, n)
	})
	h := newHarness(t, Config{}, nil, yt)
	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}, Mode: domain.ModeAsync})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	ch, stop, err := h.svc.Subscribe(context.Background(), out.Job.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()
	close(release)

	var last domain.Event
	n := 0
	for ev := range ch {
		last = ev
		n++
	}
	if n < 2 || last.State != domain.StateCompleted {
		t.Fatalf("events=%d last=%+v", n, last)
	}

	// a finished job answers with one terminal event
	ch, _, err = h.svc.Subscribe(context.Background(), out.Job.ID)
	if err != nil {
		t.Fatalf("Subscribe finished: %v", err)
	}
	if ev := <-ch; ev.State != domain.StateCompleted {
		t.Fatalf("event = %+v", ev)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if _, _, err := h.svc.Subscribe(context.Background(), "missing"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing job err = %v", err)
	}
}

func TestForeignClaimAnswersOwner(t *testing.T) {
	yt := newFake(links.YouTube, nil)
	h := newHarness(t, Config{}, nil, yt)
	res, err := links.ResolveAll([]string{ytChef})
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	fp := links.Fingerprint(res.Targets)
	ctx := context.Background()
	if _, ok, _ := h.cache.Claim(ctx, fp, "other-replica-job"); !ok {
		t.Fatalf("pre-claim failed")
	}
	_ = h.cache.PutJob(ctx, domain.Job{ID: "other-replica-job", Fingerprint: fp, State: domain.StateCollecting, Status: domain.StatusProcessing})

	out, err := h.svc.Analyze(ctx, domain.Request{Links: []string{ytChef}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Job.ID != "other-replica-job" || !out.Async || !out.Attached || yt.total() != 0 {
		t.Fatalf("outcome = %+v fetches=%d", out, yt.total())
	}
}

func TestPanickingAdapterFailsJob(t *testing.T) {
	yt := newFake(links.YouTube, func(context.Context, links.Target, int) (content.Profile, []content.Item, bool, error) {
		panic("boom")
	})
	h := newHarness(t, Config{}, nil, yt)
	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.Job.Error == nil || out.Job.Error.Code != domain.FailInternal {
		t.Fatalf("job = %+v", out.Job)
	}
}

func TestFingerprintIncludesOverrides(t *testing.T) {
	res, _ := links.ResolveAll([]string{ytChef})
	def := domain.Request{SentimentLimit: pipeline.ClampSentimentCap(0)}
	if fingerprint(res.Targets, def) != links.Fingerprint(res.Targets) {
		t.Fatalf("default request should use the link fingerprint")
	}
	over := def
	over.PostLimit = 5
	if fingerprint(res.Targets, over) == fingerprint(res.Targets, def) {
		t.Fatalf("overrides must change the fingerprint")
	}
}

func TestCloseCancelsLiveJobs(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, Config{}, nil, blockingFake(links.YouTube, started))
	out, err := h.svc.Analyze(context.Background(), domain.Request{Links: []string{ytChef}, Mode: domain.ModeAsync})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	<-started
	if err := h.svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	snap := h.waitTerminal(t, out.Job.ID)
	if snap.Error == nil || snap.Error.Message != errShutdown.Error() {
		t.Fatalf("job = %+v", snap)
	}
}
