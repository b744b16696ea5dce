package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/pipeline"
	perr "audiencepulse/internal/platform/errors"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// Resolve validates and deduplicates links without analysing them
func (s *Svc) Resolve(raw []string) (links.Resolution, error) {
	if len(raw) > s.cfg.MaxLinks {
		return links.Resolution{}, perr.WithField(
			perr.Newf(perr.ErrorCodeInvalidArgument, "at most %d links per request", s.cfg.MaxLinks), "links")
	}
	return links.ResolveAll(raw)
}

// normalizeRequest checks everything that would reject a request before any job exists
func (s *Svc) normalizeRequest(req domain.Request) (domain.Request, links.Resolution, error) {
	switch strings.ToLower(string(req.Mode)) {
	case "", string(domain.ModeAuto):
		req.Mode = domain.ModeAuto
	case string(domain.ModeSync):
		req.Mode = domain.ModeSync
	case string(domain.ModeAsync):
		req.Mode = domain.ModeAsync
	default:
		return req, links.Resolution{}, perr.WithField(perr.InvalidArgf("unknown mode %q", req.Mode), "mode")
	}
	for field, v := range map[string]int{"post_limit": req.PostLimit, "comment_limit": req.CommentLimit, "sentiment_limit": req.SentimentLimit} {
		if v < 0 {
			return req, links.Resolution{}, perr.WithField(perr.InvalidArgf("%s must not be negative", field), field)
		}
	}
	res, err := s.Resolve(req.Links)
	if err != nil {
		return req, links.Resolution{}, err
	}
	req.SentimentLimit = pipeline.ClampSentimentCap(req.SentimentLimit)
	return req, res, nil
}

// fingerprint identifies a request: its deduplicated targets plus any sampling overrides
func fingerprint(targets []links.Target, req domain.Request) string {
	base := links.Fingerprint(targets)
	if req.PostLimit == 0 && req.CommentLimit == 0 && req.SentimentLimit == pipeline.ClampSentimentCap(0) {
		return base
	}
	sum := sha256.Sum256([]byte(base +
		"|posts=" + strconv.Itoa(req.PostLimit) +
		"|comments=" + strconv.Itoa(req.CommentLimit) +
		"|sentiment=" + strconv.Itoa(req.SentimentLimit)))
	return hex.EncodeToString(sum[:])
}

// Analyze runs or joins the job for req. Sync callers block until the job is terminal
// or ctx ends; async outcomes return as soon as the job is collecting
func (s *Svc) Analyze(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	req, res, err := s.normalizeRequest(req)
	if err != nil {
		return domain.Outcome{}, err
	}
	fp := fingerprint(res.Targets, req)

	if snap, ok, err := s.cache.Completed(ctx, fp); err != nil {
		logger.C(ctx).Warn().Err(err).Str("fingerprint", fp).Msg("completed lookup failed")
	} else if ok {
		return cachedOutcome(snap), nil
	}

	j, attached, foreign, err := s.dispatch(ctx, req, res, fp)
	if err != nil {
		return domain.Outcome{}, err
	}
	if foreign != nil {
		return *foreign, nil
	}

	if attached {
		logger.C(ctx).Debug().Str("job_id", j.id).Str("fingerprint", fp).Msg("attached to live job")
		if j.isAsync() {
			return domain.Outcome{Job: j.snapshot(), Async: true, Attached: true}, nil
		}
		return s.wait(ctx, j, true)
	}

	s.start(j)
	if j.isAsync() {
		return domain.Outcome{Job: j.snapshot(), Async: true}, nil
	}
	return s.wait(ctx, j, false)
}

// dispatch attaches to a live job of fp or claims fp for a new one. A claim held by
// another process answers with that owner's job
func (s *Svc) dispatch(ctx context.Context, req domain.Request, res links.Resolution, fp string) (*job, bool, *domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.byFP[fp]; ok {
		j.attach()
		return j, true, nil, nil
	}

	id := s.newID()
	owner, claimed, err := s.cache.Claim(ctx, fp, id)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("fingerprint", fp).Msg("claim failed; building locally")
		claimed = true
	}
	if !claimed {
		out := s.foreign(ctx, owner, fp)
		return nil, false, &out, nil
	}

	j := newJob(logger.WithJob(context.WithoutCancel(ctx), id, fp), id, fp, req, res, s.clock.Now())
	j.mu.Lock()
	j.transition(domain.StateDispatching, "", "", s.clock.Now())
	j.async = s.decideAsync(j)
	if j.async {
		j.snap.Mode = domain.ModeAsync
	} else {
		j.snap.Mode = domain.ModeSync
		j.waiters = 1
	}
	j.mu.Unlock()

	s.jobs[id] = j
	s.byFP[fp] = j
	return j, false, nil, nil
}

// foreign answers for a fingerprint claimed by another process
func (s *Svc) foreign(ctx context.Context, owner, fp string) domain.Outcome {
	if snap, ok, err := s.cache.Job(ctx, owner); err == nil && ok {
		if snap.State == domain.StateCompleted {
			return cachedOutcome(snap)
		}
		return domain.Outcome{Job: snap, Async: !snap.State.Terminal(), Attached: true}
	}
	return domain.Outcome{
		Job: domain.Job{
			ID:          owner,
			Fingerprint: fp,
			State:       domain.StateDispatching,
			Status:      domain.StatusProcessing,
		},
		Async:    true,
		Attached: true,
	}
}

func cachedOutcome(snap domain.Job) domain.Outcome {
	if snap.Report != nil {
		r := *snap.Report
		r.Transparency.Cached = true
		snap.Report = &r
	}
	return domain.Outcome{Job: snap, Cached: true}
}

// decideAsync is fixed once per job: async on request, when the governor would hold the
// collection past AsyncWait, or when the comment volume is above AsyncComments
func (s *Svc) decideAsync(j *job) bool {
	log := logger.C(j.ctx)
	if j.snap.Request.Mode == domain.ModeAsync {
		return true
	}
	if wait := s.estimateWait(j); wait > s.cfg.AsyncWait {
		log.Debug().Dur("wait", wait).Msg("governor wait forces async")
		return true
	}
	if vol := volume(j); vol > s.cfg.AsyncComments {
		log.Debug().Int("volume", vol).Msg("comment volume forces async")
		return true
	}
	return false
}

// estimateWait sums the call cost per platform and takes the slowest platform
func (s *Svc) estimateWait(j *job) time.Duration {
	if s.gov == nil {
		return 0
	}
	cost := map[links.Platform]int{}
	for _, t := range j.targets {
		c := 1
		if ce, ok := s.adapters[t.Platform].(domain.CostEstimator); ok {
			c = ce.EstimateCost(t, j.limits(t.Platform))
		}
		cost[t.Platform] += c
	}
	var worst time.Duration
	for p, c := range cost {
		if w := s.gov.Estimate(p, c); w > worst {
			worst = w
		}
	}
	return worst
}

// volume is the comment upper bound: posts x comments summed over targets
func volume(j *job) int {
	n := 0
	for _, t := range j.targets {
		l := j.limits(t.Platform)
		if t.Kind == links.KindVideo {
			l = content.Limits{Posts: 1, Comments: l.Comments}
		}
		n += l.Posts * l.Comments
	}
	return n
}

// wait blocks a sync caller until the job is terminal. The last sync waiter leaving
// cancels the job
func (s *Svc) wait(ctx context.Context, j *job, attached bool) (domain.Outcome, error) {
	select {
	case <-j.done:
		return domain.Outcome{Job: j.snapshot(), Attached: attached}, nil
	case <-ctx.Done():
		if j.detach() {
			j.cancel(errCallerLeft)
		}
		return domain.Outcome{}, perr.Wrap(ctx.Err(), perr.ErrorCodeCancelled, "analysis abandoned by caller")
	}
}

// Job returns a live snapshot or the cached one
func (s *Svc) Job(ctx context.Context, id string) (domain.Job, error) {
	if j := s.live(id); j != nil {
		return j.snapshot(), nil
	}
	snap, ok, err := s.cache.Job(ctx, id)
	if err != nil {
		return domain.Job{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "job lookup failed")
	}
	if !ok {
		return domain.Job{}, perr.NotFoundf("job %s not found", id)
	}
	return snap, nil
}

// Cancel stops a live job; cancelling a finished job returns it unchanged
func (s *Svc) Cancel(ctx context.Context, id string) (domain.Job, error) {
	j := s.live(id)
	if j == nil {
		return s.Job(ctx, id)
	}
	j.cancel(errCancelRequested)
	s.finish(j, domain.StateFailed, nil, &domain.JobError{Code: domain.FailCancelled, Message: errCancelRequested.Error()})
	return j.snapshot(), nil
}

// Subscribe streams a job's state transitions until it is terminal
func (s *Svc) Subscribe(ctx context.Context, id string) (<-chan domain.Event, func(), error) {
	if j := s.live(id); j != nil {
		ch, stop := j.subscribe(s.clock.Now())
		return ch, stop, nil
	}
	snap, err := s.Job(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Event, 1)
	ev := domain.Event{JobID: snap.ID, State: snap.State, Status: snap.Status, At: s.clock.Now()}
	if snap.Error != nil {
		ev.Message = snap.Error.Message
	}
	ch <- ev
	close(ch)
	return ch, func() {}, nil
}
