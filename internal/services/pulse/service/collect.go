package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// retry is a rate limited or unavailable target handed to the continuation worker
type retry struct {
	job     *job
	target  links.Target
	attempt int
	wait    time.Duration
}

// start moves a dispatched job into collection
func (s *Svc) start(j *job) {
	j.mu.Lock()
	j.transition(domain.StateCollecting, "", string(j.snap.Mode), s.clock.Now())
	snap := j.snap.Clone()
	j.mu.Unlock()
	s.persist(j.ctx, snap)

	logger.C(j.ctx).Info().Int("targets", len(j.targets)).Str("mode", string(snap.Mode)).Msg("job collecting")

	go s.watch(j)
	go s.fanOut(j)
}

// watch turns cancellation of the job context into Failed{Cancelled}
func (s *Svc) watch(j *job) {
	select {
	case <-j.done:
	case <-j.ctx.Done():
		cause := context.Cause(j.ctx)
		s.finish(j, domain.StateFailed, nil, &domain.JobError{Code: domain.FailCancelled, Message: cause.Error()})
	}
}

// fanOut collects every target on the shared pool. Targets without an adapter are skipped
func (s *Svc) fanOut(j *job) {
	defer s.recoverJob(j)
	g, ctx := errgroup.WithContext(j.ctx)
	for _, t := range j.targets {
		if _, ok := s.adapters[t.Platform]; !ok {
			s.record(j, domain.Collection{
				Target: t,
				Limits: j.limits(t.Platform),
				Err:    domain.NotConfigured(t.Platform, "platform is not enabled", nil),
			})
			continue
		}
		g.Go(func() error {
			defer s.recoverJob(j)
			s.collect(ctx, j, t, 1)
			return nil
		})
	}
	_ = g.Wait()
}

// collect fetches one target. Retryable failures are waited out once in sync jobs and
// handed to the continuation worker in async jobs
func (s *Svc) collect(ctx context.Context, j *job, t links.Target, attempt int) {
	l := j.limits(t.Platform)
	log := logger.C(ctx).With().Str("platform", string(t.Platform)).Str("target", t.Key()).Int("attempt", attempt).Logger()

	if attempt == 1 {
		if c, ok, err := s.cache.Collection(ctx, domain.CollectionKey(t, l)); err != nil {
			log.Warn().Err(err).Msg("collection lookup failed")
		} else if ok && c.OK() {
			s.record(j, c)
			return
		}
	}

	prof, items, truncated, err := s.fetch(ctx, t, l)
	if ctx.Err() != nil {
		return
	}

	c := domain.Collection{Target: t, Limits: l, Attempts: attempt}
	if err == nil {
		c.Profile, c.Items, c.PostsTruncated = prof, items, truncated
		if err := s.cache.PutCollection(ctx, c); err != nil {
			log.Warn().Err(err).Msg("collection not cached")
		}
		s.record(j, c)
		return
	}

	ae := domain.Classify(t.Platform, err)
	log.Warn().Err(err).Str("kind", string(ae.Kind)).Msg("fetch failed")
	if ae.Retryable() {
		wait := max(ae.RetryAfter, s.cfg.RetryMin)
		switch {
		case j.isAsync():
			if attempt <= s.cfg.RetryBudget && wait <= s.cfg.RetryMaxWait && s.handOff(j, t, attempt+1, wait) {
				return
			}
		case attempt == 1 && wait <= s.cfg.SyncRetryWait:
			if sleepCtx(ctx, wait) == nil {
				s.collect(ctx, j, t, 2)
			}
			return
		}
	}
	c.Err = ae
	s.record(j, c)
}

// fetch runs one adapter call on a pool slot
func (s *Svc) fetch(ctx context.Context, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return content.Profile{}, nil, false, err
	}
	defer s.sem.Release(1)
	return s.adapters[t.Platform].Fetch(ctx, t, l)
}

// handOff queues a retry without holding a pool slot
func (s *Svc) handOff(j *job, t links.Target, attempt int, wait time.Duration) bool {
	j.mu.Lock()
	j.emit(domain.Event{
		JobID: j.id, State: j.snap.State, Status: j.snap.Status, Target: t.Key(),
		Message: fmt.Sprintf("retry %d in %s", attempt-1, wait), At: s.clock.Now(),
	})
	j.mu.Unlock()
	select {
	case s.handoff <- retry{job: j, target: t, attempt: attempt, wait: wait}:
		return true
	case <-s.stop:
		return false
	case <-j.ctx.Done():
		return true
	}
}

// continuation arms one timer per handed off target and re-runs the fetch when it fires
func (s *Svc) continuation() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case r := <-s.handoff:
			time.AfterFunc(r.wait, func() {
				select {
				case s.ready <- r:
				case <-s.stop:
				case <-r.job.ctx.Done():
				}
			})
		case r := <-s.ready:
			if r.job.ctx.Err() != nil {
				continue
			}
			go func() {
				defer s.recoverJob(r.job)
				s.collect(r.job.ctx, r.job, r.target, r.attempt)
			}()
		}
	}
}

// record stores one terminal target outcome; the last one triggers aggregation
func (s *Svc) record(j *job, c domain.Collection) {
	now := s.clock.Now()
	key := c.Target.Key()

	j.mu.Lock()
	if j.snap.State.Terminal() {
		j.mu.Unlock()
		return
	}
	if _, dup := j.colls[key]; dup {
		j.mu.Unlock()
		return
	}
	j.colls[key] = c
	j.pending--
	switch {
	case !c.OK():
		j.transition(domain.StatePartial, key, string(c.Err.Kind), now)
	case j.snap.State == domain.StatePartial && j.pending > 0:
		j.transition(domain.StateCollecting, key, "collected", now)
	default:
		j.emit(domain.Event{JobID: j.id, State: j.snap.State, Status: j.snap.Status, Target: key, Message: "collected", At: now})
	}
	last := j.pending == 0
	if last {
		j.transition(domain.StateAggregating, "", "", now)
	}
	snap := j.snap.Clone()
	j.mu.Unlock()

	s.persist(j.ctx, snap)
	if last {
		s.aggregate(j)
	}
}

func (s *Svc) recoverJob(j *job) {
	if r := recover(); r != nil {
		logger.C(j.ctx).Error().Interface("panic", r).Msg("job panicked")
		s.finish(j, domain.StateFailed, nil, &domain.JobError{Code: domain.FailInternal, Message: "internal error"})
	}
}

// finish moves j to a terminal state exactly once, publishes the snapshot, frees the
// fingerprint and notifies
func (s *Svc) finish(j *job, state domain.State, report *domain.Report, jerr *domain.JobError) {
	now := s.clock.Now()
	j.mu.Lock()
	if j.snap.State.Terminal() {
		j.mu.Unlock()
		return
	}
	j.snap.Report = report
	j.snap.Error = jerr
	j.snap.CompletedAt = &now
	msg := ""
	if jerr != nil {
		msg = jerr.Message
	}
	j.transition(state, "", msg, now)
	snap := j.snap.Clone()
	close(j.done)
	j.mu.Unlock()

	ctx := context.WithoutCancel(j.ctx)
	s.persist(ctx, snap)
	if err := s.cache.Release(ctx, j.fp, j.id); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("claim release failed")
	}
	s.forget(j)
	j.cancel(nil)

	ev := logger.C(ctx).Info().Str("state", string(state))
	if jerr != nil {
		ev = ev.Str("error_code", string(jerr.Code))
	}
	ev.Msg("job finished")

	j.notify.Do(func() { s.notify(ctx, snap) })
}

func (s *Svc) notify(ctx context.Context, snap domain.Job) {
	if s.notifier == nil {
		return
	}
	n := domain.JobNotification{JobID: snap.ID, Fingerprint: snap.Fingerprint, Status: snap.Status}
	if snap.Error != nil {
		n.ErrorCode = snap.Error.Code
	}
	nctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, n); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("job notification failed")
	}
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
