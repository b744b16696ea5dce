package service

import (
	"context"
	"sync"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
	"audiencepulse/internal/services/pulse/domain"
)

const subscriberBuffer = 32

// job is the live, in-process side of an analysis job. Everything under mu; the
// snapshot handed out is always a clone
type job struct {
	id      string
	fp      string
	targets []links.Target
	ctx     context.Context
	cancel  context.CancelCauseFunc
	done    chan struct{}
	notify  sync.Once

	mu      sync.Mutex
	snap    domain.Job
	async   bool
	waiters int
	pending int
	colls   map[string]domain.Collection // by target key
	subs    map[int]chan domain.Event
	nextSub int
}

func newJob(ctx context.Context, id, fp string, req domain.Request, res links.Resolution, now time.Time) *job {
	jctx, cancel := context.WithCancelCause(ctx)
	return &job{
		id:      id,
		fp:      fp,
		targets: res.Targets,
		ctx:     jctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: len(res.Targets),
		colls:   map[string]domain.Collection{},
		subs:    map[int]chan domain.Event{},
		snap: domain.Job{
			ID:          id,
			Fingerprint: fp,
			State:       domain.StateReceived,
			Status:      domain.StateReceived.Status(),
			Mode:        req.Mode,
			CreatedAt:   now,
			Targets:     res.Targets,
			Request:     req,
			Duplicates:  res.Duplicates,
		},
	}
}

func (j *job) limits(p links.Platform) content.Limits { return j.snap.Request.Limits(p) }

func (j *job) snapshot() domain.Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap.Clone()
}

func (j *job) isAsync() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.async
}

// transition moves to s and tells subscribers; caller holds mu
func (j *job) transition(s domain.State, target, msg string, at time.Time) {
	j.snap.State = s
	j.snap.Status = s.Status()
	j.emit(domain.Event{JobID: j.id, State: s, Status: s.Status(), Target: target, Message: msg, At: at})
}

// emit fans ev out without blocking; slow subscribers lose intermediate events
// but always get the terminal one. Caller holds mu
func (j *job) emit(ev domain.Event) {
	terminal := ev.State.Terminal()
	for id, ch := range j.subs {
		select {
		case ch <- ev:
		default:
			if terminal {
				select {
				case <-ch:
				default:
				}
				ch <- ev
			}
		}
		if terminal {
			close(ch)
			delete(j.subs, id)
		}
	}
}

// subscribe registers a listener that first receives the current state
func (j *job) subscribe(now time.Time) (<-chan domain.Event, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ch := make(chan domain.Event, subscriberBuffer)
	ch <- domain.Event{JobID: j.id, State: j.snap.State, Status: j.snap.Status, At: now}
	if j.snap.State.Terminal() {
		close(ch)
		return ch, func() {}
	}
	id := j.nextSub
	j.nextSub++
	j.subs[id] = ch
	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if c, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(c)
		}
	}
}

// attach adds a synchronous waiter unless the job runs async
func (j *job) attach() (async bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.async {
		j.waiters++
	}
	return j.async
}

// detach drops a waiter and reports whether nobody is left to receive a sync result
func (j *job) detach() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.waiters--
	return j.waiters <= 0 && !j.async && !j.snap.State.Terminal()
}
