// Package service orchestrates analysis jobs: dispatch, parallel collection behind the
// governor, retries, aggregation and delivery
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"audiencepulse/internal/core/links"
	"audiencepulse/internal/core/pipeline"
	"audiencepulse/internal/platform/logger"
	ptime "audiencepulse/internal/platform/time"
	"audiencepulse/internal/services/pulse/domain"
)

// Config carries the orchestrator knobs
type Config struct {
	// Workers bounds concurrent adapter fetches across all jobs
	Workers int
	// MaxLinks bounds links per request
	MaxLinks int
	// AsyncWait makes a job async when the governor would hold it longer
	AsyncWait time.Duration
	// AsyncComments makes a job async when targets x posts x comments exceeds it
	AsyncComments int
	// SyncRetryWait is the longest hint a sync job waits out for its single retry
	SyncRetryWait time.Duration
	// RetryBudget is the number of continuation retries per target in async jobs
	RetryBudget int
	// RetryMin is the floor of any retry delay
	RetryMin time.Duration
	// RetryMaxWait fails a target whose retry hint is longer than this
	RetryMaxWait time.Duration
	// NotifyTimeout bounds one notifier call
	NotifyTimeout time.Duration
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Workers:       8,
		MaxLinks:      10,
		AsyncWait:     3 * time.Second,
		AsyncComments: 20000,
		SyncRetryWait: 3 * time.Second,
		RetryBudget:   3,
		RetryMin:      500 * time.Millisecond,
		RetryMaxWait:  2 * time.Minute,
		NotifyTimeout: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxLinks <= 0 {
		c.MaxLinks = d.MaxLinks
	}
	if c.AsyncWait <= 0 {
		c.AsyncWait = d.AsyncWait
	}
	if c.AsyncComments <= 0 {
		c.AsyncComments = d.AsyncComments
	}
	if c.SyncRetryWait <= 0 {
		c.SyncRetryWait = d.SyncRetryWait
	}
	if c.RetryBudget < 0 {
		c.RetryBudget = 0
	}
	if c.RetryMin <= 0 {
		c.RetryMin = d.RetryMin
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = d.RetryMaxWait
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	return c
}

// Deps are the collaborators of the orchestrator
type Deps struct {
	Adapters []domain.Adapter
	Governor domain.Governor
	Cache    domain.Cache
	Notifier domain.Notifier
	Pipeline *pipeline.Pipeline
	Clock    ptime.Clock
	// NewID defaults to uuid v4
	NewID func() string
}

// Cancellation causes
var (
	errCancelRequested = errors.New("cancelled by request")
	errCallerLeft      = errors.New("caller went away")
	errShutdown        = errors.New("service shutting down")
)

// Svc implements domain.ServicePort
type Svc struct {
	cfg      Config
	adapters map[links.Platform]domain.Adapter
	gov      domain.Governor
	cache    domain.Cache
	notifier domain.Notifier
	pipe     *pipeline.Pipeline
	clock    ptime.Clock
	newID    func() string
	sem      *semaphore.Weighted
	log      *logger.Logger

	mu   sync.Mutex
	jobs map[string]*job // live jobs by id
	byFP map[string]*job // live jobs by fingerprint

	handoff chan retry
	ready   chan retry
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

var _ domain.ServicePort = (*Svc)(nil)

// New wires the orchestrator and starts its continuation worker; Close stops it
func New(d Deps, cfg Config) *Svc {
	if d.Cache == nil || d.Pipeline == nil {
		panic("pulse service requires a cache and a pipeline")
	}
	cfg = cfg.withDefaults()
	s := &Svc{
		cfg:      cfg,
		adapters: map[links.Platform]domain.Adapter{},
		gov:      d.Governor,
		cache:    d.Cache,
		notifier: d.Notifier,
		pipe:     d.Pipeline,
		clock:    ptime.OrSystem(d.Clock),
		newID:    d.NewID,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		log:      logger.Named("pulse"),
		jobs:     map[string]*job{},
		byFP:     map[string]*job{},
		handoff:  make(chan retry, 64),
		ready:    make(chan retry, 64),
		stop:     make(chan struct{}),
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	for _, a := range d.Adapters {
		if a != nil {
			s.adapters[a.Platform()] = a
		}
	}
	s.wg.Add(1)
	go s.continuation()
	return s
}

// Close cancels live jobs and stops the continuation worker
func (s *Svc) Close() error {
	s.stopped.Do(func() {
		s.mu.Lock()
		live := make([]*job, 0, len(s.jobs))
		for _, j := range s.jobs {
			live = append(live, j)
		}
		s.mu.Unlock()
		for _, j := range live {
			j.cancel(errShutdown)
		}
		close(s.stop)
	})
	s.wg.Wait()
	return nil
}

// Config returns the effective configuration
func (s *Svc) Config() Config { return s.cfg }

func (s *Svc) live(id string) *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *Svc) forget(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.id] == j {
		delete(s.jobs, j.id)
	}
	if s.byFP[j.fp] == j {
		delete(s.byFP, j.fp)
	}
}

// persist stores the current snapshot; cache failures are logged and otherwise ignored
func (s *Svc) persist(ctx context.Context, snap domain.Job) {
	if err := s.cache.PutJob(context.WithoutCancel(ctx), snap); err != nil {
		logger.C(ctx).Warn().Err(err).Str("state", string(snap.State)).Msg("job snapshot not cached")
	}
}
