package cache

import (
	"context"
	"sync"
	"time"

	ptime "audiencepulse/internal/platform/time"
	"audiencepulse/internal/services/pulse/domain"
)

type entry[T any] struct {
	val     T
	expires time.Time
}

// Memory is the in-process backend
type Memory struct {
	mu     sync.Mutex
	opt    Options
	clock  ptime.Clock
	claims map[string]entry[string]
	jobs   map[string]entry[domain.Job]
	done   map[string]entry[string] // fingerprint -> completed job id
	colls  map[string]entry[domain.Collection]
}

var _ domain.Cache = (*Memory)(nil)

// NewMemory builds an empty in-process cache; a nil clock uses the wall clock
func NewMemory(opt Options, clock ptime.Clock) *Memory {
	return &Memory{
		opt:    opt.withDefaults(),
		clock:  ptime.OrSystem(clock),
		claims: map[string]entry[string]{},
		jobs:   map[string]entry[domain.Job]{},
		done:   map[string]entry[string]{},
		colls:  map[string]entry[domain.Collection]{},
	}
}

func live[T any](e entry[T], ok bool, now time.Time) bool { return ok && now.Before(e.expires) }

// Claim takes the build slot of fingerprint when it is free or expired
func (m *Memory) Claim(_ context.Context, fingerprint, jobID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if e, ok := m.claims[fingerprint]; live(e, ok, now) && e.val != jobID {
		return e.val, false, nil
	}
	m.claims[fingerprint] = entry[string]{val: jobID, expires: now.Add(m.opt.ClaimTTL)}
	return jobID, true, nil
}

// Release frees the slot if jobID still holds it
func (m *Memory) Release(_ context.Context, fingerprint, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.claims[fingerprint]; ok && e.val == jobID {
		delete(m.claims, fingerprint)
	}
	return nil
}

// PutJob stores a snapshot copy; completed jobs also become the fingerprint's answer
func (m *Memory) PutJob(_ context.Context, j domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := m.clock.Now().Add(m.opt.TTL)
	m.jobs[j.ID] = entry[domain.Job]{val: j.Clone(), expires: exp}
	if j.State == domain.StateCompleted {
		m.done[j.Fingerprint] = entry[string]{val: j.ID, expires: exp}
	}
	return nil
}

// Job returns the snapshot stored for id
func (m *Memory) Job(_ context.Context, id string) (domain.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[id]
	if !live(e, ok, m.clock.Now()) {
		return domain.Job{}, false, nil
	}
	return e.val.Clone(), true, nil
}

// Completed returns the completed snapshot for fingerprint
func (m *Memory) Completed(ctx context.Context, fingerprint string) (domain.Job, bool, error) {
	m.mu.Lock()
	e, ok := m.done[fingerprint]
	alive := live(e, ok, m.clock.Now())
	m.mu.Unlock()
	if !alive {
		return domain.Job{}, false, nil
	}
	return m.Job(ctx, e.val)
}

// PutCollection stores one target's collection
func (m *Memory) PutCollection(_ context.Context, c domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.FromCache = false
	m.colls[c.Key()] = entry[domain.Collection]{val: c, expires: m.clock.Now().Add(m.opt.TTL)}
	return nil
}

// Collection returns the cached collection stored under key (see domain.CollectionKey)
func (m *Memory) Collection(_ context.Context, key string) (domain.Collection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.colls[key]
	if !live(e, ok, m.clock.Now()) {
		return domain.Collection{}, false, nil
	}
	c := e.val
	c.FromCache = true
	return c, true, nil
}

// Sweep drops everything expired
func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	n := sweep(m.claims, now) + sweep(m.jobs, now) + sweep(m.done, now) + sweep(m.colls, now)
	return n, nil
}

func sweep[T any](m map[string]entry[T], now time.Time) int {
	n := 0
	for k, e := range m {
		if !now.Before(e.expires) {
			delete(m, k)
			n++
		}
	}
	return n
}

// Close is a no-op for the memory backend
func (m *Memory) Close() error { return nil }
