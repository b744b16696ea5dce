package domain

import (
	"context"
	"time"

	"audiencepulse/internal/core/content"
	"audiencepulse/internal/core/links"
)

// Adapter fetches one target from one platform. Items are most recent first and already
// bounded by limits; the bool reports whether more items were available than sampled
type Adapter interface {
	Platform() links.Platform
	Fetch(ctx context.Context, t links.Target, l content.Limits) (content.Profile, []content.Item, bool, error)
}

// CostEstimator is implemented by adapters that can predict their upstream call count
type CostEstimator interface {
	EstimateCost(t links.Target, l content.Limits) int
}

// Reservation is the governor's answer to a reserve call
type Reservation struct {
	Granted bool
	Wait    time.Duration
}

// Governor gates upstream calls per (platform, credential)
type Governor interface {
	Reserve(p links.Platform, credential string, cost int) Reservation
	Estimate(p links.Platform, cost int) time.Duration
	Pick(p links.Platform) string
}

// Cache holds job snapshots and per-target collections for a bounded time
type Cache interface {
	// Claim atomically takes the build slot of fingerprint for jobID; when another job
	// holds it the owner's id is returned with claimed=false
	Claim(ctx context.Context, fingerprint, jobID string) (owner string, claimed bool, err error)
	// Release frees the build slot if jobID still owns it
	Release(ctx context.Context, fingerprint, jobID string) error

	PutJob(ctx context.Context, j Job) error
	Job(ctx context.Context, id string) (Job, bool, error)
	// Completed returns the completed snapshot stored for fingerprint
	Completed(ctx context.Context, fingerprint string) (Job, bool, error)

	PutCollection(ctx context.Context, c Collection) error
	Collection(ctx context.Context, key string) (Collection, bool, error)

	// Sweep drops expired entries and returns how many went
	Sweep(ctx context.Context) (int, error)
	Close() error
}

// Notifier is told once about every job reaching a terminal state
type Notifier interface {
	Notify(ctx context.Context, n JobNotification) error
}

// ServicePort is the orchestrator surface used by the transports
type ServicePort interface {
	Analyze(ctx context.Context, req Request) (Outcome, error)
	Job(ctx context.Context, id string) (Job, error)
	Cancel(ctx context.Context, id string) (Job, error)
	Resolve(raw []string) (links.Resolution, error)
	Subscribe(ctx context.Context, id string) (<-chan Event, func(), error)
}
