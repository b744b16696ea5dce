package cache

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// DefaultSweepSchedule runs the janitor once a minute
const DefaultSweepSchedule = "@every 1m"

// Janitor sweeps a cache on a cron schedule
type Janitor struct {
	cache   domain.Cache
	cron    *cron.Cron
	entry   cron.EntryID
	timeout time.Duration
	log     *logger.Logger
}

// NewJanitor registers the sweep; the schedule uses robfig/cron syntax ("@every 30s", "*/5 * * * *")
func NewJanitor(c domain.Cache, schedule string) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	j := &Janitor{
		cache:   c,
		cron:    cron.New(),
		timeout: 30 * time.Second,
		log:     logger.Named("cache-janitor"),
	}
	id, err := j.cron.AddFunc(schedule, j.SweepOnce)
	if err != nil {
		return nil, err
	}
	j.entry = id
	return j, nil
}

// SweepOnce runs a single sweep with the janitor's timeout
func (j *Janitor) SweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	n, err := j.cache.Sweep(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("cache sweep failed")
		return
	}
	if n > 0 {
		j.log.Debug().Int("removed", n).Msg("cache swept")
	}
}

// Start begins the schedule in its own goroutine
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep, bounded by ctx
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
