// Package store opens the optional shared backends: redis for the result cache and
// NATS for job notifications
package store

import (
	"context"
	"errors"
	"fmt"

	"audiencepulse/internal/platform/logger"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Store is the facade for optional backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	Log logger.Logger

	// Redis is nil when disabled
	Redis *redis.Client

	// NATS is nil when disabled
	NATS *nats.Conn
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
// backends not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.Log = s.Log.With().Str("component", "store").Logger()

	if cfg.RDS.Enabled {
		rdb, err := openRedis(ctx, cfg.RDS, s)
		if err != nil {
			return nil, err
		}
		s.Redis = rdb
	}

	if cfg.NATS.Enabled {
		nc, err := openNATS(cfg.NATS, s)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.NATS = nc
	}

	return s, nil
}

// Ping verifies every configured backend; it satisfies the readiness Pinger
func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.NATS != nil && !s.NATS.IsConnected() {
		errs = append(errs, fmt.Errorf("nats: %s", s.NATS.Status()))
	}
	return errors.Join(errs...)
}

// Close closes all initialized backends; nil backends are ignored
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.NATS != nil {
		if err := s.NATS.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
