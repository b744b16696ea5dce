package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

var sleep = time.Sleep

// openRedis dials redis and waits for a successful ping with capped exponential backoff
func openRedis(ctx context.Context, cfg RedisConfig, s *Store) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)
	attempts := max(cfg.ConnectRetries, 1)
	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = rdb.Ping(pctx).Err()
		cancel()
		if lastErr == nil {
			s.Log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("redis connected")
			return rdb, nil
		}
		if ctx.Err() != nil {
			_ = rdb.Close()
			return nil, ctx.Err()
		}
		s.Log.Warn().Err(lastErr).Int("attempt", i+1).Dur("backoff", backoff).Msg("redis ping failed")
		sleep(backoff)
		backoff = min(backoff*2, backoffCeiling)
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}

// openNATS connects with reconnect handlers that log through the store logger
func openNATS(cfg NATSConfig, s *Store) (*nats.Conn, error) {
	log := s.Log
	nc, err := nats.Connect(cfg.URL,
		nats.Name("audiencepulse"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info().Msg("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("nats connected")
	return nc, nil
}
