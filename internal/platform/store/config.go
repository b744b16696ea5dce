package store

import (
	"time"

	"audiencepulse/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	RDS  RedisConfig
	NATS NATSConfig
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int

	// boot knobs
	ConnectRetries int
	PingTimeout    time.Duration
}

// NATSConfig configures nats connectivity
type NATSConfig struct {
	Enabled        bool
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// ConfigFromEnv reads REDIS_* and NATS_* from root
func ConfigFromEnv(root config.Conf) Config {
	r := root.Prefix("REDIS_")
	n := root.Prefix("NATS_")
	return Config{
		RDS: RedisConfig{
			Enabled:        r.MayBool("ENABLED", false),
			Addr:           r.MayString("ADDR", "localhost:6379"),
			Password:       r.MayString("PASSWORD", ""),
			DB:             r.MayInt("DB", 0),
			ConnectRetries: r.MayIntIn("CONNECT_RETRIES", 6, 1, 20),
			PingTimeout:    r.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		NATS: NATSConfig{
			Enabled:        n.MayBool("ENABLED", false),
			URL:            n.MayString("URL", "nats://localhost:4222"),
			MaxReconnects:  n.MayInt("MAX_RECONNECTS", 10),
			ReconnectWait:  n.MayDuration("RECONNECT_WAIT", 2*time.Second),
			ConnectTimeout: n.MayDuration("CONNECT_TIMEOUT", 5*time.Second),
		},
	}
}
