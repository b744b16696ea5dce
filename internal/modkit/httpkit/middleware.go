package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"audiencepulse/internal/platform/config"
	"audiencepulse/internal/platform/net/middleware"
)

// StackOptions tunes CommonStack
type StackOptions struct {
	CORSOrigins []string
	Timeout     time.Duration
	SlowRequest time.Duration
	MaxInFlight int
}

// StackFromConfig reads CORS_ORIGINS, REQUEST_TIMEOUT, SLOW_REQUEST and MAX_INFLIGHT
func StackFromConfig(cfg config.Conf) StackOptions {
	return StackOptions{
		CORSOrigins: cfg.MayCSV("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost"}),
		Timeout:     cfg.MayDuration("REQUEST_TIMEOUT", 90*time.Second),
		SlowRequest: cfg.MayDuration("SLOW_REQUEST", 2*time.Second),
		MaxInFlight: cfg.MayInt("MAX_INFLIGHT", 0),
	}
}

// CommonStack returns the baseline middleware for the versioned API
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),

		// observability, outside recovery so panics are logged with their status
		middleware.AccessLog(middleware.AccessLogOptions{Slow: o.SlowRequest}),

		// safety
		middleware.RecoverJSON,
		middleware.Throttle(o.MaxInFlight, timeout),

		middleware.NoCache(),
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.CORSOrigins, AllowCredentials: true}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes(),
		middleware.Timeout(timeout),
	}
}
