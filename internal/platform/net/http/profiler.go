package http

import (
	stdhttp "net/http"
	"strings"

	mw "github.com/go-chi/chi/v5/middleware"

	"audiencepulse/internal/platform/config"
)

// ProfilerOptions controls the pprof mount; off unless enabled
type ProfilerOptions struct {
	Enabled bool
	// Prefix is where pprof lives, "/debug" serves /debug/pprof/
	Prefix string
}

// ProfilerFromConfig reads PROFILER and PROFILER_PREFIX from an API scoped Conf
func ProfilerFromConfig(cfg config.Conf) ProfilerOptions {
	return ProfilerOptions{
		Enabled: cfg.MayBool("PROFILER", false),
		Prefix:  cfg.MayString("PROFILER_PREFIX", "/debug"),
	}
}

// MountProfiler serves pprof under o.Prefix when enabled
func MountProfiler(r Router, o ProfilerOptions) {
	if !o.Enabled {
		return
	}
	prefix := "/" + strings.Trim(o.Prefix, "/")
	if prefix == "/" {
		prefix = "/debug"
	}
	h := stdhttp.StripPrefix(prefix, mw.Profiler())
	r.Handle(prefix, h)
	r.Handle(prefix+"/*", h)
}
