// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"net/http"
	"time"

	"audiencepulse/internal/core/version"
	"audiencepulse/internal/modkit"
	"audiencepulse/internal/modkit/httpkit"
	str "audiencepulse/internal/platform/strings"

	metahttp "audiencepulse/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	built     modkit.Built
	deps      metahttp.Deps
	startedAt time.Time
}

// New constructs a meta module; the store, when present, backs the readiness probe
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	checks := map[string]metahttp.Pinger{"store": nil}
	if deps.Store != nil {
		checks["store"] = deps.Store
	}
	m := &Module{built: b, startedAt: time.Now()}
	m.deps = metahttp.Deps{
		ServiceName: version.Service,
		StartedAt:   m.startedAt,
		Checks:      checks,
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(rr httpkit.Router) { metahttp.Register(rr, m.deps) })
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.FirstNonEmpty(m.built.Name, "meta") }

// Prefix is the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.built.Prefix) }

// Middlewares is the module middleware
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.built.Mw }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
