// Package api provides the HTTP API for the application
package api

import (
	"context"
	"net/http"

	"audiencepulse/internal/platform/config"
	"audiencepulse/internal/platform/logger"
	phttp "audiencepulse/internal/platform/net/http"
	"audiencepulse/internal/platform/store"

	"audiencepulse/internal/modkit"
	"audiencepulse/internal/modkit/httpkit"
	"audiencepulse/internal/modkit/module"
	"audiencepulse/internal/modkit/swaggerkit"

	metamod "audiencepulse/internal/services/api/meta/module"
	pulsemod "audiencepulse/internal/services/pulse/module"
)

// LiveMessage is the body of the root liveness endpoint
const LiveMessage = "Audience Pulse API is live"

// Options are the API options
type Options struct {
	// Config is the root config; modules take their own prefixes from it
	Config        config.Conf
	Stack         httpkit.StackOptions
	Store         *store.Store
	Logger        *logger.Logger
	EnableSwagger bool
	Profiler      phttp.ProfilerOptions
}

// API is the mounted application; Close releases what the modules started
type API struct {
	mods []module.Module
}

// Mount mounts the API service onto the given router
func Mount(ctx context.Context, r phttp.Router, opt Options) (*API, error) {
	deps := modkit.Deps{Cfg: opt.Config, Store: opt.Store, Log: *logger.Get()}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	pulse, err := pulsemod.New(ctx, deps, pulsemod.FromConfig(opt.Config))
	if err != nil {
		return nil, err
	}

	mods := []module.Module{
		metamod.New(deps),
		pulse,
	}

	stack := httpkit.CommonStack(opt.Stack)

	// root liveness, unversioned and without the envelope
	r.Group(func(g httpkit.Router) {
		g.Use(stack...)
		httpkit.Get(g, "/", func(*http.Request) (any, error) {
			return httpkit.Raw(http.StatusOK, map[string]string{"message": LiveMessage}), nil
		})
	})

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, opt.Profiler)

	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		module.Mount(api, mods...)
	})
	deps.Log.Info().Strs("modules", module.Names()).Msg("api mounted")

	return &API{mods: mods}, nil
}

// Close cancels live jobs and stops background work
func (a *API) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	return module.CloseAll(ctx, a.mods...)
}
