// @title         Audience Pulse API
// @version       1.0.0
// @description   Audience insight reports for public Instagram, Facebook and YouTube accounts

package main

import (
	"context"
	"os/signal"
	"syscall"

	"audiencepulse/internal/core/version"
	"audiencepulse/internal/modkit/httpkit"
	"audiencepulse/internal/platform/config"
	"audiencepulse/internal/platform/logger"
	phttp "audiencepulse/internal/platform/net/http"
	"audiencepulse/internal/platform/store"

	"audiencepulse/internal/services/api"
)

func main() {
	// .env first so every reader below sees it
	_ = config.LoadDotEnv()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	l := logger.Get()
	l.Info().Str("build", version.Info().String()).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// optional backends (REDIS_*, NATS_*)
	st, err := store.Open(ctx, store.ConfigFromEnv(root), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads CORE_API_PORT / CORE_API_SHUTDOWN_GRACE)
	srv := phttp.NewServer(apiCfg)

	app, err := api.Mount(ctx, srv.Router(), api.Options{
		Config:        root,
		Stack:         httpkit.StackFromConfig(apiCfg),
		Store:         st,
		Logger:        l,
		EnableSwagger: apiCfg.MayBool("SWAGGER", true),
		Profiler:      phttp.ProfilerFromConfig(apiCfg),
	})
	if err != nil {
		l.Panic().Err(err).Msg("api.Mount failed")
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to stop api")
		}
	}()

	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
}
