package main

import (
	"context"
	"os"

	"solvency/internal/bootstrap"
	"solvency/internal/config"
	httpinfra "solvency/internal/infra/http"
	"solvency/internal/infra/logging"
)

func main() {
	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	app, err := bootstrap.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init pipeline")
	}
	defer app.Close()

	var sessions httpinfra.SessionSourceFactory
	if cfg.CoordinatorURL != "" {
		sessions = app.SessionSource
	}
	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Store:           app.Store,
		ArtifactBackend: app.ArtifactBackend,
		Pipeline:        app.Pipeline,
		Exporter:        app.Exporter,
		History:         app.History,
		Registry:        app.Registry,
		Sessions:        sessions,
		Metrics:         app.Metrics,
		RateLimiter:     app.RateLimiter,
		Log:             log,
	})
	log.WithField("addr", cfg.HTTPAddr).Info("solvencyd listening")
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
