package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"symptom-triage/internal/api"
	"symptom-triage/internal/app"
	"symptom-triage/internal/config"
	"symptom-triage/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize symptom analyzer")
	}
	defer application.Close()

	srv := api.NewServer(cfg.Port, application.Analyzer, application.Registry, logging.WithComponent("api"))
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("API server stopped")
		application.Close()
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}
