package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/meshcore-heatmap/internal/api/http"
	"github.com/i474232898/meshcore-heatmap/internal/config"
	"github.com/i474232898/meshcore-heatmap/internal/geocode"
	"github.com/i474232898/meshcore-heatmap/internal/logging"
	"github.com/i474232898/meshcore-heatmap/internal/scheduler"
	"github.com/i474232898/meshcore-heatmap/internal/store"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging())

	// Open the database and apply migrations.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	sampleStore, target, err := store.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer sampleStore.Close()

	// Place-name filters need a geocoding API key.
	var locator telemetry.Locator
	if cfg.GeocoderAPIKey != "" {
		locator = geocode.New(cfg.GeocoderAPIKey)
	}

	service := telemetry.NewService(sampleStore, locator)

	// Retention pruning.
	sched := scheduler.New(cfg.SampleRetention, cfg.PruneInterval, service)
	if err := sched.Start(); err != nil {
		logging.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, httpapi.Options{
		Heatmap:     cfg.HeatmapSettings(),
		DatabaseURL: target.Redacted,
	})

	go func() {
		logging.Info().Str("port", cfg.Port).Str("database", target.Redacted).Msg("server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			logging.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during shutdown")
	}
}
