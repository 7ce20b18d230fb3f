package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/i474232898/meshcore-heatmap/internal/cli"
	"github.com/i474232898/meshcore-heatmap/internal/config"
	"github.com/i474232898/meshcore-heatmap/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], &cli.Env{Config: cfg, Stdout: os.Stdout, Stderr: os.Stderr})
	stop()
	os.Exit(code)
}
