package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/meshcore-heatmap/internal/heatmap"
	"github.com/i474232898/meshcore-heatmap/internal/logging"
)

type AppConfig struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite:///data/meshcore_heatmap_dev.db" validate:"required"`
	Port        string `env:"PORT" envDefault:"8080" validate:"required,numeric"`

	// Map rendering. An empty tile URL selects OpenStreetMap.
	MapTileURL        string  `env:"MAP_TILE_URL"`
	HeatmapMinOpacity float64 `env:"HEATMAP_MIN_OPACITY" envDefault:"0.3" validate:"gte=0,lte=1"`
	HeatmapRadius     int     `env:"HEATMAP_RADIUS" envDefault:"18" validate:"gte=1"`
	HeatmapBlur       int     `env:"HEATMAP_BLUR" envDefault:"15" validate:"gte=0"`
	HeatmapMaxZoom    int     `env:"HEATMAP_MAX_ZOOM" envDefault:"18" validate:"gte=1,lte=22"`

	// SampleRetention is how long samples are kept (0 = forever). The prune
	// job runs every PruneInterval.
	SampleRetention time.Duration `env:"SAMPLE_RETENTION" envDefault:"0s" validate:"gte=0"`
	PruneInterval   time.Duration `env:"PRUNE_INTERVAL" envDefault:"1h" validate:"gte=1m"`

	GeocoderAPIKey string        `env:"GEOCODER_API_KEY"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// Load reads .env (if present) and the environment, applying defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Err(err).Msg("no .env file loaded")
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*AppConfig, error) {
	cfg, err := env.ParseAs[AppConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// HeatmapSettings returns the map rendering options.
func (c *AppConfig) HeatmapSettings() heatmap.Settings {
	return heatmap.Settings{
		TileURL:    c.MapTileURL,
		MinOpacity: c.HeatmapMinOpacity,
		Radius:     c.HeatmapRadius,
		Blur:       c.HeatmapBlur,
		MaxZoom:    c.HeatmapMaxZoom,
	}
}

// Logging returns the logger configuration.
func (c *AppConfig) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}
