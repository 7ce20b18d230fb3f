// Package cli implements the heatmapctl subcommands.
package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/google/subcommands"

	"github.com/i474232898/meshcore-heatmap/internal/config"
	"github.com/i474232898/meshcore-heatmap/internal/geocode"
	"github.com/i474232898/meshcore-heatmap/internal/store"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// Env is shared by every subcommand.
type Env struct {
	Config *config.AppConfig
	Stdout io.Writer
	Stderr io.Writer
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.Stdout, format+"\n", args...)
}

func (e *Env) errorf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

// openService opens the configured store and wraps it in a Service. The
// caller closes the returned store.
func (e *Env) openService(ctx context.Context) (*telemetry.Service, telemetry.Store, store.Target, error) {
	s, target, err := store.Open(ctx, e.Config.DatabaseURL)
	if err != nil {
		return nil, nil, store.Target{}, err
	}
	var locator telemetry.Locator
	if e.Config.GeocoderAPIKey != "" {
		locator = geocode.New(e.Config.GeocoderAPIKey)
	}
	return telemetry.NewService(s, locator), s, target, nil
}

// Run parses args and executes the selected subcommand.
func Run(ctx context.Context, args []string, env *Env) int {
	fs := flag.NewFlagSet("heatmapctl", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	databaseURL := fs.String("database-url", env.Config.DatabaseURL, "database URL; overrides DATABASE_URL")

	cdr := subcommands.NewCommander(fs, "heatmapctl")
	cdr.Output = env.Stdout
	cdr.Error = env.Stderr
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(cdr.CommandsCommand(), "")
	cdr.Register(&initDBCmd{env: env}, "database")
	cdr.Register(&pruneCmd{env: env}, "database")
	cdr.Register(&ingestSampleCmd{env: env}, "samples")
	cdr.Register(&pushCmd{env: env}, "samples")
	cdr.Register(&exportHeatmapCmd{env: env}, "heatmap")

	if err := fs.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	env.Config.DatabaseURL = *databaseURL
	return int(cdr.Execute(ctx))
}

var errFileNotFound = errors.New("file not found")

// readSamples loads a JSON object or array of samples from path.
func readSamples(path string) ([]telemetry.SampleInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errFileNotFound, path)
		}
		return nil, err
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var samples []telemetry.SampleInput
		if err := json.Unmarshal(trimmed, &samples); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return samples, nil
	}
	var one telemetry.SampleInput
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []telemetry.SampleInput{one}, nil
}
