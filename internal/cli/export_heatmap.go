package cli

import (
	"context"
	"errors"
	"flag"

	"github.com/google/subcommands"

	"github.com/i474232898/meshcore-heatmap/internal/heatmap"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

type exportHeatmapCmd struct {
	env *Env

	output        string
	metric        string
	hours         int
	hardwareModel string
	antennaModel  string
	near          string
	radiusKm      float64
}

func (*exportHeatmapCmd) Name() string     { return "export-heatmap" }
func (*exportHeatmapCmd) Synopsis() string { return "Export a heatmap HTML file for offline viewing." }
func (*exportHeatmapCmd) Usage() string {
	return "export-heatmap -o <path> [-metric rssi_dbm] [-hours N] [-hardware-model M] [-antenna-model M] [-near place [-radius-km R]]\n"
}

func (c *exportHeatmapCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "path for the generated heatmap HTML file (required)")
	f.StringVar(&c.output, "output", "", "alias for -o")
	f.StringVar(&c.metric, "metric", string(telemetry.DefaultMetric), "metric to visualize: rssi_dbm, snr_db or round_trip_ms")
	f.IntVar(&c.hours, "hours", 0, "limit to samples within the last N hours")
	f.StringVar(&c.hardwareModel, "hardware-model", "", "filter by radio model")
	f.StringVar(&c.antennaModel, "antenna-model", "", "filter by antenna model")
	f.StringVar(&c.near, "near", "", "limit to samples around a place name (needs GEOCODER_API_KEY)")
	f.Float64Var(&c.radiusKm, "radius-km", telemetry.DefaultRadiusKm, "radius around -near in km")
}

func (c *exportHeatmapCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.output == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	metric, err := telemetry.ParseMetric(c.metric)
	if err != nil {
		return c.env.errorf("Unsupported metric: %s", c.metric)
	}

	svc, s, _, err := c.env.openService(ctx)
	if err != nil {
		return c.env.errorf("Failed to open database: %v", err)
	}
	defer s.Close()

	resp, err := svc.Heatmap(ctx, telemetry.HeatmapQuery{
		Metric:        metric,
		Hours:         c.hours,
		HardwareModel: c.hardwareModel,
		AntennaModel:  c.antennaModel,
		Near:          c.near,
		RadiusKm:      c.radiusKm,
	})
	if err != nil {
		return c.env.errorf("Failed to build heatmap: %v", err)
	}

	err = heatmap.WriteFile(resp.Points, c.output, metric, c.env.Config.HeatmapSettings())
	if errors.Is(err, heatmap.ErrNoPoints) {
		return c.env.errorf("No data available to render heatmap.")
	}
	if err != nil {
		return c.env.errorf("%v", err)
	}
	c.env.printf("Heatmap written to %s", c.output)
	return subcommands.ExitSuccess
}
