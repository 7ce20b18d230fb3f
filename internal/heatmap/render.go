package heatmap

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// ErrNoPoints is returned when there is nothing to render.
var ErrNoPoints = errors.New("no heatmap points available to render")

// DefaultZoom is the initial zoom of rendered maps.
const DefaultZoom = 11

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html.tmpl"))

type marker struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Tooltip string  `json:"tooltip"`
}

type mapPage struct {
	Metric      telemetry.Metric
	CenterLat   float64
	CenterLon   float64
	Zoom        int
	TileURL     string
	Attribution string
	Settings    Settings
	Heat        [][3]float64
	Markers     []marker
}

// RenderHTML returns a standalone Leaflet page with a heat layer and one
// circle marker per point, centred on the mean point location.
func RenderHTML(points []telemetry.HeatmapPoint, metric telemetry.Metric, s Settings) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}

	page := mapPage{
		Metric:      metric,
		Zoom:        DefaultZoom,
		TileURL:     s.tileURL(),
		Attribution: defaultAttribution,
		Settings:    s,
		Heat:        make([][3]float64, 0, len(points)),
		Markers:     make([]marker, 0, len(points)),
	}
	for _, p := range points {
		page.CenterLat += p.Latitude
		page.CenterLon += p.Longitude
		page.Heat = append(page.Heat, [3]float64{p.Latitude, p.Longitude, p.Intensity})
		page.Markers = append(page.Markers, marker{Lat: p.Latitude, Lon: p.Longitude, Tooltip: Tooltip(p, metric)})
	}
	page.CenterLat /= float64(len(points))
	page.CenterLon /= float64(len(points))

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "map.html.tmpl", page); err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

// Tooltip is the hover text of a point's marker.
func Tooltip(p telemetry.HeatmapPoint, metric telemetry.Metric) string {
	gain := "n/a"
	if p.AntennaGainDbi != nil {
		gain = strconv.FormatFloat(*p.AntennaGainDbi, 'f', -1, 64)
	}
	return fmt.Sprintf("%s: %.1f\nSamples: %d\nAntenna gain: %s dBi", metric, p.Intensity, p.Samples, gain)
}

// WriteFile renders points to path, creating parent directories.
func WriteFile(points []telemetry.HeatmapPoint, path string, metric telemetry.Metric, s Settings) error {
	page, err := RenderHTML(points, metric, s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("write heatmap: %w", err)
	}
	return nil
}

// DashboardOptions configures the live dashboard page.
type DashboardOptions struct {
	Settings       Settings
	FiltersEnabled bool
	AutoRefreshMs  int
}

type dashboardPage struct {
	DashboardOptions
	TileURL     string
	Attribution string
	Metrics     []telemetry.Metric
}

// Dashboard writes the live heatmap dashboard, which polls /heatmap.
func Dashboard(w io.Writer, opts DashboardOptions) error {
	return templates.ExecuteTemplate(w, "index.html.tmpl", dashboardPage{
		DashboardOptions: opts,
		TileURL:          opts.Settings.tileURL(),
		Attribution:      defaultAttribution,
		Metrics:          []telemetry.Metric{telemetry.MetricRSSI, telemetry.MetricSNR, telemetry.MetricRoundTrip},
	})
}

// IngestConsole writes the Web Serial ingestion console, which posts to
// /ping-samples.
func IngestConsole(w io.Writer, s Settings) error {
	return templates.ExecuteTemplate(w, "ingest.html.tmpl", struct {
		TileURL     string
		Attribution string
	}{s.tileURL(), defaultAttribution})
}
