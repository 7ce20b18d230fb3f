package heatmap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

func gain(v float64) *float64 { return &v }

func TestRenderHTMLRequiresPoints(t *testing.T) {
	if _, err := RenderHTML(nil, telemetry.MetricRSSI, DefaultSettings()); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v", err)
	}
}

func TestRenderHTMLCentresOnMean(t *testing.T) {
	points := []telemetry.HeatmapPoint{
		{Latitude: 10, Longitude: 20, Intensity: -90, Samples: 2},
		{Latitude: 20, Longitude: 40, Intensity: -70, Samples: 1, AntennaGainDbi: gain(3)},
	}
	s := DefaultSettings()
	s.TileURL = "https://tiles.example.com/{z}/{x}/{y}.png"

	page, err := RenderHTML(points, telemetry.MetricRSSI, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := string(page)
	for _, want := range []string{
		`setView\(\[\s*15\s*,\s*30\s*\],\s*11\s*\)`,
		`tiles\.example\.com`,
		`minOpacity:\s*0\.3\s*,`,
		`radius:\s*18\s*,`,
		`leaflet-heat\.js`,
	} {
		if !regexp.MustCompile(want).MatchString(html) {
			t.Errorf("page does not match %q", want)
		}
	}
}

func TestTooltip(t *testing.T) {
	p := telemetry.HeatmapPoint{Intensity: -87.26, Samples: 4}
	if got, want := Tooltip(p, telemetry.MetricRSSI), "rssi_dbm: -87.3\nSamples: 4\nAntenna gain: n/a dBi"; got != want {
		t.Fatalf("tooltip = %q, want %q", got, want)
	}
	p.AntennaGainDbi = gain(5.5)
	if got := Tooltip(p, telemetry.MetricSNR); !strings.HasSuffix(got, "Antenna gain: 5.5 dBi") {
		t.Fatalf("unexpected tooltip %q", got)
	}
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "maps", "heatmap.html")
	points := []telemetry.HeatmapPoint{{Latitude: 1, Longitude: 1, Intensity: 5, Samples: 1}}

	if err := WriteFile(points, path, telemetry.MetricSNR, DefaultSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Contains(data, []byte("snr_db")) {
		t.Fatal("metric missing from output")
	}
}

func TestDashboard(t *testing.T) {
	var buf bytes.Buffer
	if err := Dashboard(&buf, DashboardOptions{Settings: DefaultSettings(), FiltersEnabled: true, AutoRefreshMs: 30000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `id="filters"`) || !strings.Contains(buf.String(), "30000") {
		t.Fatal("filtered dashboard not rendered")
	}

	buf.Reset()
	if err := Dashboard(&buf, DashboardOptions{Settings: DefaultSettings(), AutoRefreshMs: 60000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), `id="filters"`) || !strings.Contains(buf.String(), "Full dataset") {
		t.Fatal("full dashboard should not render filters")
	}
}

func TestIngestConsole(t *testing.T) {
	var buf bytes.Buffer
	if err := IngestConsole(&buf, DefaultSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "/ping-samples") || !strings.Contains(buf.String(), "navigator.serial") {
		t.Fatal("ingest console incomplete")
	}
}
