package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/meshcore-heatmap/internal/heatmap"
	"github.com/i474232898/meshcore-heatmap/internal/store"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	memStore := store.NewMemoryStore(0, 0)
	svc := telemetry.NewService(memStore, nil)
	return NewApp(svc, Options{Heatmap: heatmap.DefaultSettings(), DatabaseURL: "memory://"})
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func TestIngestAndHeatmap(t *testing.T) {
	app := newTestApp(t)

	resp, body := do(t, app, http.MethodPost, "/ping-samples",
		`{"origin_node_id":"a","target_node_id":"b","latitude":52.5,"longitude":13.4,"rssi_dbm":-100,"antenna_gain_dbi":2}`)
	expectStatus(t, resp, body, http.StatusCreated)

	var sample telemetry.PingSample
	if err := json.Unmarshal(body, &sample); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	if sample.ID != 1 || sample.CreatedAt.IsZero() {
		t.Fatalf("unexpected stored sample %+v", sample)
	}

	resp, body = do(t, app, http.MethodPost, "/ping-samples/bulk",
		`[{"origin_node_id":"a","target_node_id":"c","latitude":52.5,"longitude":13.4,"rssi_dbm":-80,"timestamp":"2030-01-01T00:00:00Z"},
		  {"origin_node_id":"a","target_node_id":"d","latitude":48.1,"longitude":11.6,"snr_db":4}]`)
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = do(t, app, http.MethodGet, "/heatmap", "")
	expectStatus(t, resp, body, http.StatusOK)

	var hm telemetry.HeatmapResponse
	if err := json.Unmarshal(body, &hm); err != nil {
		t.Fatalf("decode heatmap: %v", err)
	}
	if hm.Metric != telemetry.MetricRSSI || len(hm.Points) != 1 {
		t.Fatalf("unexpected heatmap %s", body)
	}
	p := hm.Points[0]
	if p.Intensity != -90 || p.Samples != 2 || *hm.MinValue != -90 || *hm.MaxValue != -90 {
		t.Fatalf("unexpected point %+v", p)
	}

	resp, body = do(t, app, http.MethodGet, "/heatmap?metric=snr_db&min_lat=40&max_lat=50&min_lon=10&max_lon=12", "")
	expectStatus(t, resp, body, http.StatusOK)
	if err := json.Unmarshal(body, &hm); err != nil {
		t.Fatalf("decode heatmap: %v", err)
	}
	if len(hm.Points) != 1 || hm.Points[0].Latitude != 48.1 {
		t.Fatalf("unexpected filtered heatmap %s", body)
	}

	resp, body = do(t, app, http.MethodGet, "/ping-samples/recent?limit=2", "")
	expectStatus(t, resp, body, http.StatusOK)
	var recent []telemetry.PingSample
	if err := json.Unmarshal(body, &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != 2 || recent[0].TargetNodeID != "c" {
		t.Fatalf("expected the future-dated sample first, got %s", body)
	}
}

func TestHeatmapEmpty(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/heatmap?metric=round_trip_ms&hours=24", "")
	expectStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), `"points":[]`) || !strings.Contains(string(body), `"min_value":null`) {
		t.Fatalf("unexpected empty heatmap %s", body)
	}
}

func TestValidationErrors(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"missing node id", http.MethodPost, "/ping-samples", `{"origin_node_id":"a"}`, http.StatusUnprocessableEntity},
		{"latitude out of range", http.MethodPost, "/ping-samples", `{"origin_node_id":"a","target_node_id":"b","latitude":95}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/ping-samples", `{"origin_node_id":`, http.StatusBadRequest},
		{"empty bulk", http.MethodPost, "/ping-samples/bulk", `[]`, http.StatusBadRequest},
		{"bad metric", http.MethodGet, "/heatmap?metric=altitude_m", "", http.StatusUnprocessableEntity},
		{"empty metric", http.MethodGet, "/heatmap?metric=", "", http.StatusUnprocessableEntity},
		{"hours zero", http.MethodGet, "/heatmap?hours=0", "", http.StatusUnprocessableEntity},
		{"hours too large", http.MethodGet, "/heatmap?hours=169", "", http.StatusUnprocessableEntity},
		{"partial bbox", http.MethodGet, "/heatmap?min_lat=1", "", http.StatusUnprocessableEntity},
		{"near without geocoder", http.MethodGet, "/heatmap?near=Berlin", "", http.StatusUnprocessableEntity},
		{"limit zero", http.MethodGet, "/ping-samples/recent?limit=0", "", http.StatusUnprocessableEntity},
		{"limit too large", http.MethodGet, "/ping-samples/recent?limit=501", "", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, tt.method, tt.target, tt.body)
			expectStatus(t, resp, body, tt.want)

			var payload struct {
				Error   bool   `json:"error"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if !payload.Error || payload.Message == "" {
				t.Fatalf("unexpected error body %s", body)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/health", "")
	expectStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), `"status":"ok"`) || !strings.Contains(string(body), `"database":"memory://"`) {
		t.Fatalf("unexpected health body %s", body)
	}
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestPages(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/", "/heatmap/full", "/ingest"} {
		resp, body := do(t, app, http.MethodGet, path, "")
		expectStatus(t, resp, body, http.StatusOK)
		if !strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/html") {
			t.Fatalf("%s: unexpected content type %q", path, resp.Header.Get(fiber.HeaderContentType))
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	_, _ = do(t, app, http.MethodGet, "/health", "")

	resp, body := do(t, app, http.MethodGet, "/metrics", "")
	expectStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), "meshcore_api_requests_total") {
		t.Fatal("api request counter not exported")
	}
}

func TestRecentDefaultsLimit(t *testing.T) {
	app := newTestApp(t)
	now := time.Now().UTC()
	var batch strings.Builder
	batch.WriteString("[")
	for i := 0; i < 30; i++ {
		if i > 0 {
			batch.WriteString(",")
		}
		batch.WriteString(`{"origin_node_id":"a","target_node_id":"b","timestamp":` + strconv.FormatInt(now.Unix()+int64(i), 10) + `}`)
	}
	batch.WriteString("]")
	resp, body := do(t, app, http.MethodPost, "/ping-samples/bulk", batch.String())
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = do(t, app, http.MethodGet, "/ping-samples/recent", "")
	expectStatus(t, resp, body, http.StatusOK)
	var recent []telemetry.PingSample
	if err := json.Unmarshal(body, &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != telemetry.DefaultRecentLimit {
		t.Fatalf("expected %d samples, got %d", telemetry.DefaultRecentLimit, len(recent))
	}
}

func TestIngestTimestampRange(t *testing.T) {
	app := newTestApp(t)

	rejected := []string{`"NaN"`, `1e300`, `"1e300"`, `-1e300`, `"0000-06-01T00:00:00Z"`, `"9999-12-31T23:00:00-05:00"`}
	for _, ts := range rejected {
		resp, body := do(t, app, http.MethodPost, "/ping-samples",
			`{"origin_node_id":"a","target_node_id":"b","timestamp":`+ts+`}`)
		expectStatus(t, resp, body, http.StatusBadRequest)
	}

	accepted := map[string]string{
		`1760000000000`:         time.Unix(1760000000, 0).UTC().Format(time.RFC3339Nano),
		`"2024-01-01 12:00:00"`: "2024-01-01T12:00:00Z",
	}
	for ts, want := range accepted {
		resp, body := do(t, app, http.MethodPost, "/ping-samples",
			`{"origin_node_id":"a","target_node_id":"b","timestamp":`+ts+`}`)
		expectStatus(t, resp, body, http.StatusCreated)
		if !strings.Contains(string(body), `"created_at":"`+want+`"`) {
			t.Fatalf("timestamp %s: expected created_at %s, got %s", ts, want, body)
		}
	}

	resp, body := do(t, app, http.MethodGet, "/ping-samples/recent", "")
	expectStatus(t, resp, body, http.StatusOK)
	var recent []telemetry.PingSample
	if err := json.Unmarshal(body, &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != len(accepted) {
		t.Fatalf("expected %d stored samples, got %d", len(accepted), len(recent))
	}
}
