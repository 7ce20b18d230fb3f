package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{in: "", want: MetricRSSI},
		{in: "snr_db", want: MetricSNR},
		{in: " round_trip_ms ", want: MetricRoundTrip},
		{in: "latitude", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidMetric) {
				t.Errorf("ParseMetric(%q): expected ErrInvalidMetric, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMetric(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	inputs := []string{
		`{"origin_node_id":"a","target_node_id":"b","timestamp":"2026-02-03T04:05:06Z"}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":"2026-02-03T05:05:06+01:00"}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":"2026-02-03T04:05:06"}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":1770091506}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":1770091506000}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":"1770091506"}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":"2026-02-03 04:05:06"}`,
		`{"origin_node_id":"a","target_node_id":"b","timestamp":"2026-02-03 05:05:06+01:00"}`,
	}
	for _, raw := range inputs {
		var in SampleInput
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if in.Timestamp == nil || !in.Timestamp.Time().Equal(want) {
			t.Fatalf("%s: got %v, want %s", raw, in.Timestamp, want)
		}
	}

	rejected := []string{`"yesterday"`, `"NaN"`, `"Infinity"`, `1e300`, `-1e300`, `"0000-01-01T00:00:00Z"`}
	for _, ts := range rejected {
		var in SampleInput
		if err := json.Unmarshal([]byte(`{"timestamp":`+ts+`}`), &in); err == nil {
			t.Errorf("timestamp %s: expected an error, got %v", ts, in.Timestamp)
		}
	}
}

func TestParseTimeEpochUnits(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "0", want: time.Unix(0, 0).UTC()},
		{in: "20000000000", want: time.Unix(20000000000, 0).UTC()},
		{in: "20000000001", want: time.Unix(20000000, 1000000).UTC()},
		{in: "-20000000001", want: time.Unix(-20000001, 999000000).UTC()},
		{in: "1770091506.5", want: time.Unix(1770091506, 500000000).UTC()},
		{in: "2026-02-03", want: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %s, %v; want %s", tt.in, got, err, tt.want)
		}
	}
}

func TestPingSampleJSONKeepsNulls(t *testing.T) {
	data, err := json.Marshal(PingSample{ID: 1, OriginNodeID: "a", TargetNodeID: "b", CreatedAt: time.Unix(0, 0).UTC()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := out["rssi_dbm"]; !ok || v != nil {
		t.Fatalf("rssi_dbm should be present and null, got %v (present=%v)", v, ok)
	}
}
