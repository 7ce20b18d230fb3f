package telemetry

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/i474232898/meshcore-heatmap/internal/common"
)

// Metric names a sample column that can be aggregated into a heatmap.
type Metric string

const (
	MetricRSSI      Metric = "rssi_dbm"
	MetricSNR       Metric = "snr_db"
	MetricRoundTrip Metric = "round_trip_ms"
)

// DefaultMetric is used when a heatmap query does not name one.
const DefaultMetric = MetricRSSI

// ParseMetric returns the Metric for s, or ErrInvalidMetric.
// An empty string selects DefaultMetric.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.TrimSpace(s)); m {
	case "":
		return DefaultMetric, nil
	case MetricRSSI, MetricSNR, MetricRoundTrip:
		return m, nil
	default:
		return "", ErrInvalidMetric
	}
}

// Column is the ping_samples column backing the metric.
func (m Metric) Column() string {
	return string(m)
}

// PingSample is a stored ping telemetry record.
type PingSample struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"` // always UTC

	OriginNodeID string `json:"origin_node_id"`
	TargetNodeID string `json:"target_node_id"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	AltitudeM *float64 `json:"altitude_m"`

	RSSIDbm     *float64 `json:"rssi_dbm"`
	SNRDb       *float64 `json:"snr_db"`
	RoundTripMs *float64 `json:"round_trip_ms"`

	HardwareModel       *string  `json:"hardware_model"`
	FirmwareVersion     *string  `json:"firmware_version"`
	AntennaModel        *string  `json:"antenna_model"`
	AntennaGainDbi      *float64 `json:"antenna_gain_dbi"`
	AntennaPolarization *string  `json:"antenna_polarization"`
	TxPowerDbm          *float64 `json:"tx_power_dbm"`
	FrequencyMHz        *float64 `json:"frequency_mhz"`

	ChannelID *string `json:"channel_id"`
	Region    *string `json:"region"`
}

// MetricValue returns the sample's value for m, or nil when unset.
func (p PingSample) MetricValue(m Metric) *float64 {
	switch m {
	case MetricRSSI:
		return p.RSSIDbm
	case MetricSNR:
		return p.SNRDb
	case MetricRoundTrip:
		return p.RoundTripMs
	}
	return nil
}

// SampleInput is the payload for ingesting a ping sample.
type SampleInput struct {
	OriginNodeID string     `json:"origin_node_id" validate:"required,notblank"`
	TargetNodeID string     `json:"target_node_id" validate:"required,notblank"`
	Timestamp    *Timestamp `json:"timestamp,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	AltitudeM *float64 `json:"altitude_m,omitempty"`

	RSSIDbm     *float64 `json:"rssi_dbm,omitempty"`
	SNRDb       *float64 `json:"snr_db,omitempty"`
	RoundTripMs *float64 `json:"round_trip_ms,omitempty"`

	HardwareModel       *string  `json:"hardware_model,omitempty"`
	FirmwareVersion     *string  `json:"firmware_version,omitempty"`
	AntennaModel        *string  `json:"antenna_model,omitempty"`
	AntennaGainDbi      *float64 `json:"antenna_gain_dbi,omitempty"`
	AntennaPolarization *string  `json:"antenna_polarization,omitempty"`
	TxPowerDbm          *float64 `json:"tx_power_dbm,omitempty"`
	FrequencyMHz        *float64 `json:"frequency_mhz,omitempty"`

	ChannelID *string `json:"channel_id,omitempty"`
	Region    *string `json:"region,omitempty"`
}

// toSample converts the input into an unsaved PingSample. now is used when
// the input carries no timestamp.
func (in SampleInput) toSample(now time.Time) PingSample {
	createdAt := now.UTC()
	if in.Timestamp != nil && !in.Timestamp.Time().IsZero() {
		createdAt = in.Timestamp.Time().UTC()
	}
	return PingSample{
		CreatedAt:           createdAt,
		OriginNodeID:        strings.TrimSpace(in.OriginNodeID),
		TargetNodeID:        strings.TrimSpace(in.TargetNodeID),
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		AltitudeM:           in.AltitudeM,
		RSSIDbm:             in.RSSIDbm,
		SNRDb:               in.SNRDb,
		RoundTripMs:         in.RoundTripMs,
		HardwareModel:       blankToNil(in.HardwareModel),
		FirmwareVersion:     blankToNil(in.FirmwareVersion),
		AntennaModel:        blankToNil(in.AntennaModel),
		AntennaGainDbi:      in.AntennaGainDbi,
		AntennaPolarization: blankToNil(in.AntennaPolarization),
		TxPowerDbm:          in.TxPowerDbm,
		FrequencyMHz:        in.FrequencyMHz,
		ChannelID:           blankToNil(in.ChannelID),
		Region:              blankToNil(in.Region),
	}
}

// blankToNil trims optional text fields; blank values are stored as NULL.
func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	return common.StringPtr(*s)
}

// Timestamp accepts an ISO 8601 string or a unix epoch number when decoding
// JSON. Numbers larger than 2e10 in magnitude are read as milliseconds. It
// always encodes as RFC3339.
type Timestamp time.Time

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	ts := Timestamp(t.UTC())
	return &ts
}

// Time returns the wrapped time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*t = Timestamp{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseTime(s)
		if err != nil {
			return err
		}
		*t = Timestamp(parsed)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errInvalidTimestamp
	}
	parsed, err := unixTime(v)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// isoLayouts are tried in order; zoneless layouts are taken as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime accepts ISO 8601 with a T or space separator (with or without a
// zone), a bare date, or a unix epoch number.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return checkRange(ts.UTC())
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return unixTime(v)
	}
	return time.Time{}, errInvalidTimestamp
}

const (
	// epochMillisThreshold separates unix seconds from unix milliseconds.
	epochMillisThreshold = 2e10

	minUnixSeconds = -62135596800 // 0001-01-01T00:00:00Z
	maxUnixSeconds = 253402300799 // 9999-12-31T23:59:59Z
)

// unixTime converts a unix epoch in seconds or milliseconds.
func unixTime(v float64) (time.Time, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, errInvalidTimestamp
	}
	if math.Abs(v) > epochMillisThreshold {
		v /= 1000
	}
	if v < minUnixSeconds || v > maxUnixSeconds {
		return time.Time{}, errTimestampRange
	}
	whole, frac := math.Modf(v)
	return time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second)))).UTC(), nil
}

func checkRange(t time.Time) (time.Time, error) {
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, errTimestampRange
	}
	return t, nil
}

// HeatmapQuery selects and filters the samples aggregated into a heatmap.
type HeatmapQuery struct {
	Metric        Metric
	Hours         int `validate:"omitempty,gte=1,lte=168"`
	HardwareModel string
	AntennaModel  string

	// Bounds restricts cells to a bounding box.
	Bounds *BoundingBox

	// Near is a place name resolved through a Locator. RadiusKm defaults to
	// DefaultRadiusKm.
	Near     string
	RadiusKm float64 `validate:"omitempty,gt=0,lte=500"`
}

// DefaultRadiusKm is the radius used for Near queries without one.
const DefaultRadiusKm = 25.0

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" validate:"gte=-90,lte=90"`
	MaxLat float64 `json:"max_lat" validate:"gte=-90,lte=90,gtefield=MinLat"`
	MinLon float64 `json:"min_lon" validate:"gte=-180,lte=180"`
	MaxLon float64 `json:"max_lon" validate:"gte=-180,lte=180,gtefield=MinLon"`
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// AggregateFilter is the store-level form of a HeatmapQuery.
type AggregateFilter struct {
	Metric        Metric
	Since         time.Time // zero means unbounded
	HardwareModel string
	AntennaModel  string
	Bounds        *BoundingBox
}

// CellAggregate is one grouped (latitude, longitude) row.
type CellAggregate struct {
	Latitude      float64
	Longitude     float64
	MetricAvg     *float64
	SampleCount   int64
	LatestSeen    time.Time
	AntennaGain   *float64
	TxPower       *float64
	HardwareModel *string
}

// HeatmapPoint is a geographic point and intensity for rendering.
type HeatmapPoint struct {
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Intensity      float64    `json:"intensity"`
	Samples        int        `json:"samples"`
	LatestSeen     *time.Time `json:"latest_seen"`
	AntennaGainDbi *float64   `json:"antenna_gain_dbi"`
	TxPowerDbm     *float64   `json:"tx_power_dbm"`
	HardwareModel  *string    `json:"hardware_model"`
}

// HeatmapResponse is the payload for heatmap layers.
type HeatmapResponse struct {
	Metric   Metric         `json:"metric"`
	Points   []HeatmapPoint `json:"points"`
	MinValue *float64       `json:"min_value"`
	MaxValue *float64       `json:"max_value"`
}
