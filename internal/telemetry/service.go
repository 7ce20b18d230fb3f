package telemetry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i474232898/meshcore-heatmap/internal/logging"
	"github.com/i474232898/meshcore-heatmap/internal/metrics"
)

const (
	DefaultRecentLimit = 25
	MaxRecentLimit     = 500
)

// Service validates and persists ping samples and builds heatmaps from them.
type Service struct {
	store   Store
	locator Locator
	now     func() time.Time
}

// NewService creates a new Service. locator may be nil, in which case
// place-name heatmap queries fail with ErrGeocoderDisabled.
func NewService(store Store, locator Locator) *Service {
	return &Service{
		store:   store,
		locator: locator,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest validates and stores a single sample.
func (s *Service) Ingest(ctx context.Context, in SampleInput) (PingSample, error) {
	if err := in.Validate(); err != nil {
		return PingSample{}, err
	}

	stored, err := s.store.InsertSamples(ctx, []PingSample{in.toSample(s.now())})
	if err != nil {
		return PingSample{}, fmt.Errorf("store sample: %w", err)
	}
	metrics.SamplesIngested.WithLabelValues("single").Inc()
	return stored[0], nil
}

// IngestBatch validates every sample before storing any, then stores them
// in one transaction.
func (s *Service) IngestBatch(ctx context.Context, in []SampleInput) ([]PingSample, error) {
	if len(in) == 0 {
		return nil, ErrNoSamples
	}

	now := s.now()
	samples := make([]PingSample, 0, len(in))
	for i, item := range in {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, item.toSample(now))
	}

	stored, err := s.store.InsertSamples(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("store %d samples: %w", len(samples), err)
	}
	metrics.SamplesIngested.WithLabelValues("batch").Add(float64(len(stored)))
	logging.Ctx(ctx).Debug().Int("count", len(stored)).Msg("batch ingested")
	return stored, nil
}

// Heatmap aggregates located samples per exact coordinate for q.Metric.
func (s *Service) Heatmap(ctx context.Context, q HeatmapQuery) (HeatmapResponse, error) {
	metric, err := ParseMetric(string(q.Metric))
	if err != nil {
		return HeatmapResponse{}, err
	}
	q.Metric = metric
	if err := q.Validate(); err != nil {
		return HeatmapResponse{}, err
	}

	start := time.Now()
	defer func() {
		metrics.HeatmapQueryDuration.WithLabelValues(string(metric)).Observe(time.Since(start).Seconds())
	}()

	filter := AggregateFilter{
		Metric:        metric,
		HardwareModel: strings.TrimSpace(q.HardwareModel),
		AntennaModel:  strings.TrimSpace(q.AntennaModel),
		Bounds:        q.Bounds,
	}
	if q.Hours > 0 {
		filter.Since = s.now().Add(-time.Duration(q.Hours) * time.Hour)
	}

	// A place name takes precedence over explicit bounds.
	if near := strings.TrimSpace(q.Near); near != "" {
		box, err := s.resolveNear(ctx, near, q.RadiusKm)
		if err != nil {
			return HeatmapResponse{}, err
		}
		filter.Bounds = &box
	}

	cells, err := s.store.AggregateCells(ctx, filter)
	if err != nil {
		return HeatmapResponse{}, fmt.Errorf("aggregate heatmap cells: %w", err)
	}
	return NewHeatmapResponse(metric, BuildHeatmapPoints(cells)), nil
}

func (s *Service) resolveNear(ctx context.Context, place string, radiusKm float64) (BoundingBox, error) {
	if s.locator == nil {
		return BoundingBox{}, ErrGeocoderDisabled
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	lat, lon, err := s.locator.Locate(ctx, place)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("%w %q: %w", ErrLocateFailed, place, err)
	}
	return BoundsAround(lat, lon, radiusKm), nil
}

// Recent returns the newest samples. A zero limit selects DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]PingSample, error) {
	if limit == 0 {
		limit = DefaultRecentLimit
	}
	if limit < 1 || limit > MaxRecentLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, MaxRecentLimit)
	}
	samples, err := s.store.RecentSamples(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent samples: %w", err)
	}
	return samples, nil
}

// Prune deletes samples older than olderThan and returns how many went.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrInvalidQuery)
	}
	cutoff := s.now().Add(-olderThan)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune samples before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.SamplesPruned.Add(float64(n))
	return n, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

const kmPerDegreeLat = 111.32

// BoundsAround returns the box of roughly radiusKm around (lat, lon),
// clamped to valid coordinates.
func BoundsAround(lat, lon, radiusKm float64) BoundingBox {
	dLat := radiusKm / kmPerDegreeLat
	dLon := 180.0
	if c := math.Cos(lat * math.Pi / 180); c > 1e-6 {
		dLon = math.Min(radiusKm/(kmPerDegreeLat*c), 180)
	}
	return BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLon: math.Max(lon-dLon, -180),
		MaxLon: math.Min(lon+dLon, 180),
	}
}
