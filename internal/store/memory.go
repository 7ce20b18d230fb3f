package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/meshcore-heatmap/internal/metrics"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// MemoryStore is a concurrency-safe in-memory ping sample store.
type MemoryStore struct {
	mu sync.RWMutex

	// kept in insertion order
	samples []telemetry.PingSample
	nextID  int64

	// retention configuration
	maxSamples int           // max number of samples kept (0 = unlimited)
	maxAge     time.Duration // max sample age (0 = unlimited)
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxSamples is <= 0, it is treated as unlimited.
func NewMemoryStore(maxSamples int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		nextID:     1,
		maxSamples: maxSamples,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// InsertSamples assigns IDs, appends the samples and enforces retention.
func (s *MemoryStore) InsertSamples(_ context.Context, samples []telemetry.PingSample) ([]telemetry.PingSample, error) {
	start := time.Now()
	defer metrics.ObserveStore(string(DialectMemory), "insert", start, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]telemetry.PingSample, 0, len(samples))
	for _, sample := range samples {
		sample.ID = s.nextID
		s.nextID++
		sample.CreatedAt = fromMillis(toMillis(sample.CreatedAt))
		s.samples = append(s.samples, sample)
		out = append(out, sample)
	}

	// Enforce retention by count.
	if s.maxSamples > 0 && len(s.samples) > s.maxSamples {
		over := len(s.samples) - s.maxSamples
		s.samples = append([]telemetry.PingSample(nil), s.samples[over:]...)
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		s.deleteBeforeLocked(s.now().Add(-s.maxAge))
	}
	return out, nil
}

// AggregateCells groups located samples by exact coordinate, mirroring the
// SQL store's GROUP BY.
func (s *MemoryStore) AggregateCells(_ context.Context, f telemetry.AggregateFilter) ([]telemetry.CellAggregate, error) {
	metric, err := telemetry.ParseMetric(string(f.Metric))
	if err != nil {
		return nil, err
	}

	type key struct{ lat, lon float64 }
	type acc struct {
		cell                            telemetry.CellAggregate
		metricSum, gainSum, txSum       float64
		metricCount, gainCount, txCount int
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make(map[key]*acc)
	for _, p := range s.samples {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
			continue
		}
		if f.HardwareModel != "" && (p.HardwareModel == nil || *p.HardwareModel != f.HardwareModel) {
			continue
		}
		if f.AntennaModel != "" && (p.AntennaModel == nil || *p.AntennaModel != f.AntennaModel) {
			continue
		}
		if f.Bounds != nil && !f.Bounds.Contains(*p.Latitude, *p.Longitude) {
			continue
		}

		k := key{*p.Latitude, *p.Longitude}
		a, ok := groups[k]
		if !ok {
			a = &acc{cell: telemetry.CellAggregate{Latitude: k.lat, Longitude: k.lon}}
			groups[k] = a
		}
		a.cell.SampleCount++
		if p.CreatedAt.After(a.cell.LatestSeen) {
			a.cell.LatestSeen = p.CreatedAt
		}
		if v := p.MetricValue(metric); v != nil {
			a.metricSum += *v
			a.metricCount++
		}
		if p.AntennaGainDbi != nil {
			a.gainSum += *p.AntennaGainDbi
			a.gainCount++
		}
		if p.TxPowerDbm != nil {
			a.txSum += *p.TxPowerDbm
			a.txCount++
		}
		if p.HardwareModel != nil && (a.cell.HardwareModel == nil || *p.HardwareModel > *a.cell.HardwareModel) {
			hw := *p.HardwareModel
			a.cell.HardwareModel = &hw
		}
	}

	cells := make([]telemetry.CellAggregate, 0, len(groups))
	for _, a := range groups {
		a.cell.MetricAvg = average(a.metricSum, a.metricCount)
		a.cell.AntennaGain = average(a.gainSum, a.gainCount)
		a.cell.TxPower = average(a.txSum, a.txCount)
		cells = append(cells, a.cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Latitude != cells[j].Latitude {
			return cells[i].Latitude < cells[j].Latitude
		}
		return cells[i].Longitude < cells[j].Longitude
	})
	return cells, nil
}

func average(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	v := sum / float64(n)
	return &v
}

// RecentSamples returns up to limit samples ordered by CreatedAt, newest first.
func (s *MemoryStore) RecentSamples(_ context.Context, limit int) ([]telemetry.PingSample, error) {
	s.mu.RLock()
	out := append([]telemetry.PingSample(nil), s.samples...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteBefore removes samples created before cutoff.
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteBeforeLocked(cutoff), nil
}

func (s *MemoryStore) deleteBeforeLocked(cutoff time.Time) int64 {
	kept := s.samples[:0]
	var removed int64
	for _, p := range s.samples {
		if p.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.samples = kept
	return removed
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
