package telemetry

import (
	"context"
	"time"
)

// Store is the contract both the SQL store and the in-memory store satisfy.
type Store interface {
	// InsertSamples persists samples atomically and returns them with IDs set.
	InsertSamples(ctx context.Context, samples []PingSample) ([]PingSample, error)
	// AggregateCells groups located samples by exact (latitude, longitude).
	AggregateCells(ctx context.Context, filter AggregateFilter) ([]CellAggregate, error)
	// RecentSamples returns up to limit samples, newest first.
	RecentSamples(ctx context.Context, limit int) ([]PingSample, error)
	// DeleteBefore removes samples created strictly before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Locator resolves a free-form place name to coordinates.
type Locator interface {
	Locate(ctx context.Context, place string) (lat, lon float64, err error)
}
