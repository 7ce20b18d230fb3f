// Package geocode resolves place names such as "Lisbon, Portugal" to
// coordinates through the Google geocoding API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/meshcore-heatmap/internal/logging"
	"github.com/i474232898/meshcore-heatmap/internal/metrics"
)

const maxCacheEntries = 512

var (
	ErrEmptyPlace  = errors.New("place name is empty")
	ErrCircuitOpen = errors.New("geocoder circuit breaker open")
)

// LookupFunc resolves an address. geocoder.Geocoding is the production value.
type LookupFunc func(geocoder.Address) (geocoder.Location, error)

// Geocoder implements telemetry.Locator with a result cache.
type Geocoder struct {
	lookup  LookupFunc
	circuit *gobreaker.CircuitBreaker

	mu    sync.Mutex
	cache map[string]geocoder.Location
}

// New returns a Geocoder backed by the Google API using apiKey.
func New(apiKey string) *Geocoder {
	geocoder.ApiKey = apiKey
	return NewWithLookup(geocoder.Geocoding)
}

// NewWithLookup returns a Geocoder that resolves addresses with lookup.
func NewWithLookup(lookup LookupFunc) *Geocoder {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Geocoder{
		lookup:  lookup,
		circuit: cb,
		cache:   make(map[string]geocoder.Location),
	}
}

// Locate resolves place to a latitude and longitude.
func (g *Geocoder) Locate(ctx context.Context, place string) (float64, float64, error) {
	key := strings.ToLower(strings.Join(strings.Fields(place), " "))
	if key == "" {
		return 0, 0, ErrEmptyPlace
	}

	g.mu.Lock()
	loc, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		return loc.Latitude, loc.Longitude, nil
	}

	addr := ParseAddress(place)
	result, err := g.circuit.Execute(func() (interface{}, error) {
		return g.lookupContext(ctx, addr)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RemoteRequests.WithLabelValues("geocoder", "circuit_open").Inc()
			return 0, 0, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		metrics.RemoteRequests.WithLabelValues("geocoder", "error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("place", place).Msg("geocoder lookup failed")
		return 0, 0, err
	}
	metrics.RemoteRequests.WithLabelValues("geocoder", "ok").Inc()

	loc = result.(geocoder.Location)
	g.mu.Lock()
	if len(g.cache) >= maxCacheEntries {
		g.cache = make(map[string]geocoder.Location)
	}
	g.cache[key] = loc
	g.mu.Unlock()
	return loc.Latitude, loc.Longitude, nil
}

// lookupContext runs the blocking lookup, giving up when ctx is done.
func (g *Geocoder) lookupContext(ctx context.Context, addr geocoder.Address) (geocoder.Location, error) {
	type result struct {
		loc geocoder.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		loc, err := g.lookup(addr)
		ch <- result{loc, err}
	}()
	select {
	case <-ctx.Done():
		return geocoder.Location{}, ctx.Err()
	case r := <-ch:
		return r.loc, r.err
	}
}

// ParseAddress splits "city", "city, country" or "city, state, country".
// Anything longer keeps the leading parts as the street.
func ParseAddress(place string) geocoder.Address {
	var parts []string
	for _, p := range strings.Split(place, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return geocoder.Address{}
	case 1:
		return geocoder.Address{City: parts[0]}
	case 2:
		return geocoder.Address{City: parts[0], Country: parts[1]}
	case 3:
		return geocoder.Address{City: parts[0], State: parts[1], Country: parts[2]}
	default:
		n := len(parts)
		return geocoder.Address{
			Street:  strings.Join(parts[:n-3], ", "),
			City:    parts[n-3],
			State:   parts[n-2],
			Country: parts[n-1],
		}
	}
}
