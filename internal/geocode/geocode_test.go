package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kelvins/geocoder"
)

func TestParseAddress(t *testing.T) {
	tests := map[string]geocoder.Address{
		"Berlin":                    {City: "Berlin"},
		" Lisbon , Portugal ":       {City: "Lisbon", Country: "Portugal"},
		"Austin, Texas, USA":        {City: "Austin", State: "Texas", Country: "USA"},
		"1 Main St, Austin, TX, US": {Street: "1 Main St", City: "Austin", State: "TX", Country: "US"},
		" , ":                       {},
	}
	for in, want := range tests {
		if diff := cmp.Diff(want, ParseAddress(in)); diff != "" {
			t.Errorf("ParseAddress(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestLocateCachesResults(t *testing.T) {
	calls := 0
	g := NewWithLookup(func(a geocoder.Address) (geocoder.Location, error) {
		calls++
		if a.City != "Lisbon" {
			t.Errorf("unexpected city %q", a.City)
		}
		return geocoder.Location{Latitude: 38.72, Longitude: -9.14}, nil
	})

	for _, place := range []string{"Lisbon, Portugal", "lisbon,   portugal"} {
		lat, lon, err := g.Locate(context.Background(), place)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lat != 38.72 || lon != -9.14 {
			t.Fatalf("unexpected location %v,%v", lat, lon)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single lookup, got %d", calls)
	}
}

func TestLocateErrors(t *testing.T) {
	g := NewWithLookup(func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	})
	if _, _, err := g.Locate(context.Background(), "  "); !errors.Is(err, ErrEmptyPlace) {
		t.Fatalf("expected ErrEmptyPlace, got %v", err)
	}
	if _, _, err := g.Locate(context.Background(), "Atlantis"); err == nil {
		t.Fatal("expected lookup error")
	}
}

func TestLocateOpensCircuit(t *testing.T) {
	g := NewWithLookup(func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("upstream down")
	})
	// gobreaker trips after more than five consecutive failures by default.
	for i := 0; i < 6; i++ {
		_, _, _ = g.Locate(context.Background(), "Nowhere")
	}
	if _, _, err := g.Locate(context.Background(), "Nowhere"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestLocateHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	g := NewWithLookup(func(geocoder.Address) (geocoder.Location, error) {
		<-release
		return geocoder.Location{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := g.Locate(ctx, "Slowtown"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
