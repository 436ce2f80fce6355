package flightdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
)

type fakeProvider struct {
	name  string
	route *FlightRoute
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Resolve(ctx context.Context, flightNumber string) (*FlightRoute, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.route, nil
}

type fakeLookup struct {
	airports map[string]*Airport
}

func (f *fakeLookup) AirportByIATA(ctx context.Context, iata string) *Airport {
	return f.airports[iata]
}

func usableRoute(source string) *FlightRoute {
	return &FlightRoute{
		FlightNumber: "BA117",
		From: Airport{
			IATA:        "LHR",
			Coordinates: &geo.Coordinate{Lat: 51.4706, Lon: -0.4619},
		},
		To: Airport{
			IATA:        "JFK",
			Coordinates: &geo.Coordinate{Lat: 40.6398, Lon: -73.7789},
		},
		Status: StatusScheduled,
		Source: source,
	}
}

func TestResolverFirstProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "primary", route: usableRoute("primary")}
	secondary := &fakeProvider{name: "secondary", route: usableRoute("secondary")}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{}, logger.NewNop())

	route, err := r.Resolve(context.Background(), "BA117")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if route.Source != "primary" {
		t.Errorf("expected route from primary, got %q", route.Source)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not have been called, got %d calls", secondary.calls)
	}
}

func TestResolverFallsThroughOnError(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("connection refused")}
	secondary := &fakeProvider{name: "secondary", route: usableRoute("secondary")}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{}, logger.NewNop())

	route, err := r.Resolve(context.Background(), "BA117")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if route.Source != "secondary" {
		t.Errorf("expected route from secondary, got %q", route.Source)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
}

func TestResolverFallsThroughOnNoMatch(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errNoMatch}
	secondary := &fakeProvider{name: "secondary", route: usableRoute("secondary")}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{}, logger.NewNop())

	route, err := r.Resolve(context.Background(), "BA117")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if route.Source != "secondary" {
		t.Errorf("expected route from secondary, got %q", route.Source)
	}
}

func TestResolverSkipsUnusableRoute(t *testing.T) {
	// A provider answer without both IATA codes cannot anchor a forecast
	partial := usableRoute("primary")
	partial.To.IATA = ""
	primary := &fakeProvider{name: "primary", route: partial}
	secondary := &fakeProvider{name: "secondary", route: usableRoute("secondary")}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{}, logger.NewNop())

	route, err := r.Resolve(context.Background(), "BA117")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if route.Source != "secondary" {
		t.Errorf("expected route from secondary, got %q", route.Source)
	}
}

func TestResolverExhaustedReturnsNotFound(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("timeout")}
	secondary := &fakeProvider{name: "secondary", err: errNoMatch}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{}, logger.NewNop())

	_, err := r.Resolve(context.Background(), "BA117")
	if !errors.Is(err, ErrFlightNotFound) {
		t.Fatalf("expected ErrFlightNotFound, got %v", err)
	}
}

func TestResolverNormalizesFlightNumber(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errNoMatch}

	r := NewResolver([]Provider{primary}, nil, BreakerConfig{}, logger.NewNop())

	if _, err := r.Resolve(context.Background(), "  ba117 "); !errors.Is(err, ErrFlightNotFound) {
		t.Fatalf("expected ErrFlightNotFound, got %v", err)
	}
}

func TestResolverEnrichesMissingCoordinates(t *testing.T) {
	bare := usableRoute("primary")
	bare.From.Coordinates = nil
	bare.To.Coordinates = nil
	primary := &fakeProvider{name: "primary", route: bare}

	lookup := &fakeLookup{airports: map[string]*Airport{
		"LHR": {
			IATA:        "LHR",
			ICAO:        "EGLL",
			Name:        "Heathrow",
			Coordinates: &geo.Coordinate{Lat: 51.4706, Lon: -0.4619},
		},
		"JFK": {
			IATA:        "JFK",
			Coordinates: &geo.Coordinate{Lat: 40.6398, Lon: -73.7789},
		},
	}}

	r := NewResolver([]Provider{primary}, lookup, BreakerConfig{}, logger.NewNop())

	route, err := r.Resolve(context.Background(), "BA117")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !route.HasGeodata() {
		t.Fatal("expected enriched route to have geodata")
	}
	if route.From.ICAO != "EGLL" || route.From.Name != "Heathrow" {
		t.Errorf("expected enrichment to fill ICAO and name, got %+v", route.From)
	}
}

func TestResolverEnrichmentMissDegrades(t *testing.T) {
	bare := usableRoute("primary")
	bare.From.Coordinates = nil
	primary := &fakeProvider{name: "primary", route: bare}

	r := NewResolver([]Provider{primary}, &fakeLookup{}, BreakerConfig{}, logger.NewNop())

	route, err := r.Resolve(context.Background(), "BA117")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if route.HasGeodata() {
		t.Fatal("route should still be missing geodata")
	}
	if !route.Usable() {
		t.Fatal("route without geodata is still usable")
	}
}

func TestResolverBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("connection refused")}
	secondary := &fakeProvider{name: "secondary", route: usableRoute("secondary")}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}, logger.NewNop())

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve(context.Background(), "BA117"); err != nil {
			t.Fatalf("Resolve %d failed: %v", i, err)
		}
	}

	// After two failures the breaker opens and stops calling the provider
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
	if secondary.calls != 5 {
		t.Errorf("secondary calls = %d, want 5", secondary.calls)
	}
}

func TestResolverNoMatchDoesNotTripBreaker(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errNoMatch}
	secondary := &fakeProvider{name: "secondary", route: usableRoute("secondary")}

	r := NewResolver([]Provider{primary, secondary}, nil, BreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}, logger.NewNop())

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve(context.Background(), "BA117"); err != nil {
			t.Fatalf("Resolve %d failed: %v", i, err)
		}
	}

	if primary.calls != 5 {
		t.Errorf("primary calls = %d, want 5; no-match answers must not open the breaker", primary.calls)
	}
}
