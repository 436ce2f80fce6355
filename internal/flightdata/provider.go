package flightdata

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by the resolver. Everything else a provider
// returns is a transient upstream failure absorbed by the fallback chain.
var (
	// ErrFlightNotFound means every provider was tried and none could
	// resolve the flight number.
	ErrFlightNotFound = errors.New("flight not found")

	// ErrNoGeodata marks a route that resolved without coordinates for one
	// or both endpoints. The route itself is still valid; downstream
	// consumers degrade to a single-segment forecast.
	ErrNoGeodata = errors.New("route found but missing coordinates")

	// errNoMatch is returned by an individual provider when it answered
	// successfully but has no data for the flight. The resolver keeps
	// trying the rest of the chain.
	errNoMatch = errors.New("provider has no route for flight")
)

// Provider resolves a flight number to a route. Implementations must treat
// every failure mode (transport, status, parse, soft error body) as an
// error return and never panic on malformed upstream data.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, flightNumber string) (*FlightRoute, error)
}
