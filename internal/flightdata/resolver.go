package flightdata

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skybrief/turbcast/internal/metrics"
	"github.com/skybrief/turbcast/pkg/logger"
)

// AirportLookup supplies reference airport data for coordinate enrichment
type AirportLookup interface {
	AirportByIATA(ctx context.Context, iata string) *Airport
}

// BreakerConfig controls the per-provider circuit breakers
type BreakerConfig struct {
	FailureThreshold uint32        // Consecutive failures before the breaker opens
	OpenTimeout      time.Duration // How long an open breaker skips its provider
}

// Resolver tries providers in priority order until one returns a usable
// route. Each HTTP provider sits behind its own circuit breaker so a dead
// upstream is skipped instead of burning its timeout on every request; a
// no-match answer is a healthy response and never trips the breaker.
type Resolver struct {
	providers []Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	lookup    AirportLookup
	logger    *logger.Logger
}

// NewResolver creates a resolver over the given provider chain. lookup may
// be nil when no static airport database is configured.
func NewResolver(providers []Provider, lookup AirportLookup, cfg BreakerConfig, log *logger.Logger) *Resolver {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = time.Minute
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, p := range providers {
		threshold := cfg.FailureThreshold
		breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    p.Name(),
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
	}

	return &Resolver{
		providers: providers,
		breakers:  breakers,
		lookup:    lookup,
		logger:    log.Named("route-resolver"),
	}
}

// Resolve walks the provider chain. A single provider's failure is never
// the overall failure: transport errors, bad bodies, soft errors and open
// breakers all fall through to the next provider. Only when every provider
// is exhausted does the resolver return ErrFlightNotFound.
func (r *Resolver) Resolve(ctx context.Context, flightNumber string) (*FlightRoute, error) {
	key := Normalize(flightNumber)

	for _, p := range r.providers {
		route, err := r.tryProvider(ctx, p, key)
		if err != nil {
			if errors.Is(err, errNoMatch) {
				metrics.ObserveProviderRequest(p.Name(), metrics.OutcomeNoMatch)
				r.logger.Debug("Provider has no route",
					logger.String("provider", p.Name()),
					logger.String("flight", key))
			} else {
				metrics.ObserveProviderRequest(p.Name(), metrics.OutcomeError)
				r.logger.Warn("Provider failed, falling through",
					logger.String("provider", p.Name()),
					logger.String("flight", key),
					logger.Error(err))
			}
			continue
		}

		metrics.ObserveProviderRequest(p.Name(), metrics.OutcomeSuccess)
		r.enrich(ctx, route)

		r.logger.Info("Route resolved",
			logger.String("flight", key),
			logger.String("provider", p.Name()),
			logger.String("from", route.From.IATA),
			logger.String("to", route.To.IATA),
			logger.Bool("has_geodata", route.HasGeodata()))

		return route, nil
	}

	r.logger.Info("All providers exhausted", logger.String("flight", key))
	return nil, ErrFlightNotFound
}

// tryProvider runs one provider behind its breaker. errNoMatch is reported
// through the breaker as a success so a provider that is up but simply has
// no data for unusual flight numbers never gets tripped open.
func (r *Resolver) tryProvider(ctx context.Context, p Provider, flightNumber string) (*FlightRoute, error) {
	cb := r.breakers[p.Name()]

	var noMatch bool
	result, err := cb.Execute(func() (interface{}, error) {
		route, err := p.Resolve(ctx, flightNumber)
		if errors.Is(err, errNoMatch) {
			noMatch = true
			return nil, nil
		}
		return route, err
	})
	if err != nil {
		return nil, err
	}
	if noMatch {
		return nil, errNoMatch
	}

	route, ok := result.(*FlightRoute)
	if !ok || !route.Usable() {
		return nil, errNoMatch
	}
	return route, nil
}

// enrich fills in coordinates for endpoints the provider left bare, using
// the static airport database when one is configured.
func (r *Resolver) enrich(ctx context.Context, route *FlightRoute) {
	if r.lookup == nil || route.HasGeodata() {
		return
	}

	for _, endpoint := range []*Airport{&route.From, &route.To} {
		if endpoint.HasCoordinates() {
			continue
		}
		if ref := r.lookup.AirportByIATA(ctx, endpoint.IATA); ref != nil {
			if endpoint.Name == "" {
				endpoint.Name = ref.Name
			}
			if endpoint.ICAO == "" {
				endpoint.ICAO = ref.ICAO
			}
			endpoint.Coordinates = ref.Coordinates
		}
	}
}
