package pireps

import (
	"context"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
)

// Fetcher is the feed dependency of Source, satisfied by *Client
type Fetcher interface {
	FetchBox(ctx context.Context, box geo.BoundingBox) ([]Observation, error)
}

// Source turns the raw feed into route-relevant observations: one bounding
// box fetch per forecast, then client-side filtering by distance to the
// route polyline and by report age.
type Source struct {
	fetcher       Fetcher
	maxDistanceKm float64
	maxAge        time.Duration
	logger        *logger.Logger
}

// NewSource creates an observation source. maxAgeMinutes of 0 disables the
// age filter.
func NewSource(fetcher Fetcher, maxDistanceKm float64, maxAgeMinutes int, log *logger.Logger) *Source {
	return &Source{
		fetcher:       fetcher,
		maxDistanceKm: maxDistanceKm,
		maxAge:        time.Duration(maxAgeMinutes) * time.Minute,
		logger:        log.Named("observations"),
	}
}

// ReportsNear returns observations within the configured distance of the
// route polyline. Observation availability never blocks a forecast: any
// feed failure logs a warning and returns an empty list.
func (s *Source) ReportsNear(ctx context.Context, waypoints []geo.Coordinate) []Observation {
	if len(waypoints) == 0 {
		return nil
	}

	box := geo.Bounds(waypoints, s.maxDistanceKm)

	all, err := s.fetcher.FetchBox(ctx, box)
	if err != nil {
		s.logger.Warn("Observation feed unavailable, forecasting without reports",
			logger.Error(err))
		return nil
	}

	cutoff := time.Time{}
	if s.maxAge > 0 {
		cutoff = time.Now().Add(-s.maxAge)
	}

	kept := make([]Observation, 0, len(all))
	for _, obs := range all {
		if !cutoff.IsZero() && obs.ObservedAt.Before(cutoff) {
			continue
		}
		if distanceToPath(obs.Location, waypoints) > s.maxDistanceKm {
			continue
		}
		kept = append(kept, obs)
	}

	s.logger.Debug("Filtered observations",
		logger.Int("fetched", len(all)),
		logger.Int("kept", len(kept)),
		logger.Float64("max_distance_km", s.maxDistanceKm))

	return kept
}

// distanceToPath is the minimum distance from a point to any leg of the
// polyline. A single waypoint degenerates to plain point distance.
func distanceToPath(p geo.Coordinate, waypoints []geo.Coordinate) float64 {
	if len(waypoints) == 1 {
		return geo.HaversineKm(p, waypoints[0])
	}

	min := geo.DistanceToSegmentKm(p, waypoints[0], waypoints[1])
	for i := 1; i < len(waypoints)-1; i++ {
		if d := geo.DistanceToSegmentKm(p, waypoints[i], waypoints[i+1]); d < min {
			min = d
		}
	}
	return min
}
