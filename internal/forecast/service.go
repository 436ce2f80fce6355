package forecast

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/singleflight"

	"github.com/skybrief/turbcast/internal/flightdata"
	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/internal/metrics"
	"github.com/skybrief/turbcast/internal/pireps"
	"github.com/skybrief/turbcast/internal/route"
	"github.com/skybrief/turbcast/internal/severity"
	"github.com/skybrief/turbcast/pkg/logger"
)

// RouteResolver resolves a flight number to a route
type RouteResolver interface {
	Resolve(ctx context.Context, flightNumber string) (*flightdata.FlightRoute, error)
}

// ObservationSource supplies pilot reports near a route polyline
type ObservationSource interface {
	ReportsNear(ctx context.Context, waypoints []geo.Coordinate) []pireps.Observation
}

// Broadcaster is notified when a full forecast finishes computing
type Broadcaster interface {
	ForecastComplete(f *Forecast)
}

const computeTimeout = 60 * time.Second

// Service coordinates forecast requests. A basic request answers from the
// route alone and kicks off the full computation in the background; a full
// request joins any computation already in flight for the same flight
// number, so N concurrent callers cost one pass through the pipeline.
type Service struct {
	resolver     RouteResolver
	segmenter    *route.Segmenter
	observations ObservationSource
	engine       *severity.Engine
	cache        *Cache
	broadcaster  Broadcaster

	basicGroup singleflight.Group
	fullGroup  singleflight.Group

	scheduler *gocron.Scheduler
	logger    *logger.Logger
}

// NewService creates the forecast service. broadcaster may be nil.
func NewService(
	resolver RouteResolver,
	segmenter *route.Segmenter,
	observations ObservationSource,
	engine *severity.Engine,
	cache *Cache,
	broadcaster Broadcaster,
	log *logger.Logger,
) *Service {
	return &Service{
		resolver:     resolver,
		segmenter:    segmenter,
		observations: observations,
		engine:       engine,
		cache:        cache,
		broadcaster:  broadcaster,
		scheduler:    gocron.NewScheduler(time.UTC),
		logger:       log.Named("forecast"),
	}
}

// Start begins the periodic cache sweep
func (s *Service) Start(sweepInterval time.Duration) error {
	if _, err := s.scheduler.Every(sweepInterval).Do(func() {
		s.cache.Sweep()
	}); err != nil {
		return err
	}
	s.scheduler.StartAsync()

	s.logger.Info("Forecast service started",
		logger.String("sweep_interval", sweepInterval.String()))
	return nil
}

// Stop halts the background sweep
func (s *Service) Stop() {
	s.scheduler.Stop()
	s.logger.Info("Forecast service stopped")
}

// Cache exposes the forecast cache for the stats and clear endpoints
func (s *Service) Cache() *Cache {
	return s.cache
}

// GetBasic returns a forecast immediately: the freshest cached forecast of
// either tier, or a newly computed route-only one. Either way it schedules
// the full computation so a follow-up request finds the real thing.
func (s *Service) GetBasic(ctx context.Context, flightNumber string) (*Forecast, error) {
	key, err := s.normalize(flightNumber)
	if err != nil {
		return nil, err
	}

	// A live full forecast is strictly better than a basic one
	if f := s.cache.Get(TierFull, key); f != nil {
		return f, nil
	}
	if f := s.cache.Get(TierBasic, key); f != nil {
		s.ensureFull(key)
		return f, nil
	}

	ch := s.basicGroup.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.Background(), computeTimeout)
		defer cancel()
		return s.computeBasic(cctx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Joined in-flight basic computation", logger.String("flight", key))
		}
		s.ensureFull(key)
		return res.Val.(*Forecast), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetFull returns the observation-correlated forecast, computing it when
// no live cached copy exists. Concurrent callers for the same flight share
// one computation.
func (s *Service) GetFull(ctx context.Context, flightNumber string) (*Forecast, error) {
	key, err := s.normalize(flightNumber)
	if err != nil {
		return nil, err
	}

	if f := s.cache.Get(TierFull, key); f != nil {
		return f, nil
	}

	// The computation runs on its own context: once started it finishes
	// even when the caller that started it hangs up. A caller abandoning
	// the wait stops only its wait, never the shared work.
	ch := s.fullGroup.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.Background(), computeTimeout)
		defer cancel()
		return s.computeFull(cctx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Joined in-flight full computation", logger.String("flight", key))
		}
		return res.Val.(*Forecast), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ensureFull kicks off the full computation in the background unless a
// live full entry already exists. Fire and forget: the result lands in the
// cache and on the websocket, errors are only logged.
func (s *Service) ensureFull(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), computeTimeout)
		defer cancel()

		if f := s.cache.Get(TierFull, key); f != nil {
			return
		}

		if _, err, _ := s.fullGroup.Do(key, func() (interface{}, error) {
			return s.computeFull(ctx, key)
		}); err != nil {
			s.logger.Warn("Background full forecast failed",
				logger.String("flight", key),
				logger.Error(err))
		}
	}()
}

func (s *Service) normalize(flightNumber string) (string, error) {
	key := flightdata.Normalize(flightNumber)
	if !ValidFlightNumber(key) {
		return "", ErrInvalidFlightNumber
	}
	return key, nil
}

func (s *Service) computeBasic(ctx context.Context, key string) (*Forecast, error) {
	start := time.Now()

	rt, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		metrics.ObserveForecast(metrics.TierBasic, time.Since(start), metrics.OutcomeError)
		return nil, err
	}

	f, err := s.build(key, rt, nil, true)
	if err != nil {
		metrics.ObserveForecast(metrics.TierBasic, time.Since(start), metrics.OutcomeError)
		return nil, err
	}

	s.cache.Set(TierBasic, key, f)
	metrics.ObserveForecast(metrics.TierBasic, time.Since(start), metrics.OutcomeSuccess)

	s.logger.Info("Computed basic forecast",
		logger.String("flight", key),
		logger.String("elapsed", time.Since(start).String()))
	return f, nil
}

func (s *Service) computeFull(ctx context.Context, key string) (*Forecast, error) {
	start := time.Now()

	rt, err := s.resolver.Resolve(ctx, key)
	if err != nil {
		metrics.ObserveForecast(metrics.TierFull, time.Since(start), metrics.OutcomeError)
		return nil, err
	}

	var observations []pireps.Observation
	if rt.HasGeodata() && s.observations != nil {
		plan, err := s.segmenter.Plan(*rt.From.Coordinates, *rt.To.Coordinates, rt.Schedule.Departure)
		if err != nil {
			metrics.ObserveForecast(metrics.TierFull, time.Since(start), metrics.OutcomeError)
			return nil, err
		}
		observations = s.observations.ReportsNear(ctx, plan.Waypoints)
	}

	f, err := s.build(key, rt, observations, false)
	if err != nil {
		metrics.ObserveForecast(metrics.TierFull, time.Since(start), metrics.OutcomeError)
		return nil, err
	}

	s.cache.Set(TierFull, key, f)
	metrics.ObserveForecast(metrics.TierFull, time.Since(start), metrics.OutcomeSuccess)
	metrics.ObserveCorrelatedObservations(len(observations))

	if s.broadcaster != nil {
		s.broadcaster.ForecastComplete(f)
	}

	s.logger.Info("Computed full forecast",
		logger.String("flight", key),
		logger.Int("observations", len(observations)),
		logger.String("severity", f.OverallSeverity.String()),
		logger.String("elapsed", time.Since(start).String()))
	return f, nil
}

// build assembles a forecast from its parts. partial marks the route-only
// tier; a partial forecast gets segments but no severity synthesis.
func (s *Service) build(key string, rt *flightdata.FlightRoute, observations []pireps.Observation, partial bool) (*Forecast, error) {
	f := &Forecast{
		FlightNumber:     key,
		Route:            rt,
		ObservationCount: len(observations),
		IsPartial:        partial,
		GeneratedAt:      time.Now().UTC(),
		Provenance: Provenance{
			RouteSource:      rt.Source,
			ObservationsUsed: !partial && rt.HasGeodata(),
		},
		WorstSegmentIndex: -1,
	}

	if !rt.HasGeodata() {
		// No coordinates: degrade to a single placeholder segment so the
		// caller still gets a duration estimate and a smooth baseline.
		s.logger.Warn("Degrading forecast",
			logger.String("flight", key),
			logger.String("route_source", rt.Source),
			logger.Error(flightdata.ErrNoGeodata))
		f.Segments = []Segment{s.placeholderSegment()}
		f.EstimatedDuration = f.Segments[0].Duration
		f.WorstSegmentIndex = 0
		return f, nil
	}

	plan, err := s.segmenter.Plan(*rt.From.Coordinates, *rt.To.Coordinates, rt.Schedule.Departure)
	if err != nil {
		return nil, err
	}

	var scores []severity.Score
	if partial {
		scores = make([]severity.Score, len(plan.Segments))
		for i, seg := range plan.Segments {
			scores[i] = severity.Score{AltitudeFt: seg.AltitudeFt}
		}
	} else {
		scores = s.engine.ScoreAll(plan.Segments, observations)
	}

	f.Segments = make([]Segment, len(plan.Segments))
	for i, seg := range plan.Segments {
		f.Segments[i] = Segment{
			Index:         seg.Index,
			Label:         seg.Label,
			From:          seg.From,
			To:            seg.To,
			AltitudeFt:    scores[i].AltitudeFt,
			DistanceKm:    seg.DistanceKm,
			CourseTrueDeg: seg.CourseTrueDeg,
			CourseMagDeg:  seg.CourseMagDeg,
			StartOffset:   Minutes(seg.StartOffset),
			Duration:      Minutes(seg.Duration),
			Severity:      scores[i].Severity,
			Probability:   scores[i].Probability,
			ReportCount:   scores[i].ReportCount,
			EvidenceIDs:   scores[i].EvidenceIDs,
		}
	}

	f.TotalDistanceKm = plan.TotalDistanceKm
	f.EstimatedDuration = Minutes(plan.TotalDuration)
	f.OverallSeverity, f.OverallProbability, f.WorstSegmentIndex = severity.Overall(scores)
	return f, nil
}

// placeholderSegment is the degraded single-leg forecast used when the
// route resolved without coordinates.
func (s *Service) placeholderSegment() Segment {
	cfg := s.segmenter.Config()
	return Segment{
		Index:      0,
		Label:      "leg 1",
		AltitudeFt: cfg.CruiseAltitudeFt,
		Duration:   Minutes(cfg.MinDuration),
		Severity:   pireps.Smooth,
	}
}
