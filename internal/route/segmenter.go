package route

import (
	"fmt"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
)

// Segment is one leg of a segmented route. Altitude is the modeled
// altitude for the leg, not a filed flight plan.
type Segment struct {
	Index         int            `json:"index"`
	Label         string         `json:"label"`
	From          geo.Coordinate `json:"from"`
	To            geo.Coordinate `json:"to"`
	AltitudeFt    int            `json:"altitude_ft"`
	DistanceKm    float64        `json:"distance_km"`
	CourseTrueDeg float64        `json:"course_true_deg"`
	CourseMagDeg  float64        `json:"course_mag_deg"`
	StartOffset   time.Duration  `json:"start_offset"`
	Duration      time.Duration  `json:"duration"`
}

// Plan is a segmented route: the waypoint polyline plus per-leg segments
type Plan struct {
	Waypoints       []geo.Coordinate `json:"waypoints"`
	Segments        []Segment        `json:"segments"`
	TotalDistanceKm float64          `json:"total_distance_km"`
	TotalDuration   time.Duration    `json:"total_duration"`
}

// Config controls how routes are segmented
type Config struct {
	SegmentCount         int
	GroundspeedKmh       float64
	MinDuration          time.Duration
	CruiseAltitudeFt     int
	TransitionAltitudeFt int
}

// Segmenter splits a great-circle-approximated route into equal legs with
// a simple altitude model. The output is fully determined by the inputs:
// the same endpoints and config always produce the same plan.
type Segmenter struct {
	cfg    Config
	logger *logger.Logger
}

// NewSegmenter creates a segmenter with the given settings
func NewSegmenter(cfg Config, log *logger.Logger) *Segmenter {
	return &Segmenter{
		cfg:    cfg,
		logger: log.Named("segmenter"),
	}
}

// Config returns the segmenter's settings
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Plan segments the route between two airports. The departure time anchors
// the magnetic model epoch; a zero time uses the current date.
func (s *Segmenter) Plan(from, to geo.Coordinate, departure time.Time) (*Plan, error) {
	n := s.cfg.SegmentCount
	if n < 1 {
		return nil, fmt.Errorf("segment count must be at least 1, got %d", n)
	}
	if departure.IsZero() {
		departure = time.Now().UTC().Truncate(24 * time.Hour)
	}

	waypoints := make([]geo.Coordinate, n+1)
	for i := 0; i <= n; i++ {
		waypoints[i] = geo.Interpolate(from, to, float64(i)/float64(n))
	}

	segments := make([]Segment, n)
	var totalKm float64
	for i := 0; i < n; i++ {
		a, b := waypoints[i], waypoints[i+1]
		distKm := geo.HaversineKm(a, b)
		altitudeFt := s.altitudeFor(i, n)

		segments[i] = Segment{
			Index:         i,
			Label:         fmt.Sprintf("leg %d", i+1),
			From:          a,
			To:            b,
			AltitudeFt:    altitudeFt,
			DistanceKm:    distKm,
			CourseTrueDeg: geo.InitialBearing(a, b),
			CourseMagDeg:  geo.MagneticCourse(a, b, float64(altitudeFt), departure),
		}
		totalKm += distKm
	}

	totalDuration := time.Duration(totalKm / s.cfg.GroundspeedKmh * float64(time.Hour))
	if totalDuration < s.cfg.MinDuration {
		totalDuration = s.cfg.MinDuration
	}

	// Distribute duration across legs in proportion to distance. Zero-length
	// routes (same airport pair) split evenly.
	var offset time.Duration
	for i := range segments {
		share := 1.0 / float64(n)
		if totalKm > 0 {
			share = segments[i].DistanceKm / totalKm
		}
		segments[i].StartOffset = offset
		segments[i].Duration = time.Duration(float64(totalDuration) * share)
		offset += segments[i].Duration
	}

	s.logger.Debug("Segmented route",
		logger.Int("segments", n),
		logger.Float64("total_km", totalKm),
		logger.String("total_duration", totalDuration.String()))

	return &Plan{
		Waypoints:       waypoints,
		Segments:        segments,
		TotalDistanceKm: totalKm,
		TotalDuration:   totalDuration,
	}, nil
}

// altitudeFor models the vertical profile: roughly the first and last tenth
// of the legs sit at the transition altitude for climb and descent, the
// rest at cruise. Short plans still get one climb and one descent leg.
func (s *Segmenter) altitudeFor(index, count int) int {
	transition := count / 10
	if transition < 1 {
		transition = 1
	}
	if count == 1 {
		return s.cfg.CruiseAltitudeFt
	}
	if index < transition || index >= count-transition {
		return s.cfg.TransitionAltitudeFt
	}
	return s.cfg.CruiseAltitudeFt
}
