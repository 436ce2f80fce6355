package forecast

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/skybrief/turbcast/internal/flightdata"
	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/internal/pireps"
)

// ErrInvalidFlightNumber is returned for inputs that cannot be a flight
// number even after normalization.
var ErrInvalidFlightNumber = errors.New("invalid flight number")

var flightNumberRe = regexp.MustCompile(`^[A-Z]{2,3}[0-9]{1,4}$`)

// ValidFlightNumber reports whether the normalized flight number has the
// expected airline-code-plus-number shape.
func ValidFlightNumber(normalized string) bool {
	return flightNumberRe.MatchString(normalized)
}

// Tier identifies a forecast depth
type Tier string

const (
	// TierBasic is the route-only forecast, computed synchronously
	TierBasic Tier = "basic"
	// TierFull is the observation-correlated forecast
	TierFull Tier = "full"
)

// Segment is one leg of the forecast with its synthesized severity
type Segment struct {
	Index         int              `json:"index"`
	Label         string           `json:"label"`
	From          geo.Coordinate   `json:"from"`
	To            geo.Coordinate   `json:"to"`
	AltitudeFt    int              `json:"altitude_ft"`
	DistanceKm    float64          `json:"distance_km"`
	CourseTrueDeg float64          `json:"course_true_deg"`
	CourseMagDeg  float64          `json:"course_mag_deg"`
	StartOffset   Minutes          `json:"start_offset_min"`
	Duration      Minutes          `json:"duration_min"`
	Severity      pireps.Intensity `json:"severity"`
	Probability   float64          `json:"probability"`
	ReportCount   int              `json:"report_count"`
	EvidenceIDs   []string         `json:"evidence_ids,omitempty"`
}

// Minutes renders a duration as whole minutes in JSON
type Minutes time.Duration

// MarshalJSON implements json.Marshaler
func (m Minutes) MarshalJSON() ([]byte, error) {
	mins := int64(time.Duration(m).Round(time.Minute) / time.Minute)
	return []byte(strconv.FormatInt(mins, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Minutes) UnmarshalJSON(data []byte) error {
	mins, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*m = Minutes(time.Duration(mins) * time.Minute)
	return nil
}

// Provenance records where the forecast's inputs came from
type Provenance struct {
	RouteSource      string `json:"route_source"`
	ObservationsUsed bool   `json:"observations_used"`
}

// Forecast is a turbulence forecast for one flight. IsPartial marks the
// route-only tier; a full forecast always has IsPartial false.
type Forecast struct {
	FlightNumber       string                  `json:"flight_number"`
	Route              *flightdata.FlightRoute `json:"route"`
	Segments           []Segment               `json:"segments"`
	OverallSeverity    pireps.Intensity        `json:"overall_severity"`
	OverallProbability float64                 `json:"overall_probability"`
	WorstSegmentIndex  int                     `json:"worst_segment_index"`
	ObservationCount   int                     `json:"observation_count"`
	TotalDistanceKm    float64                 `json:"total_distance_km"`
	EstimatedDuration  Minutes                 `json:"estimated_duration_min"`
	IsPartial          bool                    `json:"is_partial"`
	GeneratedAt        time.Time               `json:"generated_at"`
	Provenance         Provenance              `json:"provenance"`
}
