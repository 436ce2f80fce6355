package pireps

import (
	"strings"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
)

// Intensity is a reported turbulence level. The order of the constants is
// the severity order; comparisons rely on it.
type Intensity int

const (
	Smooth Intensity = iota
	Light
	Moderate
	Severe
)

var intensityNames = map[Intensity]string{
	Smooth:   "smooth",
	Light:    "light",
	Moderate: "moderate",
	Severe:   "severe",
}

func (i Intensity) String() string {
	if name, ok := intensityNames[i]; ok {
		return name
	}
	return "smooth"
}

// MarshalJSON renders the intensity as its lowercase name
func (i Intensity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (i *Intensity) UnmarshalJSON(data []byte) error {
	name := strings.Trim(string(data), `"`)
	for level, n := range intensityNames {
		if n == name {
			*i = level
			return nil
		}
	}
	*i = Smooth
	return nil
}

// ParseIntensity maps PIREP turbulence codes to an intensity. Modifiers
// like "MOD-SEV" resolve to the stronger level; anything unrecognized is
// treated as smooth so a malformed report can only under-report.
func ParseIntensity(code string) Intensity {
	c := strings.ToUpper(strings.TrimSpace(code))
	switch {
	case strings.Contains(c, "EXTM"), strings.Contains(c, "EXTREME"):
		return Severe
	case strings.Contains(c, "SEV"), strings.Contains(c, "SVR"):
		return Severe
	case strings.Contains(c, "MOD"):
		return Moderate
	case strings.Contains(c, "LGT"), strings.Contains(c, "LIGHT"):
		return Light
	default:
		return Smooth
	}
}

// Observation is one pilot report of turbulence conditions
type Observation struct {
	ID         string         `json:"id"`
	Location   geo.Coordinate `json:"location"`
	AltitudeFt int            `json:"altitude_ft"` // 0 when the report carried no usable altitude
	Intensity  Intensity      `json:"intensity"`
	ObservedAt time.Time      `json:"observed_at"`
	Aircraft   string         `json:"aircraft,omitempty"`
	Raw        string         `json:"raw,omitempty"`
}

// HasAltitude reports whether the observation carried a usable altitude
func (o *Observation) HasAltitude() bool {
	return o.AltitudeFt > 0
}
