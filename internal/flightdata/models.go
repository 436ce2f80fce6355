package flightdata

import (
	"strings"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
)

// Status describes the operational state of a flight as reported upstream
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusLanded    Status = "landed"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// ParseStatus maps upstream status strings onto the known set
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled", "expected", "checkin", "boarding", "gateclosed":
		return StatusScheduled
	case "live", "active", "enroute", "en-route", "departed", "approaching":
		return StatusLive
	case "landed", "arrived":
		return StatusLanded
	case "cancelled", "canceled", "diverted":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Airport identifies one endpoint of a route. Coordinates are optional:
// some providers omit them, in which case the forecast degrades per the
// engine's no-geodata path.
type Airport struct {
	IATA        string          `json:"iata"`
	ICAO        string          `json:"icao,omitempty"`
	Name        string          `json:"name,omitempty"`
	Coordinates *geo.Coordinate `json:"coordinates,omitempty"`
}

// HasCoordinates reports whether the airport carries usable geodata
func (a Airport) HasCoordinates() bool {
	return a.Coordinates != nil
}

// Airline describes the operating carrier
type Airline struct {
	Name string `json:"name,omitempty"`
	IATA string `json:"iata,omitempty"`
	ICAO string `json:"icao,omitempty"`
}

// Schedule holds the published departure and arrival times
type Schedule struct {
	Departure time.Time `json:"departure,omitempty"`
	Arrival   time.Time `json:"arrival,omitempty"`
}

// FlightRoute is the resolved route for a flight number. The resolver may
// fill in missing airport details from reference data before handing it
// out; after that it is treated as immutable.
type FlightRoute struct {
	FlightNumber string   `json:"flight_number"`
	From         Airport  `json:"from"`
	To           Airport  `json:"to"`
	Airline      Airline  `json:"airline"`
	Status       Status   `json:"status"`
	DistanceKm   float64  `json:"distance_km,omitempty"`
	Schedule     Schedule `json:"schedule"`
	Source       string   `json:"source"` // Name of the provider that resolved the route
}

// HasGeodata reports whether both endpoints carry coordinates
func (r *FlightRoute) HasGeodata() bool {
	return r.From.HasCoordinates() && r.To.HasCoordinates()
}

// Usable reports whether the route meets the minimum bar for short-circuiting
// the provider chain: both airport IATA codes present.
func (r *FlightRoute) Usable() bool {
	return r != nil && r.From.IATA != "" && r.To.IATA != ""
}

// Normalize returns the canonical cache/dedup key form of a flight number:
// uppercased with surrounding whitespace removed.
func Normalize(flightNumber string) string {
	return strings.ToUpper(strings.TrimSpace(flightNumber))
}
