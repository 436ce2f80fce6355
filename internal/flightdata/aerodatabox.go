package flightdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
)

// AeroDataBoxProvider queries an AeroDataBox-style flight API: the flight
// number goes in the path, authentication is via API key headers, and the
// body is a JSON array of matching flights.
type AeroDataBoxProvider struct {
	baseURL    string
	apiHost    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewAeroDataBoxProvider creates the primary route provider
func NewAeroDataBoxProvider(baseURL, apiHost, apiKey string, timeout time.Duration, log *logger.Logger) *AeroDataBoxProvider {
	return &AeroDataBoxProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiHost: apiHost,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("adb-provider"),
	}
}

func (p *AeroDataBoxProvider) Name() string { return "aerodatabox" }

// adbFlight mirrors the provider's wire format. Coordinates arrive nested
// under departure/arrival airport locations and may be absent.
type adbFlight struct {
	Number  string `json:"number"`
	Status  string `json:"status"`
	Airline struct {
		Name string `json:"name"`
		IATA string `json:"iata"`
		ICAO string `json:"icao"`
	} `json:"airline"`
	Departure adbMovement `json:"departure"`
	Arrival   adbMovement `json:"arrival"`
	Distance  struct {
		Km FlexFloat `json:"km"`
	} `json:"greatCircleDistance"`
}

type adbMovement struct {
	Airport struct {
		IATA     string `json:"iata"`
		ICAO     string `json:"icao"`
		Name     string `json:"name"`
		Location *struct {
			Lat FlexFloat `json:"lat"`
			Lon FlexFloat `json:"lon"`
		} `json:"location"`
	} `json:"airport"`
	ScheduledTime struct {
		UTC string `json:"utc"`
	} `json:"scheduledTime"`
}

// adbError is the soft-error envelope some deployments return with a 200
type adbError struct {
	Message string `json:"message"`
}

// Resolve fetches the route for a flight number
func (p *AeroDataBoxProvider) Resolve(ctx context.Context, flightNumber string) (*FlightRoute, error) {
	urlStr := fmt.Sprintf("%s/%s", p.baseURL, url.PathEscape(flightNumber))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiHost != "" {
		req.Header.Set("x-rapidapi-host", p.apiHost)
	}
	if p.apiKey != "" {
		req.Header.Set("x-rapidapi-key", p.apiKey)
	}

	p.logger.Debug("Fetching route data",
		logger.String("flight", flightNumber),
		logger.String("url", urlStr))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	var flights []adbFlight
	if err := json.Unmarshal(body, &flights); err != nil {
		// Some deployments wrap soft errors in a JSON object instead of
		// using status codes; distinguish that from plain garbage.
		var soft adbError
		if err2 := json.Unmarshal(body, &soft); err2 == nil && soft.Message != "" {
			return nil, fmt.Errorf("provider error: %s", soft.Message)
		}
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(flights) == 0 {
		return nil, errNoMatch
	}

	route := flights[0].toRoute(flightNumber)
	if !route.Usable() {
		return nil, errNoMatch
	}

	p.logger.Debug("Resolved route",
		logger.String("flight", flightNumber),
		logger.String("from", route.From.IATA),
		logger.String("to", route.To.IATA),
		logger.Bool("has_geodata", route.HasGeodata()))

	return route, nil
}

func (f *adbFlight) toRoute(flightNumber string) *FlightRoute {
	route := &FlightRoute{
		FlightNumber: Normalize(flightNumber),
		From:         f.Departure.toAirport(),
		To:           f.Arrival.toAirport(),
		Airline: Airline{
			Name: f.Airline.Name,
			IATA: f.Airline.IATA,
			ICAO: f.Airline.ICAO,
		},
		Status: ParseStatus(f.Status),
		Source: "aerodatabox",
	}
	if f.Distance.Km.Present() {
		route.DistanceKm = f.Distance.Km.Float64()
	}
	route.Schedule.Departure = parseADBTime(f.Departure.ScheduledTime.UTC)
	route.Schedule.Arrival = parseADBTime(f.Arrival.ScheduledTime.UTC)
	return route
}

func (m *adbMovement) toAirport() Airport {
	airport := Airport{
		IATA: strings.ToUpper(m.Airport.IATA),
		ICAO: strings.ToUpper(m.Airport.ICAO),
		Name: m.Airport.Name,
	}
	if loc := m.Airport.Location; loc != nil && loc.Lat.Present() && loc.Lon.Present() {
		airport.Coordinates = &geo.Coordinate{
			Lat: loc.Lat.Float64(),
			Lon: loc.Lon.Float64(),
		}
	}
	return airport
}

// parseADBTime handles the provider's "2006-01-02 15:04Z" timestamps,
// falling back to RFC 3339. Returns zero time when unparsable.
func parseADBTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02 15:04Z", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
