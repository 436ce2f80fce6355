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

	"github.com/skybrief/turbcast/pkg/logger"
)

// AviationStackProvider queries an aviationstack-style API: access key as a
// query parameter, results wrapped in a {"data": [...]} envelope. This
// provider never returns airport coordinates; the resolver enriches them
// from the static airport database when available.
type AviationStackProvider struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewAviationStackProvider creates the secondary route provider
func NewAviationStackProvider(baseURL, accessKey string, timeout time.Duration, log *logger.Logger) *AviationStackProvider {
	return &AviationStackProvider{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		accessKey: accessKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("avs-provider"),
	}
}

func (p *AviationStackProvider) Name() string { return "aviationstack" }

type avsEnvelope struct {
	Data  []avsFlight `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type avsFlight struct {
	FlightStatus string `json:"flight_status"`
	Departure    struct {
		Airport   string `json:"airport"`
		IATA      string `json:"iata"`
		ICAO      string `json:"icao"`
		Scheduled string `json:"scheduled"`
	} `json:"departure"`
	Arrival struct {
		Airport   string `json:"airport"`
		IATA      string `json:"iata"`
		ICAO      string `json:"icao"`
		Scheduled string `json:"scheduled"`
	} `json:"arrival"`
	Airline struct {
		Name string `json:"name"`
		IATA string `json:"iata"`
		ICAO string `json:"icao"`
	} `json:"airline"`
	Flight struct {
		Number string `json:"number"`
		IATA   string `json:"iata"`
	} `json:"flight"`
}

// Resolve fetches the route for a flight number
func (p *AviationStackProvider) Resolve(ctx context.Context, flightNumber string) (*FlightRoute, error) {
	q := url.Values{}
	q.Set("access_key", p.accessKey)
	q.Set("flight_iata", flightNumber)
	urlStr := fmt.Sprintf("%s?%s", p.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	p.logger.Debug("Fetching route data", logger.String("flight", flightNumber))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

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

	var envelope avsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("provider error %s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if len(envelope.Data) == 0 {
		return nil, errNoMatch
	}

	route := envelope.Data[0].toRoute(flightNumber)
	if !route.Usable() {
		return nil, errNoMatch
	}

	p.logger.Debug("Resolved route",
		logger.String("flight", flightNumber),
		logger.String("from", route.From.IATA),
		logger.String("to", route.To.IATA))

	return route, nil
}

func (f *avsFlight) toRoute(flightNumber string) *FlightRoute {
	route := &FlightRoute{
		FlightNumber: Normalize(flightNumber),
		From: Airport{
			IATA: strings.ToUpper(f.Departure.IATA),
			ICAO: strings.ToUpper(f.Departure.ICAO),
			Name: f.Departure.Airport,
		},
		To: Airport{
			IATA: strings.ToUpper(f.Arrival.IATA),
			ICAO: strings.ToUpper(f.Arrival.ICAO),
			Name: f.Arrival.Airport,
		},
		Airline: Airline{
			Name: f.Airline.Name,
			IATA: f.Airline.IATA,
			ICAO: f.Airline.ICAO,
		},
		Status: ParseStatus(f.FlightStatus),
		Source: "aviationstack",
	}
	if t, err := time.Parse(time.RFC3339, f.Departure.Scheduled); err == nil {
		route.Schedule.Departure = t
	}
	if t, err := time.Parse(time.RFC3339, f.Arrival.Scheduled); err == nil {
		route.Schedule.Arrival = t
	}
	return route
}
