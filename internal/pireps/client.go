package pireps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
)

// Client fetches pilot reports from an AviationWeather-style PIREP feed
type Client struct {
	baseURL    string
	maxRetries int
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new PIREP feed client
func NewClient(baseURL string, timeout time.Duration, maxRetries int, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("pirep-client"),
	}
}

// wireReport mirrors the feed's JSON record. Numeric fields arrive as
// numbers or strings depending on the deployment, so everything tolerant
// goes through json.Number.
type wireReport struct {
	PirepID  string      `json:"pirepId"`
	ObsTime  json.Number `json:"obsTime"` // epoch seconds
	Lat      json.Number `json:"lat"`
	Lon      json.Number `json:"lon"`
	FltLvl   string      `json:"fltLvl"` // flight level in hundreds of feet, or "UNKN"
	AcType   string      `json:"acType"`
	TbInt1   string      `json:"tbInt1"`
	TbInt2   string      `json:"tbInt2"`
	RawOb    string      `json:"rawOb"`
	ReportAt string      `json:"reportTime"` // some deployments send RFC 3339 instead of obsTime
}

// wireEnvelope covers deployments that wrap the array in an object
type wireEnvelope struct {
	Reports []wireReport `json:"reports"`
}

// FetchBox fetches all reports inside a bounding box, with retries and
// exponential backoff on transient failures.
func (c *Client) FetchBox(ctx context.Context, box geo.BoundingBox) ([]Observation, error) {
	url := fmt.Sprintf("%s/pirep?format=json&bbox=%.3f,%.3f,%.3f,%.3f",
		c.baseURL, box.LatMin, box.LonMin, box.LatMax, box.LonMax)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying observation fetch",
				logger.Int("attempt", attempt),
				logger.String("backoff", backoff.String()))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		reports, err := c.fetchOnce(ctx, url)
		if err != nil {
			lastErr = err
			c.logger.Warn("Observation fetch failed, may retry",
				logger.Error(err),
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", c.maxRetries+1))
			continue
		}
		return reports, nil
	}

	return nil, fmt.Errorf("failed to fetch observations after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding observation data: %w", err)
	}

	reports, err := parseReports(raw)
	if err != nil {
		return nil, err
	}

	observations := make([]Observation, 0, len(reports))
	for i := range reports {
		if obs, ok := reports[i].toObservation(); ok {
			observations = append(observations, obs)
		}
	}

	c.logger.Debug("Fetched observations",
		logger.Int("raw_reports", len(reports)),
		logger.Int("usable", len(observations)))

	return observations, nil
}

// parseReports accepts both a bare array and a {"reports": [...]} envelope
func parseReports(raw json.RawMessage) ([]wireReport, error) {
	var reports []wireReport
	if err := json.Unmarshal(raw, &reports); err == nil {
		return reports, nil
	}

	var envelope wireEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse observation feed: %w", err)
	}
	return envelope.Reports, nil
}

// toObservation converts a wire record, dropping reports without a usable
// position. Missing IDs get a generated one so downstream dedup has a key.
func (w *wireReport) toObservation() (Observation, bool) {
	lat, errLat := w.Lat.Float64()
	lon, errLon := w.Lon.Float64()
	if errLat != nil || errLon != nil {
		return Observation{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Observation{}, false
	}

	obs := Observation{
		ID:        w.PirepID,
		Location:  geo.Coordinate{Lat: lat, Lon: lon},
		Intensity: strongestIntensity(w.TbInt1, w.TbInt2),
		Aircraft:  w.AcType,
		Raw:       w.RawOb,
	}
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}

	if level, err := strconv.Atoi(strings.TrimSpace(w.FltLvl)); err == nil && level > 0 {
		obs.AltitudeFt = level * 100
	}

	if secs, err := w.ObsTime.Int64(); err == nil && secs > 0 {
		obs.ObservedAt = time.Unix(secs, 0).UTC()
	} else if t, err := time.Parse(time.RFC3339, w.ReportAt); err == nil {
		obs.ObservedAt = t.UTC()
	}

	return obs, true
}

// strongestIntensity picks the stronger of the report's turbulence groups
func strongestIntensity(codes ...string) Intensity {
	strongest := Smooth
	for _, code := range codes {
		if i := ParseIntensity(code); i > strongest {
			strongest = i
		}
	}
	return strongest
}
