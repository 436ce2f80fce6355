package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server       ServerConfig       `toml:"server"`       // HTTP server settings
	Logging      LoggingConfig      `toml:"logging"`      // Application logging settings
	RouteData    RouteDataConfig    `toml:"route_data"`   // Flight route provider settings
	Observations ObservationsConfig `toml:"observations"` // Turbulence observation feed settings
	Forecast     ForecastConfig     `toml:"forecast"`     // Forecast computation settings
	Cache        CacheConfig        `toml:"cache"`        // Forecast cache settings
	Advisory     AdvisoryConfig     `toml:"advisory"`     // Plain-language advisory settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (["*"] for all)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
	File   string `toml:"file"`   // Optional log file path (rotated); empty disables file output
}

// RouteDataConfig contains flight route provider configuration.
// Providers are tried in order: primary HTTP API, secondary HTTP API,
// then the static route database as last resort.
type RouteDataConfig struct {
	// Primary provider (AeroDataBox-style: flight number in the path, API key header)
	PrimaryBaseURL string `toml:"primary_base_url"` // e.g. https://aerodatabox.p.rapidapi.com/flights/number
	PrimaryAPIHost string `toml:"primary_api_host"` // Host header value for the primary provider
	PrimaryAPIKey  string `toml:"primary_api_key"`  // API key for the primary provider

	// Secondary provider (aviationstack-style: access_key query parameter, data envelope)
	SecondaryBaseURL string `toml:"secondary_base_url"` // e.g. https://api.aviationstack.com/v1/flights
	SecondaryAPIKey  string `toml:"secondary_api_key"`  // Access key for the secondary provider

	// Static route database (read-only reference data, last-resort provider)
	StaticDBPath string `toml:"static_db_path"` // Path to the routes/airports SQLite database; empty disables

	RequestTimeoutSeconds int `toml:"request_timeout_seconds"` // Per-provider request timeout (default 10)

	// Circuit breaker settings applied to each HTTP provider
	BreakerFailureThreshold int `toml:"breaker_failure_threshold"` // Consecutive failures before the breaker opens (default 5)
	BreakerOpenSeconds      int `toml:"breaker_open_seconds"`      // How long an open breaker skips a provider (default 60)
}

// ObservationsConfig contains turbulence observation feed configuration
type ObservationsConfig struct {
	BaseURL               string  `toml:"base_url"`                // PIREP-style feed base URL
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"` // Feed request timeout (default 10)
	MaxRetries            int     `toml:"max_retries"`             // Retry attempts on transient failure (default 2)
	MaxDistanceKm         float64 `toml:"max_distance_km"`         // Discard observations farther than this from every segment (default 200)
	MaxAgeMinutes         int     `toml:"max_age_minutes"`         // Discard observations older than this; 0 keeps everything
}

// ForecastConfig contains forecast computation settings
type ForecastConfig struct {
	SegmentCount         int     `toml:"segment_count"`          // Route segments per forecast (default 6, max 10)
	GroundspeedKmh       float64 `toml:"groundspeed_kmh"`        // Assumed average groundspeed for time estimates (default 800)
	MinDurationMinutes   int     `toml:"min_duration_minutes"`   // Floor for estimated route duration (default 30)
	CruiseAltitudeFt     int     `toml:"cruise_altitude_ft"`     // Cruise altitude assigned to mid-route segments (default 35000)
	TransitionAltitudeFt int     `toml:"transition_altitude_ft"` // Altitude assigned to climb/descent segments (default 24000)
}

// CacheConfig contains forecast cache settings
type CacheConfig struct {
	BasicTTLMinutes      int `toml:"basic_ttl_minutes"`      // TTL for basic (route-only) entries (default 30)
	FullTTLMinutes       int `toml:"full_ttl_minutes"`       // TTL for full forecast entries (default 5)
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"` // Background sweep interval (default 10)
	MaxEntries           int `toml:"max_entries"`            // Per-tier entry cap; LRU eviction above this (default 1000)
}

// AdvisoryConfig contains settings for the optional plain-language summary
type AdvisoryConfig struct {
	Enabled        bool    `toml:"enabled"`         // Enable the advisory endpoint
	APIKey         string  `toml:"api_key"`         // Gemini API key (may come from the environment)
	Model          string  `toml:"model"`           // Model name (e.g. "gemini-2.0-flash")
	Temperature    float64 `toml:"temperature"`     // Sampling temperature
	MaxTokens      int     `toml:"max_tokens"`      // Response token cap
	TimeoutSeconds int     `toml:"timeout_seconds"` // Request timeout (default 30)
}

// Load reads and parses the configuration file at the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

// LoadWithFallback loads configuration from the given path, or searches
// the standard locations (configs/config.toml, then ./config.toml) when
// no path is provided.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	candidates := []string{
		filepath.Join("configs", "config.toml"),
		"config.toml",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	return nil, fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// applyDefaults fills in defaults for unset values
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 30
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 60
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.RouteData.RequestTimeoutSeconds == 0 {
		c.RouteData.RequestTimeoutSeconds = 10
	}
	if c.RouteData.BreakerFailureThreshold == 0 {
		c.RouteData.BreakerFailureThreshold = 5
	}
	if c.RouteData.BreakerOpenSeconds == 0 {
		c.RouteData.BreakerOpenSeconds = 60
	}
	if c.Observations.RequestTimeoutSeconds == 0 {
		c.Observations.RequestTimeoutSeconds = 10
	}
	if c.Observations.MaxRetries == 0 {
		c.Observations.MaxRetries = 2
	}
	if c.Observations.MaxDistanceKm == 0 {
		c.Observations.MaxDistanceKm = 200
	}
	if c.Forecast.SegmentCount == 0 {
		c.Forecast.SegmentCount = 6
	}
	if c.Forecast.GroundspeedKmh == 0 {
		c.Forecast.GroundspeedKmh = 800
	}
	if c.Forecast.MinDurationMinutes == 0 {
		c.Forecast.MinDurationMinutes = 30
	}
	if c.Forecast.CruiseAltitudeFt == 0 {
		c.Forecast.CruiseAltitudeFt = 35000
	}
	if c.Forecast.TransitionAltitudeFt == 0 {
		c.Forecast.TransitionAltitudeFt = 24000
	}
	if c.Cache.BasicTTLMinutes == 0 {
		c.Cache.BasicTTLMinutes = 30
	}
	if c.Cache.FullTTLMinutes == 0 {
		c.Cache.FullTTLMinutes = 5
	}
	if c.Cache.SweepIntervalMinutes == 0 {
		c.Cache.SweepIntervalMinutes = 10
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 1000
	}
	if c.Advisory.Model == "" {
		c.Advisory.Model = "gemini-2.0-flash"
	}
	if c.Advisory.MaxTokens == 0 {
		c.Advisory.MaxTokens = 512
	}
	if c.Advisory.TimeoutSeconds == 0 {
		c.Advisory.TimeoutSeconds = 30
	}
}

// applyEnvOverrides overlays secrets from the environment so API keys
// never have to live in the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TURBCAST_PRIMARY_API_KEY"); v != "" {
		c.RouteData.PrimaryAPIKey = v
	}
	if v := os.Getenv("TURBCAST_SECONDARY_API_KEY"); v != "" {
		c.RouteData.SecondaryAPIKey = v
	}
	if v := os.Getenv("TURBCAST_GEMINI_API_KEY"); v != "" {
		c.Advisory.APIKey = v
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.RouteData.PrimaryBaseURL == "" && c.RouteData.SecondaryBaseURL == "" && c.RouteData.StaticDBPath == "" {
		return fmt.Errorf("at least one route data provider must be configured")
	}
	if c.RouteData.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("route_data request_timeout_seconds must be greater than 0")
	}
	if c.Observations.MaxDistanceKm <= 0 {
		return fmt.Errorf("observations max_distance_km must be greater than 0")
	}
	if c.Forecast.SegmentCount < 1 || c.Forecast.SegmentCount > 10 {
		return fmt.Errorf("forecast segment_count must be between 1 and 10")
	}
	if c.Forecast.GroundspeedKmh <= 0 {
		return fmt.Errorf("forecast groundspeed_kmh must be greater than 0")
	}
	if c.Cache.BasicTTLMinutes <= 0 || c.Cache.FullTTLMinutes <= 0 {
		return fmt.Errorf("cache TTLs must be greater than 0")
	}
	if c.Cache.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("cache sweep_interval_minutes must be greater than 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be greater than 0")
	}
	if c.Advisory.Enabled && c.Advisory.APIKey == "" {
		return fmt.Errorf("advisory is enabled but no API key is configured")
	}
	return nil
}
