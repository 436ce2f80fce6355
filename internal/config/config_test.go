package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[route_data]
primary_base_url = "https://example.com/flights"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Forecast.SegmentCount != 6 {
		t.Errorf("segment_count = %d, want default 6", cfg.Forecast.SegmentCount)
	}
	if cfg.Forecast.GroundspeedKmh != 800 {
		t.Errorf("groundspeed = %v, want default 800", cfg.Forecast.GroundspeedKmh)
	}
	if cfg.Cache.BasicTTLMinutes != 30 || cfg.Cache.FullTTLMinutes != 5 {
		t.Errorf("cache TTLs = %d/%d, want 30/5", cfg.Cache.BasicTTLMinutes, cfg.Cache.FullTTLMinutes)
	}
	if cfg.Cache.MaxEntries != 1000 {
		t.Errorf("max_entries = %d, want default 1000", cfg.Cache.MaxEntries)
	}
	if cfg.Observations.MaxDistanceKm != 200 {
		t.Errorf("max_distance_km = %v, want default 200", cfg.Observations.MaxDistanceKm)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[route_data]
primary_base_url = "https://example.com/flights"

[forecast]
segment_count = 8

[cache]
full_ttl_minutes = 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Forecast.SegmentCount != 8 {
		t.Errorf("segment_count = %d, want 8", cfg.Forecast.SegmentCount)
	}
	if cfg.Cache.FullTTLMinutes != 2 {
		t.Errorf("full_ttl_minutes = %d, want 2", cfg.Cache.FullTTLMinutes)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TURBCAST_PRIMARY_API_KEY", "env-key")

	path := writeConfig(t, `
[route_data]
primary_base_url = "https://example.com/flights"
primary_api_key = "file-key"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RouteData.PrimaryAPIKey != "env-key" {
		t.Errorf("api key = %q, environment should win over the file", cfg.RouteData.PrimaryAPIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.RouteData.PrimaryBaseURL = "https://example.com"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"no providers", func(c *Config) { c.RouteData.PrimaryBaseURL = "" }},
		{"segment count too high", func(c *Config) { c.Forecast.SegmentCount = 11 }},
		{"zero groundspeed", func(c *Config) { c.Forecast.GroundspeedKmh = -1 }},
		{"zero full ttl", func(c *Config) { c.Cache.FullTTLMinutes = -5 }},
		{"advisory without key", func(c *Config) { c.Advisory.Enabled = true }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline config should validate: %v", err)
	}

	for _, tt := range tests {
		cfg := valid()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadWithFallbackMissing(t *testing.T) {
	dir := t.TempDir()
	old, _ := os.Getwd()
	defer os.Chdir(old)
	os.Chdir(dir)

	if _, err := LoadWithFallback(""); err == nil {
		t.Fatal("expected an error when no config file exists")
	}
}
