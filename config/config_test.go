package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/home_service")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("port should default")
	}
	if cfg.Dispatch.NearbyRadiusKm <= 0 || cfg.Dispatch.AverageSpeedKmh <= 0 {
		t.Errorf("dispatch defaults = %+v", cfg.Dispatch)
	}
	if cfg.Dispatch.LocationMaxAge != 24*time.Hour {
		t.Errorf("LocationMaxAge = %v, want 24h", cfg.Dispatch.LocationMaxAge)
	}
	if cfg.Dispatch.StaleAssignmentAfter <= 0 || cfg.Notify.RelayInterval <= 0 {
		t.Errorf("job intervals should default, got %v / %v", cfg.Dispatch.StaleAssignmentAfter, cfg.Notify.RelayInterval)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.Security.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://x"},
			JWT:      JWTConfig{Secret: "s"},
			Dispatch: DispatchConfig{NearbyRadiusKm: 50, MaxRadiusKm: 500, AverageSpeedKmh: 30, StaleScanInterval: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing db url", func(c *Config) { c.Database.URL = "" }, "DB_URL"},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"max below nearby", func(c *Config) { c.Dispatch.MaxRadiusKm = 10 }, "radius"},
		{"zero speed", func(c *Config) { c.Dispatch.AverageSpeedKmh = 0 }, "SPEED"},
		{"negative location age", func(c *Config) { c.Dispatch.LocationMaxAge = -time.Minute }, "LOCATION_MAX_AGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
