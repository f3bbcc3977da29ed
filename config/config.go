package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Dispatch  DispatchConfig
	Notify    NotifyConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Log       LogConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type JWTConfig struct {
	Secret string
	Issuer string
}

// DispatchConfig tunes job discovery and the stale assignment reminder
type DispatchConfig struct {
	NearbyRadiusKm       float64
	MaxRadiusKm          float64
	AverageSpeedKmh      float64
	StaleAssignmentAfter time.Duration
	StaleScanInterval    time.Duration
	LocationMaxAge       time.Duration
}

type NotifyConfig struct {
	RelayInterval time.Duration
}

// RedisConfig is optional; an empty Addr disables the redis sink
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// TelemetryConfig is optional; an empty endpoint disables trace export
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
}

type LogConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")

	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("DISPATCH_NEARBY_RADIUS_KM", 800.0)
	v.SetDefault("DISPATCH_MAX_RADIUS_KM", 2000.0)
	v.SetDefault("DISPATCH_AVERAGE_SPEED_KMH", 30.0)
	v.SetDefault("DISPATCH_STALE_ASSIGNMENT_AFTER", 2*time.Hour)
	v.SetDefault("DISPATCH_STALE_SCAN_INTERVAL", 10*time.Minute)
	v.SetDefault("DISPATCH_LOCATION_MAX_AGE", 24*time.Hour)

	v.SetDefault("NOTIFY_RELAY_INTERVAL", 30*time.Second)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "service-request-events")

	v.SetDefault("OTEL_SERVICE_NAME", "home-service-server")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 100)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

// Load reads .env (when present) and the process environment
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:    v.GetString("PORT"),
			GinMode: v.GetString("GIN_MODE"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DB_URL"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Dispatch: DispatchConfig{
			NearbyRadiusKm:       v.GetFloat64("DISPATCH_NEARBY_RADIUS_KM"),
			MaxRadiusKm:          v.GetFloat64("DISPATCH_MAX_RADIUS_KM"),
			AverageSpeedKmh:      v.GetFloat64("DISPATCH_AVERAGE_SPEED_KMH"),
			StaleAssignmentAfter: v.GetDuration("DISPATCH_STALE_ASSIGNMENT_AFTER"),
			StaleScanInterval:    v.GetDuration("DISPATCH_STALE_SCAN_INTERVAL"),
			LocationMaxAge:       v.GetDuration("DISPATCH_LOCATION_MAX_AGE"),
		},
		Notify: NotifyConfig{
			RelayInterval: v.GetDuration("NOTIFY_RELAY_INTERVAL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Channel:  v.GetString("REDIS_CHANNEL"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Security: SecurityConfig{
			AllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
			RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DB_URL is required. Set DB_URL to a valid Postgres URL")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Dispatch.NearbyRadiusKm <= 0 || c.Dispatch.MaxRadiusKm < c.Dispatch.NearbyRadiusKm {
		return fmt.Errorf("invalid dispatch radius: nearby=%.1f max=%.1f",
			c.Dispatch.NearbyRadiusKm, c.Dispatch.MaxRadiusKm)
	}
	if c.Dispatch.AverageSpeedKmh <= 0 {
		return fmt.Errorf("DISPATCH_AVERAGE_SPEED_KMH must be positive")
	}
	if c.Dispatch.LocationMaxAge < 0 {
		return fmt.Errorf("DISPATCH_LOCATION_MAX_AGE must not be negative")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
