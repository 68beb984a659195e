// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// GeocodingConfig provides settings for the address providers.
type GeocodingConfig interface {
	GetPrimaryGeocoderURL() string
	GetSecondaryGeocoderURL() string
	GetGeocoderUserAgent() string
	GetGeocoderTimeout() time.Duration
	GetGeocoderResultLimit() int
	GetGeocoderCountryCodes() string
	GetGeocoderRatePerSecond() int
}

// AddressSessionConfig provides settings for resolver sessions.
type AddressSessionConfig interface {
	GetAddressDebounce() time.Duration
	GetAddressSessionTTL() time.Duration
}

// RedisConfig provides the shared Redis connection.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	PrimaryGeocoderURL    string
	SecondaryGeocoderURL  string
	GeocoderUserAgent     string
	GeocoderTimeout       time.Duration
	GeocoderResultLimit   int
	GeocoderCountryCodes  string
	GeocoderRatePerSecond int
	AddressDebounce       time.Duration
	AddressSessionTTL     time.Duration
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// GeocodingConfig implementation
func (c *Config) GetPrimaryGeocoderURL() string     { return c.PrimaryGeocoderURL }
func (c *Config) GetSecondaryGeocoderURL() string   { return c.SecondaryGeocoderURL }
func (c *Config) GetGeocoderUserAgent() string      { return c.GeocoderUserAgent }
func (c *Config) GetGeocoderTimeout() time.Duration { return c.GeocoderTimeout }
func (c *Config) GetGeocoderResultLimit() int       { return c.GeocoderResultLimit }
func (c *Config) GetGeocoderCountryCodes() string   { return c.GeocoderCountryCodes }
func (c *Config) GetGeocoderRatePerSecond() int     { return c.GeocoderRatePerSecond }

// AddressSessionConfig implementation
func (c *Config) GetAddressDebounce() time.Duration   { return c.AddressDebounce }
func (c *Config) GetAddressSessionTTL() time.Duration { return c.AddressSessionTTL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// Load reads configuration from environment variables and validates the
// settings every server process needs.
func Load() (*Config, error) {
	cfg := LoadGeocoding()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// LoadGeocoding reads configuration without enforcing server-only settings.
// Used by tools that only need the geocoders.
func LoadGeocoding() *Config {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	return &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		PrimaryGeocoderURL:    getEnv("GEOCODER_PRIMARY_URL", "https://api-adresse.data.gouv.fr/search/"),
		SecondaryGeocoderURL:  getEnv("GEOCODER_SECONDARY_URL", "https://nominatim.openstreetmap.org/search"),
		GeocoderUserAgent:     getEnv("GEOCODER_USER_AGENT", "LightChurch/1.0"),
		GeocoderTimeout:       durationOr(getEnv("GEOCODER_TIMEOUT", "5s"), 5*time.Second),
		GeocoderResultLimit:   intOr(getEnv("GEOCODER_RESULT_LIMIT", "5"), 5),
		GeocoderCountryCodes:  getEnv("GEOCODER_COUNTRY_CODES", "fr"),
		GeocoderRatePerSecond: intOr(getEnv("GEOCODER_RATE_PER_SECOND", "1"), 1),
		AddressDebounce:       durationOr(getEnv("ADDRESS_DEBOUNCE", "300ms"), 300*time.Millisecond),
		AddressSessionTTL:     durationOr(getEnv("ADDRESS_SESSION_TTL", "30m"), 30*time.Minute),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      intOr(getEnv("ASYNQ_CONCURRENCY", "4"), 4),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func intOr(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || result <= 0 {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
