// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means the in-memory graph store is used.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Empty means the in-memory trending counter is used.
	RedisURL string `koanf:"redis_url"`

	// Embedding dimensionality of the vector index.
	VectorDim int `koanf:"vector_dim"`

	// Feed request defaults
	DefaultRadiusKm float64 `koanf:"default_radius_km"`
	DefaultLimit    int     `koanf:"default_limit"`

	// Trending lookback window in hours.
	TrendingWindowHours int `koanf:"trending_window_hours"`

	// CalibrationPath points at an optional JSON file overriding the
	// fusion weight defaults.
	CalibrationPath string `koanf:"calibration_path"`

	// CORSAllowedOrigins is the comma-separated list of origins allowed
	// to call the API from a browser. Empty disables CORS handling.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// ProfilingEnabled exposes /debug/pprof/* in non-production
	// environments only.
	ProfilingEnabled bool `koanf:"profiling_enabled"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidPort           = errors.New("PORT must be a valid integer between 1 and 65535")
	ErrInvalidVectorDim      = errors.New("VECTOR_DIM must be > 0")
	ErrInvalidRadius         = errors.New("DEFAULT_RADIUS_KM must be > 0")
	ErrInvalidLimit          = errors.New("DEFAULT_LIMIT must be > 0")
	ErrInvalidTrendingWindow = errors.New("TRENDING_WINDOW_HOURS must be > 0")
	ErrInvalidSamplingRate   = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8000
	DefaultEnv                 = "development"
	DefaultVectorDim           = 1536
	DefaultFeedRadiusKm        = 2.0
	DefaultFeedLimit           = 20
	DefaultTrendingWindowHours = 24
	DefaultTracingSamplingRate = 1.0
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort, ErrInvalidPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	vectorDim, err := getEnvIntOrDefault("VECTOR_DIM", k.Int("vector_dim"), DefaultVectorDim, ErrInvalidVectorDim)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	defaultLimit, err := getEnvIntOrDefault("DEFAULT_LIMIT", k.Int("default_limit"), DefaultFeedLimit, ErrInvalidLimit)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	trendingWindow, err := getEnvIntOrDefault("TRENDING_WINDOW_HOURS", k.Int("trending_window_hours"), DefaultTrendingWindowHours, ErrInvalidTrendingWindow)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	radius, err := getEnvFloatOrDefault("DEFAULT_RADIUS_KM", k.Float64("default_radius_km"), DefaultFeedRadiusKm)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		VectorDim:           vectorDim,
		DefaultRadiusKm:     radius,
		DefaultLimit:        defaultLimit,
		TrendingWindowHours: trendingWindow,
		CalibrationPath:     getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		CORSAllowedOrigins:  getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		ProfilingEnabled:    getEnvBoolOrDefault("PROFILING_ENABLED", k, "profiling_enabled", false),
		TracingEnabled:      getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     getEnvOrKoanf("TRACING_EXPORTER", k, "tracing_exporter"),
		TracingEndpoint:     getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate: samplingRate,
		TracingInsecure:     getEnvBoolOrDefault("TRACING_INSECURE", k, "tracing_insecure", false),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error wrapping the sentinel if the environment variable is set but cannot be parsed.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int, sentinel error) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, sentinel)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault returns the environment variable as bool if set, otherwise the koanf value, or default.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		return defaultVal
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// Validate checks that all configuration values are usable.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.VectorDim <= 0 {
		errs = append(errs, ErrInvalidVectorDim)
	}
	if c.DefaultRadiusKm <= 0 {
		errs = append(errs, ErrInvalidRadius)
	}
	if c.DefaultLimit <= 0 {
		errs = append(errs, ErrInvalidLimit)
	}
	if c.TrendingWindowHours <= 0 {
		errs = append(errs, ErrInvalidTrendingWindow)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LogSummary returns a summary of the configuration suitable for logging.
// Connection credentials are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskURL(c.DatabaseURL),
		"redis_url":             maskURL(c.RedisURL),
		"vector_dim":            fmt.Sprintf("%d", c.VectorDim),
		"default_radius_km":     fmt.Sprintf("%g", c.DefaultRadiusKm),
		"default_limit":         fmt.Sprintf("%d", c.DefaultLimit),
		"trending_window_hours": fmt.Sprintf("%d", c.TrendingWindowHours),
		"calibration_path":      c.CalibrationPath,
		"profiling_enabled":     fmt.Sprintf("%t", c.ProfilingEnabled),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
	}
}

// maskURL masks the password in a connection URL.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return s
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
