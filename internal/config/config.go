// Package config loads the FCP engine's configuration from a JSON file
// with environment-variable overrides, following the same Load-then-
// apply-env-overrides shape used across the teacher repo's config package.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// Config is the root configuration for the FCP engine.
type Config struct {
	Cache        CacheConfig        `json:"cache"`
	Vision       VisionConfig       `json:"vision"`
	Rest         RestConfig         `json:"rest"`
	Availability AvailabilityConfig `json:"availability"`
	Gap          GapConfig          `json:"gap"`
	Logging      LoggingConfig      `json:"logging"`
}

// CacheConfig configures the local Arrow-IPC columnar cache (§4.2).
type CacheConfig struct {
	Enabled bool   `json:"enabled"`
	Root    string `json:"root"`     // cache_root in the path grammar
	TTL     int    `json:"ttl_secs"` // 0 disables TTL-based staleness checks
}

// VisionConfig configures the bulk-archive transport (§4.3).
type VisionConfig struct {
	Enabled           bool `json:"enabled"`
	TimeoutSecs       int  `json:"timeout_secs"`
	RetryCount        int  `json:"retry_count"`
	Concurrency       int  `json:"concurrency"`        // bounded parallel per-day fetches
	RequestsPerSecond int  `json:"requests_per_second"` // throttle across the concurrency pool
	FreshnessLagHours int  `json:"freshness_lag_hours"` // publication-lag window, default 24
}

// RestConfig configures the live REST API layer (§4.4).
type RestConfig struct {
	Enabled        bool `json:"enabled"`
	TimeoutSecs    int  `json:"timeout_secs"`
	RetryCount     int  `json:"retry_count"`
	MaxConnections int  `json:"max_connections"`
	DefaultRetryAfterSecs int `json:"default_retry_after_secs"` // not read by restsource.Client, which uses 60s when a 429/418 omits Retry-After
}

// AvailabilityConfig configures the preflight symbol-listing lookup (§4.6).
type AvailabilityConfig struct {
	ReportsDir string `json:"reports_dir"`
}

// GapConfig exposes the gap-detector thresholds as configuration rather
// than hardcoded constants (Open Question in spec §9: funding-rate cadence
// may need per-chart-type tuning).
type GapConfig struct {
	RegularThreshold     float64 `json:"regular_threshold"`      // default 0.30
	DayBoundaryThreshold float64 `json:"day_boundary_threshold"` // default 1.50
	MinSpanHours         float64 `json:"min_span_hours"`         // default 23
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// Default returns the built-in defaults, used when no file is supplied and
// as the base before environment overrides are applied.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{Enabled: true, Root: "./cache", TTL: 0},
		Vision: VisionConfig{
			Enabled: true, TimeoutSecs: 30, RetryCount: 3, Concurrency: 8,
			RequestsPerSecond: 10, FreshnessLagHours: 24,
		},
		Rest: RestConfig{
			Enabled: true, TimeoutSecs: 30, RetryCount: 3, MaxConnections: 50,
			DefaultRetryAfterSecs: 60,
		},
		Availability: AvailabilityConfig{ReportsDir: "./internal/availability/testdata"},
		Gap:          GapConfig{RegularThreshold: 0.30, DayBoundaryThreshold: 1.50, MinSpanHours: 23},
		Logging:      LoggingConfig{Level: "INFO", Output: "stdout", JSONFormat: true},
	}
}

// Load reads a JSON config file (if path is non-empty) over the defaults,
// then applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Cache.Root = getEnvOrDefault("FCP_CACHE_ROOT", cfg.Cache.Root)
	cfg.Cache.Enabled = getEnvBoolOrDefault("FCP_CACHE_ENABLED", cfg.Cache.Enabled)

	cfg.Vision.Enabled = getEnvBoolOrDefault("FCP_VISION_ENABLED", cfg.Vision.Enabled)
	cfg.Vision.RetryCount = getEnvIntOrDefault("FCP_VISION_RETRY_COUNT", cfg.Vision.RetryCount)
	cfg.Vision.Concurrency = getEnvIntOrDefault("FCP_VISION_CONCURRENCY", cfg.Vision.Concurrency)

	cfg.Rest.Enabled = getEnvBoolOrDefault("FCP_REST_ENABLED", cfg.Rest.Enabled)
	cfg.Rest.RetryCount = getEnvIntOrDefault("FCP_REST_RETRY_COUNT", cfg.Rest.RetryCount)

	cfg.Logging.Level = getEnvOrDefault("FCP_LOG_LEVEL", cfg.Logging.Level)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Timeout returns the configured Vision per-file timeout as a Duration.
func (c VisionConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Timeout returns the configured REST per-window timeout as a Duration.
func (c RestConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Store holds a hot-swappable Config so a long-running host process can
// reload configuration (e.g. on SIGHUP) without restarting; get_data always
// reads the current value via Load.
type Store struct {
	v atomic.Pointer[Config]
}

// NewStore creates a Store pre-populated with cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.v.Store(cfg)
	return s
}

// Load returns the current configuration.
func (s *Store) Load() *Config { return s.v.Load() }

// Swap atomically replaces the current configuration.
func (s *Store) Swap(cfg *Config) { s.v.Store(cfg) }
