// Package config manages gomsgrouter daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dantte-lp/gomsgrouter/internal/router"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gomsgrouter configuration.
type Config struct {
	Admin   AdminConfig   `koanf:"admin"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Router  RouterConfig  `koanf:"router"`
}

// AdminConfig holds the admin HTTP API configuration.
type AdminConfig struct {
	// Addr is the admin API listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// RouterConfig holds the capacity knobs that the original implementation
// fixed at build time. Here they are runtime configuration instead.
type RouterConfig struct {
	// MaxHubs bounds the total number of hubs the router accepts, local
	// and remote combined. Zero means unbounded.
	MaxHubs int `koanf:"max_hubs"`

	// MaxHostHubs bounds the number of remote (host-side) hubs the Remote
	// Hub Manager accepts. Must be strictly less than MaxHubs, since the
	// local hub always occupies one slot. Zero means unbounded.
	MaxHostHubs int `koanf:"max_host_hubs"`

	// MaxHostEndpoints bounds the number of endpoints any single remote
	// hub may register. Zero means unbounded.
	MaxHostEndpoints int `koanf:"max_host_endpoints"`

	// MaxSessions bounds the total number of concurrent sessions the
	// router accepts. Zero means unbounded.
	MaxSessions int `koanf:"max_sessions"`

	// ReservedSessionId is the partition point between router-assigned
	// and caller-assigned session ids.
	ReservedSessionId uint16 `koanf:"reserved_session_id"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Router: RouterConfig{
			ReservedSessionId: uint16(router.DefaultReservedSessionId),
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gomsgrouter configuration.
// Variables are named GOMSGROUTER_<section>_<key>, e.g. GOMSGROUTER_ADMIN_ADDR.
const envPrefix = "GOMSGROUTER_"

// Load reads configuration from a YAML file at path (if path is non-empty),
// overlays environment variable overrides (GOMSGROUTER_ prefix), and merges
// on top of DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GOMSGROUTER_ADMIN_ADDR              -> admin.addr
//	GOMSGROUTER_METRICS_ADDR            -> metrics.addr
//	GOMSGROUTER_METRICS_PATH            -> metrics.path
//	GOMSGROUTER_LOG_LEVEL               -> log.level
//	GOMSGROUTER_LOG_FORMAT              -> log.format
//	GOMSGROUTER_ROUTER_MAX_HUBS         -> router.max_hubs
//	GOMSGROUTER_ROUTER_MAX_HOST_HUBS    -> router.max_host_hubs
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOMSGROUTER_ADMIN_ADDR -> admin.addr.
// Strips the GOMSGROUTER_ prefix, lowercases, and replaces the first _
// (the section separator) with ., so ROUTER_MAX_HUBS becomes
// router.max_hubs.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":                  defaults.Admin.Addr,
		"metrics.addr":                defaults.Metrics.Addr,
		"metrics.path":                defaults.Metrics.Path,
		"log.level":                   defaults.Log.Level,
		"log.format":                  defaults.Log.Format,
		"router.max_hubs":             defaults.Router.MaxHubs,
		"router.max_host_hubs":        defaults.Router.MaxHostHubs,
		"router.max_host_endpoints":   defaults.Router.MaxHostEndpoints,
		"router.max_sessions":         defaults.Router.MaxSessions,
		"router.reserved_session_id":  defaults.Router.ReservedSessionId,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAdminAddr indicates the admin listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidLogLevel indicates an unrecognized log level string.
	ErrInvalidLogLevel = errors.New("log.level must be one of debug, info, warn, error")

	// ErrInvalidLogFormat indicates an unrecognized log format string.
	ErrInvalidLogFormat = errors.New("log.format must be one of json, text")

	// ErrMaxHostHubsTooLarge indicates router.max_host_hubs would leave no
	// room for the local hub's own slot.
	ErrMaxHostHubsTooLarge = errors.New("router.max_host_hubs must be less than router.max_hubs")

	// ErrReservedSessionIdTooLarge indicates router.reserved_session_id
	// collides with the invalid-session-id sentinel.
	ErrReservedSessionIdTooLarge = errors.New("router.reserved_session_id must be less than 0xFFFF")
)

// ValidLogLevels lists the recognized log level strings.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidLogFormats lists the recognized log format strings.
var ValidLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}

	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Log.Level != "" && !ValidLogLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level)
	}

	if cfg.Log.Format != "" && !ValidLogFormats[cfg.Log.Format] {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Log.Format)
	}

	if cfg.Router.MaxHubs > 0 && cfg.Router.MaxHostHubs >= cfg.Router.MaxHubs {
		return ErrMaxHostHubsTooLarge
	}

	if cfg.Router.ReservedSessionId >= uint16(router.InvalidSessionId) {
		return ErrReservedSessionIdTooLarge
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
