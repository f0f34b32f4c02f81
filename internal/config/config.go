// Package config provides configuration loading, parsing, and hot-reload
// for the remote-config engine.
package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Default values for the externally configurable options.
const (
	DefaultFetchTimeoutSeconds         = 60
	DefaultMinimumFetchIntervalSeconds = 12 * 60 * 60
)

// Config represents the complete engine configuration.
type Config struct {
	Project       ProjectConfig  `yaml:"project"        toml:"project"`
	Fetch         FetchConfig    `yaml:"fetch"          toml:"fetch"`
	Realtime      RealtimeConfig `yaml:"realtime"       toml:"realtime"`
	Storage       StorageConfig  `yaml:"storage"        toml:"storage"`
	Defaults      DefaultsConfig `yaml:"defaults"       toml:"defaults"`
	Logging       LoggingConfig  `yaml:"logging"        toml:"logging"`
	CustomSignals map[string]any `yaml:"custom_signals" toml:"custom_signals"`
}

// RuntimeConfig defines the interface for accessing runtime configuration
// that supports hot-reload. Components that need to observe config changes
// should use this interface instead of holding a direct *Config pointer,
// which would become stale after hot-reload.
type RuntimeConfig interface {
	Get() *Config
}

// ProjectConfig identifies the remote-config project, namespace and calling
// application, and carries the host credentials used to authenticate fetch
// and realtime requests.
type ProjectConfig struct {
	ProjectNumber   string `yaml:"project_number"    toml:"project_number"`
	ProjectID       string `yaml:"project_id"        toml:"project_id"`
	Namespace       string `yaml:"namespace"         toml:"namespace"`
	APIKey          string `yaml:"api_key"           toml:"api_key"`
	AppID           string `yaml:"app_id"            toml:"app_id"`
	PackageName     string `yaml:"package_name"      toml:"package_name"`
	AndroidCertSHA1 string `yaml:"android_cert_sha1" toml:"android_cert_sha1"`
}

// FetchConfig controls the one-shot fetch endpoint and throttling policy.
type FetchConfig struct {
	BaseURL                     string `yaml:"base_url"                        toml:"base_url"`
	TimeoutSeconds              int    `yaml:"timeout_in_seconds"              toml:"timeout_in_seconds"`
	MinimumFetchIntervalSeconds int    `yaml:"minimum_fetch_interval_in_seconds" toml:"minimum_fetch_interval_in_seconds"`
}

// GetTimeout returns the fetch HTTP timeout, defaulting to 60s.
func (f *FetchConfig) GetTimeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return DefaultFetchTimeoutSeconds * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// GetMinimumFetchInterval returns the minimum fetch interval, defaulting to
// 12 hours.
func (f *FetchConfig) GetMinimumFetchInterval() time.Duration {
	if f.MinimumFetchIntervalSeconds <= 0 {
		return DefaultMinimumFetchIntervalSeconds * time.Second
	}
	return time.Duration(f.MinimumFetchIntervalSeconds) * time.Second
}

// RealtimeConfig controls the long-lived config-update stream.
type RealtimeConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Enabled bool   `yaml:"enabled"  toml:"enabled"`
}

// StorageConfig controls where the two-tier cache and metadata store
// persist their blobs on disk.
type StorageConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// GetDirOption returns the storage directory as an Option, None when unset
// (callers should fall back to a per-OS default application directory).
func (s *StorageConfig) GetDirOption() mo.Option[string] {
	if s.Dir == "" {
		return mo.None[string]()
	}
	return mo.Some(s.Dir)
}

// DefaultsConfig points at the developer-supplied defaults resource: a
// flat key/value YAML file loaded into the defaults container at startup
// and re-applied when the engine config hot-reloads.
type DefaultsConfig struct {
	File string `yaml:"file" toml:"file"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"  toml:"level"`  // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"` // enable colored console output
}

// ParseLevel converts a string log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
