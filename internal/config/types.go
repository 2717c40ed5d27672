package config

import (
	"fmt"
	"time"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

const (
	DefaultBaseZoneName       = "MSK"
	DefaultBaseUTCOffsetHours = 3
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultMetricsPort        = 9464
)

// RuntimeConfig captures user-configurable settings for the bot process.
type RuntimeConfig struct {
	TelegramToken      string `json:"telegram_token" yaml:"telegram_token"`
	BaseZoneName       string `json:"base_zone_name" yaml:"base_zone_name"`
	BaseUTCOffsetHours int    `json:"base_utc_offset_hours" yaml:"base_utc_offset_hours"`
	LogLevel           string `json:"log_level" yaml:"log_level"`
	LogFormat          string `json:"log_format" yaml:"log_format"`
	MetricsEnabled     bool   `json:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsPort        int    `json:"metrics_port" yaml:"metrics_port"`
}

// BaseLocation returns the fixed-offset zone all reminders are scheduled
// against. Flat integer offsets only, no IANA database.
func (c RuntimeConfig) BaseLocation() *time.Location {
	return time.FixedZone(c.BaseZoneName, c.BaseUTCOffsetHours*3600)
}

// Validate reports configuration values that cannot work at runtime.
func (c RuntimeConfig) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required (set NUDGE_TELEGRAM_TOKEN or the config file)")
	}
	if c.BaseUTCOffsetHours < -12 || c.BaseUTCOffsetHours > 14 {
		return fmt.Errorf("base_utc_offset_hours %d outside valid range [-12, 14]", c.BaseUTCOffsetHours)
	}
	if c.MetricsEnabled && (c.MetricsPort < 1 || c.MetricsPort > 65535) {
		return fmt.Errorf("metrics_port %d outside valid range [1, 65535]", c.MetricsPort)
	}
	return nil
}

// Metadata records provenance for loaded configuration values.
type Metadata struct {
	sources  map[string]ValueSource
	loadedAt time.Time
}

// Source returns where the named field's value came from.
func (m Metadata) Source(field string) ValueSource {
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// LoadedAt returns when the configuration was assembled.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}
