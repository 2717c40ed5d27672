package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "NUDGE_"

// EnvLookup resolves environment variables; swappable in tests.
type EnvLookup func(key string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

type loadOptions struct {
	envLookup EnvLookup
	readFile  func(string) ([]byte, error)
	homeDir   func() (string, error)
	filePath  string
	overrides []func(*RuntimeConfig)
}

// Option customizes configuration loading.
type Option func(*loadOptions)

// WithEnvLookup substitutes the environment source.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithFile forces a specific config file path instead of the default
// ~/.nudge/config.yaml probe.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.filePath = path }
}

// WithReadFile substitutes the file reader (tests).
func WithReadFile(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = read }
}

// WithOverride applies a caller override after file and env sources.
func WithOverride(fn func(*RuntimeConfig)) Option {
	return func(o *loadOptions) { o.overrides = append(o.overrides, fn) }
}

// Load assembles the runtime configuration: defaults, then the optional yaml
// file, then NUDGE_* environment overrides, then caller overrides, recording
// per-field provenance along the way.
func Load(opts ...Option) (RuntimeConfig, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}

	cfg := RuntimeConfig{
		BaseZoneName:       DefaultBaseZoneName,
		BaseUTCOffsetHours: DefaultBaseUTCOffsetHours,
		LogLevel:           DefaultLogLevel,
		LogFormat:          DefaultLogFormat,
		MetricsPort:        DefaultMetricsPort,
	}

	if err := applyFile(&cfg, &meta, options); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}
	if err := applyEnv(&cfg, &meta, options.envLookup); err != nil {
		return RuntimeConfig{}, Metadata{}, err
	}
	if len(options.overrides) > 0 {
		before := cfg
		for _, fn := range options.overrides {
			fn(&cfg)
		}
		markChanged(&meta, before, cfg, SourceOverride)
	}

	return cfg, meta, nil
}

func applyFile(cfg *RuntimeConfig, meta *Metadata, options loadOptions) error {
	path := options.filePath
	if path == "" {
		home, err := options.homeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".nudge", "config.yaml")
	}

	data, err := options.readFile(path)
	if err != nil {
		// The default probe path is optional; an explicit path must exist.
		if options.filePath == "" {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	before := *cfg
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	markChanged(meta, before, *cfg, SourceFile)
	return nil
}

func applyEnv(cfg *RuntimeConfig, meta *Metadata, lookup EnvLookup) error {
	setString := func(field, key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
			meta.sources[field] = SourceEnv
		}
	}
	setString("telegram_token", "TELEGRAM_TOKEN", &cfg.TelegramToken)
	setString("base_zone_name", "BASE_ZONE_NAME", &cfg.BaseZoneName)
	setString("log_level", "LOG_LEVEL", &cfg.LogLevel)
	setString("log_format", "LOG_FORMAT", &cfg.LogFormat)

	if v, ok := lookup(envPrefix + "BASE_UTC_OFFSET_HOURS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sBASE_UTC_OFFSET_HOURS=%q: %w", envPrefix, v, err)
		}
		cfg.BaseUTCOffsetHours = n
		meta.sources["base_utc_offset_hours"] = SourceEnv
	}
	if v, ok := lookup(envPrefix + "METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sMETRICS_ENABLED=%q: %w", envPrefix, v, err)
		}
		cfg.MetricsEnabled = b
		meta.sources["metrics_enabled"] = SourceEnv
	}
	if v, ok := lookup(envPrefix + "METRICS_PORT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sMETRICS_PORT=%q: %w", envPrefix, v, err)
		}
		cfg.MetricsPort = n
		meta.sources["metrics_port"] = SourceEnv
	}
	return nil
}

// markChanged records source for every field whose value differs between
// before and after.
func markChanged(meta *Metadata, before, after RuntimeConfig, source ValueSource) {
	if before.TelegramToken != after.TelegramToken {
		meta.sources["telegram_token"] = source
	}
	if before.BaseZoneName != after.BaseZoneName {
		meta.sources["base_zone_name"] = source
	}
	if before.BaseUTCOffsetHours != after.BaseUTCOffsetHours {
		meta.sources["base_utc_offset_hours"] = source
	}
	if before.LogLevel != after.LogLevel {
		meta.sources["log_level"] = source
	}
	if before.LogFormat != after.LogFormat {
		meta.sources["log_format"] = source
	}
	if before.MetricsEnabled != after.MetricsEnabled {
		meta.sources["metrics_enabled"] = source
	}
	if before.MetricsPort != after.MetricsPort {
		meta.sources["metrics_port"] = source
	}
}
