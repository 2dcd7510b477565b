// Package config provides configuration loading for gotestctl.
//
// Values are resolved from hardcoded defaults, then an optional YAML file,
// then GOTESTCTL_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
)

// Config holds the complete gotestctl configuration.
type Config struct {
	Fallback  fallback.Config `koanf:"fallback"`
	Runner    RunnerConfig    `koanf:"runner"`
	Selector  SelectorConfig  `koanf:"selector"`
	Logging   LoggingConfig   `koanf:"logging"`
	Events    EventsConfig    `koanf:"events"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// RunnerConfig controls how `go test` units are executed.
type RunnerConfig struct {
	UnitTimeout      Duration `koanf:"unit_timeout"`
	BatchConcurrency int      `koanf:"batch_concurrency"`
	GoBinary         string   `koanf:"go_binary"`
	ExtraArgs        []string `koanf:"extra_args"`
}

// SelectorConfig feeds the initial strategy selection.
type SelectorConfig struct {
	// TimeConstraint is the wall-clock budget for a run. Zero means none, so
	// selection goes by package count alone.
	TimeConstraint Duration `koanf:"time_constraint"`

	// MaxConcurrency caps parallel units. Zero means unconstrained.
	MaxConcurrency int `koanf:"max_concurrency"`
}

// LoggingConfig holds the user-facing logging knobs.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EventsConfig controls NATS event publishing. An empty URL disables it.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Fallback: fallback.DefaultConfig(),
		Runner: RunnerConfig{
			UnitTimeout:      Duration(10 * time.Minute),
			BatchConcurrency: 4,
			GoBinary:         "go",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Events: EventsConfig{
			SubjectPrefix: "gotestctl",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "gotestctl",
		},
	}
}

// applyDefaults restores defaults for fields explicitly set to empty values.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Runner.GoBinary == "" {
		cfg.Runner.GoBinary = def.Runner.GoBinary
	}
	if cfg.Runner.BatchConcurrency == 0 {
		cfg.Runner.BatchConcurrency = def.Runner.BatchConcurrency
	}
	if cfg.Runner.UnitTimeout == 0 {
		cfg.Runner.UnitTimeout = def.Runner.UnitTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = def.Events.SubjectPrefix
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = def.Telemetry.Protocol
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Fallback.Validate(); err != nil {
		return err
	}

	if c.Runner.UnitTimeout.Duration() <= 0 {
		return errors.New("runner.unit_timeout must be positive")
	}
	if c.Runner.BatchConcurrency < 1 {
		return fmt.Errorf("invalid runner.batch_concurrency: %d (must be >= 1)", c.Runner.BatchConcurrency)
	}

	if c.Selector.MaxConcurrency < 0 {
		return fmt.Errorf("invalid selector.max_concurrency: %d (must be >= 0)", c.Selector.MaxConcurrency)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
	}

	return nil
}
