// Package config loads daemon configuration with precedence ENV > file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/inkframe/inkframe/internal/plugin"
)

// Config is the full daemon configuration.
type Config struct {
	// DataDir holds all durable state: instance DB, schedule file, frame cache.
	DataDir string `yaml:"data_dir"`
	// PluginsDir is scanned for plugin manifests.
	PluginsDir string `yaml:"plugins_dir"`
	// OutputPath is where the file-backed display controller writes frames.
	OutputPath string `yaml:"output_path"`

	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metrics_listen"`
	LogLevel      string `yaml:"log_level"`

	TickInterval       time.Duration `yaml:"tick_interval"`
	RenderTimeout      time.Duration `yaml:"render_timeout"`
	JoinTimeout        time.Duration `yaml:"join_timeout"`
	DisplayMinInterval time.Duration `yaml:"display_min_interval"`

	// CacheEnabled switches the disk-backed render cache on.
	CacheEnabled bool `yaml:"cache_enabled"`

	Device plugin.DeviceConfig `yaml:"device"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RateLimitConfig bounds management API traffic.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	Exporter     string  `yaml:"exporter"` // grpc | http
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:            "/var/lib/inkframe",
		PluginsDir:         "/var/lib/inkframe/plugins",
		OutputPath:         "/var/lib/inkframe/frame.png",
		Listen:             ":8480",
		MetricsListen:      ":9480",
		LogLevel:           "info",
		TickInterval:       time.Minute,
		RenderTimeout:      30 * time.Second,
		JoinTimeout:        5 * time.Second,
		DisplayMinInterval: time.Second,
		CacheEnabled:       true,
		Device: plugin.DeviceConfig{
			Width:     800,
			Height:    480,
			Grayscale: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// Validate rejects configurations the daemon cannot run with.
func Validate(cfg Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if cfg.PluginsDir == "" {
		return fmt.Errorf("plugins_dir must not be empty")
	}
	if cfg.TickInterval < time.Second {
		return fmt.Errorf("tick_interval %s is below the 1s minimum", cfg.TickInterval)
	}
	if cfg.RenderTimeout <= 0 {
		return fmt.Errorf("render_timeout must be positive")
	}
	if cfg.JoinTimeout <= 0 {
		return fmt.Errorf("join_timeout must be positive")
	}
	if cfg.Device.Width <= 0 || cfg.Device.Height <= 0 {
		return fmt.Errorf("device dimensions must be positive")
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry exporter %q is not supported", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry endpoint required when telemetry is enabled")
		}
	}
	return nil
}
