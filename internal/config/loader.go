package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader assembles configuration from defaults, an optional YAML file and
// INKFRAME_* environment variables, in ascending precedence.
type Loader struct {
	path string
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load produces a validated configuration.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.path != "" {
		raw, err := os.ReadFile(l.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("INKFRAME_DATA_DIR", &cfg.DataDir)
	envString("INKFRAME_PLUGINS_DIR", &cfg.PluginsDir)
	envString("INKFRAME_OUTPUT_PATH", &cfg.OutputPath)
	envString("INKFRAME_LISTEN", &cfg.Listen)
	envString("INKFRAME_METRICS_LISTEN", &cfg.MetricsListen)
	envString("INKFRAME_LOG_LEVEL", &cfg.LogLevel)
	envDuration("INKFRAME_TICK_INTERVAL", &cfg.TickInterval)
	envDuration("INKFRAME_RENDER_TIMEOUT", &cfg.RenderTimeout)
	envDuration("INKFRAME_JOIN_TIMEOUT", &cfg.JoinTimeout)
	envDuration("INKFRAME_DISPLAY_MIN_INTERVAL", &cfg.DisplayMinInterval)
	envBool("INKFRAME_CACHE_ENABLED", &cfg.CacheEnabled)
	envInt("INKFRAME_DEVICE_WIDTH", &cfg.Device.Width)
	envInt("INKFRAME_DEVICE_HEIGHT", &cfg.Device.Height)
	envInt("INKFRAME_DEVICE_ROTATION", &cfg.Device.Rotation)
	envBool("INKFRAME_DEVICE_GRAYSCALE", &cfg.Device.Grayscale)
	envBool("INKFRAME_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	envString("INKFRAME_TELEMETRY_ENDPOINT", &cfg.Telemetry.Endpoint)
	envString("INKFRAME_TELEMETRY_EXPORTER", &cfg.Telemetry.Exporter)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
