// Package plugin defines the contract every content plugin must satisfy.
package plugin

import (
	"context"
	"image"
	"time"
)

// DeviceConfig describes the output panel a plugin renders for.
type DeviceConfig struct {
	Width     int  `yaml:"width" json:"width"`
	Height    int  `yaml:"height" json:"height"`
	Rotation  int  `yaml:"rotation" json:"rotation"`
	Grayscale bool `yaml:"grayscale" json:"grayscale"`
}

// ContentPlugin is the minimal surface a loadable content generator exposes.
// Depending on Descriptor().Mode the implementation must additionally satisfy
// Generator (one-shot) or Runner (continuous).
type ContentPlugin interface {
	// Descriptor returns the plugin's immutable metadata and settings schema.
	Descriptor() Descriptor

	// ValidateSettings checks a settings map beyond what the schema expresses.
	// Schema-level validation has already passed when this is called.
	ValidateSettings(settings map[string]any) error
}

// Generator is implemented by one-shot plugins: a single call produces one image.
type Generator interface {
	Generate(ctx context.Context, settings map[string]any, dev DeviceConfig) (image.Image, error)
}

// FrameSink receives frames produced by a continuous plugin. The sink never
// writes to the device itself; the orchestrator owns the device.
type FrameSink func(image.Image) error

// Runner is implemented by continuous plugins. RunActive must loop until ctx
// is cancelled, checking ctx at least once per refresh cycle, and push each
// rendered frame into sink.
type Runner interface {
	RunActive(ctx context.Context, sink FrameSink, settings map[string]any, dev DeviceConfig) error
}

// Lifecycle hooks are optional; plugins that do not implement them get no-op behavior.
type Lifecycle interface {
	OnEnable(ctx context.Context, settings map[string]any) error
	OnDisable(ctx context.Context) error
	OnSettingsChange(ctx context.Context, settings map[string]any) error
}

// Cacheable is optional. Plugins that implement it let the orchestrator skip
// redundant renders of unchanged content. An empty key or non-positive TTL
// means "no caching".
type Cacheable interface {
	CacheKey(settings map[string]any) string
	CacheTTL(settings map[string]any) time.Duration
}

// Factory constructs a plugin implementation. Manifests name a factory
// explicitly; there is no reflection-based instantiation.
type Factory func() (ContentPlugin, error)
