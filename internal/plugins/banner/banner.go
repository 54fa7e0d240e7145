// Package banner is the built-in one-shot plugin: a static text panel.
// Because its output depends only on its settings it is fully cacheable.
package banner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"time"

	"github.com/inkframe/inkframe/internal/display"
	"github.com/inkframe/inkframe/internal/plugin"
)

// ID is the registry factory name.
const ID = "banner"

const defaultTTL = time.Hour

// Plugin renders a centered text banner.
type Plugin struct{}

// New is the plugin factory.
func New() (plugin.ContentPlugin, error) {
	return &Plugin{}, nil
}

func (p *Plugin) Descriptor() plugin.Descriptor {
	minScale, maxScale := 1.0, 12.0
	return plugin.Descriptor{
		ID:          ID,
		Name:        "Banner",
		Version:     "1.0.0",
		Author:      "inkframe",
		Description: "Static text banner",
		Mode:        plugin.ModeOneShot,
		Schema: []plugin.FieldSpec{
			{Key: "text", Type: plugin.FieldString, Label: "Text", Required: true},
			{Key: "background", Type: plugin.FieldColor, Label: "Background", Default: "#ffffff"},
			{Key: "foreground", Type: plugin.FieldColor, Label: "Text color", Default: "#000000"},
			{Key: "scale", Type: plugin.FieldNumber, Label: "Text scale", Default: 6.0, Min: &minScale, Max: &maxScale},
			{Key: "cache_ttl_seconds", Type: plugin.FieldNumber, Label: "Cache TTL (seconds)", Default: 3600.0},
		},
	}
}

func (p *Plugin) ValidateSettings(settings map[string]any) error {
	if text, ok := settings["text"].(string); ok && len(text) > 256 {
		return fmt.Errorf("text exceeds 256 characters")
	}
	return nil
}

// Generate produces the banner image. It never blocks, so the ctx is only
// checked once on entry.
func (p *Plugin) Generate(ctx context.Context, settings map[string]any, dev plugin.DeviceConfig) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, _ := settings["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("text must not be empty")
	}

	w, h := dev.Width, dev.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 480
	}

	bg := parseColor(settings["background"], color.Gray{Y: 255})
	fg := parseColor(settings["foreground"], color.Gray{Y: 0})
	scale := parseScale(settings["scale"], 6)

	// Shrink until the line fits the panel.
	for scale > 1 && display.TextWidth(text)*scale > w-16 {
		scale--
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	display.DrawTextCentered(img, text, h/2-display.TextHeight*scale/2, scale, fg)
	return img, nil
}

// CacheKey hashes the full settings map: identical settings produce identical
// output, so the hash is a sound identity.
func (p *Plugin) CacheKey(settings map[string]any) string {
	raw, err := json.Marshal(settings)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return ID + ":" + hex.EncodeToString(sum[:])
}

func (p *Plugin) CacheTTL(settings map[string]any) time.Duration {
	if v, ok := settings["cache_ttl_seconds"]; ok {
		if secs, ok := toFloat(v); ok && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultTTL
}

// parseColor accepts "#rgb" and "#rrggbb"; schema validation has already
// established the shape.
func parseColor(v any, fallback color.Color) color.Color {
	s, ok := v.(string)
	if !ok || len(s) < 4 || s[0] != '#' {
		return fallback
	}
	hexPart := s[1:]
	if len(hexPart) == 3 {
		hexPart = string([]byte{hexPart[0], hexPart[0], hexPart[1], hexPart[1], hexPart[2], hexPart[2]})
	}
	n, err := strconv.ParseUint(hexPart, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{
		R: uint8(n >> 16),
		G: uint8(n >> 8),
		B: uint8(n),
		A: 255,
	}
}

func parseScale(v any, fallback int) int {
	if f, ok := toFloat(v); ok && f >= 1 {
		return int(f)
	}
	return fallback
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
