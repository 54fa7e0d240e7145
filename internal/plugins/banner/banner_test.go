package banner

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/plugin"
)

func TestDescriptor(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	d := p.Descriptor()
	assert.Equal(t, "banner", d.ID)
	assert.Equal(t, plugin.ModeOneShot, d.Mode)

	_, isGenerator := p.(plugin.Generator)
	assert.True(t, isGenerator)
	_, isCacheable := p.(plugin.Cacheable)
	assert.True(t, isCacheable)
}

func TestGenerate(t *testing.T) {
	p := &Plugin{}
	img, err := p.Generate(context.Background(), map[string]any{
		"text":       "HELLO",
		"background": "#ffffff",
		"foreground": "#000000",
	}, plugin.DeviceConfig{Width: 400, Height: 300})
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())

	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	dark := 0
	for _, pix := range gray.Pix {
		if pix < 128 {
			dark++
		}
	}
	assert.Positive(t, dark, "banner text should produce dark pixels")
}

func TestGenerateRejectsEmptyText(t *testing.T) {
	p := &Plugin{}
	_, err := p.Generate(context.Background(), map[string]any{}, plugin.DeviceConfig{Width: 100, Height: 100})
	assert.Error(t, err)
}

func TestGenerateHonoursCancelledContext(t *testing.T) {
	p := &Plugin{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Generate(ctx, map[string]any{"text": "X"}, plugin.DeviceConfig{Width: 100, Height: 100})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheKeyStableAndSettingsSensitive(t *testing.T) {
	p := &Plugin{}
	a := p.CacheKey(map[string]any{"text": "A"})
	b := p.CacheKey(map[string]any{"text": "A"})
	c := p.CacheKey(map[string]any{"text": "B"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "banner:")
}

func TestCacheTTL(t *testing.T) {
	p := &Plugin{}
	assert.Equal(t, time.Hour, p.CacheTTL(map[string]any{}))
	assert.Equal(t, 90*time.Second, p.CacheTTL(map[string]any{"cache_ttl_seconds": 90.0}))
}

func TestParseColor(t *testing.T) {
	c := parseColor("#f00", nil)
	r, g, b, _ := c.RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)

	assert.Nil(t, parseColor("not-a-color", nil))
	assert.Nil(t, parseColor(42, nil))
}
