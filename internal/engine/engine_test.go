package engine

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/plugin"
)

type oneShot struct {
	id       string
	generate func(ctx context.Context, settings map[string]any, dev plugin.DeviceConfig) (image.Image, error)
}

func (p *oneShot) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{ID: p.id, Name: p.id, Mode: plugin.ModeOneShot}
}
func (p *oneShot) ValidateSettings(map[string]any) error { return nil }
func (p *oneShot) Generate(ctx context.Context, settings map[string]any, dev plugin.DeviceConfig) (image.Image, error) {
	return p.generate(ctx, settings, dev)
}

type continuous struct {
	id       string
	interval time.Duration
	run      func(ctx context.Context, sink plugin.FrameSink) error
}

func (p *continuous) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{ID: p.id, Name: p.id, Mode: plugin.ModeContinuous}
}
func (p *continuous) ValidateSettings(map[string]any) error { return nil }
func (p *continuous) RunActive(ctx context.Context, sink plugin.FrameSink, settings map[string]any, dev plugin.DeviceConfig) error {
	if p.run != nil {
		return p.run(ctx, sink)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := sink(image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
				return err
			}
		}
	}
}

func testImage() image.Image { return image.NewGray(image.Rect(0, 0, 4, 4)) }

func TestRunOnceSuccess(t *testing.T) {
	e := New()
	p := &oneShot{id: "ok", generate: func(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
		return testImage(), nil
	}}

	img, err := e.RunOnce(context.Background(), p, nil, plugin.DeviceConfig{}, time.Second)
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestRunOnceTimesOutWithinBound(t *testing.T) {
	e := New()
	// sleeper ignores ctx entirely, standing in for uninterruptible I/O
	p := &oneShot{id: "sleeper", generate: func(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
		time.Sleep(3 * time.Second)
		return testImage(), nil
	}}

	start := time.Now()
	_, err := e.RunOnce(context.Background(), p, nil, plugin.DeviceConfig{}, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, elapsed, time.Second, "timeout must not block the caller for the plugin's full sleep")
}

func TestStartOnceLateResultDiscarded(t *testing.T) {
	e := New()
	finished := make(chan struct{})
	p := &oneShot{id: "late", generate: func(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
		time.Sleep(150 * time.Millisecond)
		close(finished)
		return testImage(), nil
	}}

	h := e.StartOnce(p, nil, plugin.DeviceConfig{}, "inst-1", 20*time.Millisecond)

	res := <-h.Result
	assert.ErrorIs(t, res.Err, ErrTimedOut)

	// the abandoned worker still completes, but its value goes nowhere
	<-finished
	select {
	case extra, ok := <-h.Result:
		if ok {
			t.Fatalf("unexpected second result: %+v", extra)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunOnceContainsErrorsAndPanics(t *testing.T) {
	e := New()

	t.Run("error becomes PluginError", func(t *testing.T) {
		p := &oneShot{id: "failing", generate: func(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
			return nil, errors.New("upstream down")
		}}
		_, err := e.RunOnce(context.Background(), p, nil, plugin.DeviceConfig{}, time.Second)
		var perr *PluginError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "failing", perr.PluginID)
		assert.Contains(t, perr.Error(), "upstream down")
	})

	t.Run("panic becomes PluginError", func(t *testing.T) {
		p := &oneShot{id: "panicky", generate: func(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
			panic("boom")
		}}
		_, err := e.RunOnce(context.Background(), p, nil, plugin.DeviceConfig{}, time.Second)
		var perr *PluginError
		require.ErrorAs(t, err, &perr)
		assert.Contains(t, perr.Error(), "boom")
	})

	t.Run("nil image becomes PluginError", func(t *testing.T) {
		p := &oneShot{id: "empty", generate: func(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
			return nil, nil
		}}
		_, err := e.RunOnce(context.Background(), p, nil, plugin.DeviceConfig{}, time.Second)
		var perr *PluginError
		require.ErrorAs(t, err, &perr)
	})
}

func TestStartContinuousDeliversFramesAndStops(t *testing.T) {
	e := New()
	p := &continuous{id: "ticker", interval: 10 * time.Millisecond}

	h := e.StartContinuous(p, nil, plugin.DeviceConfig{}, "inst-1")
	require.Equal(t, plugin.ModeContinuous, h.Mode)

	select {
	case img := <-h.Frames:
		assert.NotNil(t, img)
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}

	h.Stop()
	// cancellation latency is bounded by the plugin's refresh cycle
	assert.True(t, h.Join(time.Second), "worker did not exit after stop")
}

func TestStartContinuousPanicEmitsFallbackOnce(t *testing.T) {
	e := New()
	p := &continuous{id: "crasher", run: func(ctx context.Context, sink plugin.FrameSink) error {
		panic("loop exploded")
	}}

	h := e.StartContinuous(p, nil, plugin.DeviceConfig{Width: 32, Height: 32}, "inst-1")

	var frames []image.Image
	for img := range h.Frames {
		frames = append(frames, img)
	}
	require.Len(t, frames, 1, "exactly one fallback frame expected")
	assert.Equal(t, 32, frames[0].Bounds().Dx())
	assert.True(t, h.Join(time.Second))
}

func TestStartContinuousFallbackReplacesStaleFrame(t *testing.T) {
	e := New()
	// sink a frame, then crash before the consumer has drained it: the
	// fallback must still come through, not be dropped behind the stale frame
	p := &continuous{id: "crasher", run: func(ctx context.Context, sink plugin.FrameSink) error {
		if err := sink(image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
			return err
		}
		panic("loop exploded")
	}}

	h := e.StartContinuous(p, nil, plugin.DeviceConfig{Width: 32, Height: 32}, "inst-1")

	var frames []image.Image
	for img := range h.Frames {
		frames = append(frames, img)
	}
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, 32, last.Bounds().Dx(), "last frame must be the fallback error image")
	assert.True(t, h.Join(time.Second))
}

func TestStartContinuousDropsStaleFramesForSlowConsumer(t *testing.T) {
	e := New()
	produced := make(chan struct{})
	p := &continuous{id: "flood", run: func(ctx context.Context, sink plugin.FrameSink) error {
		for i := 0; i < 100; i++ {
			if err := sink(image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
				return err
			}
		}
		close(produced)
		<-ctx.Done()
		return ctx.Err()
	}}

	h := e.StartContinuous(p, nil, plugin.DeviceConfig{}, "inst-1")

	// the producer must get through all 100 frames without a consumer
	select {
	case <-produced:
	case <-time.After(time.Second):
		t.Fatal("producer blocked on slow consumer")
	}

	h.Stop()
	assert.True(t, h.Join(time.Second))
}
