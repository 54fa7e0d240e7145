// Package engine runs plugin code on dedicated workers: one-shot generation
// under a timeout, and continuous refresh loops under cooperative
// cancellation. Nothing a plugin does (errors, panics, ignoring the stop
// signal) may escape this package as anything but a typed result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkframe/inkframe/internal/display"
	xflog "github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/plugin"
	"github.com/inkframe/inkframe/internal/telemetry"
)

// ErrTimedOut is returned when a one-shot generation exceeds its timeout. The
// worker is abandoned, not killed; a late result is discarded.
var ErrTimedOut = errors.New("plugin generation timed out")

// PluginError wraps any failure raised by plugin code, including recovered
// panics.
type PluginError struct {
	PluginID string
	Err      error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.PluginID, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// Engine starts and owns plugin workers.
type Engine struct {
	logger zerolog.Logger
	tracer trace.Tracer
}

// New returns an execution engine.
func New() *Engine {
	return &Engine{
		logger: xflog.WithComponent("engine"),
		tracer: telemetry.Tracer("inkframe/engine"),
	}
}

// StartOnce launches a one-shot generation on its own worker and returns a
// Handle whose Result channel delivers exactly one value: the image, a
// *PluginError, or ErrTimedOut if the worker has not finished within timeout.
// The supervisor enforces the deadline even against a plugin blocked in
// uninterruptible I/O; such a worker is abandoned and its result dropped.
func (e *Engine) StartOnce(p plugin.ContentPlugin, settings map[string]any, dev plugin.DeviceConfig, instanceID string, timeout time.Duration) *Handle {
	desc := p.Descriptor()
	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan OnceResult, 1)
	h := &Handle{
		InstanceID: instanceID,
		PluginID:   desc.ID,
		Mode:       plugin.ModeOneShot,
		Result:     result,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	inner := make(chan OnceResult, 1)
	go func() {
		inner <- e.generate(ctx, p, desc.ID, instanceID, settings, dev)
	}()

	go func() {
		defer close(h.done)
		defer cancel()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case res := <-inner:
			result <- res
		case <-timer.C:
			cancel() // best effort; the plugin may not honor it
			e.logger.Warn().
				Str(xflog.FieldEvent, "engine.timeout").
				Str(xflog.FieldPluginID, desc.ID).
				Str(xflog.FieldInstanceID, instanceID).
				Dur("timeout", timeout).
				Msg("one-shot generation timed out, abandoning worker")
			result <- OnceResult{Err: ErrTimedOut}
		case <-ctx.Done():
			result <- OnceResult{Err: ctx.Err()}
		}
	}()

	return h
}

// RunOnce is the synchronous form of StartOnce.
func (e *Engine) RunOnce(ctx context.Context, p plugin.ContentPlugin, settings map[string]any, dev plugin.DeviceConfig, timeout time.Duration) (image.Image, error) {
	h := e.StartOnce(p, settings, dev, "", timeout)
	select {
	case res := <-h.Result:
		return res.Image, res.Err
	case <-ctx.Done():
		h.Stop()
		return nil, ctx.Err()
	}
}

// generate invokes the plugin's Generate entry point with panic containment.
func (e *Engine) generate(ctx context.Context, p plugin.ContentPlugin, pluginID, instanceID string, settings map[string]any, dev plugin.DeviceConfig) (res OnceResult) {
	ctx, span := e.tracer.Start(ctx, "engine.generate",
		trace.WithAttributes(telemetry.ExecutionAttributes(pluginID, string(plugin.ModeOneShot), instanceID)...))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = OnceResult{Err: &PluginError{PluginID: pluginID, Err: fmt.Errorf("panic: %v", r)}}
		}
		outcome := "success"
		if res.Err != nil {
			outcome = "error"
			span.SetAttributes(telemetry.ErrorAttributes(fmt.Sprintf("%T", res.Err))...)
		}
		span.SetAttributes(telemetry.RenderAttributes(outcome, time.Since(start).Milliseconds(), false)...)
		span.End()
	}()

	gen, ok := p.(plugin.Generator)
	if !ok {
		return OnceResult{Err: &PluginError{PluginID: pluginID, Err: errors.New("plugin does not implement one-shot generation")}}
	}

	img, err := gen.Generate(ctx, settings, dev)
	if err != nil {
		return OnceResult{Err: &PluginError{PluginID: pluginID, Err: err}}
	}
	if img == nil {
		return OnceResult{Err: &PluginError{PluginID: pluginID, Err: errors.New("generate returned no image")}}
	}
	return OnceResult{Image: img}
}

// StartContinuous launches a continuous plugin's refresh loop on a dedicated
// worker. Frames the loop produces arrive on Handle.Frames; when the consumer
// lags, the stalest pending frame is dropped so the loop never blocks on a
// slow display. The worker exits when Stop is called (the run context is
// cancelled) and cancellation latency is bounded by the plugin's own refresh
// cycle. A panic or error inside the loop is logged, surfaces one fallback
// error frame, and ends the worker without touching the rest of the process.
func (e *Engine) StartContinuous(p plugin.ContentPlugin, settings map[string]any, dev plugin.DeviceConfig, instanceID string) *Handle {
	desc := p.Descriptor()
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan image.Image, 1)
	h := &Handle{
		InstanceID: instanceID,
		PluginID:   desc.ID,
		Mode:       plugin.ModeContinuous,
		Frames:     frames,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	sink := func(img image.Image) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for {
			select {
			case frames <- img:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			// consumer is behind: drop the stale pending frame
			select {
			case <-frames:
			default:
			}
		}
	}

	go func() {
		defer close(h.done)
		defer close(frames)
		defer cancel()

		err := e.runActive(ctx, p, desc.ID, instanceID, sink, settings, dev)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error().
				Err(err).
				Str(xflog.FieldEvent, "engine.continuous_failed").
				Str(xflog.FieldPluginID, desc.ID).
				Str(xflog.FieldInstanceID, instanceID).
				Msg("continuous worker exited with error")
			// one fallback frame so the failure is visible on the panel; a
			// stale pending frame must not shadow it, so drain first
			select {
			case <-frames:
			default:
			}
			frames <- display.ErrorImage(dev)
		}
	}()

	return h
}

func (e *Engine) runActive(ctx context.Context, p plugin.ContentPlugin, pluginID, instanceID string, sink plugin.FrameSink, settings map[string]any, dev plugin.DeviceConfig) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine.run_active",
		trace.WithAttributes(telemetry.ExecutionAttributes(pluginID, string(plugin.ModeContinuous), instanceID)...))
	defer func() {
		if r := recover(); r != nil {
			err = &PluginError{PluginID: pluginID, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			span.SetAttributes(telemetry.ErrorAttributes(fmt.Sprintf("%T", err))...)
		}
		span.End()
	}()

	runner, ok := p.(plugin.Runner)
	if !ok {
		return &PluginError{PluginID: pluginID, Err: errors.New("plugin does not implement continuous mode")}
	}
	return runner.RunActive(ctx, sink, settings, dev)
}
