// Package orchestrator coordinates what the display shows: each tick it
// resolves the schedule, starts and stops plugin executions, and performs
// every write to the shared output device. It owns at most one execution
// handle at a time; that invariant is enforced by funnelling all state
// changes through a single event loop goroutine.
package orchestrator

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/inkframe/inkframe/internal/cache"
	"github.com/inkframe/inkframe/internal/display"
	"github.com/inkframe/inkframe/internal/engine"
	xflog "github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/metrics"
	"github.com/inkframe/inkframe/internal/plugin"
	"github.com/inkframe/inkframe/internal/schedule"
	"github.com/inkframe/inkframe/internal/telemetry"
)

// State names the orchestrator's execution state.
type State string

const (
	StateIdle              State = "IDLE"
	StateRunningOneShot    State = "RUNNING_ONE_SHOT"
	StateRunningContinuous State = "RUNNING_CONTINUOUS"
	StateStopping          State = "STOPPING"
)

// ErrStopped is returned by management calls after the orchestrator has shut down.
var ErrStopped = errors.New("orchestrator stopped")

// PluginSource is the slice of the registry the orchestrator needs.
type PluginSource interface {
	Get(id string) (plugin.ContentPlugin, error)
}

// Config tunes the orchestrator's timing.
type Config struct {
	// TickInterval is how often the schedule is re-resolved.
	TickInterval time.Duration
	// RenderTimeout bounds one-shot generation.
	RenderTimeout time.Duration
	// JoinTimeout bounds the wait for a stopping worker before it is
	// orphaned. Kept deliberately small so a stuck plugin delays, but never
	// prevents, the next transition.
	JoinTimeout time.Duration
	// DisplayMinInterval throttles continuous frame writes to protect the
	// panel's refresh budget. Zero disables throttling.
	DisplayMinInterval time.Duration
	// Device describes the output panel, passed through to plugins.
	Device plugin.DeviceConfig
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 30 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 5 * time.Second
	}
	return c
}

// Source describes what is (or should be) showing right now.
type Source struct {
	InstanceID   string          `json:"instance_id,omitempty"`
	InstanceName string          `json:"instance_name,omitempty"`
	PluginID     string          `json:"plugin_id,omitempty"`
	Origin       schedule.Origin `json:"origin"`
	Label        string          `json:"label"`
	State        State           `json:"state"`
}

// Status is a snapshot of runtime state for the management surface.
type Status struct {
	State            State  `json:"state"`
	ActiveInstanceID string `json:"active_instance_id,omitempty"`
	Paused           bool   `json:"paused"`
	Starts           int64  `json:"starts"`
}

// Orchestrator drives the display. Create with New, then call Run exactly once.
type Orchestrator struct {
	cfg       Config
	engine    *engine.Engine
	schedule  *schedule.Store
	instances schedule.InstanceLookup
	plugins   PluginSource
	device    display.Controller
	frames    cache.Cache
	logger    zerolog.Logger
	tracer    trace.Tracer
	limiter   *rate.Limiter
	now       func() time.Time

	// runCtx parents the spans the event loop emits; set once in Run.
	runCtx context.Context

	// owned exclusively by the Run loop goroutine
	state  State
	active *engine.Handle
	paused bool

	cmds    chan func()
	stopped chan struct{}

	starts atomic.Int64
}

// New wires an orchestrator. renderCache may be nil to disable caching.
func New(cfg Config, eng *engine.Engine, sched *schedule.Store, instances schedule.InstanceLookup, plugins PluginSource, device display.Controller, renderCache cache.Cache) *Orchestrator {
	cfg = cfg.withDefaults()
	var limiter *rate.Limiter
	if cfg.DisplayMinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.DisplayMinInterval), 1)
	}
	if renderCache == nil {
		renderCache = cache.NewNoop()
	}
	return &Orchestrator{
		cfg:       cfg,
		engine:    eng,
		schedule:  sched,
		instances: instances,
		plugins:   plugins,
		device:    device,
		frames:    renderCache,
		logger:    xflog.WithComponent("orchestrator"),
		tracer:    telemetry.Tracer("inkframe/orchestrator"),
		limiter:   limiter,
		now:       time.Now,
		runCtx:    context.Background(),
		state:     StateIdle,
		cmds:      make(chan func()),
		stopped:   make(chan struct{}),
	}
}

// Run is the orchestrator's event loop. It exits when ctx is cancelled, after
// retiring any active execution.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.stopped)
	o.runCtx = ctx

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	// render the current target immediately rather than waiting a full tick
	o.tick(false)

	for {
		select {
		case <-ctx.Done():
			o.retireActive("shutdown")
			return nil

		case <-ticker.C:
			if !o.paused {
				o.tick(false)
			}

		case fn := <-o.cmds:
			fn()

		case res, ok := <-o.oneShotResult():
			if ok {
				o.finishOneShot(res)
			}

		case img, ok := <-o.continuousFrames():
			if !ok {
				// worker exited on its own (error or panic already logged by
				// the engine); retire the handle and wait for the next tick
				o.retireActive("worker exited")
				continue
			}
			o.writeFrame(img, true)
		}
	}
}

// oneShotResult returns the active one-shot result channel, or nil (blocking
// forever in select) when no one-shot execution is in flight.
func (o *Orchestrator) oneShotResult() <-chan engine.OnceResult {
	if o.active != nil && o.active.Mode == plugin.ModeOneShot {
		return o.active.Result
	}
	return nil
}

func (o *Orchestrator) continuousFrames() <-chan image.Image {
	if o.active != nil && o.active.Mode == plugin.ModeContinuous {
		return o.active.Frames
	}
	return nil
}

// tick resolves the schedule and reconciles the active execution with the
// outcome. force restarts the resolved target even if unchanged and bypasses
// the render cache.
func (o *Orchestrator) tick(force bool) {
	now := o.now()
	res := o.schedule.Resolve(now, o.instances)
	metrics.IncResolution(string(res.Origin))

	ctx, span := o.tracer.Start(o.runCtx, "orchestrator.tick",
		trace.WithAttributes(telemetry.ResolutionAttributes(int(now.Weekday()), now.Hour(), string(res.Origin))...))
	defer span.End()

	// common case: same target still running, nothing to do
	if !force && o.active != nil && res.Instance != nil && o.active.InstanceID == res.Instance.ID {
		return
	}

	if o.active != nil {
		o.retireActive("target changed")
	}

	if res.Instance == nil {
		// leave the last rendered output on the panel; unnecessary clears
		// cost e-ink refresh cycles
		return
	}

	o.start(ctx, res, force)
}

// start launches the resolved instance in its declared mode.
func (o *Orchestrator) start(ctx context.Context, res schedule.Resolved, bypassCache bool) {
	inst := res.Instance
	impl, err := o.plugins.Get(inst.PluginID)
	if err != nil {
		o.logger.Warn().
			Err(err).
			Str(xflog.FieldEvent, "orchestrator.plugin_missing").
			Str(xflog.FieldInstanceID, inst.ID).
			Str(xflog.FieldPluginID, inst.PluginID).
			Msg("resolved instance references an unloaded plugin")
		return
	}

	desc := impl.Descriptor()
	settings := plugin.ApplyDefaults(desc, inst.Settings)

	_, span := o.tracer.Start(ctx, "orchestrator.start",
		trace.WithAttributes(telemetry.ExecutionAttributes(desc.ID, string(desc.Mode), inst.ID)...))
	defer span.End()

	switch desc.Mode {
	case plugin.ModeContinuous:
		o.active = o.engine.StartContinuous(impl, settings, o.cfg.Device, inst.ID)
		o.setState(StateRunningContinuous)
		o.starts.Add(1)
		metrics.IncExecutionStarted(desc.ID, string(plugin.ModeContinuous))
		metrics.SetActiveExecutions(1)

	default:
		if !bypassCache {
			if img, ok := o.cachedFrame(impl, settings); ok {
				metrics.IncRender(desc.ID, "cached")
				span.SetAttributes(telemetry.RenderAttributes("cached", 0, true)...)
				o.writeFrame(img, false)
				return
			}
		}
		o.active = o.engine.StartOnce(impl, settings, o.cfg.Device, inst.ID, o.cfg.RenderTimeout)
		o.setState(StateRunningOneShot)
		o.starts.Add(1)
		metrics.IncExecutionStarted(desc.ID, string(plugin.ModeOneShot))
		metrics.SetActiveExecutions(1)
	}

	o.logger.Info().
		Str(xflog.FieldEvent, "orchestrator.started").
		Str(xflog.FieldInstanceID, inst.ID).
		Str(xflog.FieldPluginID, desc.ID).
		Str(xflog.FieldOrigin, string(res.Origin)).
		Msg("content execution started")
}

// finishOneShot consumes the single result of the active one-shot execution.
func (o *Orchestrator) finishOneShot(res engine.OnceResult) {
	h := o.active
	o.active = nil
	o.setState(StateIdle)
	metrics.SetActiveExecutions(0)

	switch {
	case res.Err == nil:
		metrics.IncRender(h.PluginID, "success")
		o.storeFrame(h, res.Image)
		o.writeFrame(res.Image, false)

	case errors.Is(res.Err, context.Canceled):
		// retired by a transition; nothing to show

	case errors.Is(res.Err, engine.ErrTimedOut):
		metrics.IncRender(h.PluginID, "timeout")
		o.logger.Error().
			Str(xflog.FieldEvent, "orchestrator.render_timeout").
			Str(xflog.FieldInstanceID, h.InstanceID).
			Str(xflog.FieldPluginID, h.PluginID).
			Msg("one-shot render timed out, showing fallback")
		o.writeFrame(display.ErrorImage(o.cfg.Device), false)

	default:
		metrics.IncRender(h.PluginID, "error")
		o.logger.Error().
			Err(res.Err).
			Str(xflog.FieldEvent, "orchestrator.render_failed").
			Str(xflog.FieldInstanceID, h.InstanceID).
			Str(xflog.FieldPluginID, h.PluginID).
			Msg("one-shot render failed, showing fallback")
		o.writeFrame(display.ErrorImage(o.cfg.Device), false)
	}
}

// retireActive signals the active worker, waits up to the join bound and then
// proceeds regardless. A worker that ignores cancellation is orphaned and
// logged rather than allowed to block the loop forever.
func (o *Orchestrator) retireActive(reason string) {
	if o.active == nil {
		return
	}
	h := o.active
	o.setState(StateStopping)
	h.Stop()
	if !h.Join(o.cfg.JoinTimeout) {
		metrics.IncStuckWorker()
		o.logger.Error().
			Str(xflog.FieldEvent, "orchestrator.worker_stuck").
			Str(xflog.FieldInstanceID, h.InstanceID).
			Str(xflog.FieldPluginID, h.PluginID).
			Dur("join_timeout", o.cfg.JoinTimeout).
			Msg("worker did not exit within join bound, orphaning it")
	}
	o.active = nil
	o.setState(StateIdle)
	metrics.SetActiveExecutions(0)

	o.logger.Info().
		Str(xflog.FieldEvent, "orchestrator.stopped").
		Str(xflog.FieldInstanceID, h.InstanceID).
		Str("reason", reason).
		Msg("content execution retired")
}

func (o *Orchestrator) setState(next State) {
	if o.state == next {
		return
	}
	o.logger.Debug().
		Str(xflog.FieldOldState, string(o.state)).
		Str(xflog.FieldNewState, string(next)).
		Msg("state transition")
	o.state = next
}

// writeFrame is the only place in the process that touches the device.
// throttled writes (continuous frames) may be coalesced away by the rate
// limiter; deliberate renders always go through.
func (o *Orchestrator) writeFrame(img image.Image, throttled bool) {
	if throttled && o.limiter != nil && !o.limiter.Allow() {
		return
	}
	start := time.Now()
	err := o.device.Display(img)
	metrics.ObserveDisplayWrite(time.Since(start).Seconds(), err)
	if err != nil {
		// keep the last good frame on the panel; the next natural render retries
		o.logger.Error().
			Err(err).
			Str(xflog.FieldEvent, "orchestrator.display_failed").
			Msg("output device write failed")
	}
}

func (o *Orchestrator) cachedFrame(impl plugin.ContentPlugin, settings map[string]any) (image.Image, bool) {
	c, ok := impl.(plugin.Cacheable)
	if !ok {
		return nil, false
	}
	key := c.CacheKey(settings)
	if key == "" {
		return nil, false
	}
	return o.frames.Get(key)
}

func (o *Orchestrator) storeFrame(h *engine.Handle, img image.Image) {
	impl, err := o.plugins.Get(h.PluginID)
	if err != nil {
		return
	}
	c, ok := impl.(plugin.Cacheable)
	if !ok {
		return
	}
	// settings may have changed since the run started; cache under the key
	// the run was started with would require carrying it on the handle. The
	// instance is re-read instead, which errs on the side of a stale miss.
	inst, err := o.instances.Get(h.InstanceID)
	if err != nil {
		return
	}
	settings := plugin.ApplyDefaults(impl.Descriptor(), inst.Settings)
	key := c.CacheKey(settings)
	ttl := c.CacheTTL(settings)
	if key == "" || ttl <= 0 {
		return
	}
	o.frames.Set(key, img, ttl)
}
