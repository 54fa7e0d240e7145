package orchestrator

import (
	"context"
)

// do runs fn on the event loop goroutine and waits for it to complete. Every
// management entry point goes through here, which is what keeps the state
// machine and the device single-writer.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case o.cmds <- wrapped:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh forces a fresh resolution and render of the current target,
// bypassing the render cache. A running execution is retired first.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return o.do(ctx, func() {
		o.tick(true)
	})
}

// Pause suspends the tick loop. An already running continuous plugin keeps
// running and its frames keep reaching the panel; only re-resolution stops.
func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.do(ctx, func() {
		o.paused = true
	})
}

// Resume re-enables the tick loop and resolves immediately.
func (o *Orchestrator) Resume(ctx context.Context) error {
	return o.do(ctx, func() {
		if !o.paused {
			return
		}
		o.paused = false
		o.tick(false)
	})
}

// NotifyScheduleChanged nudges the orchestrator to re-resolve without waiting
// for the next timer tick. Safe to call from any goroutine; a stopped
// orchestrator ignores it.
func (o *Orchestrator) NotifyScheduleChanged(ctx context.Context) {
	_ = o.do(ctx, func() {
		if !o.paused {
			o.tick(false)
		}
	})
}

// DeactivateInstance retires the active execution if it belongs to the given
// instance. It blocks until the handle is gone (or orphaned), satisfying the
// instance store's requirement that disable/delete never race a running
// execution. Registered as the store's deactivate hook.
func (o *Orchestrator) DeactivateInstance(ctx context.Context, instanceID string) {
	_ = o.do(ctx, func() {
		if o.active != nil && o.active.InstanceID == instanceID {
			o.retireActive("instance deactivated")
		}
	})
}

// CurrentSource resolves what should be showing right now. The resolution is
// computed fresh; nothing is cached across calls.
func (o *Orchestrator) CurrentSource(ctx context.Context) (Source, error) {
	var src Source
	err := o.do(ctx, func() {
		res := o.schedule.Resolve(o.now(), o.instances)
		src = Source{
			Origin: res.Origin,
			Label:  res.Label,
			State:  o.state,
		}
		if res.Instance != nil {
			src.InstanceID = res.Instance.ID
			src.InstanceName = res.Instance.Name
			src.PluginID = res.Instance.PluginID
		}
	})
	return src, err
}

// Status reports the orchestrator's runtime state.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	var st Status
	err := o.do(ctx, func() {
		st = Status{
			State:  o.state,
			Paused: o.paused,
			Starts: o.starts.Load(),
		}
		if o.active != nil {
			st.ActiveInstanceID = o.active.InstanceID
		}
	})
	return st, err
}
