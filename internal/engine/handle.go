package engine

import (
	"context"
	"image"
	"time"

	"github.com/inkframe/inkframe/internal/plugin"
)

// OnceResult is the single outcome of a one-shot execution.
type OnceResult struct {
	Image image.Image
	Err   error
}

// Handle is the runtime record of one in-flight plugin execution. It exists
// only while content is running and is retired when the worker completes, is
// cancelled or errors. The orchestrator holds at most one live Handle.
type Handle struct {
	InstanceID string
	PluginID   string
	Mode       plugin.Mode

	// Result delivers exactly one value for one-shot executions.
	Result <-chan OnceResult
	// Frames delivers rendered frames for continuous executions. Closed when
	// the worker exits.
	Frames <-chan image.Image

	cancel context.CancelFunc
	done   chan struct{}
}

// Stop requests cooperative cancellation. It never blocks.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed when the worker has fully exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Join waits for the worker to exit, up to the given bound. It reports false
// when the worker is still running after the bound; the caller is expected to
// log and orphan it rather than wait forever.
func (h *Handle) Join(bound time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(bound):
		return false
	}
}
