// Package registry discovers content plugins from manifest files on disk and
// maps stable plugin IDs to loaded implementations.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	xflog "github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/plugin"
)

// ErrNotFound is returned when no plugin with the requested ID is loaded.
var ErrNotFound = errors.New("plugin not found")

// manifestName is the per-plugin manifest file looked up during discovery.
const manifestName = "manifest.yaml"

type loaded struct {
	desc plugin.Descriptor
	impl plugin.ContentPlugin
}

// Registry holds the set of discovered plugins. Discovery replaces the set
// wholesale; lookups are cheap and concurrent-safe.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]plugin.Factory
	plugins   map[string]loaded
	logger    zerolog.Logger
}

// New returns an empty registry. Factories must be registered before Discover
// can load manifests that reference them.
func New() *Registry {
	return &Registry{
		factories: make(map[string]plugin.Factory),
		plugins:   make(map[string]loaded),
		logger:    xflog.WithComponent("registry"),
	}
}

// RegisterFactory makes a plugin constructor available to discovery under the
// given name.
func (r *Registry) RegisterFactory(name string, f plugin.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Discover scans root for <dir>/manifest.yaml entries and loads each one. A
// malformed manifest or a failing factory skips that plugin with a logged
// warning; it never aborts discovery. The previously loaded set is fully
// replaced, so plugins removed from disk disappear.
func (r *Registry) Discover(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read plugins root: %w", err)
	}

	next := make(map[string]loaded)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name(), manifestName)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		m, err := parseManifest(path)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str(xflog.FieldEvent, "registry.manifest_invalid").
				Str(xflog.FieldPath, path).
				Msg("skipping plugin with invalid manifest")
			continue
		}
		if _, dup := next[m.ID]; dup {
			r.logger.Warn().
				Str(xflog.FieldEvent, "registry.duplicate_id").
				Str(xflog.FieldPluginID, m.ID).
				Str(xflog.FieldPath, path).
				Msg("skipping plugin with duplicate id")
			continue
		}

		impl, err := r.build(m)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str(xflog.FieldEvent, "registry.load_failed").
				Str(xflog.FieldPluginID, m.ID).
				Msg("skipping plugin that failed to load")
			continue
		}

		next[m.ID] = loaded{desc: m.Descriptor, impl: impl}
	}

	r.mu.Lock()
	r.plugins = next
	r.mu.Unlock()

	r.logger.Info().
		Str(xflog.FieldEvent, "registry.discovered").
		Int("plugins", len(next)).
		Msg("plugin discovery complete")
	return nil
}

// build instantiates the plugin through its declared factory and checks that
// the implementation matches the manifest's declared mode.
func (r *Registry) build(m *Manifest) (plugin.ContentPlugin, error) {
	r.mu.RLock()
	factory, ok := r.factories[m.Factory]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for %q", m.Factory)
	}

	impl, err := factory()
	if err != nil {
		return nil, fmt.Errorf("factory %q: %w", m.Factory, err)
	}

	switch m.Mode {
	case plugin.ModeOneShot:
		if _, ok := impl.(plugin.Generator); !ok {
			return nil, fmt.Errorf("plugin %q declares oneshot mode but does not implement Generator", m.ID)
		}
	case plugin.ModeContinuous:
		if _, ok := impl.(plugin.Runner); !ok {
			return nil, fmt.Errorf("plugin %q declares continuous mode but does not implement Runner", m.ID)
		}
	}
	return impl, nil
}

// Get returns the loaded plugin for id, or ErrNotFound.
func (r *Registry) Get(id string) (plugin.ContentPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.impl, nil
}

// Descriptor returns the descriptor for id, or ErrNotFound.
func (r *Registry) Descriptor(id string) (plugin.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.plugins[id]
	if !ok {
		return plugin.Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.desc, nil
}

// List returns all loaded descriptors sorted by ID.
func (r *Registry) List() []plugin.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]plugin.Descriptor, 0, len(r.plugins))
	for _, l := range r.plugins {
		out = append(out, l.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
