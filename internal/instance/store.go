package instance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	xflog "github.com/inkframe/inkframe/internal/log"
	"github.com/inkframe/inkframe/internal/persistence/sqlite"
	"github.com/inkframe/inkframe/internal/plugin"
)

// PluginSource is the slice of the registry the store needs: schema lookup for
// validation and implementation lookup for lifecycle hooks.
type PluginSource interface {
	Descriptor(id string) (plugin.Descriptor, error)
	Get(id string) (plugin.ContentPlugin, error)
}

// DeactivateHook is invoked before an instance is disabled or deleted so the
// orchestrator can retire a running execution first. The hook must not return
// until the instance is no longer active.
type DeactivateHook func(ctx context.Context, instanceID string)

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	id         TEXT PRIMARY KEY,
	plugin_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	settings   TEXT NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_instances_plugin ON instances(plugin_id);
`

// Store is the durable instance store. Rows live in SQLite; a full in-memory
// copy serves reads so the tick loop's resolution path never touches disk.
type Store struct {
	db      *sql.DB
	plugins PluginSource
	logger  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Instance

	hookMu       sync.RWMutex
	onDeactivate DeactivateHook
}

// Open opens (and if needed creates) the instance database at path and loads
// all rows into memory.
func Open(path string, plugins PluginSource) (*Store, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create instances schema: %w", err)
	}

	s := &Store{
		db:      db,
		plugins: plugins,
		logger:  xflog.WithComponent("instances"),
		cache:   make(map[string]*Instance),
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SetDeactivateHook registers the orchestrator's cancellation path. Disable
// and delete call it before touching the row.
func (s *Store) SetDeactivateHook(hook DeactivateHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onDeactivate = hook
}

func (s *Store) deactivate(ctx context.Context, id string) {
	s.hookMu.RLock()
	hook := s.onDeactivate
	s.hookMu.RUnlock()
	if hook != nil {
		hook(ctx, id)
	}
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT id, plugin_id, name, settings, enabled, created_at, updated_at FROM instances`)
	if err != nil {
		return fmt.Errorf("load instances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			inst                 Instance
			settingsJSON         string
			enabled              int
			createdAt, updatedAt string
		)
		if err := rows.Scan(&inst.ID, &inst.PluginID, &inst.Name, &settingsJSON, &enabled, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("scan instance row: %w", err)
		}
		if err := json.Unmarshal([]byte(settingsJSON), &inst.Settings); err != nil {
			s.logger.Warn().
				Err(err).
				Str(xflog.FieldInstanceID, inst.ID).
				Str(xflog.FieldEvent, "instances.settings_corrupt").
				Msg("skipping instance with unreadable settings")
			continue
		}
		inst.Enabled = enabled != 0
		inst.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		inst.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		s.cache[inst.ID] = &inst
	}
	return rows.Err()
}

// validate runs schema validation followed by the plugin's own check.
func (s *Store) validate(pluginID string, settings map[string]any) error {
	desc, err := s.plugins.Descriptor(pluginID)
	if err != nil {
		return err
	}
	if err := plugin.ValidateSettings(desc, settings); err != nil {
		return err
	}
	impl, err := s.plugins.Get(pluginID)
	if err != nil {
		return err
	}
	return impl.ValidateSettings(settings)
}

// Create validates settings against the plugin's schema and persists a new
// enabled instance. The plugin's OnEnable hook fires if it has one, since the
// instance is born enabled. Validation failures name the first offending
// field.
func (s *Store) Create(ctx context.Context, pluginID, name string, settings map[string]any) (*Instance, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return nil, &plugin.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if settings == nil {
		settings = map[string]any{}
	}
	if err := s.validate(pluginID, settings); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inst := &Instance{
		ID:        uuid.NewString(),
		PluginID:  pluginID,
		Name:      name,
		Settings:  settings,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.upsert(ctx, inst); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[inst.ID] = inst
	s.mu.Unlock()

	if impl, err := s.plugins.Get(pluginID); err == nil {
		if lc, ok := impl.(plugin.Lifecycle); ok {
			if err := lc.OnEnable(ctx, inst.Settings); err != nil {
				s.logger.Warn().
					Err(err).
					Str(xflog.FieldInstanceID, inst.ID).
					Str(xflog.FieldEvent, "instances.hook_failed").
					Msg("OnEnable hook failed")
			}
		}
	}

	s.logger.Info().
		Str(xflog.FieldEvent, "instances.created").
		Str(xflog.FieldInstanceID, inst.ID).
		Str(xflog.FieldPluginID, pluginID).
		Msg("instance created")
	return inst.clone(), nil
}

// Update replaces an instance's settings after validation and notifies the
// plugin's OnSettingsChange hook if it has one.
func (s *Store) Update(ctx context.Context, id string, settings map[string]any) (*Instance, error) {
	s.mu.RLock()
	cur, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	if err := s.validate(cur.PluginID, settings); err != nil {
		return nil, err
	}

	next := cur.clone()
	next.Settings = settings
	next.UpdatedAt = time.Now().UTC()
	if err := s.upsert(ctx, next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = next
	s.mu.Unlock()

	if impl, err := s.plugins.Get(cur.PluginID); err == nil {
		if lc, ok := impl.(plugin.Lifecycle); ok {
			if err := lc.OnSettingsChange(ctx, settings); err != nil {
				s.logger.Warn().
					Err(err).
					Str(xflog.FieldInstanceID, id).
					Str(xflog.FieldEvent, "instances.hook_failed").
					Msg("OnSettingsChange hook failed")
			}
		}
	}

	return next.clone(), nil
}

// SetEnabled flips the enabled flag. Disabling commits the flag first so a
// resolution racing the disable can no longer pick the instance up, then runs
// the deactivate hook; a running execution is retired before SetEnabled
// returns.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.RLock()
	cur, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if cur.Enabled == enabled {
		return nil
	}

	next := cur.clone()
	next.Enabled = enabled
	next.UpdatedAt = time.Now().UTC()
	if err := s.upsert(ctx, next); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[id] = next
	s.mu.Unlock()

	if !enabled {
		s.deactivate(ctx, id)
	}

	if impl, err := s.plugins.Get(cur.PluginID); err == nil {
		if lc, ok := impl.(plugin.Lifecycle); ok {
			var hookErr error
			if enabled {
				hookErr = lc.OnEnable(ctx, next.Settings)
			} else {
				hookErr = lc.OnDisable(ctx)
			}
			if hookErr != nil {
				s.logger.Warn().
					Err(hookErr).
					Str(xflog.FieldInstanceID, id).
					Str(xflog.FieldEvent, "instances.hook_failed").
					Msg("lifecycle hook failed")
			}
		}
	}

	s.logger.Info().
		Str(xflog.FieldEvent, "instances.enabled_changed").
		Str(xflog.FieldInstanceID, id).
		Bool("enabled", enabled).
		Msg("instance enabled flag changed")
	return nil
}

// Delete removes an instance. If it backs the active execution the deactivate
// hook retires that execution before the row goes away.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.deactivate(ctx, id)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	s.logger.Info().
		Str(xflog.FieldEvent, "instances.deleted").
		Str(xflog.FieldInstanceID, id).
		Msg("instance deleted")
	return nil
}

// Get returns the instance with the given ID.
func (s *Store) Get(id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.cache[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inst.clone(), nil
}

// List returns all instances, optionally filtered by plugin ID, sorted by name.
func (s *Store) List(pluginID string) []*Instance {
	s.mu.RLock()
	out := make([]*Instance, 0, len(s.cache))
	for _, inst := range s.cache {
		if pluginID != "" && inst.PluginID != pluginID {
			continue
		}
		out = append(out, inst.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) upsert(ctx context.Context, inst *Instance) error {
	settingsJSON, err := json.Marshal(inst.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	enabled := 0
	if inst.Enabled {
		enabled = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instances (id, plugin_id, name, settings, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			settings = excluded.settings,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		inst.ID, inst.PluginID, inst.Name, string(settingsJSON), enabled,
		inst.CreatedAt.Format(time.RFC3339Nano), inst.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("persist instance: %w", err)
	}
	return nil
}
