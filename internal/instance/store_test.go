package instance

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/plugin"
)

type fakePlugin struct {
	desc        plugin.Descriptor
	validateErr error
}

func (f *fakePlugin) Descriptor() plugin.Descriptor { return f.desc }
func (f *fakePlugin) ValidateSettings(map[string]any) error {
	return f.validateErr
}
func (f *fakePlugin) Generate(context.Context, map[string]any, plugin.DeviceConfig) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

type lifecyclePlugin struct {
	fakePlugin
	enables  int
	disables int
}

func (f *lifecyclePlugin) OnEnable(context.Context, map[string]any) error {
	f.enables++
	return nil
}

func (f *lifecyclePlugin) OnDisable(context.Context) error {
	f.disables++
	return nil
}

func (f *lifecyclePlugin) OnSettingsChange(context.Context, map[string]any) error { return nil }

type fakeSource struct {
	plugins map[string]plugin.ContentPlugin
}

func (f *fakeSource) Descriptor(id string) (plugin.Descriptor, error) {
	p, ok := f.plugins[id]
	if !ok {
		return plugin.Descriptor{}, fmt.Errorf("plugin not found: %s", id)
	}
	return p.Descriptor(), nil
}

func (f *fakeSource) Get(id string) (plugin.ContentPlugin, error) {
	p, ok := f.plugins[id]
	if !ok {
		return nil, fmt.Errorf("plugin not found: %s", id)
	}
	return p, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	src := &fakeSource{plugins: map[string]plugin.ContentPlugin{
		"banner": &fakePlugin{desc: plugin.Descriptor{
			ID:   "banner",
			Mode: plugin.ModeOneShot,
			Schema: []plugin.FieldSpec{
				{Key: "text", Type: plugin.FieldString, Required: true},
			},
		}},
	}}
	s, err := Open(filepath.Join(t.TempDir(), "instances.db"), src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateValidatesSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst, err := s.Create(ctx, "banner", "Morning Banner", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.True(t, inst.Enabled)

	_, err = s.Create(ctx, "banner", "Broken", map[string]any{})
	var verr *plugin.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	_, err = s.Create(ctx, "missing", "Nope", nil)
	assert.Error(t, err)

	_, err = s.Create(ctx, "banner", "   ", map[string]any{"text": "x"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestUpdateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst, err := s.Create(ctx, "banner", "A", map[string]any{"text": "one"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, inst.ID, map[string]any{"text": "two"})
	require.NoError(t, err)
	assert.Equal(t, "two", updated.Settings["text"])

	got, err := s.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Settings["text"])

	_, err = s.Update(ctx, "no-such-id", map[string]any{"text": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update(ctx, inst.ID, map[string]any{})
	var verr *plugin.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDisableCommitsFlagBeforeRetiring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst, err := s.Create(ctx, "banner", "A", map[string]any{"text": "one"})
	require.NoError(t, err)

	hookCalls := 0
	s.SetDeactivateHook(func(_ context.Context, id string) {
		hookCalls++
		// the flag is already committed when the hook retires the execution,
		// so a resolution racing the disable cannot restart the instance
		cur, err := s.Get(id)
		require.NoError(t, err)
		assert.False(t, cur.Enabled)
	})

	require.NoError(t, s.SetEnabled(ctx, inst.ID, false))
	assert.Equal(t, 1, hookCalls)

	// enabling never deactivates
	require.NoError(t, s.SetEnabled(ctx, inst.ID, true))
	assert.Equal(t, 1, hookCalls)
}

func TestDeleteRunsHookWhileRowStillExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst, err := s.Create(ctx, "banner", "A", map[string]any{"text": "one"})
	require.NoError(t, err)

	hooked := false
	s.SetDeactivateHook(func(_ context.Context, id string) {
		hooked = true
		_, err := s.Get(id)
		assert.NoError(t, err, "instance must still exist while its execution is retired")
	})

	require.NoError(t, s.Delete(ctx, inst.ID))
	assert.True(t, hooked)
	_, err = s.Get(inst.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateInvokesOnEnable(t *testing.T) {
	lp := &lifecyclePlugin{fakePlugin: fakePlugin{desc: plugin.Descriptor{ID: "life", Mode: plugin.ModeOneShot}}}
	src := &fakeSource{plugins: map[string]plugin.ContentPlugin{"life": lp}}
	s, err := Open(filepath.Join(t.TempDir(), "instances.db"), src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	inst, err := s.Create(ctx, "life", "Fresh", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, lp.enables, "a new instance is born enabled, so OnEnable must fire")

	require.NoError(t, s.SetEnabled(ctx, inst.ID, false))
	assert.Equal(t, 1, lp.disables)
	require.NoError(t, s.SetEnabled(ctx, inst.ID, true))
	assert.Equal(t, 2, lp.enables)
}

func TestEnableIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst, err := s.Create(ctx, "banner", "A", map[string]any{"text": "one"})
	require.NoError(t, err)

	hookCalls := 0
	s.SetDeactivateHook(func(context.Context, string) { hookCalls++ })

	// already enabled: no hook, no write
	require.NoError(t, s.SetEnabled(ctx, inst.ID, true))
	assert.Zero(t, hookCalls)

	require.NoError(t, s.SetEnabled(ctx, inst.ID, false))
	assert.Equal(t, 1, hookCalls)
	require.NoError(t, s.SetEnabled(ctx, inst.ID, false))
	assert.Equal(t, 1, hookCalls)
}

func TestListFiltersAndSorts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "banner", "Zebra", map[string]any{"text": "z"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "banner", "Alpha", map[string]any{"text": "a"})
	require.NoError(t, err)

	all := s.List("")
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].Name)
	assert.Equal(t, "Zebra", all[1].Name)

	assert.Len(t, s.List("banner"), 2)
	assert.Empty(t, s.List("other"))
}

func TestReopenLoadsPersistedInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "instances.db")
	src := &fakeSource{plugins: map[string]plugin.ContentPlugin{
		"banner": &fakePlugin{desc: plugin.Descriptor{ID: "banner", Schema: []plugin.FieldSpec{
			{Key: "text", Type: plugin.FieldString, Required: true},
		}}},
	}}

	s, err := Open(path, src)
	require.NoError(t, err)
	inst, err := s.Create(context.Background(), "banner", "Persisted", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.NoError(t, s.SetEnabled(context.Background(), inst.ID, false))
	require.NoError(t, s.Close())

	s2, err := Open(path, src)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Name)
	assert.Equal(t, "hi", got.Settings["text"])
	assert.False(t, got.Enabled)
}
