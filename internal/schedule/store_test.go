package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkframe/inkframe/internal/instance"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	require.NoError(t, err)
	return s
}

func TestSlotRoundTrip(t *testing.T) {
	s := memStore(t)
	target := Target{Kind: TargetInstance, ID: "inst-1"}

	require.NoError(t, s.SetSlot(1, 9, target))

	got, ok := s.GetSlot(1, 9)
	require.True(t, ok)
	assert.Equal(t, target, got)

	_, ok = s.GetSlot(1, 10)
	assert.False(t, ok)

	require.NoError(t, s.ClearSlot(1, 9))
	_, ok = s.GetSlot(1, 9)
	assert.False(t, ok)
}

func TestSlotRangeChecks(t *testing.T) {
	s := memStore(t)
	target := Target{Kind: TargetInstance, ID: "x"}

	assert.ErrorIs(t, s.SetSlot(7, 0, target), ErrOutOfRange)
	assert.ErrorIs(t, s.SetSlot(-1, 0, target), ErrOutOfRange)
	assert.ErrorIs(t, s.SetSlot(0, 24, target), ErrOutOfRange)
	assert.ErrorIs(t, s.ClearSlot(0, -1), ErrOutOfRange)
	assert.ErrorIs(t, s.BulkSet([]Assignment{{Day: 3, Hour: 25, Target: target}}), ErrOutOfRange)

	_, ok := s.GetSlot(9, 9)
	assert.False(t, ok)
}

func TestDefaultAndClearAll(t *testing.T) {
	s := memStore(t)

	_, ok := s.GetDefault()
	assert.False(t, ok)

	require.NoError(t, s.SetDefault(Target{Kind: TargetInstance, ID: "fallback"}))
	got, ok := s.GetDefault()
	require.True(t, ok)
	assert.Equal(t, "fallback", got.ID)

	require.NoError(t, s.SetSlot(0, 0, Target{Kind: TargetInstance, ID: "a"}))
	require.NoError(t, s.ClearAll())

	_, ok = s.GetDefault()
	assert.False(t, ok)
	_, ok = s.GetSlot(0, 0)
	assert.False(t, ok)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSlot(1, 9, Target{Kind: TargetInstance, ID: "a"}))
	require.NoError(t, s.SetSlot(5, 20, Target{Kind: TargetPlaylist, ID: "evening"}))
	require.NoError(t, s.SetDefault(Target{Kind: TargetInstance, ID: "b"}))

	// shape on disk is exactly (day, hour, kind, id) entries plus default
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "slots")
	assert.Contains(t, doc, "default")

	reloaded, err := NewStore(path)
	require.NoError(t, err)

	want := s.snapshotLocked()
	got := reloaded.snapshotLocked()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schedule round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBulkSetIsAtomicUnderConcurrentReaders(t *testing.T) {
	s := memStore(t)

	// a reader must never observe a strict subset of one bulk batch
	batchFor := func(id string) []Assignment {
		out := make([]Assignment, 0, 24)
		for hour := 0; hour < 24; hour++ {
			out = append(out, Assignment{Day: 2, Hour: hour, Target: Target{Kind: TargetInstance, ID: id}})
		}
		return out
	}
	require.NoError(t, s.BulkSet(batchFor("gen-0")))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 50; i++ {
			_ = s.BulkSet(batchFor(fmt.Sprintf("gen-%d", i)))
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		first, ok := s.GetSlot(2, 0)
		require.True(t, ok)
		for hour := 1; hour < 24; hour++ {
			got, ok := s.GetSlot(2, hour)
			require.True(t, ok)
			// Within a single read pass values may span two generations if a
			// writer lands in between, but hours written by one BulkSet call
			// can never disagree, so re-reading hour 0 must show whether a
			// write occurred.
			recheck, _ := s.GetSlot(2, 0)
			if recheck == first {
				assert.Equal(t, first.ID, got.ID, "hour %d torn within one generation", hour)
			} else {
				break
			}
		}
	}
}

type lookupMap map[string]*instance.Instance

func (m lookupMap) Get(id string) (*instance.Instance, error) {
	inst, ok := m[id]
	if !ok {
		return nil, instance.ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

// mondayAt returns a time on a Monday at the given hour, local time.
func mondayAt(hour int) time.Time {
	t := time.Date(2026, time.August, 31, hour, 0, 0, 0, time.Local)
	if t.Weekday() != time.Monday {
		panic("fixture date is not a Monday")
	}
	return t
}

func TestResolvePrecedence(t *testing.T) {
	s := memStore(t)
	instances := lookupMap{
		"a": {ID: "a", Name: "Photo Frame", Enabled: true},
		"b": {ID: "b", Name: "Clock", Enabled: true},
	}

	require.NoError(t, s.SetSlot(int(time.Monday), 9, Target{Kind: TargetInstance, ID: "a"}))
	require.NoError(t, s.SetDefault(Target{Kind: TargetInstance, ID: "b"}))

	now := mondayAt(9)

	// enabled scheduled target wins
	res := s.Resolve(now, instances)
	require.NotNil(t, res.Instance)
	assert.Equal(t, "a", res.Instance.ID)
	assert.Equal(t, OriginScheduled, res.Origin)
	assert.Contains(t, res.Label, "Photo Frame")

	// disabled scheduled target falls through to the default
	instances["a"].Enabled = false
	res = s.Resolve(now, instances)
	require.NotNil(t, res.Instance)
	assert.Equal(t, "b", res.Instance.ID)
	assert.Equal(t, OriginDefault, res.Origin)

	// both disabled yields none
	instances["b"].Enabled = false
	res = s.Resolve(now, instances)
	assert.Nil(t, res.Instance)
	assert.Equal(t, OriginNone, res.Origin)
}

func TestResolveDegradesGracefully(t *testing.T) {
	s := memStore(t)
	instances := lookupMap{"b": {ID: "b", Name: "Fallback", Enabled: true}}
	now := mondayAt(9)

	// dangling slot reference resolves to default, not an error
	require.NoError(t, s.SetSlot(int(time.Monday), 9, Target{Kind: TargetInstance, ID: "gone"}))
	require.NoError(t, s.SetDefault(Target{Kind: TargetInstance, ID: "b"}))
	res := s.Resolve(now, instances)
	assert.Equal(t, OriginDefault, res.Origin)

	// playlist targets are not resolvable yet
	require.NoError(t, s.SetSlot(int(time.Monday), 9, Target{Kind: TargetPlaylist, ID: "mix"}))
	res = s.Resolve(now, instances)
	assert.Equal(t, OriginDefault, res.Origin)

	// empty schedule resolves to none
	require.NoError(t, s.ClearAll())
	res = s.Resolve(now, instances)
	assert.Equal(t, OriginNone, res.Origin)
	assert.Nil(t, res.Instance)
}
