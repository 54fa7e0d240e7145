// Package schedule holds the weekly slot table that maps wall-clock time to a
// content target, plus the single default fallback.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xflog "github.com/inkframe/inkframe/internal/log"
)

// TargetKind discriminates what a slot points at.
type TargetKind string

const (
	// TargetInstance references a single plugin instance.
	TargetInstance TargetKind = "instance"
	// TargetPlaylist references an ordered list of instances. The shape is
	// persisted and round-tripped but resolution treats it as no content.
	TargetPlaylist TargetKind = "playlist"
)

// Target is the value stored in a slot or as the default.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// Assignment is one entry of a bulk slot update.
type Assignment struct {
	Day    int    `json:"day"`
	Hour   int    `json:"hour"`
	Target Target `json:"target"`
}

// ErrOutOfRange is returned for a slot key outside day 0-6 / hour 0-23.
var ErrOutOfRange = errors.New("slot key out of range")

// Store is the 7x24 slot table. All reads and single mutations are O(1);
// bulk updates are visible atomically. If a path is configured every mutation
// persists a full snapshot via atomic rename.
type Store struct {
	mu     sync.RWMutex
	slots  [7][24]*Target
	def    *Target
	path   string
	logger zerolog.Logger
}

// NewStore creates a schedule store persisted at path. An empty path keeps the
// schedule in memory only (used by tests). An existing file is loaded; a
// missing file starts empty.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:   path,
		logger: xflog.WithComponent("schedule"),
	}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	for _, a := range doc.Slots {
		if !validKey(a.Day, a.Hour) {
			return nil, fmt.Errorf("%w: day=%d hour=%d", ErrOutOfRange, a.Day, a.Hour)
		}
		t := a.Target
		s.slots[a.Day][a.Hour] = &t
	}
	s.def = doc.Default
	return s, nil
}

func validKey(day, hour int) bool {
	return day >= 0 && day <= 6 && hour >= 0 && hour <= 23
}

// SetSlot assigns a target to one slot.
func (s *Store) SetSlot(day, hour int, t Target) error {
	if !validKey(day, hour) {
		return fmt.Errorf("%w: day=%d hour=%d", ErrOutOfRange, day, hour)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[day][hour] = &t
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.logger.Debug().
		Str(xflog.FieldEvent, "schedule.slot_set").
		Int(xflog.FieldDay, day).
		Int(xflog.FieldHour, hour).
		Str("target_id", t.ID).
		Msg("slot assigned")
	return nil
}

// ClearSlot removes the assignment for one slot, if any.
func (s *Store) ClearSlot(day, hour int) error {
	if !validKey(day, hour) {
		return fmt.Errorf("%w: day=%d hour=%d", ErrOutOfRange, day, hour)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[day][hour] = nil
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.logger.Debug().
		Str(xflog.FieldEvent, "schedule.slot_cleared").
		Int(xflog.FieldDay, day).
		Int(xflog.FieldHour, hour).
		Msg("slot cleared")
	return nil
}

// GetSlot returns the target assigned to a slot, if any.
func (s *Store) GetSlot(day, hour int) (Target, bool) {
	if !validKey(day, hour) {
		return Target{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.slots[day][hour]
	if t == nil {
		return Target{}, false
	}
	return *t, true
}

// BulkSet applies all assignments under one lock so a concurrent reader sees
// either none of them or all of them, never a subset.
func (s *Store) BulkSet(assignments []Assignment) error {
	for _, a := range assignments {
		if !validKey(a.Day, a.Hour) {
			return fmt.Errorf("%w: day=%d hour=%d", ErrOutOfRange, a.Day, a.Hour)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assignments {
		t := a.Target
		s.slots[a.Day][a.Hour] = &t
	}
	return s.persistLocked()
}

// SetDefault sets the fallback target used for unassigned slots.
func (s *Store) SetDefault(t Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = &t
	return s.persistLocked()
}

// GetDefault returns the fallback target, if any.
func (s *Store) GetDefault() (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.def == nil {
		return Target{}, false
	}
	return *s.def, true
}

// ClearDefault removes the fallback target, if any.
func (s *Store) ClearDefault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = nil
	return s.persistLocked()
}

// Snapshot returns all assigned slots and the default target (nil when unset).
func (s *Store) Snapshot() ([]Assignment, *Target) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.snapshotLocked()
	return doc.Slots, doc.Default
}

// ClearAll wipes every slot and the default.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = [7][24]*Target{}
	s.def = nil
	return s.persistLocked()
}

// document is the persisted shape. It round-trips exactly: (day, hour, kind,
// id) per slot plus one optional default of the same target shape.
type document struct {
	Slots   []Assignment `json:"slots"`
	Default *Target      `json:"default,omitempty"`
}

func (s *Store) snapshotLocked() document {
	var doc document
	for day := 0; day < 7; day++ {
		for hour := 0; hour < 24; hour++ {
			if t := s.slots[day][hour]; t != nil {
				doc.Slots = append(doc.Slots, Assignment{Day: day, Hour: hour, Target: *t})
			}
		}
	}
	if s.def != nil {
		d := *s.def
		doc.Default = &d
	}
	return doc
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	doc := s.snapshotLocked()
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("create pending schedule file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending schedule file")
		}
	}()

	if _, err := pending.Write(buf); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace schedule file: %w", err)
	}
	return nil
}
