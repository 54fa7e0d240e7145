package schedule

import (
	"fmt"
	"time"

	"github.com/inkframe/inkframe/internal/instance"
)

// Origin records how a resolution was decided.
type Origin string

const (
	// OriginScheduled means the current slot had an enabled target.
	OriginScheduled Origin = "scheduled"
	// OriginDefault means the slot was empty or unusable and the default won.
	OriginDefault Origin = "default"
	// OriginNone means nothing should be showing.
	OriginNone Origin = "none"
)

// Resolved is the outcome of one resolution. It is computed fresh on every
// tick and never cached.
type Resolved struct {
	Instance *instance.Instance
	Origin   Origin
	Label    string
}

// InstanceLookup is the read-side of the instance store resolution needs.
type InstanceLookup interface {
	Get(id string) (*instance.Instance, error)
}

// Resolve maps now's local (weekday, hour) to the instance that should be
// showing. Precedence: enabled scheduled target, then enabled default, then
// none. Dangling references, playlist targets and disabled instances all
// degrade to the next rung rather than erroring. Day 0 is Sunday, matching
// time.Weekday.
func (s *Store) Resolve(now time.Time, instances InstanceLookup) Resolved {
	day := int(now.Weekday())
	hour := now.Hour()

	if t, ok := s.GetSlot(day, hour); ok {
		if inst := usable(t, instances); inst != nil {
			return Resolved{
				Instance: inst,
				Origin:   OriginScheduled,
				Label:    fmt.Sprintf("%s (scheduled %s %02d:00)", inst.Name, now.Weekday(), hour),
			}
		}
	}

	if t, ok := s.GetDefault(); ok {
		if inst := usable(t, instances); inst != nil {
			return Resolved{
				Instance: inst,
				Origin:   OriginDefault,
				Label:    fmt.Sprintf("%s (default)", inst.Name),
			}
		}
	}

	return Resolved{Origin: OriginNone, Label: "nothing scheduled"}
}

// usable returns the referenced instance when the target is an instance kind,
// the instance exists and it is enabled. Anything else yields nil.
func usable(t Target, instances InstanceLookup) *instance.Instance {
	if t.Kind != TargetInstance || t.ID == "" {
		return nil
	}
	inst, err := instances.Get(t.ID)
	if err != nil || !inst.Enabled {
		return nil
	}
	return inst
}
