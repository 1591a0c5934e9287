package sensor

import (
	"fmt"
	"math/bits"
	"time"

	"florad/internal/model/entities"
)

// maxSensors is bounded by the width of the alert state vectors.
const maxSensors = 64

// Registry holds the configured sensors in descriptor order. That order
// gives each sensor its stable bit position in the alert state vectors and
// the scan order of the irrigation scheduler.
type Registry struct {
	ordered []*Sensor
	byName  map[string]*Sensor
}

// NewRegistry builds the registry from the plant descriptors.
func NewRegistry(plants []entities.Plant, timeout time.Duration) (*Registry, error) {
	if len(plants) == 0 {
		return nil, fmt.Errorf("no sensors configured")
	}
	if len(plants) > maxSensors {
		return nil, fmt.Errorf("%d sensors configured, at most %d supported", len(plants), maxSensors)
	}
	r := &Registry{byName: make(map[string]*Sensor, len(plants))}
	for _, p := range plants {
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate sensor name %q", p.Name)
		}
		s := New(p, timeout)
		r.ordered = append(r.ordered, s)
		r.byName[p.Name] = s
	}
	return r, nil
}

// Get looks a sensor up by name.
func (r *Registry) Get(name string) (*Sensor, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns the sensors in descriptor order. Callers must not mutate the
// slice.
func (r *Registry) All() []*Sensor { return r.ordered }

// Len returns the number of configured sensors.
func (r *Registry) Len() int { return len(r.ordered) }

// ForPump returns the sensors assigned to one pump, in descriptor order.
func (r *Registry) ForPump(id entities.PumpID) []*Sensor {
	var out []*Sensor
	for _, s := range r.ordered {
		if s.Pump() == id {
			out = append(out, s)
		}
	}
	return out
}

// Mask builds an alert state vector: bit i is set when pred holds for the
// i-th sensor in descriptor order.
func (r *Registry) Mask(pred func(*Sensor) bool) uint64 {
	var v uint64
	for i, s := range r.ordered {
		if pred(s) {
			v |= 1 << uint(i)
		}
	}
	return v
}

// Names resolves a state vector back to sensor names, for alert messages.
func (r *Registry) Names(mask uint64) []string {
	out := make([]string, 0, bits.OnesCount64(mask))
	for i, s := range r.ordered {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, s.Name())
		}
	}
	return out
}
