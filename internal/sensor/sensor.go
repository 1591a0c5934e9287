// Package sensor keeps the latest reading and comparison flags per plant
// sensor, plus the registry the evaluation tick iterates over.
package sensor

import (
	"sync"
	"time"

	"florad/internal/model/entities"
)

// Sensor carries the newest reading for one plant along with the comparison
// flags derived from it. Updates arrive on the MQTT callback goroutine while
// the monitor tick reads, so access goes through a read-write lock.
type Sensor struct {
	plant   entities.Plant
	timeout time.Duration

	mu      sync.RWMutex
	reading entities.Reading
	seen    time.Time
	flags   entities.Flags
}

// New returns a sensor that has never reported.
func New(plant entities.Plant, timeout time.Duration) *Sensor {
	return &Sensor{plant: plant, timeout: timeout}
}

// Name is the sensor name, also the MQTT topic leaf.
func (s *Sensor) Name() string { return s.plant.Name }

// Plant returns the configured thresholds.
func (s *Sensor) Plant() entities.Plant { return s.plant }

// Pump is the pump serving this plant.
func (s *Sensor) Pump() entities.PumpID { return s.plant.Pump }

// Update stores a new reading and recomputes the comparison flags. A reading
// whose moisture dropped to zero while the stored value is above 5 % is
// rejected as a sensor glitch; the caller may want to log it.
func (s *Sensor) Update(now time.Time, r entities.Reading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Moisture == 0 && s.reading.Moisture > 5 {
		return false
	}
	s.reading = r
	s.seen = now
	s.flags = s.plant.Check(r)
	return true
}

// Valid reports whether at least one reading arrived and it is younger than
// the configured timeout.
func (s *Sensor) Valid(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked(now)
}

func (s *Sensor) validLocked(now time.Time) bool {
	return !s.seen.IsZero() && now.Sub(s.seen) < s.timeout
}

// Flags returns the comparison flags of the stored reading.
func (s *Sensor) Flags() entities.Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// Snapshot is the reportable sensor state, taken in one consistent read.
type Snapshot struct {
	Name    string
	Species string
	Pump    entities.PumpID
	Valid   bool
	Seen    time.Time
	Reading entities.Reading
	Flags   entities.Flags
}

// Snapshot returns the current state for status reporting.
func (s *Sensor) Snapshot(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Name:    s.plant.Name,
		Species: s.plant.Species,
		Pump:    s.plant.Pump,
		Valid:   s.validLocked(now),
		Seen:    s.seen,
		Reading: s.reading,
		Flags:   s.flags,
	}
}
