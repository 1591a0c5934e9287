// Package alert implements the per-category condition filters that decide
// when a monitored condition should raise an alert. Each filter consumes one
// state vector per evaluation tick (one bit per monitored sensor or pump, or
// a single boolean for system-wide conditions) and applies one of four
// filtering policies on top of rising-edge detection.
package alert

import (
	"fmt"
	"time"
)

// Mode selects the filtering policy of a condition filter.
type Mode int

const (
	ModeOff             Mode = iota // never fires
	ModeImmediate                   // fire on every rising edge
	ModeImmediateRepeat             // edge fire, then repeat while active
	ModeDeferred                    // edge fire gated by the shared defer window, one-shot
	ModeDeferredRepeat              // deferred, re-fires each time the window reopens
)

// ParseMode validates a numeric mode from configuration.
func ParseMode(v int) (Mode, error) {
	if v < int(ModeOff) || v > int(ModeDeferredRepeat) {
		return ModeOff, fmt.Errorf("alert mode %d out of range 0..4", v)
	}
	return Mode(v), nil
}

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeImmediate:
		return "immediate"
	case ModeImmediateRepeat:
		return "immediate+repeat"
	case ModeDeferred:
		return "deferred"
	case ModeDeferredRepeat:
		return "deferred+repeat"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Gate records the most recent time any alert of any category fired. A
// single cell is shared by every filter so that deferred categories are
// spaced by global alert traffic, not only by their own history. Filters are
// evaluated from the monitor tick goroutine only; the gate needs no lock.
type Gate struct {
	last time.Time
}

// Last returns when the most recent alert fired, zero before the first.
func (g *Gate) Last() time.Time { return g.last }

func (g *Gate) mark(now time.Time) { g.last = now }

// Filter is the state machine for one alert category. The edge-detect,
// latch and drain steps are the same for every mode; only the firing
// conditions differ.
type Filter struct {
	name       string
	mode       Mode
	deferTime  time.Duration
	repeatTime time.Duration
	gate       *Gate

	prev    uint64    // state vector of the prior tick
	flag    bool      // unacknowledged deferred/pending alert exists
	changed time.Time // last activation or repeat-fire, zero while inactive
}

// New returns a filter for one category. Every filter of the process shares
// the same gate.
func New(name string, mode Mode, deferTime, repeatTime time.Duration, gate *Gate) *Filter {
	return &Filter{
		name:       name,
		mode:       mode,
		deferTime:  deferTime,
		repeatTime: repeatTime,
		gate:       gate,
	}
}

// Name returns the category name the filter was built with.
func (f *Filter) Name() string { return f.name }

// Check feeds the current state vector for this tick and reports whether an
// alert should be issued now. The caller performs the notification itself.
//
// A bit that turns on counts as a rising edge even when other bits clear on
// the same tick. The active branch runs regardless of an edge fire on the
// same tick and sees the gate value from before this call, so a deferred
// filter discharges its pending flag in the same tick that latched it.
func (f *Filter) Check(now time.Time, current uint64) bool {
	edge := current &^ f.prev
	active := current != 0
	f.prev = current

	fired := false
	if edge != 0 {
		f.changed = now
		f.flag = true
		switch f.mode {
		case ModeImmediate, ModeImmediateRepeat:
			fired = true
		case ModeDeferred, ModeDeferredRepeat:
			if f.deferExpired(now) {
				fired = true
			}
		}
	}

	if active {
		switch f.mode {
		case ModeImmediateRepeat:
			if !f.changed.IsZero() && now.Sub(f.changed) > f.repeatTime {
				fired = true
				f.changed = now
			}
		case ModeDeferred, ModeDeferredRepeat:
			if f.flag && f.deferExpired(now) {
				fired = true
				f.changed = now
				if f.mode == ModeDeferred {
					f.flag = false
				}
			}
		}
	} else {
		f.changed = time.Time{}
		f.flag = false
	}

	if fired {
		f.gate.mark(now)
	}
	return fired
}

// CheckBool is Check for single-signal categories such as tank level.
func (f *Filter) CheckBool(now time.Time, active bool) bool {
	var v uint64
	if active {
		v = 1
	}
	return f.Check(now, v)
}

func (f *Filter) deferExpired(now time.Time) bool {
	return now.Sub(f.gate.last) > f.deferTime
}
