// Package tank reads the water-tank level switches.
package tank

import "florad/internal/gpio"

// Level folds the two switches into one reportable state.
type Level int

const (
	LevelOK Level = iota
	LevelLow
	LevelEmpty
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelEmpty:
		return "empty"
	default:
		return "ok"
	}
}

// Gauge exposes the two boolean level signals wired to digital inputs. A
// high line means the condition is present. Empty implies low on real float
// switches, but the lines are read independently and no relation between
// them is assumed.
type Gauge struct {
	io       gpio.Conn
	lowPin   int
	emptyPin int
}

// NewGauge claims the two input lines and returns the gauge.
func NewGauge(io gpio.Conn, lowPin, emptyPin int) *Gauge {
	io.SetInput(lowPin)
	io.SetInput(emptyPin)
	return &Gauge{io: io, lowPin: lowPin, emptyPin: emptyPin}
}

// Low reads the low-level switch.
func (g *Gauge) Low() bool { return g.io.Read(g.lowPin) }

// Empty reads the empty switch.
func (g *Gauge) Empty() bool { return g.io.Read(g.emptyPin) }

// Current returns the combined level for status reporting.
func (g *Gauge) Current() Level {
	switch {
	case g.Empty():
		return LevelEmpty
	case g.Low():
		return LevelLow
	default:
		return LevelOK
	}
}
