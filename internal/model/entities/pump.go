package entities

import "fmt"

// PumpID identifies one physical pump. IDs come from the hardware
// descriptor file and start at 1.
type PumpID int

func (id PumpID) String() string { return fmt.Sprintf("pump-%d", int(id)) }

// PumpConfig describes the wiring and auto-run duration of one pump.
type PumpConfig struct {
	ID        PumpID `json:"id"`
	PowerPin  int    `json:"power_pin"`       // output, energizes the driver
	SensePin  int    `json:"sense_pin"`       // input, driver "on" feedback
	AutoDurS  int    `json:"auto_duration_s"` // seconds per scheduler run
}

// PumpBusy gates manual against automatic activation of the same pump.
// Anything other than BusyIdle blocks the other path from starting a run.
type PumpBusy int32

const (
	BusyIdle   PumpBusy = iota
	BusyManual          // manual run requested or in progress
	BusyAuto            // scheduler run in progress
)

func (b PumpBusy) String() string {
	switch b {
	case BusyIdle:
		return "idle"
	case BusyManual:
		return "manual"
	case BusyAuto:
		return "auto"
	default:
		return fmt.Sprintf("busy(%d)", int32(b))
	}
}

// RunStatus is the outcome of the most recent pump run.
type RunStatus int

const (
	RunOK RunStatus = iota
	RunTankEmpty
	RunDriverFault
)

func (s RunStatus) String() string {
	switch s {
	case RunOK:
		return "ok"
	case RunTankEmpty:
		return "tank empty"
	case RunDriverFault:
		return "driver fault"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
