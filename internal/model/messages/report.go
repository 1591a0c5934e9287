package messages

import (
	"time"

	"florad/internal/model/entities"
)

// StatusReport is the JSON status document published retained on
// <base>/report and mailed out when an alert fires with auto-report on.
type StatusReport struct {
	Timestamp time.Time      `json:"timestamp"`
	Sensors   []SensorStatus `json:"sensors"`
	Pumps     []PumpStatus   `json:"pumps"`
	Tank      string         `json:"tank"` // "ok" | "low" | "empty"
	Alerts    []string       `json:"alerts,omitempty"`
	Settings  ReportSettings `json:"settings"`
}

// SensorStatus is one sensor's slice of the status report.
type SensorStatus struct {
	Name     string           `json:"name"`
	Species  string           `json:"species,omitempty"`
	Pump     entities.PumpID  `json:"pump"`
	Valid    bool             `json:"valid"`
	LastSeen time.Time        `json:"last_seen"`
	Reading  entities.Reading `json:"reading"`
	Problems []string         `json:"problems,omitempty"` // violated-threshold names
}

// PumpStatus is one pump's slice of the status report.
type PumpStatus struct {
	Pump      entities.PumpID `json:"pump"`
	Status    string          `json:"status"`
	Busy      string          `json:"busy"`
	LastRun   time.Time       `json:"last_run"`
	NextRun   time.Time       `json:"next_run"` // earliest next automatic run
	Scheduled bool            `json:"scheduled"`
}

// ReportSettings echoes the runtime-tunable settings into the report.
type ReportSettings struct {
	AutoReport        bool `json:"auto_report"`
	AutoIrrigation    bool `json:"auto_irrigation"`
	ManualDurationS   int  `json:"man_irr_duration_s"`
	ProcessingPeriodS int  `json:"processing_period_s"`
}
