package messages

import (
	"time"

	"florad/internal/model/entities"
)

// AlertEvent is published on <base>/alert whenever a condition filter fires.
type AlertEvent struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Subjects  []string  `json:"subjects,omitempty"` // sensor or pump names behind the firing bits
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// IrrigationResultEvent is published at the end of every pump run, manual or
// automatic, whatever the outcome.
type IrrigationResultEvent struct {
	ID        string          `json:"id"`
	Pump      entities.PumpID `json:"pump"`
	Kind      string          `json:"kind"` // "auto" | "manual"
	DurationS int             `json:"duration_s"`
	Status    string          `json:"status"` // RunStatus string form
	StartedAt time.Time       `json:"started_at"`
	Timestamp time.Time       `json:"timestamp"` // end of run
}

// Irrigation run kinds.
const (
	RunKindAuto   = "auto"
	RunKindManual = "manual"
)
