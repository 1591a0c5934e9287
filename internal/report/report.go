// Package report assembles the status document out of component snapshots.
// Building is pure; publishing and mailing stay with the monitor.
package report

import (
	"fmt"
	"strings"
	"time"

	"florad/internal/model/entities"
	"florad/internal/model/messages"
	"florad/internal/pump"
	"florad/internal/sensor"
	"florad/internal/tank"
)

// Input collects everything one report is built from. Scheduled carries the
// per-pump carry-over flags from the irrigation scheduler, Alerts the names
// of the currently active alert categories.
type Input struct {
	Now       time.Time
	Sensors   []sensor.Snapshot
	Pumps     []pump.Snapshot
	Tank      tank.Level
	Scheduled map[entities.PumpID]bool
	Rest      time.Duration
	Alerts    []string
	Settings  messages.ReportSettings
}

// Build renders the input into the wire form of the status report.
func Build(in Input) messages.StatusReport {
	r := messages.StatusReport{
		Timestamp: in.Now,
		Sensors:   make([]messages.SensorStatus, 0, len(in.Sensors)),
		Pumps:     make([]messages.PumpStatus, 0, len(in.Pumps)),
		Tank:      in.Tank.String(),
		Alerts:    in.Alerts,
		Settings:  in.Settings,
	}

	for _, s := range in.Sensors {
		st := messages.SensorStatus{
			Name:     s.Name,
			Species:  s.Species,
			Pump:     s.Pump,
			Valid:    s.Valid,
			LastSeen: s.Seen,
			Reading:  s.Reading,
		}
		if s.Valid {
			st.Problems = s.Flags.Names()
		}
		r.Sensors = append(r.Sensors, st)
	}

	for _, p := range in.Pumps {
		st := messages.PumpStatus{
			Pump:      p.ID,
			Status:    p.Status.String(),
			Busy:      p.Busy.String(),
			LastRun:   p.LastRun,
			Scheduled: in.Scheduled[p.ID],
		}
		// Zero LastRun means the pump never ran, so nothing holds it back.
		if !p.LastRun.IsZero() {
			st.NextRun = p.LastRun.Add(in.Rest)
		}
		r.Pumps = append(r.Pumps, st)
	}

	return r
}

// Text renders a report as the plain-text body of the status email.
func Text(r messages.StatusReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "status at %s\n", r.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "tank: %s\n", r.Tank)
	if len(r.Alerts) > 0 {
		fmt.Fprintf(&b, "active alerts: %s\n", strings.Join(r.Alerts, ", "))
	}

	b.WriteString("\nsensors:\n")
	for _, s := range r.Sensors {
		if !s.Valid {
			fmt.Fprintf(&b, "  %s: no data (last seen %s)\n", s.Name, seenText(s.LastSeen))
			continue
		}
		fmt.Fprintf(&b, "  %s: %.1f°C  %d%% moist  %d lux  %d µS/cm  batt %d%%",
			s.Name, s.Reading.Temperature, s.Reading.Moisture,
			s.Reading.Light, s.Reading.Conductivity, s.Reading.Battery)
		if len(s.Problems) > 0 {
			fmt.Fprintf(&b, "  [%s]", strings.Join(s.Problems, " "))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\npumps:\n")
	for _, p := range r.Pumps {
		fmt.Fprintf(&b, "  %s: %s, %s", p.Pump, p.Status, p.Busy)
		if !p.LastRun.IsZero() {
			fmt.Fprintf(&b, ", last run %s", p.LastRun.Format("2006-01-02 15:04"))
		}
		if p.Scheduled {
			b.WriteString(", run pending")
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nauto report %s, auto irrigation %s, manual duration %ds\n",
		onOff(r.Settings.AutoReport), onOff(r.Settings.AutoIrrigation),
		r.Settings.ManualDurationS)

	return b.String()
}

func seenText(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
