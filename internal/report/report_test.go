package report

import (
	"strings"
	"testing"
	"time"

	"florad/internal/model/entities"
	"florad/internal/model/messages"
	"florad/internal/pump"
	"florad/internal/sensor"
	"florad/internal/tank"
)

func TestBuildAssemblesReport(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	in := Input{
		Now: now,
		Sensors: []sensor.Snapshot{
			{
				Name: "rose1", Species: "rosa chinensis", Pump: 1,
				Valid: true, Seen: now.Add(-2 * time.Minute),
				Reading: entities.Reading{Temperature: 21.5, Conductivity: 420, Moisture: 15, Light: 900, Battery: 81},
				Flags:   entities.Flags{MoistUnder: true},
			},
			{
				Name: "basil", Pump: 2,
				Valid: false, Seen: now.Add(-3 * time.Hour),
				Flags: entities.Flags{BattUnder: true},
			},
		},
		Pumps: []pump.Snapshot{
			{ID: 1, Status: entities.RunOK, Busy: entities.BusyIdle, LastRun: now.Add(-time.Hour)},
			{ID: 2, Status: entities.RunDriverFault, Busy: entities.BusyIdle},
		},
		Tank:      tank.LevelLow,
		Scheduled: map[entities.PumpID]bool{2: true},
		Rest:      2 * time.Hour,
		Alerts:    []string{"moisture"},
		Settings:  messages.ReportSettings{AutoReport: true, ManualDurationS: 60, ProcessingPeriodS: 300},
	}

	r := Build(in)

	if r.Tank != "low" {
		t.Fatalf("tank = %q, want low", r.Tank)
	}
	if len(r.Sensors) != 2 || len(r.Pumps) != 2 {
		t.Fatalf("got %d sensors, %d pumps", len(r.Sensors), len(r.Pumps))
	}

	rose := r.Sensors[0]
	if !rose.Valid || len(rose.Problems) != 1 || rose.Problems[0] != "moist_under" {
		t.Fatalf("rose1 status = %+v", rose)
	}
	// Stale flags must not surface as problems.
	if basil := r.Sensors[1]; basil.Valid || basil.Problems != nil {
		t.Fatalf("basil status = %+v", basil)
	}

	p1 := r.Pumps[0]
	if want := now.Add(time.Hour); !p1.NextRun.Equal(want) {
		t.Fatalf("pump-1 next run = %v, want %v", p1.NextRun, want)
	}
	if p1.Scheduled {
		t.Fatal("pump-1 must not be scheduled")
	}

	p2 := r.Pumps[1]
	if !p2.NextRun.IsZero() {
		t.Fatalf("never-run pump next run = %v, want zero", p2.NextRun)
	}
	if !p2.Scheduled || p2.Status != "driver fault" {
		t.Fatalf("pump-2 status = %+v", p2)
	}
}

func TestTextRendersReadableBody(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := Build(Input{
		Now: now,
		Sensors: []sensor.Snapshot{
			{
				Name: "rose1", Pump: 1, Valid: true, Seen: now,
				Reading: entities.Reading{Temperature: 21.5, Conductivity: 420, Moisture: 15, Light: 900, Battery: 81},
				Flags:   entities.Flags{MoistUnder: true},
			},
			{Name: "basil", Pump: 2},
		},
		Pumps: []pump.Snapshot{
			{ID: 1, Status: entities.RunOK, Busy: entities.BusyIdle, LastRun: now.Add(-time.Hour)},
		},
		Tank:     tank.LevelOK,
		Rest:     2 * time.Hour,
		Settings: messages.ReportSettings{AutoIrrigation: true, ManualDurationS: 60},
	})

	text := Text(r)
	for _, want := range []string{
		"tank: ok",
		"rose1: 21.5°C  15% moist  900 lux  420 µS/cm  batt 81%  [moist_under]",
		"basil: no data (last seen never)",
		"pump-1: ok, idle, last run 2026-03-14 11:00",
		"auto report off, auto irrigation on, manual duration 60s",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report text missing %q:\n%s", want, text)
		}
	}
}
