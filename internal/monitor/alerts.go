package monitor

import (
	"fmt"
	"time"

	"florad/internal/alert"
	"florad/internal/config"
	"florad/internal/model/entities"
	"florad/internal/sensor"
)

// category pairs one condition filter with the closure that samples its
// state vector: one bit per subject, plus the subject names behind the bits.
type category struct {
	label  string
	filter *alert.Filter
	vector func(now time.Time) (uint64, []string)
}

// buildCategories wires the ten alert categories in their evaluation order.
// Two-flag categories merge both comparison flags into one bit per sensor.
func (s *Service) buildCategories(modes config.AlertModes) error {
	flagVec := func(pick func(entities.Flags) bool) func(time.Time) (uint64, []string) {
		return func(time.Time) (uint64, []string) {
			m := s.reg.Mask(func(sn *sensor.Sensor) bool { return pick(sn.Flags()) })
			return m, s.reg.Names(m)
		}
	}
	boolVec := func(probe func() bool, subject string) func(time.Time) (uint64, []string) {
		return func(time.Time) (uint64, []string) {
			if probe() {
				return 1, []string{subject}
			}
			return 0, nil
		}
	}

	specs := []struct {
		name   string
		label  string
		mode   int
		vector func(time.Time) (uint64, []string)
	}{
		{"battery", "battery low", modes.Battery,
			flagVec(func(f entities.Flags) bool { return f.BattUnder })},
		{"temperature", "temperature out of range", modes.Temperature,
			flagVec(func(f entities.Flags) bool { return f.TempUnder || f.TempOver })},
		{"moisture_warning", "moisture out of range", modes.MoistureWarn,
			flagVec(func(f entities.Flags) bool { return f.MoistUnder || f.MoistOver })},
		{"moisture_info", "moisture drifting", modes.MoistureInfo,
			flagVec(func(f entities.Flags) bool { return f.MoistLow || f.MoistHigh })},
		{"conductivity", "conductivity out of range", modes.Conductivity,
			flagVec(func(f entities.Flags) bool { return f.CondUnder || f.CondOver })},
		{"light", "light out of range", modes.Light,
			flagVec(func(f entities.Flags) bool { return f.LightUnder || f.LightOver })},
		{"sensor_lost", "sensor data timeout", modes.SensorLost,
			func(now time.Time) (uint64, []string) {
				m := s.reg.Mask(func(sn *sensor.Sensor) bool { return !sn.Valid(now) })
				return m, s.reg.Names(m)
			}},
		{"pump_error", "pump driver fault", modes.PumpError,
			func(time.Time) (uint64, []string) {
				var m uint64
				var names []string
				for i, p := range s.pumps {
					if p.Status() == entities.RunDriverFault {
						m |= 1 << uint(i)
						names = append(names, p.ID().String())
					}
				}
				return m, names
			}},
		{"tank_low", "water tank low", modes.TankLow, boolVec(s.gauge.Low, "tank")},
		{"tank_empty", "water tank empty", modes.TankEmpty, boolVec(s.gauge.Empty, "tank")},
	}

	for _, sp := range specs {
		m, err := alert.ParseMode(sp.mode)
		if err != nil {
			return fmt.Errorf("alert %s: %w", sp.name, err)
		}
		s.cats = append(s.cats, &category{
			label:  sp.label,
			filter: alert.New(sp.name, m, s.cfg.DeferTime, s.cfg.RepeatTime, s.gate),
			vector: sp.vector,
		})
	}
	return nil
}
