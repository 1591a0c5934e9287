// Package irrigation holds the automatic-irrigation decision logic: the
// night window, per-pump eligibility from sensor state and the rest-period
// bookkeeping behind the scheduled flags.
package irrigation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"florad/internal/model/entities"
	"florad/internal/sensor"
)

// Pump is the actuation surface the scheduler needs. *pump.Pump satisfies
// it; tests substitute a fake.
type Pump interface {
	ID() entities.PumpID
	AutoDuration() time.Duration
	PowerOn(d time.Duration) entities.RunStatus
	BeginAuto() bool
	Release()
	MarkAutoRun(now time.Time)
	LastAutoRun() time.Time
}

// Run describes one automatic pump run the scheduler performed.
type Run struct {
	Pump     entities.PumpID
	Duration time.Duration
	Status   entities.RunStatus
	Started  time.Time
	Finished time.Time
}

// Scheduler evaluates automatic irrigation once per monitor tick,
// independently per pump. Pump runs happen inline, so Tick blocks while a
// pump is driven.
type Scheduler struct {
	pumps  []Pump
	reg    *sensor.Registry
	rest   time.Duration
	night  Window
	loc    *time.Location
	logger *zap.Logger
	clock  func() time.Time

	mu        sync.Mutex
	scheduled map[entities.PumpID]bool
}

// NewScheduler wires the scheduler to its pumps and sensors. The rest
// duration is the minimum spacing between automatic runs of one pump.
func NewScheduler(pumps []Pump, reg *sensor.Registry, rest time.Duration, night Window, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	scheduled := make(map[entities.PumpID]bool, len(pumps))
	for _, p := range pumps {
		scheduled[p.ID()] = false
	}
	return &Scheduler{
		pumps:     pumps,
		reg:       reg,
		rest:      rest,
		night:     night,
		loc:       loc,
		logger:    logger,
		clock:     time.Now,
		scheduled: scheduled,
	}
}

// Tick evaluates every pump once and returns the runs performed. Inside the
// night window nothing is evaluated and the scheduled flags keep their
// previous values.
func (s *Scheduler) Tick(now time.Time) []Run {
	if s.night.Contains(now.In(s.loc)) {
		return nil
	}
	var runs []Run
	for _, p := range s.pumps {
		if run, ok := s.evalPump(now, p); ok {
			runs = append(runs, run)
		}
	}
	return runs
}

func (s *Scheduler) evalPump(now time.Time, p Pump) (Run, bool) {
	eligible, trigger := s.eligible(now, p.ID())
	if !eligible {
		s.setScheduled(p.ID(), false)
		return Run{}, false
	}

	if now.Sub(p.LastAutoRun()) < s.rest {
		s.setScheduled(p.ID(), true)
		return Run{}, false
	}

	if !p.BeginAuto() {
		// manual run pending or in progress; leave everything untouched
		return Run{}, false
	}

	s.logger.Info("automatic irrigation",
		zap.Stringer("pump", p.ID()),
		zap.String("sensor", trigger),
		zap.Duration("duration", p.AutoDuration()))

	status := p.PowerOn(p.AutoDuration())
	p.Release()
	finished := s.clock()
	p.MarkAutoRun(finished)
	s.setScheduled(p.ID(), false)

	return Run{
		Pump:     p.ID(),
		Duration: p.AutoDuration(),
		Status:   status,
		Started:  now,
		Finished: finished,
	}, true
}

// eligible scans the pump's sensors in registry order: any stale, sunburn-
// risk or overwatered sensor blocks the pump entirely; otherwise the first
// plant below its moisture minimum asks for water.
func (s *Scheduler) eligible(now time.Time, id entities.PumpID) (bool, string) {
	assigned := s.reg.ForPump(id)
	if len(assigned) == 0 {
		return false, ""
	}
	for _, sn := range assigned {
		if !sn.Valid(now) {
			return false, ""
		}
		f := sn.Flags()
		if f.LightIrr || f.MoistOver {
			return false, ""
		}
	}
	for _, sn := range assigned {
		if sn.Flags().MoistUnder {
			return true, sn.Name()
		}
	}
	return false, ""
}

func (s *Scheduler) setScheduled(id entities.PumpID, v bool) {
	s.mu.Lock()
	s.scheduled[id] = v
	s.mu.Unlock()
}

// Scheduled returns a copy of the per-pump scheduled flags, for status
// reporting only.
func (s *Scheduler) Scheduled() map[entities.PumpID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[entities.PumpID]bool, len(s.scheduled))
	for id, v := range s.scheduled {
		out[id] = v
	}
	return out
}
