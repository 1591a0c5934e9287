// Package pump drives the irrigation pumps through guarded, blocking runs
// and carries the busy state that arbitrates manual against automatic
// activation.
package pump

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"florad/internal/gpio"
	"florad/internal/model/entities"
	"florad/internal/tank"
)

const settleTime = 500 * time.Millisecond

// Pump is one physical pump: a power output, a driver feedback input and the
// shared state the scheduler and the manual-command path coordinate through.
type Pump struct {
	id       entities.PumpID
	io       gpio.Conn
	powerPin int
	sensePin int
	tank     *tank.Gauge
	autoDur  time.Duration
	logger   *zap.Logger

	sleep func(time.Duration) // swapped in tests

	mu      sync.Mutex
	busy    entities.PumpBusy
	status  entities.RunStatus
	lastRun time.Time // completion time of the last automatic run
}

// New claims the pump's lines, drives the power line low and returns the
// pump idle.
func New(cfg entities.PumpConfig, io gpio.Conn, gauge *tank.Gauge, logger *zap.Logger) *Pump {
	io.SetOutput(cfg.PowerPin)
	io.SetInput(cfg.SensePin)
	io.Write(cfg.PowerPin, false)
	return &Pump{
		id:       cfg.ID,
		io:       io,
		powerPin: cfg.PowerPin,
		sensePin: cfg.SensePin,
		tank:     gauge,
		autoDur:  time.Duration(cfg.AutoDurS) * time.Second,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// ID returns the pump identifier.
func (p *Pump) ID() entities.PumpID { return p.id }

// AutoDuration is the per-pump duration of one scheduler-driven run.
func (p *Pump) AutoDuration() time.Duration { return p.autoDur }

// PowerOn energizes the pump for the given duration and blocks the caller
// until the run ends. After a short settle interval the run is guarded once
// per second: a driver feedback mismatch aborts with a driver fault, an
// empty tank aborts dry-run protection. The power line is released on every
// exit path. An empty tank at invocation never energizes the line at all.
func (p *Pump) PowerOn(d time.Duration) entities.RunStatus {
	p.setStatus(entities.RunOK)
	if p.tank.Empty() {
		p.setStatus(entities.RunTankEmpty)
		return entities.RunTankEmpty
	}

	p.logger.Debug("pump on", zap.Stringer("pump", p.id), zap.Duration("duration", d))
	p.io.Write(p.powerPin, true)
	defer p.io.Write(p.powerPin, false)

	p.sleep(settleTime)

	status := entities.RunOK
	for i := 0; i < int(d/time.Second); i++ {
		if !p.io.Read(p.sensePin) {
			status = entities.RunDriverFault
			break
		}
		if p.tank.Empty() {
			status = entities.RunTankEmpty
			break
		}
		p.sleep(time.Second)
	}

	if status != entities.RunOK {
		p.logger.Warn("pump run aborted",
			zap.Stringer("pump", p.id), zap.Stringer("status", status))
	}
	p.setStatus(status)
	return status
}

// Busy returns the current mutual-exclusion state.
func (p *Pump) Busy() entities.PumpBusy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// RequestManual flips the pump from idle to manual-requested. It reports
// false when the pump is already claimed by either path.
func (p *Pump) RequestManual() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy != entities.BusyIdle {
		return false
	}
	p.busy = entities.BusyManual
	return true
}

// BeginAuto claims the pump for a scheduler run, false when already claimed.
func (p *Pump) BeginAuto() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy != entities.BusyIdle {
		return false
	}
	p.busy = entities.BusyAuto
	return true
}

// Release returns the pump to idle after a run.
func (p *Pump) Release() {
	p.mu.Lock()
	p.busy = entities.BusyIdle
	p.mu.Unlock()
}

// MarkAutoRun records the completion time of an automatic run for the
// scheduler's rest-period math. Manual runs do not touch it.
func (p *Pump) MarkAutoRun(now time.Time) {
	p.mu.Lock()
	p.lastRun = now
	p.mu.Unlock()
}

// LastAutoRun returns when the last automatic run completed, zero if never.
func (p *Pump) LastAutoRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}

// Status returns the outcome of the most recent run.
func (p *Pump) Status() entities.RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pump) setStatus(s entities.RunStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Snapshot is the reportable pump state, taken in one consistent read.
type Snapshot struct {
	ID      entities.PumpID
	Status  entities.RunStatus
	Busy    entities.PumpBusy
	LastRun time.Time
}

// Snapshot returns the current state for status reporting.
func (p *Pump) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{ID: p.id, Status: p.status, Busy: p.busy, LastRun: p.lastRun}
}
