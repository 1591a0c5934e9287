package config

import (
	"sync"
	"time"
)

// Runtime holds the settings that MQTT control messages may flip while the
// daemon runs. Reads happen on the tick loop, writes on broker callbacks.
type Runtime struct {
	mu             sync.RWMutex
	autoReport     bool
	autoIrrigation bool
	manualDuration time.Duration
}

// NewRuntime seeds the runtime settings from the static configuration.
func NewRuntime(cfg *Config) *Runtime {
	return &Runtime{
		autoReport:     cfg.AutoReport,
		autoIrrigation: cfg.AutoIrrigation,
		manualDuration: cfg.ManualDuration,
	}
}

func (r *Runtime) AutoReport() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autoReport
}

func (r *Runtime) SetAutoReport(on bool) {
	r.mu.Lock()
	r.autoReport = on
	r.mu.Unlock()
}

func (r *Runtime) AutoIrrigation() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autoIrrigation
}

func (r *Runtime) SetAutoIrrigation(on bool) {
	r.mu.Lock()
	r.autoIrrigation = on
	r.mu.Unlock()
}

func (r *Runtime) ManualDuration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manualDuration
}

func (r *Runtime) SetManualDuration(d time.Duration) {
	r.mu.Lock()
	r.manualDuration = d
	r.mu.Unlock()
}
