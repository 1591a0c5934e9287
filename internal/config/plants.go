package config

import (
	"encoding/json"
	"fmt"
	"os"

	"florad/internal/model/entities"
)

// Plants is the parsed descriptor file: the pumps that exist and the sensors
// assigned to them.
type Plants struct {
	Pumps   []entities.PumpConfig `json:"pumps"`
	Sensors []entities.Plant      `json:"sensors"`
}

// LoadPlants reads and validates the descriptor file. Any inconsistency is
// fatal; the daemon must not start with a half-usable garden description.
func LoadPlants(path string) (*Plants, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plants
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

func (p *Plants) validate() error {
	if len(p.Pumps) == 0 {
		return fmt.Errorf("no pumps defined")
	}
	if len(p.Sensors) == 0 {
		return fmt.Errorf("no sensors defined")
	}

	pumps := make(map[entities.PumpID]bool, len(p.Pumps))
	for _, pc := range p.Pumps {
		if pc.ID <= 0 {
			return fmt.Errorf("pump id %d invalid", pc.ID)
		}
		if pumps[pc.ID] {
			return fmt.Errorf("duplicate pump id %d", pc.ID)
		}
		pumps[pc.ID] = true
		if pc.PowerPin <= 0 || pc.SensePin <= 0 {
			return fmt.Errorf("%s: pins must be positive", pc.ID)
		}
		if pc.AutoDurS <= 0 {
			return fmt.Errorf("%s: auto_duration_s must be positive", pc.ID)
		}
	}

	names := make(map[string]bool, len(p.Sensors))
	for _, s := range p.Sensors {
		if err := s.Validate(); err != nil {
			return err
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate sensor name %q", s.Name)
		}
		names[s.Name] = true
		if !pumps[s.Pump] {
			return fmt.Errorf("sensor %q: unknown pump %d", s.Name, s.Pump)
		}
	}
	return nil
}
