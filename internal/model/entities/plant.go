package entities

import "fmt"

// Plant holds the thresholds one sensor's readings are compared against.
// Temperature, conductivity, light and battery use plain min/max bounds;
// moisture uses a four-tier band (Min < Lo < Hi < Max) where the outer pair
// marks a warning and the inner pair an informational drift. LightIrr is the
// irradiation ceiling above which automatic irrigation is withheld.
type Plant struct {
	Name    string `json:"name"` // sensor name, MQTT topic leaf
	Species string `json:"species,omitempty"`
	Pump    PumpID `json:"pump"`

	TempMin float64 `json:"temp_min"` // °C
	TempMax float64 `json:"temp_max"`

	CondMin int `json:"cond_min"` // µS/cm
	CondMax int `json:"cond_max"`

	MoistMin int `json:"moist_min"` // %
	MoistLo  int `json:"moist_lo"`
	MoistHi  int `json:"moist_hi"`
	MoistMax int `json:"moist_max"`

	LightMin int `json:"light_min"` // lux
	LightIrr int `json:"light_irr"`
	LightMax int `json:"light_max"`

	BattMin int `json:"batt_min"` // %
}

// Flags are the per-metric comparison results of one reading against the
// plant thresholds. MoistUnder/MoistOver are the outer-band violations that
// drive irrigation and warnings; MoistLow/MoistHigh only flag drift inside
// the tolerated band.
type Flags struct {
	BattUnder bool

	TempUnder bool
	TempOver  bool

	CondUnder bool
	CondOver  bool

	MoistUnder bool
	MoistLow   bool
	MoistHigh  bool
	MoistOver  bool

	LightUnder bool
	LightIrr   bool
	LightOver  bool
}

// Check compares a reading against the thresholds. Pure function of its
// inputs; the caller decides what to do with the flags.
func (p Plant) Check(r Reading) Flags {
	return Flags{
		BattUnder: r.Battery < p.BattMin,

		TempUnder: r.Temperature < p.TempMin,
		TempOver:  r.Temperature > p.TempMax,

		CondUnder: r.Conductivity < p.CondMin,
		CondOver:  r.Conductivity > p.CondMax,

		MoistUnder: r.Moisture < p.MoistMin,
		MoistLow:   r.Moisture >= p.MoistMin && r.Moisture < p.MoistLo,
		MoistHigh:  r.Moisture > p.MoistHi && r.Moisture <= p.MoistMax,
		MoistOver:  r.Moisture > p.MoistMax,

		LightUnder: r.Light < p.LightMin,
		LightIrr:   r.Light > p.LightIrr,
		LightOver:  r.Light > p.LightMax,
	}
}

// Any reports whether at least one flag is raised.
func (f Flags) Any() bool {
	return f != (Flags{})
}

// Names lists the raised flags under the same tokens the plant file uses
// for its thresholds, for report problem lists.
func (f Flags) Names() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(f.BattUnder, "batt_under")
	add(f.TempUnder, "temp_under")
	add(f.TempOver, "temp_over")
	add(f.CondUnder, "cond_under")
	add(f.CondOver, "cond_over")
	add(f.MoistUnder, "moist_under")
	add(f.MoistLow, "moist_low")
	add(f.MoistHigh, "moist_high")
	add(f.MoistOver, "moist_over")
	add(f.LightUnder, "light_under")
	add(f.LightIrr, "light_irr")
	add(f.LightOver, "light_over")
	return out
}

// Validate reports the first inconsistency in the thresholds.
func (p Plant) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plant without name")
	}
	if p.Pump <= 0 {
		return fmt.Errorf("plant %s: pump id must be positive, got %d", p.Name, p.Pump)
	}
	if !(p.MoistMin < p.MoistLo && p.MoistLo < p.MoistHi && p.MoistHi < p.MoistMax) {
		return fmt.Errorf("plant %s: moisture tiers must satisfy min < lo < hi < max, got %d/%d/%d/%d",
			p.Name, p.MoistMin, p.MoistLo, p.MoistHi, p.MoistMax)
	}
	if p.TempMin >= p.TempMax {
		return fmt.Errorf("plant %s: temp_min %.1f must be below temp_max %.1f", p.Name, p.TempMin, p.TempMax)
	}
	if p.CondMin >= p.CondMax {
		return fmt.Errorf("plant %s: cond_min %d must be below cond_max %d", p.Name, p.CondMin, p.CondMax)
	}
	if p.LightMin >= p.LightMax {
		return fmt.Errorf("plant %s: light_min %d must be below light_max %d", p.Name, p.LightMin, p.LightMax)
	}
	return nil
}
