package entities

// Reading is one telemetry sample as delivered by the sensor gateway
// (miflora-mqtt-daemon payload format).
type Reading struct {
	Temperature  float64 `json:"temperature"`  // °C
	Conductivity int     `json:"conductivity"` // µS/cm
	Moisture     int     `json:"moisture"`     // %
	Light        int     `json:"light"`        // lux
	Battery      int     `json:"battery"`      // %
}
