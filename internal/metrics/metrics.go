// Package metrics exposes the Prometheus instrumentation for the daemon.
// A nil *Metrics disables instrumentation without any guards at call sites.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"florad/internal/model/entities"
)

type Metrics struct {
	alertsTotal   *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	readingsTotal *prometheus.CounterVec
	sensorValue   *prometheus.GaugeVec
	sensorValid   *prometheus.GaugeVec
	tankLevel     prometheus.Gauge
	tickDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "florad_alerts_total",
			Help: "Total count of fired alerts by category.",
		}, []string{"category"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "florad_irrigation_runs_total",
			Help: "Total count of pump runs by pump, kind and outcome.",
		}, []string{"pump", "kind", "status"}),
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "florad_readings_total",
			Help: "Total count of sensor samples by sensor and outcome.",
		}, []string{"sensor", "outcome"}),
		sensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "florad_sensor_value",
			Help: "Last accepted sensor value by sensor and metric name.",
		}, []string{"sensor", "metric"}),
		sensorValid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "florad_sensor_valid",
			Help: "Sensor validity gauge (1 fresh, 0 stale or never seen).",
		}, []string{"sensor"}),
		tankLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "florad_tank_level",
			Help: "Water tank level gauge (0 ok, 1 low, 2 empty).",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "florad_tick_duration_seconds",
			Help:    "Histogram of processing tick durations.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.alertsTotal,
		m.runsTotal,
		m.readingsTotal,
		m.sensorValue,
		m.sensorValid,
		m.tankLevel,
		m.tickDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) Alert(category string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) IrrigationRun(pump, kind, status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(pump, kind, status).Inc()
}

func (m *Metrics) ReadingAccepted(sensor string, r entities.Reading) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(sensor, "accepted").Inc()
	m.sensorValue.WithLabelValues(sensor, "temperature").Set(r.Temperature)
	m.sensorValue.WithLabelValues(sensor, "conductivity").Set(float64(r.Conductivity))
	m.sensorValue.WithLabelValues(sensor, "moisture").Set(float64(r.Moisture))
	m.sensorValue.WithLabelValues(sensor, "light").Set(float64(r.Light))
	m.sensorValue.WithLabelValues(sensor, "battery").Set(float64(r.Battery))
}

func (m *Metrics) ReadingRejected(sensor string) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(sensor, "rejected").Inc()
}

func (m *Metrics) SensorValid(sensor string, valid bool) {
	if m == nil {
		return
	}
	v := 0.0
	if valid {
		v = 1.0
	}
	m.sensorValid.WithLabelValues(sensor).Set(v)
}

func (m *Metrics) TankLevel(level float64) {
	if m == nil {
		return
	}
	m.tankLevel.Set(level)
}

func (m *Metrics) TickDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
