package monitor

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"florad/internal/history"
	"florad/internal/model/entities"
	"florad/internal/report"
	"florad/pkg/dedup"
)

// route dispatches every subscribed message. Broker callbacks run on paho's
// goroutines; everything touched here is safe against the tick loop.
func (s *Service) route(topic string, msg mqtt.Message) error {
	base := s.cfg.BaseTopic + "/"
	switch topic {
	case base + "man_report_cmd":
		return s.handleManReport()
	case base + "man_irr_cmd":
		return s.handleManIrr(msg)
	case base + "man_irr_duration_ctrl":
		return s.handleManDuration(msg)
	case base + "auto_report_ctrl":
		return s.handleAutoReport(msg)
	case base + "auto_irr_ctrl":
		return s.handleAutoIrr(msg)
	}

	if name, ok := s.sensorName(topic); ok {
		return s.handleSensor(name, msg)
	}
	s.logger.Debug("unhandled topic", zap.String("topic", topic))
	return nil
}

// sensorName extracts the sensor leaf from a sensor-data topic. Only direct
// children of the sensor base are sensor payloads.
func (s *Service) sensorName(topic string) (string, bool) {
	prefix := s.cfg.SensorTopic + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(topic, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// handleSensor ingests one telemetry sample. Sensor data arrives at QoS 1,
// so byte-identical redeliveries are dropped before parsing.
func (s *Service) handleSensor(name string, msg mqtt.Message) error {
	if !s.deduper.ShouldProcess(dedup.Key(msg.Topic(), msg.Payload())) {
		return nil
	}
	sn, ok := s.reg.Get(name)
	if !ok {
		s.logger.Debug("reading for unknown sensor", zap.String("sensor", name))
		return nil
	}

	var r entities.Reading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		s.logger.Warn("bad sensor payload",
			zap.String("sensor", name), zap.Error(err))
		return nil
	}

	now := s.clock()
	if !sn.Update(now, r) {
		s.logger.Debug("reading rejected as glitch",
			zap.String("sensor", name), zap.Int("moisture", r.Moisture))
		s.metrics.ReadingRejected(name)
		return nil
	}

	s.logger.Debug("reading accepted",
		zap.String("sensor", name),
		zap.Float64("temperature", r.Temperature),
		zap.Int("moisture", r.Moisture))
	s.metrics.ReadingAccepted(name, r)
	s.hist.Write(history.KindReading,
		history.ReadingPoint(name, sn.Plant().Species, sn.Pump(), r, now))
	return nil
}

// handleManReport publishes a fresh status report and mails it. The alert
// list is carried over from the last tick; filters only run on the loop.
func (s *Service) handleManReport() error {
	s.logger.Info("manual report requested")
	s.mu.RLock()
	active := s.lastReport.Alerts
	s.mu.RUnlock()

	rep := s.buildReport(s.clock(), active)
	s.mu.Lock()
	s.lastReport = rep
	s.haveReport = true
	s.mu.Unlock()

	s.publishReport(rep)
	return s.mailer.Send(s.reportSubject(), report.Text(rep))
}

// handleManIrr marks a pump for a manual run and wakes the loop. An empty
// payload targets the first pump.
func (s *Service) handleManIrr(msg mqtt.Message) error {
	raw := strings.TrimSpace(string(msg.Payload()))

	p := s.pumps[0]
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.logger.Warn("bad manual irrigation payload", zap.String("payload", raw))
			return nil
		}
		if p = s.pumpByID(entities.PumpID(n)); p == nil {
			s.logger.Warn("manual irrigation for unknown pump", zap.Int("pump", n))
			return nil
		}
	}

	if !p.RequestManual() {
		s.logger.Info("pump busy, ignoring manual request",
			zap.Stringer("pump", p.ID()), zap.Stringer("busy", p.Busy()))
		return nil
	}
	s.logger.Info("manual irrigation requested", zap.Stringer("pump", p.ID()))
	s.statPub(s.pub.ManIrrStat, "1")
	s.wake()
	return nil
}

// handleManDuration updates the manual run duration and echoes the payload.
func (s *Service) handleManDuration(msg mqtt.Message) error {
	raw := strings.TrimSpace(string(msg.Payload()))
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		s.logger.Warn("bad manual duration payload", zap.String("payload", raw))
		return nil
	}
	s.rt.SetManualDuration(time.Duration(n) * time.Second)
	s.logger.Info("manual duration set", zap.Int("seconds", n))
	s.statPub(s.pub.ManDurStat, raw)
	return nil
}

func (s *Service) handleAutoReport(msg mqtt.Message) error {
	on, ok := s.parseSwitch(msg)
	if !ok {
		return nil
	}
	s.rt.SetAutoReport(on)
	s.logger.Info("auto report set", zap.Bool("on", on))
	s.statPub(s.pub.AutoRepStat, boolPayload(on))
	return nil
}

func (s *Service) handleAutoIrr(msg mqtt.Message) error {
	on, ok := s.parseSwitch(msg)
	if !ok {
		return nil
	}
	s.rt.SetAutoIrrigation(on)
	s.logger.Info("auto irrigation set", zap.Bool("on", on))
	s.statPub(s.pub.AutoIrrStat, boolPayload(on))
	return nil
}

func (s *Service) parseSwitch(msg mqtt.Message) (on, ok bool) {
	raw := strings.TrimSpace(string(msg.Payload()))
	n, err := strconv.Atoi(raw)
	if err != nil {
		s.logger.Warn("bad switch payload",
			zap.String("topic", msg.Topic()), zap.String("payload", raw))
		return false, false
	}
	return n != 0, true
}
