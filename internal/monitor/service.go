// Package monitor runs the processing loop: it ingests sensor readings and
// control commands from the broker, evaluates alerts, drives irrigation and
// publishes status back out.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"florad/internal/alert"
	"florad/internal/config"
	"florad/internal/history"
	"florad/internal/irrigation"
	"florad/internal/metrics"
	"florad/internal/model/entities"
	"florad/internal/model/messages"
	"florad/internal/notify"
	"florad/internal/pump"
	"florad/internal/report"
	"florad/internal/sensor"
	"florad/internal/tank"
	"florad/pkg/broker"
	"florad/pkg/dedup"
)

// Readings can repeat byte-identically when a plant's values hold steady, so
// the dedup window must stay well under the sensor publish period and only
// swallow broker redeliveries.
const dedupTTL = time.Minute

// Pump is the actuation surface the monitor needs. *pump.Pump satisfies it;
// tests substitute a fake.
type Pump interface {
	irrigation.Pump
	Busy() entities.PumpBusy
	RequestManual() bool
	Status() entities.RunStatus
	Snapshot() pump.Snapshot
}

// Sender delivers report emails. *notify.Mailer satisfies it.
type Sender interface {
	Send(subject, body string) error
}

// Publishers binds one publisher per outbound topic.
type Publishers struct {
	Alert       broker.IPublisher // <base>/alert
	Report      broker.IPublisher // <base>/report, retained
	Result      broker.IPublisher // <base>/irr_result
	ManIrrStat  broker.IPublisher // <base>/man_irr_stat
	ManDurStat  broker.IPublisher // <base>/man_irr_duration_stat, retained
	AutoRepStat broker.IPublisher // <base>/auto_report_stat, retained
	AutoIrrStat broker.IPublisher // <base>/auto_irr_stat, retained
}

// Deps carries everything the service is wired to. Client, Mailer, History
// and Metrics may be nil; the matching features degrade to no-ops.
type Deps struct {
	Config    *config.Config
	Runtime   *config.Runtime
	Registry  *sensor.Registry
	Pumps     []Pump
	Scheduler *irrigation.Scheduler
	Tank      *tank.Gauge
	Client    mqtt.Client
	Consumer  broker.IConsumer
	Pub       Publishers
	Mailer    Sender
	History   *history.Writer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type Service struct {
	cfg      *config.Config
	rt       *config.Runtime
	reg      *sensor.Registry
	pumps    []Pump
	sched    *irrigation.Scheduler
	gauge    *tank.Gauge
	client   mqtt.Client
	consumer broker.IConsumer
	pub      Publishers
	mailer   Sender
	hist     *history.Writer
	metrics  *metrics.Metrics
	logger   *zap.Logger

	gate    *alert.Gate
	cats    []*category
	deduper *dedup.Deduper

	clock func() time.Time
	kick  chan struct{}

	mu         sync.RWMutex
	lastReport messages.StatusReport
	haveReport bool
}

func NewService(d Deps) (*Service, error) {
	switch {
	case d.Config == nil:
		return nil, errors.New("config is nil")
	case d.Runtime == nil:
		return nil, errors.New("runtime settings are nil")
	case d.Registry == nil:
		return nil, errors.New("sensor registry is nil")
	case len(d.Pumps) == 0:
		return nil, errors.New("no pumps")
	case d.Scheduler == nil:
		return nil, errors.New("scheduler is nil")
	case d.Tank == nil:
		return nil, errors.New("tank gauge is nil")
	case d.Consumer == nil:
		return nil, errors.New("consumer is nil")
	case d.Logger == nil:
		return nil, errors.New("logger is nil")
	}
	for _, p := range []broker.IPublisher{
		d.Pub.Alert, d.Pub.Report, d.Pub.Result, d.Pub.ManIrrStat,
		d.Pub.ManDurStat, d.Pub.AutoRepStat, d.Pub.AutoIrrStat,
	} {
		if p == nil {
			return nil, errors.New("missing publisher")
		}
	}

	if d.Mailer == nil {
		d.Mailer = (*notify.Mailer)(nil) // nil mailer drops everything
	}

	pumps := make([]Pump, len(d.Pumps))
	copy(pumps, d.Pumps)
	sort.Slice(pumps, func(i, j int) bool { return pumps[i].ID() < pumps[j].ID() })

	s := &Service{
		cfg:      d.Config,
		rt:       d.Runtime,
		reg:      d.Registry,
		pumps:    pumps,
		sched:    d.Scheduler,
		gauge:    d.Tank,
		client:   d.Client,
		consumer: d.Consumer,
		pub:      d.Pub,
		mailer:   d.Mailer,
		hist:     d.History,
		metrics:  d.Metrics,
		logger:   d.Logger,
		gate:     &alert.Gate{},
		deduper:  dedup.New(dedupTTL, 4096),
		clock:    time.Now,
		kick:     make(chan struct{}, 1),
	}
	if err := s.buildCategories(d.Config.Alerts); err != nil {
		return nil, err
	}
	s.consumer.SetHandler(s.route)
	return s, nil
}

// Topics returns the subscription map for the broker consumer: QoS 1 for
// sensor data, QoS 2 for control commands.
func Topics(cfg *config.Config, plants []entities.Plant) map[string]byte {
	topics := make(map[string]byte, len(plants)+5)
	for _, p := range plants {
		topics[cfg.SensorTopic+"/"+p.Name] = 1
	}
	for _, leaf := range []string{
		"man_report_cmd", "man_irr_cmd", "man_irr_duration_ctrl",
		"auto_report_ctrl", "auto_irr_ctrl",
	} {
		topics[cfg.BaseTopic+"/"+leaf] = 2
	}
	return topics
}

// Start runs the processing loop until the context ends. The first tick
// happens immediately; manual irrigation requests cut the sleep short.
func (s *Service) Start(ctx context.Context) {
	go s.consumer.ConsumeMessage(ctx)
	s.logger.Info("processing loop started",
		zap.Duration("period", s.cfg.ProcessingPeriod),
		zap.Int("sensors", s.reg.Len()),
		zap.Int("pumps", len(s.pumps)))

	for {
		s.tick(s.clock())

		timer := time.NewTimer(s.cfg.ProcessingPeriod)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("processing loop stopped")
			return
		case <-s.kick:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// wake cuts the current sleep short so a manual request runs promptly.
func (s *Service) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Service) tick(now time.Time) {
	started := time.Now()

	s.runManual()
	if s.rt.AutoIrrigation() {
		for _, run := range s.sched.Tick(now) {
			s.publishRun(run, messages.RunKindAuto)
		}
	}

	// Pump runs block, so alerts and the report see a fresh clock.
	now = s.clock()
	active, fired := s.checkAlerts(now)
	rep := s.buildReport(now, active)

	s.mu.Lock()
	s.lastReport = rep
	s.haveReport = true
	s.mu.Unlock()

	if fired && s.rt.AutoReport() {
		if err := s.mailer.Send(s.reportSubject(), report.Text(rep)); err != nil {
			s.logger.Warn("alert report mail failed", zap.Error(err))
		}
	}

	s.publishStats()
	s.publishReport(rep)

	for _, sn := range rep.Sensors {
		s.metrics.SensorValid(sn.Name, sn.Valid)
	}
	s.metrics.TankLevel(float64(s.gauge.Current()))
	s.metrics.TickDuration(time.Since(started))
}

// runManual drains pending manual irrigation requests, one blocking run per
// requested pump. Manual runs do not touch the automatic rest timestamp.
func (s *Service) runManual() {
	for _, p := range s.pumps {
		if p.Busy() != entities.BusyManual {
			continue
		}
		d := s.rt.ManualDuration()
		s.logger.Info("manual irrigation",
			zap.Stringer("pump", p.ID()), zap.Duration("duration", d))

		startedAt := s.clock()
		status := p.PowerOn(d)
		p.Release()

		s.statPub(s.pub.ManIrrStat, "0")
		s.publishRun(irrigation.Run{
			Pump:     p.ID(),
			Duration: d,
			Status:   status,
			Started:  startedAt,
			Finished: s.clock(),
		}, messages.RunKindManual)
	}
}

func (s *Service) publishRun(run irrigation.Run, kind string) {
	evt := messages.IrrigationResultEvent{
		ID:        uuid.NewString(),
		Pump:      run.Pump,
		Kind:      kind,
		DurationS: int(run.Duration / time.Second),
		Status:    run.Status.String(),
		StartedAt: run.Started,
		Timestamp: run.Finished,
	}
	s.publishJSON(s.pub.Result, evt)
	s.metrics.IrrigationRun(run.Pump.String(), kind, evt.Status)
	s.hist.Write(history.KindIrrigation, history.RunPoint(evt))
}

// checkAlerts evaluates every category filter against the current state.
// It returns the names of the active categories and whether any fired.
func (s *Service) checkAlerts(now time.Time) (active []string, fired bool) {
	for _, c := range s.cats {
		cur, subjects := c.vector(now)
		if cur != 0 {
			active = append(active, c.filter.Name())
		}
		if !c.filter.Check(now, cur) {
			continue
		}
		fired = true

		evt := messages.AlertEvent{
			ID:        uuid.NewString(),
			Category:  c.filter.Name(),
			Subjects:  subjects,
			Message:   c.label + ": " + strings.Join(subjects, ", "),
			Timestamp: now,
		}
		s.logger.Warn("alert",
			zap.String("category", evt.Category), zap.Strings("subjects", subjects))
		s.publishJSON(s.pub.Alert, evt)
		s.metrics.Alert(evt.Category)
		s.hist.Write(history.KindAlert, history.AlertPoint(evt))
	}
	return active, fired
}

func (s *Service) buildReport(now time.Time, active []string) messages.StatusReport {
	snaps := make([]sensor.Snapshot, 0, s.reg.Len())
	for _, sn := range s.reg.All() {
		snaps = append(snaps, sn.Snapshot(now))
	}
	ps := make([]pump.Snapshot, 0, len(s.pumps))
	for _, p := range s.pumps {
		ps = append(ps, p.Snapshot())
	}
	return report.Build(report.Input{
		Now:       now,
		Sensors:   snaps,
		Pumps:     ps,
		Tank:      s.gauge.Current(),
		Scheduled: s.sched.Scheduled(),
		Rest:      s.cfg.IrrigationRest,
		Alerts:    active,
		Settings: messages.ReportSettings{
			AutoReport:        s.rt.AutoReport(),
			AutoIrrigation:    s.rt.AutoIrrigation(),
			ManualDurationS:   int(s.rt.ManualDuration() / time.Second),
			ProcessingPeriodS: int(s.cfg.ProcessingPeriod / time.Second),
		},
	})
}

func (s *Service) reportSubject() string {
	return fmt.Sprintf("flora status (%s)", s.cfg.BaseTopic)
}

func (s *Service) publishStats() {
	s.statPub(s.pub.AutoRepStat, boolPayload(s.rt.AutoReport()))
	s.statPub(s.pub.AutoIrrStat, boolPayload(s.rt.AutoIrrigation()))
	s.statPub(s.pub.ManDurStat, strconv.Itoa(int(s.rt.ManualDuration()/time.Second)))
	s.statPub(s.pub.ManIrrStat, "0")
}

func (s *Service) publishReport(rep messages.StatusReport) {
	s.publishJSON(s.pub.Report, rep)
}

func (s *Service) publishJSON(p broker.IPublisher, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal for publish", zap.String("topic", p.Topic()), zap.Error(err))
		return
	}
	if err := p.PublishMessage(b); err != nil {
		s.logger.Warn("publish failed", zap.String("topic", p.Topic()), zap.Error(err))
	}
}

func (s *Service) statPub(p broker.IPublisher, payload string) {
	if err := p.PublishMessage(payload); err != nil {
		s.logger.Warn("publish failed", zap.String("topic", p.Topic()), zap.Error(err))
	}
}

func (s *Service) pumpByID(id entities.PumpID) Pump {
	for _, p := range s.pumps {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

func boolPayload(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
