package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"florad/internal/config"
	"florad/internal/gpio"
	"florad/internal/irrigation"
	"florad/internal/model/entities"
	"florad/internal/model/messages"
	"florad/internal/pump"
	"florad/internal/sensor"
	"florad/internal/tank"
	"florad/pkg/broker"
)

// ---------- fakes ----------

type testMsg struct {
	topic   string
	payload []byte
}

func (m *testMsg) Duplicate() bool   { return false }
func (m *testMsg) Qos() byte         { return 1 }
func (m *testMsg) Retained() bool    { return false }
func (m *testMsg) Topic() string     { return m.topic }
func (m *testMsg) MessageID() uint16 { return 0 }
func (m *testMsg) Payload() []byte   { return m.payload }
func (m *testMsg) Ack()              {}

type fakePub struct {
	mu   sync.Mutex
	name string
	msgs []string
}

func (f *fakePub) PublishMessage(message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := message.(type) {
	case []byte:
		f.msgs = append(f.msgs, string(v))
	case string:
		f.msgs = append(f.msgs, v)
	}
	return nil
}

func (f *fakePub) Topic() string { return f.name }

func (f *fakePub) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type fakeConsumer struct {
	handler broker.Handler
}

func (f *fakeConsumer) SetHandler(h broker.Handler)        { f.handler = h }
func (f *fakeConsumer) ConsumeMessage(ctx context.Context) { <-ctx.Done() }

type fakeMailer struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (f *fakeMailer) Send(subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subjects)
}

type fakePump struct {
	mu        sync.Mutex
	id        entities.PumpID
	autoDur   time.Duration
	busy      entities.PumpBusy
	status    entities.RunStatus
	lastRun   time.Time
	runs      []time.Duration
	runStatus entities.RunStatus
}

func newFakePump(id entities.PumpID) *fakePump {
	return &fakePump{id: id, autoDur: 120 * time.Second, runStatus: entities.RunOK}
}

func (p *fakePump) ID() entities.PumpID         { return p.id }
func (p *fakePump) AutoDuration() time.Duration { return p.autoDur }

func (p *fakePump) PowerOn(d time.Duration) entities.RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, d)
	p.status = p.runStatus
	return p.runStatus
}

func (p *fakePump) BeginAuto() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy != entities.BusyIdle {
		return false
	}
	p.busy = entities.BusyAuto
	return true
}

func (p *fakePump) RequestManual() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy != entities.BusyIdle {
		return false
	}
	p.busy = entities.BusyManual
	return true
}

func (p *fakePump) Release() {
	p.mu.Lock()
	p.busy = entities.BusyIdle
	p.mu.Unlock()
}

func (p *fakePump) MarkAutoRun(now time.Time) {
	p.mu.Lock()
	p.lastRun = now
	p.mu.Unlock()
}

func (p *fakePump) LastAutoRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}

func (p *fakePump) Busy() entities.PumpBusy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *fakePump) Status() entities.RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *fakePump) Snapshot() pump.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pump.Snapshot{ID: p.id, Status: p.status, Busy: p.busy, LastRun: p.lastRun}
}

func (p *fakePump) runCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

// ---------- harness ----------

type harness struct {
	t      *testing.T
	now    time.Time
	cfg    *config.Config
	rt     *config.Runtime
	reg    *sensor.Registry
	io     *gpio.Memory
	pump1  *fakePump
	pump2  *fakePump
	mailer *fakeMailer
	svc    *Service

	alert, report, result            *fakePub
	manIrr, manDur, autoRep, autoIrr *fakePub
}

func testPlant(name string, id entities.PumpID) entities.Plant {
	return entities.Plant{
		Name: name, Pump: id,
		TempMin: 5, TempMax: 40,
		CondMin: 100, CondMax: 3000,
		MoistMin: 20, MoistLo: 25, MoistHi: 55, MoistMax: 60,
		LightMin: 100, LightIrr: 50000, LightMax: 60000,
		BattMin: 5,
	}
}

func newHarness(t *testing.T, modes config.AlertModes) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		cfg: &config.Config{
			BaseTopic:        "flora",
			SensorTopic:      "miflora",
			ProcessingPeriod: 300 * time.Second,
			MessageTimeout:   15 * time.Minute,
			AutoReport:       true,
			AutoIrrigation:   true,
			ManualDuration:   60 * time.Second,
			IrrigationRest:   2 * time.Hour,
			DeferTime:        4 * time.Hour,
			RepeatTime:       24 * time.Hour,
			Alerts:           modes,
		},
		io:     gpio.NewMemory(),
		pump1:  newFakePump(1),
		pump2:  newFakePump(2),
		mailer: &fakeMailer{},

		alert:   &fakePub{name: "flora/alert"},
		report:  &fakePub{name: "flora/report"},
		result:  &fakePub{name: "flora/irr_result"},
		manIrr:  &fakePub{name: "flora/man_irr_stat"},
		manDur:  &fakePub{name: "flora/man_irr_duration_stat"},
		autoRep: &fakePub{name: "flora/auto_report_stat"},
		autoIrr: &fakePub{name: "flora/auto_irr_stat"},
	}
	h.rt = config.NewRuntime(h.cfg)

	reg, err := sensor.NewRegistry(
		[]entities.Plant{testPlant("rose1", 1), testPlant("basil", 2)},
		h.cfg.MessageTimeout)
	if err != nil {
		t.Fatal(err)
	}
	h.reg = reg

	gauge := tank.NewGauge(h.io, 23, 24)
	sched := irrigation.NewScheduler(
		[]irrigation.Pump{h.pump1, h.pump2}, reg,
		h.cfg.IrrigationRest, h.cfg.Night, time.UTC, zap.NewNop())

	svc, err := NewService(Deps{
		Config:    h.cfg,
		Runtime:   h.rt,
		Registry:  reg,
		Pumps:     []Pump{h.pump1, h.pump2},
		Scheduler: sched,
		Tank:      gauge,
		Consumer:  &fakeConsumer{},
		Pub: Publishers{
			Alert:       h.alert,
			Report:      h.report,
			Result:      h.result,
			ManIrrStat:  h.manIrr,
			ManDurStat:  h.manDur,
			AutoRepStat: h.autoRep,
			AutoIrrStat: h.autoIrr,
		},
		Mailer: h.mailer,
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	svc.clock = func() time.Time { return h.now }
	h.svc = svc
	return h
}

func (h *harness) feed(name, payload string) {
	h.t.Helper()
	topic := h.cfg.SensorTopic + "/" + name
	if err := h.svc.route(topic, &testMsg{topic: topic, payload: []byte(payload)}); err != nil {
		h.t.Fatalf("route %s: %v", topic, err)
	}
}

func (h *harness) command(leaf, payload string) {
	h.t.Helper()
	topic := h.cfg.BaseTopic + "/" + leaf
	if err := h.svc.route(topic, &testMsg{topic: topic, payload: []byte(payload)}); err != nil {
		h.t.Fatalf("route %s: %v", topic, err)
	}
}

const (
	okReading  = `{"temperature":21.5,"conductivity":420,"moisture":40,"light":600,"battery":80}`
	dryReading = `{"temperature":21.5,"conductivity":420,"moisture":10,"light":600,"battery":80}`
)

// ---------- tests ----------

func TestTickFiresAlertAndMails(t *testing.T) {
	h := newHarness(t, config.AlertModes{MoistureWarn: 1})
	h.rt.SetAutoIrrigation(false)

	h.feed("rose1", dryReading)
	h.feed("basil", okReading)
	h.svc.tick(h.now)

	msgs := h.alert.all()
	if len(msgs) != 1 {
		t.Fatalf("alerts published = %d, want 1", len(msgs))
	}
	var evt messages.AlertEvent
	if err := json.Unmarshal([]byte(msgs[0]), &evt); err != nil {
		t.Fatalf("alert payload: %v", err)
	}
	if evt.Category != "moisture_warning" {
		t.Fatalf("category = %q", evt.Category)
	}
	if len(evt.Subjects) != 1 || evt.Subjects[0] != "rose1" {
		t.Fatalf("subjects = %v", evt.Subjects)
	}
	if evt.Message != "moisture out of range: rose1" {
		t.Fatalf("message = %q", evt.Message)
	}
	if h.mailer.count() != 1 {
		t.Fatalf("mails = %d, want 1", h.mailer.count())
	}
	if h.mailer.subjects[0] != "flora status (flora)" {
		t.Fatalf("subject = %q", h.mailer.subjects[0])
	}

	// Condition persists: mode 1 fires on the edge only.
	h.now = h.now.Add(5 * time.Minute)
	h.svc.tick(h.now)
	if got := len(h.alert.all()); got != 1 {
		t.Fatalf("alerts after second tick = %d, want 1", got)
	}
	if h.mailer.count() != 1 {
		t.Fatalf("mails after second tick = %d, want 1", h.mailer.count())
	}
}

func TestTickRunsScheduledIrrigation(t *testing.T) {
	h := newHarness(t, config.AlertModes{})

	h.feed("rose1", dryReading)
	h.feed("basil", okReading)
	h.svc.tick(h.now)

	if h.pump1.runCount() != 1 {
		t.Fatalf("pump-1 runs = %d, want 1", h.pump1.runCount())
	}
	if h.pump1.runs[0] != h.pump1.autoDur {
		t.Fatalf("run duration = %v, want %v", h.pump1.runs[0], h.pump1.autoDur)
	}
	if h.pump2.runCount() != 0 {
		t.Fatalf("pump-2 must stay off, ran %d times", h.pump2.runCount())
	}

	msgs := h.result.all()
	if len(msgs) != 1 {
		t.Fatalf("run events = %d, want 1", len(msgs))
	}
	var evt messages.IrrigationResultEvent
	if err := json.Unmarshal([]byte(msgs[0]), &evt); err != nil {
		t.Fatalf("run payload: %v", err)
	}
	if evt.Pump != 1 || evt.Kind != messages.RunKindAuto || evt.Status != "ok" {
		t.Fatalf("run event = %+v", evt)
	}
	if evt.DurationS != 120 {
		t.Fatalf("duration_s = %d, want 120", evt.DurationS)
	}
}

func TestTickSkipsIrrigationWhenDisabled(t *testing.T) {
	h := newHarness(t, config.AlertModes{})
	h.rt.SetAutoIrrigation(false)

	h.feed("rose1", dryReading)
	h.svc.tick(h.now)

	if h.pump1.runCount() != 0 {
		t.Fatalf("pump-1 ran %d times with auto irrigation off", h.pump1.runCount())
	}
}

func TestManualIrrigationFlow(t *testing.T) {
	h := newHarness(t, config.AlertModes{})
	h.rt.SetAutoIrrigation(false)

	h.command("man_irr_cmd", "2")
	if h.pump2.Busy() != entities.BusyManual {
		t.Fatalf("pump-2 busy = %v, want manual", h.pump2.Busy())
	}
	if got := h.manIrr.all(); len(got) != 1 || got[0] != "1" {
		t.Fatalf("man_irr_stat after request = %v", got)
	}
	if len(h.svc.kick) != 1 {
		t.Fatal("manual request must wake the loop")
	}

	// Duplicate request while busy is ignored.
	h.command("man_irr_cmd", "2")
	if got := h.manIrr.all(); len(got) != 1 {
		t.Fatalf("busy pump re-announced: %v", got)
	}

	h.svc.tick(h.now)

	if h.pump2.runCount() != 1 || h.pump2.runs[0] != 60*time.Second {
		t.Fatalf("pump-2 runs = %v", h.pump2.runs)
	}
	if h.pump2.Busy() != entities.BusyIdle {
		t.Fatalf("pump-2 busy after run = %v", h.pump2.Busy())
	}
	// Manual runs do not touch the automatic rest timestamp.
	if !h.pump2.LastAutoRun().IsZero() {
		t.Fatal("manual run must not mark an auto run")
	}

	var evt messages.IrrigationResultEvent
	msgs := h.result.all()
	if len(msgs) != 1 {
		t.Fatalf("run events = %d, want 1", len(msgs))
	}
	if err := json.Unmarshal([]byte(msgs[0]), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Pump != 2 || evt.Kind != messages.RunKindManual || evt.DurationS != 60 {
		t.Fatalf("run event = %+v", evt)
	}

	// Stat sequence: armed, finished, then the periodic idle echo.
	if got := h.manIrr.all(); len(got) != 3 || got[1] != "0" || got[2] != "0" {
		t.Fatalf("man_irr_stat sequence = %v", got)
	}
}

func TestManualIrrigationBadPayloads(t *testing.T) {
	h := newHarness(t, config.AlertModes{})

	h.command("man_irr_cmd", "9")
	h.command("man_irr_cmd", "banana")
	if h.pump1.Busy() != entities.BusyIdle || h.pump2.Busy() != entities.BusyIdle {
		t.Fatal("bad payloads must not arm any pump")
	}

	// Empty payload targets the first pump.
	h.command("man_irr_cmd", "")
	if h.pump1.Busy() != entities.BusyManual {
		t.Fatalf("pump-1 busy = %v, want manual", h.pump1.Busy())
	}
}

func TestSensorIngestDedupAndGlitch(t *testing.T) {
	h := newHarness(t, config.AlertModes{})

	h.feed("rose1", okReading)
	sn, _ := h.reg.Get("rose1")
	if got := sn.Snapshot(h.now).Seen; !got.Equal(h.now) {
		t.Fatalf("seen = %v, want %v", got, h.now)
	}
	first := h.now

	// Byte-identical redelivery is dropped.
	h.now = h.now.Add(10 * time.Second)
	h.feed("rose1", okReading)
	if got := sn.Snapshot(h.now).Seen; !got.Equal(first) {
		t.Fatalf("redelivery accepted, seen = %v", got)
	}

	// Moisture crash to zero is rejected as a glitch.
	h.now = h.now.Add(10 * time.Second)
	h.feed("rose1", `{"temperature":21.5,"conductivity":420,"moisture":0,"light":600,"battery":80}`)
	snap := sn.Snapshot(h.now)
	if !snap.Seen.Equal(first) || snap.Reading.Moisture != 40 {
		t.Fatalf("glitch accepted: %+v", snap)
	}

	// Unknown sensors and broken payloads are ignored without error.
	h.feed("cactus", okReading)
	h.feed("rose1", "{not json")
}

func TestControlSwitches(t *testing.T) {
	h := newHarness(t, config.AlertModes{})

	h.command("auto_irr_ctrl", "0")
	if h.rt.AutoIrrigation() {
		t.Fatal("auto irrigation still on")
	}
	if got := h.autoIrr.all(); len(got) != 1 || got[0] != "0" {
		t.Fatalf("auto_irr_stat = %v", got)
	}

	h.command("auto_report_ctrl", "0")
	if h.rt.AutoReport() {
		t.Fatal("auto report still on")
	}

	h.command("man_irr_duration_ctrl", "90")
	if h.rt.ManualDuration() != 90*time.Second {
		t.Fatalf("manual duration = %v", h.rt.ManualDuration())
	}
	if got := h.manDur.all(); len(got) != 1 || got[0] != "90" {
		t.Fatalf("man_irr_duration_stat = %v", got)
	}

	// Garbage leaves settings untouched.
	h.command("man_irr_duration_ctrl", "-5")
	h.command("auto_irr_ctrl", "maybe")
	if h.rt.ManualDuration() != 90*time.Second || h.rt.AutoIrrigation() {
		t.Fatal("bad payloads changed settings")
	}
}

func TestManualReportCommand(t *testing.T) {
	h := newHarness(t, config.AlertModes{})
	h.feed("rose1", okReading)

	h.command("man_report_cmd", "")
	if h.mailer.count() != 1 {
		t.Fatalf("mails = %d, want 1", h.mailer.count())
	}
	msgs := h.report.all()
	if len(msgs) != 1 {
		t.Fatalf("reports = %d, want 1", len(msgs))
	}
	var rep messages.StatusReport
	if err := json.Unmarshal([]byte(msgs[0]), &rep); err != nil {
		t.Fatalf("report payload: %v", err)
	}
	if len(rep.Sensors) != 2 {
		t.Fatalf("report sensors = %d, want 2", len(rep.Sensors))
	}
}

func TestTickPublishesStatsAndReport(t *testing.T) {
	h := newHarness(t, config.AlertModes{})
	h.rt.SetAutoIrrigation(false)

	h.feed("rose1", okReading)
	h.feed("basil", okReading)
	h.svc.tick(h.now)

	if got := h.autoRep.all(); len(got) != 1 || got[0] != "1" {
		t.Fatalf("auto_report_stat = %v", got)
	}
	if got := h.autoIrr.all(); len(got) != 1 || got[0] != "0" {
		t.Fatalf("auto_irr_stat = %v", got)
	}
	if got := h.manDur.all(); len(got) != 1 || got[0] != "60" {
		t.Fatalf("man_irr_duration_stat = %v", got)
	}

	msgs := h.report.all()
	if len(msgs) != 1 {
		t.Fatalf("reports = %d, want 1", len(msgs))
	}
	var rep messages.StatusReport
	if err := json.Unmarshal([]byte(msgs[0]), &rep); err != nil {
		t.Fatalf("report payload: %v", err)
	}
	if len(rep.Sensors) != 2 || len(rep.Pumps) != 2 {
		t.Fatalf("report = %d sensors, %d pumps", len(rep.Sensors), len(rep.Pumps))
	}
	if rep.Tank != "ok" {
		t.Fatalf("tank = %q", rep.Tank)
	}
	if !rep.Settings.AutoReport || rep.Settings.AutoIrrigation {
		t.Fatalf("settings = %+v", rep.Settings)
	}
}

func TestTankAlertUsesGaugePins(t *testing.T) {
	h := newHarness(t, config.AlertModes{TankLow: 1})
	h.rt.SetAutoIrrigation(false)

	h.io.Write(23, true)
	h.svc.tick(h.now)

	msgs := h.alert.all()
	if len(msgs) != 1 {
		t.Fatalf("alerts = %d, want 1", len(msgs))
	}
	var evt messages.AlertEvent
	if err := json.Unmarshal([]byte(msgs[0]), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Category != "tank_low" || len(evt.Subjects) != 1 || evt.Subjects[0] != "tank" {
		t.Fatalf("alert = %+v", evt)
	}
}

func TestStatusEndpoints(t *testing.T) {
	h := newHarness(t, config.AlertModes{})
	h.rt.SetAutoIrrigation(false)

	mux := http.NewServeMux()
	h.svc.Routes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	if w := get("/status"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/status before tick = %d", w.Code)
	}
	if w := get("/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz before tick = %d", w.Code)
	}

	h.feed("rose1", okReading)
	h.svc.tick(h.now)

	w := get("/status")
	if w.Code != http.StatusOK {
		t.Fatalf("/status = %d", w.Code)
	}
	var rep messages.StatusReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("status body: %v", err)
	}
	if len(rep.Sensors) != 2 {
		t.Fatalf("status sensors = %d", len(rep.Sensors))
	}

	// No MQTT client wired: alive but degraded.
	w = get("/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("/healthz = %d", w.Code)
	}
	var hs struct {
		Status        string `json:"status"`
		MQTTConnected bool   `json:"mqtt_connected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hs); err != nil {
		t.Fatal(err)
	}
	if hs.Status != "degraded" || hs.MQTTConnected {
		t.Fatalf("health = %+v", hs)
	}
}
