package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"

	"florad/internal/config"
	"florad/internal/gpio"
	"florad/internal/history"
	"florad/internal/irrigation"
	"florad/internal/metrics"
	"florad/internal/monitor"
	"florad/internal/notify"
	"florad/internal/pump"
	"florad/internal/sensor"
	"florad/internal/tank"
	"florad/pkg/broker"
)

const shutdownGrace = 5 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	plants, err := config.LoadPlants(cfg.PlantsConfig)
	if err != nil {
		logger.Fatal("load plant descriptors",
			zap.String("path", cfg.PlantsConfig), zap.Error(err))
	}

	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			logger.Warn("unknown timezone, using local",
				zap.String("timezone", cfg.Timezone), zap.Error(err))
		} else {
			loc = l
		}
	}

	var io gpio.Conn
	if cfg.GPIODriver == "memory" {
		io = gpio.NewMemory()
		logger.Info("using in-memory gpio")
	} else {
		io, err = gpio.OpenRPIO()
		if err != nil {
			logger.Fatal("open gpio", zap.Error(err))
		}
	}
	defer io.Close()

	gauge := tank.NewGauge(io, cfg.PinTankLow, cfg.PinTankEmpty)

	reg, err := sensor.NewRegistry(plants.Sensors, cfg.MessageTimeout)
	if err != nil {
		logger.Fatal("build sensor registry", zap.Error(err))
	}

	pumps := make([]monitor.Pump, 0, len(plants.Pumps))
	schedPumps := make([]irrigation.Pump, 0, len(plants.Pumps))
	for _, pc := range plants.Pumps {
		p := pump.New(pc, io, gauge, logger)
		pumps = append(pumps, p)
		schedPumps = append(schedPumps, p)
	}
	sched := irrigation.NewScheduler(schedPumps, reg, cfg.IrrigationRest, cfg.Night, loc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := broker.Connect(ctx, cfg.MQTT, logger)
	if err != nil {
		logger.Fatal("connect broker", zap.Error(err))
	}
	defer client.Disconnect(250)

	var influx influxdb2.Client
	var writer *history.Writer
	if cfg.Influx.URL != "" {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.Influx.BatchSize)).
			SetFlushInterval(uint(cfg.Influx.FlushInterval.Milliseconds()))
		influx = influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
		defer influx.Close()
		writer = history.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), logger)
		logger.Info("history writer enabled",
			zap.String("url", cfg.Influx.URL), zap.String("bucket", cfg.Influx.Bucket))
	}

	var mailer *notify.Mailer
	if cfg.SMTP.Host != "" {
		mailer = notify.NewMailer(cfg.SMTP, logger)
		logger.Info("mailer enabled",
			zap.String("host", cfg.SMTP.Host), zap.Strings("to", cfg.SMTP.To))
	}

	consumer := broker.NewConsumer(client, monitor.Topics(cfg, plants.Sensors), nil, logger)

	base := cfg.BaseTopic + "/"
	pubs := monitor.Publishers{
		Alert:       broker.NewPublisher(client, base+"alert", 2, false, logger),
		Report:      broker.NewPublisher(client, base+"report", 2, true, logger),
		Result:      broker.NewPublisher(client, base+"irr_result", 1, false, logger),
		ManIrrStat:  broker.NewPublisher(client, base+"man_irr_stat", 2, false, logger),
		ManDurStat:  broker.NewPublisher(client, base+"man_irr_duration_stat", 2, true, logger),
		AutoRepStat: broker.NewPublisher(client, base+"auto_report_stat", 2, true, logger),
		AutoIrrStat: broker.NewPublisher(client, base+"auto_irr_stat", 2, true, logger),
	}

	svc, err := monitor.NewService(monitor.Deps{
		Config:    cfg,
		Runtime:   config.NewRuntime(cfg),
		Registry:  reg,
		Pumps:     pumps,
		Scheduler: sched,
		Tank:      gauge,
		Client:    client,
		Consumer:  consumer,
		Pub:       pubs,
		Mailer:    mailer,
		History:   writer,
		Metrics:   metrics.NewMetrics(),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("assemble monitor", zap.Error(err))
	}

	mux := http.NewServeMux()
	svc.Routes(mux)
	if influx != nil {
		mux.Handle("/history/runs", history.NewRunsHandler(influx, cfg.Influx.Org, cfg.Influx.Bucket))
	}
	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	go svc.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shCancel()
	if err := hs.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	writer.Flush()
}
