package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"florad/internal/config"
	"florad/internal/model/entities"
)

var (
	period = flag.Duration("period", 30*time.Second, "publish interval per sensor")
	decay  = flag.Float64("decay", 0.2, "moisture decay in percent points per minute")
	seed   = flag.Int64("seed", 0, "random seed, 0 uses the clock")
)

// walker random-walks one sensor's readings. Moisture dries at a constant
// rate and rewets once it falls well below the plant minimum, as if someone
// watered; light and temperature follow the hour of day; battery drains one
// percent per day so the battery alert eventually trips on a long run.
type walker struct {
	plant    entities.Plant
	rng      *rand.Rand
	start    time.Time
	moisture float64
	cond     float64
}

func newWalker(p entities.Plant, rng *rand.Rand, now time.Time) *walker {
	return &walker{
		plant:    p,
		rng:      rng,
		start:    now,
		moisture: float64(p.MoistLo+p.MoistHi) / 2,
		cond:     float64(p.CondMin+p.CondMax) / 2,
	}
}

func (w *walker) next(now time.Time, dt time.Duration, decayPerMin float64) entities.Reading {
	w.moisture -= decayPerMin * dt.Minutes()
	if w.moisture < float64(w.plant.MoistMin)-5 {
		w.moisture = float64(w.plant.MoistLo+w.plant.MoistHi) / 2
	}

	w.cond = clamp(w.cond+(w.rng.Float64()-0.5)*20,
		float64(w.plant.CondMin)-50, float64(w.plant.CondMax)+50)

	hour := float64(now.Hour()) + float64(now.Minute())/60
	var light float64
	if hour > 6 && hour < 20 {
		light = math.Sin((hour-6)/14*math.Pi) * 18000 * (0.8 + 0.4*w.rng.Float64())
	}

	temp := 19 + 5*math.Sin((hour-9)/24*2*math.Pi) + (w.rng.Float64() - 0.5)

	batt := 100 - now.Sub(w.start).Hours()/24
	if batt < 5 {
		batt = 5
	}

	return entities.Reading{
		Temperature:  math.Round(temp*10) / 10,
		Conductivity: int(w.cond),
		Moisture:     int(math.Round(w.moisture)),
		Light:        int(light),
		Battery:      int(batt),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
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
		logger.Fatal("load plant descriptors", zap.Error(err))
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetUsername(cfg.MQTT.User)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetClientID(cfg.MQTT.ClientID + "-sim")
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("connect broker", zap.Error(token.Error()))
	}
	defer client.Disconnect(250)

	src := *seed
	if src == 0 {
		src = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(src))

	now := time.Now()
	walkers := make([]*walker, 0, len(plants.Sensors))
	for _, p := range plants.Sensors {
		walkers = append(walkers, newWalker(p, rng, now))
	}

	logger.Info("publishing synthetic readings",
		zap.Int("sensors", len(walkers)),
		zap.Duration("period", *period),
		zap.String("base", cfg.SensorTopic))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*period)
	defer ticker.Stop()

	for {
		now := time.Now()
		for _, w := range walkers {
			r := w.next(now, *period, *decay)
			b, err := json.Marshal(r)
			if err != nil {
				logger.Fatal("marshal reading", zap.Error(err))
			}
			topic := cfg.SensorTopic + "/" + w.plant.Name
			if token := client.Publish(topic, 1, false, b); token.Wait() && token.Error() != nil {
				logger.Warn("publish failed", zap.String("topic", topic), zap.Error(token.Error()))
				continue
			}
			logger.Debug("published",
				zap.String("topic", topic), zap.Int("moisture", r.Moisture))
		}

		select {
		case <-sigCh:
			logger.Info("stopping")
			return
		case <-ticker.C:
		}
	}
}
