// Package config loads the daemon configuration from the environment (with
// optional .env file) and the plant descriptor file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"florad/internal/irrigation"
	"florad/internal/notify"
	"florad/pkg/broker"
)

// Config defaults, overridable per variable. Durations configured in plain
// seconds except the alert windows, which count hours.
const (
	defProcessingPeriod = 300
	defMessageTimeout   = 900
	defNightBegin       = "24:00"
	defNightEnd         = "00:00"
	defManualDuration   = 60
	defIrrigationRest   = 7200
	defDeferHours       = 4
	defRepeatHours      = 24
	defAlertMode        = 2

	defPinTankLow   = 23
	defPinTankEmpty = 24
)

// AlertModes carries one filter mode (0-4) per alert category.
type AlertModes struct {
	Battery      int
	Temperature  int
	Conductivity int
	MoistureWarn int
	MoistureInfo int
	Light        int
	SensorLost   int
	PumpError    int
	TankLow      int
	TankEmpty    int
}

// InfluxConfig selects the history backend. An empty URL disables it.
type InfluxConfig struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     int
	FlushInterval time.Duration
}

type Config struct {
	MQTT        broker.Config
	BaseTopic   string
	SensorTopic string

	PlantsConfig string
	Timezone     string

	ProcessingPeriod time.Duration
	MessageTimeout   time.Duration
	Night            irrigation.Window

	AutoReport     bool
	AutoIrrigation bool
	ManualDuration time.Duration
	IrrigationRest time.Duration
	DeferTime      time.Duration
	RepeatTime     time.Duration
	Alerts         AlertModes

	GPIODriver   string
	PinTankLow   int
	PinTankEmpty int

	HTTPAddr string

	Influx InfluxConfig
	SMTP   notify.Config
}

// Load reads the environment into a validated Config. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MQTT: broker.Config{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", ""),
			Password: envStr("MQTT_PASSWORD", ""),
			ClientID: envStr("MQTT_CLIENT_ID", envStr("HOSTNAME", "florad")),
		},
		BaseTopic:   envStr("MQTT_BASE_TOPIC", "flora"),
		SensorTopic: envStr("MQTT_SENSOR_TOPIC", "miflora"),

		PlantsConfig: envStr("PLANTS_CONFIG", "plants.json"),
		Timezone:     envStr("TIMEZONE", ""),

		ProcessingPeriod: envSeconds("PROCESSING_PERIOD", defProcessingPeriod),
		MessageTimeout:   envSeconds("MESSAGE_TIMEOUT", defMessageTimeout),

		AutoReport:     envBool("AUTO_REPORT", true),
		AutoIrrigation: envBool("AUTO_IRRIGATION", true),
		ManualDuration: envSeconds("IRR_DURATION_MAN", defManualDuration),
		IrrigationRest: envSeconds("IRR_REST", defIrrigationRest),
		DeferTime:      envHours("ALERTS_DEFER_TIME", defDeferHours),
		RepeatTime:     envHours("ALERTS_REPEAT_TIME", defRepeatHours),
		Alerts: AlertModes{
			Battery:      envInt("ALERT_BATTERY", defAlertMode),
			Temperature:  envInt("ALERT_TEMPERATURE", defAlertMode),
			Conductivity: envInt("ALERT_CONDUCTIVITY", defAlertMode),
			MoistureWarn: envInt("ALERT_MOISTURE", defAlertMode),
			MoistureInfo: envInt("ALERT_MOISTURE_INFO", defAlertMode),
			Light:        envInt("ALERT_LIGHT", defAlertMode),
			SensorLost:   envInt("ALERT_SENSOR_LOST", defAlertMode),
			PumpError:    envInt("ALERT_PUMP", defAlertMode),
			TankLow:      envInt("ALERT_TANK_LOW", defAlertMode),
			TankEmpty:    envInt("ALERT_TANK_EMPTY", defAlertMode),
		},

		GPIODriver:   envStr("GPIO_DRIVER", "rpio"),
		PinTankLow:   envInt("PIN_TANK_LOW", defPinTankLow),
		PinTankEmpty: envInt("PIN_TANK_EMPTY", defPinTankEmpty),

		HTTPAddr: envStr("HTTP_ADDR", ":8080"),

		Influx: InfluxConfig{
			URL:           envStr("INFLUX_URL", ""),
			Token:         envStr("INFLUX_TOKEN", ""),
			Org:           envStr("INFLUX_ORG", "florad"),
			Bucket:        envStr("INFLUX_BUCKET", "flora"),
			BatchSize:     envInt("WRITE_BATCH_SIZE", 10),
			FlushInterval: time.Duration(envInt("WRITE_FLUSH_INTERVAL_MS", 200)) * time.Millisecond,
		},
		SMTP: notify.Config{
			Host:     envStr("SMTP_HOST", ""),
			Port:     envInt("SMTP_PORT", 25),
			User:     envStr("SMTP_USER", ""),
			Password: envStr("SMTP_PASSWORD", ""),
			From:     envStr("SMTP_FROM", "florad@localhost"),
			To:       envList("SMTP_TO"),
		},
	}

	night, err := irrigation.ParseWindow(
		envStr("NIGHT_BEGIN", defNightBegin), envStr("NIGHT_END", defNightEnd))
	if err != nil {
		return nil, fmt.Errorf("night window: %w", err)
	}
	cfg.Night = night

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProcessingPeriod <= 0 {
		return fmt.Errorf("PROCESSING_PERIOD must be positive")
	}
	if c.MessageTimeout <= 0 {
		return fmt.Errorf("MESSAGE_TIMEOUT must be positive")
	}
	if c.ManualDuration <= 0 {
		return fmt.Errorf("IRR_DURATION_MAN must be positive")
	}
	if c.IrrigationRest < 0 || c.DeferTime < 0 || c.RepeatTime < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.GPIODriver != "rpio" && c.GPIODriver != "memory" {
		return fmt.Errorf("GPIO_DRIVER must be rpio or memory, got %q", c.GPIODriver)
	}
	for name, mode := range map[string]int{
		"ALERT_BATTERY":       c.Alerts.Battery,
		"ALERT_TEMPERATURE":   c.Alerts.Temperature,
		"ALERT_CONDUCTIVITY":  c.Alerts.Conductivity,
		"ALERT_MOISTURE":      c.Alerts.MoistureWarn,
		"ALERT_MOISTURE_INFO": c.Alerts.MoistureInfo,
		"ALERT_LIGHT":         c.Alerts.Light,
		"ALERT_SENSOR_LOST":   c.Alerts.SensorLost,
		"ALERT_PUMP":          c.Alerts.PumpError,
		"ALERT_TANK_LOW":      c.Alerts.TankLow,
		"ALERT_TANK_EMPTY":    c.Alerts.TankEmpty,
	} {
		if mode < 0 || mode > 4 {
			return fmt.Errorf("%s: mode %d out of range 0-4", name, mode)
		}
	}
	if c.SMTP.Host != "" && len(c.SMTP.To) == 0 {
		return fmt.Errorf("SMTP_HOST set but SMTP_TO empty")
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

func envHours(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Hour
}

func envList(key string) []string {
	raw := strings.Split(os.Getenv(key), ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
