package history

import (
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"florad/internal/model/entities"
	"florad/internal/model/messages"
)

// Point kinds used as ingest counter keys.
const (
	KindReading    = "reading"
	KindAlert      = "alert"
	KindIrrigation = "irrigation"
)

// ReadingPoint normalizes one accepted sensor sample into a "sensor_reading"
// point. Tags carry identity, fields carry the measured values.
func ReadingPoint(sensor, species string, pump entities.PumpID, r entities.Reading, ts time.Time) *write.Point {
	tags := map[string]string{
		"sensor":  sensor,
		"species": species,
		"pump":    pump.String(),
	}
	fields := map[string]interface{}{
		"temperature":  r.Temperature,
		"conductivity": int64(r.Conductivity),
		"moisture":     int64(r.Moisture),
		"light":        int64(r.Light),
		"battery":      int64(r.Battery),
	}
	return influxdb2.NewPoint("sensor_reading", tags, fields, ts)
}

// AlertPoint normalizes a fired alert into an "alert" point.
func AlertPoint(evt messages.AlertEvent) *write.Point {
	tags := map[string]string{
		"category": evt.Category,
	}
	fields := map[string]interface{}{
		"message":  evt.Message,
		"subjects": strings.Join(evt.Subjects, ","),
		"count":    int64(1),
	}
	return influxdb2.NewPoint("alert", tags, fields, evt.Timestamp)
}

// RunPoint normalizes a finished pump run into an "irrigation" point. Status
// is a tag so the runs query gets it back without a pivot.
func RunPoint(evt messages.IrrigationResultEvent) *write.Point {
	tags := map[string]string{
		"pump":   evt.Pump.String(),
		"kind":   evt.Kind,
		"status": evt.Status,
	}
	fields := map[string]interface{}{
		"duration_s": int64(evt.DurationS),
		"count":      int64(1),
	}
	return influxdb2.NewPoint("irrigation", tags, fields, evt.Timestamp)
}
