// Package history persists readings, alerts and irrigation runs to InfluxDB.
// The whole package is optional at runtime: a nil *Writer is valid and every
// method on it is a no-op, so callers never need to guard the disabled case.
package history

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

// Writer wraps the asynchronous WriteAPI and tracks the last write error so
// the health endpoints can report on storage without blocking on it.
type Writer struct {
	api    api.WriteAPI
	logger *zap.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

// NewWriter starts the background listener that drains the WriteAPI error
// channel. Without a consumer the channel fills up and stalls writes.
func NewWriter(w api.WriteAPI, logger *zap.Logger) *Writer {
	ww := &Writer{
		api:     w,
		logger:  logger,
		lastErr: time.Now().Add(-24 * time.Hour), // default: "long ago"
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				ww.logger.Warn("influx write error", zap.Error(err))
			}
		}
	}()
	return ww
}

// Write queues a point for asynchronous delivery.
func (w *Writer) Write(kind string, p *write.Point) {
	if w == nil {
		return
	}
	w.api.WritePoint(p)
	w.markIngest(kind)
}

// Flush forces out any batched points, typically on shutdown.
func (w *Writer) Flush() {
	if w == nil {
		return
	}
	w.api.Flush()
}

// LastErrorAge returns how long ago the most recent write error happened.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) markIngest(kind string) {
	w.mu.Lock()
	w.counts[kind]++
	w.mu.Unlock()
}

// Count reads the ingest counter for one point kind.
func (w *Writer) Count(kind string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[kind]
	w.mu.RUnlock()
	return c
}
