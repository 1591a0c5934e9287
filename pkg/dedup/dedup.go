// Package dedup suppresses QoS-1 redeliveries by remembering recently seen
// message identities for a bounded time.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Key derives a message identity from its topic and payload. Two identical
// payloads on the same topic map to the same key, which is exactly the
// redelivery case.
func Key(topic string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return topic + "|" + hex.EncodeToString(sum[:])
}

// Deduper tracks seen message identities with a TTL and a size cap.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

// New returns a deduper. Non-positive arguments fall back to 10 minutes and
// 10000 entries.
func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// ShouldProcess reports whether the message identified by id is new. A
// repeat inside the TTL returns false; the empty id is never deduplicated.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		for k, v := range d.seen {
			if now.After(v) {
				delete(d.seen, k)
			}
			if len(d.seen) <= d.max {
				break
			}
		}
	}
	return true
}
