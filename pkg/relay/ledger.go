package relay

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/tinyland-inc/crosswire/pkg/bus"
)

// DefaultLedgerCapacity is the per-platform key retention bound.
const DefaultLedgerCapacity = 512

// RelayKey computes the dedup fingerprint for one logical source message.
//
// The platform's own message id is preferred. When a platform delivers no
// stable id, the key falls back to a hash of (sender, normalized text, minute
// bucket). That fallback is explicitly weaker: identical text from the same
// sender within one minute collapses to a single key.
func RelayKey(ev bus.InboundEvent) string {
	if ev.EventID != "" {
		return "id:" + ev.EventID
	}
	h := fnv.New64a()
	h.Write([]byte(ev.SenderID))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(ev.Text))))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", time.Now().Unix()/60)
	return fmt.Sprintf("txt:%x", h.Sum64())
}

// DedupLedger remembers recently relayed keys, scoped per source platform.
//
// Retention is a fixed-capacity FIFO ring per platform: once more than
// capacity distinct keys have been recorded, the oldest is evicted and a
// genuine repeat of it would relay again. Suppression is best-effort within
// one process lifetime; nothing is persisted.
type DedupLedger struct {
	mu       sync.Mutex
	capacity int
	seen     map[bus.Platform]map[string]bool
	order    map[bus.Platform][]string
}

// NewDedupLedger creates a ledger holding up to capacity keys per platform.
// A capacity <= 0 falls back to DefaultLedgerCapacity.
func NewDedupLedger(capacity int) *DedupLedger {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &DedupLedger{
		capacity: capacity,
		seen:     make(map[bus.Platform]map[string]bool),
		order:    make(map[bus.Platform][]string),
	}
}

// CheckAndRecord atomically records the key and reports whether this is its
// first sighting. Both relay directions share the ledger, so the
// check-then-record must happen under one lock or near-simultaneous duplicate
// deliveries would both pass.
func (l *DedupLedger) CheckAndRecord(p bus.Platform, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, ok := l.seen[p]
	if !ok {
		keys = make(map[string]bool, l.capacity)
		l.seen[p] = keys
	}
	if keys[key] {
		return false
	}

	keys[key] = true
	l.order[p] = append(l.order[p], key)
	if len(l.order[p]) > l.capacity {
		oldest := l.order[p][0]
		l.order[p] = l.order[p][1:]
		delete(keys, oldest)
	}
	return true
}

// Len returns the number of retained keys for a platform. Used by tests and
// the health endpoint.
func (l *DedupLedger) Len(p bus.Platform) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen[p])
}
