package relay

import (
	"sync"

	"github.com/tinyland-inc/crosswire/pkg/bus"
)

// LoopGuard decides whether an inbound event originated from the relay's own
// output and must be suppressed before any other work happens.
type LoopGuard struct {
	mu           sync.RWMutex
	selfIDs      map[bus.Platform]string
	suppressBots bool
}

// NewLoopGuard creates a guard. When suppressBots is true, events from any
// automated account are suppressed, not just the relay's own traffic; this
// avoids bot-to-bot amplification loops.
func NewLoopGuard(suppressBots bool) *LoopGuard {
	return &LoopGuard{
		selfIDs:      make(map[bus.Platform]string),
		suppressBots: suppressBots,
	}
}

// RegisterSelf records the relay's own sender identity on a platform.
// Channels call this once connected, before events start flowing.
func (g *LoopGuard) RegisterSelf(p bus.Platform, senderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selfIDs[p] = senderID
}

// IsSelfOriginated reports whether the event must never be relayed.
func (g *LoopGuard) IsSelfOriginated(ev bus.InboundEvent) bool {
	if ev.SelfOrigin {
		return true
	}

	g.mu.RLock()
	self, ok := g.selfIDs[ev.Platform]
	g.mu.RUnlock()
	if ok && self != "" && self == ev.SenderID {
		return true
	}

	return g.suppressBots && ev.FromBot
}
