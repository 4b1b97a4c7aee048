package channels

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/logger"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

// Channel is one platform binding of the bridge. Start connects and begins
// publishing inbound events; Send delivers one outbound unit. A Channel's
// Send satisfies relay.Sender.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, out bus.OutboundContext) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannel carries the pieces every binding shares: the event bus, the
// loop guard for self-identity registration, and the allow list.
type BaseChannel struct {
	name      string
	platform  bus.Platform
	bus       *bus.EventBus
	guard     *relay.LoopGuard
	allowList []string
	running   atomic.Bool
}

func NewBaseChannel(platform bus.Platform, eb *bus.EventBus, guard *relay.LoopGuard, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      string(platform),
		platform:  platform,
		bus:       eb,
		guard:     guard,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) Platform() bus.Platform { return c.platform }

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// RegisterSelf records this channel's bot identity with the loop guard.
func (c *BaseChannel) RegisterSelf(senderID string) {
	c.guard.RegisterSelf(c.platform, senderID)
}

// IsAllowed applies the channel allow list. An empty list allows everyone.
// Entries may be a sender id, a username, or the compound "id|username" form.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		if senderID == allowed || senderID == trimmed ||
			idPart == allowed || idPart == trimmed ||
			(userPart != "" && (userPart == allowed || userPart == trimmed)) {
			return true
		}
	}

	return false
}

// splitMessage splits text into chunks that fit within maxLen, preferring
// newline boundaries in the second half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		} else {
			// Back off to a rune boundary so a multi-byte character is
			// never torn across chunks.
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}

// HandleEvent publishes one inbound event, applying the allow list first.
// Suppression of the relay's own traffic is the engine's job, not the
// channel's; everything the platform delivers (markers included) goes in.
func (c *BaseChannel) HandleEvent(ctx context.Context, ev bus.InboundEvent) {
	if !c.IsAllowed(ev.SenderID) {
		return
	}
	if err := c.bus.PublishInbound(ctx, ev); err != nil {
		logger.WarnCF(c.name, "Dropped inbound event", map[string]any{
			"event_id": ev.EventID,
			"error":    err.Error(),
		})
	}
}
