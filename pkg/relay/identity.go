package relay

import (
	"context"
	"time"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/logger"
)

// OutboundIdentity is the resolved display identity used for a relayed send.
type OutboundIdentity struct {
	Name   string
	Avatar string
}

// ResolveIdentity derives the outbound identity for an event's sender.
//
// The display name falls back to "<platform>-user" when the platform gave us
// nothing; identity resolution never blocks a relay. The avatar is resolved
// through the event's lazy fetch capability with a bounded timeout, and any
// failure degrades to no avatar.
func ResolveIdentity(ctx context.Context, ev bus.InboundEvent, avatarTimeout time.Duration) OutboundIdentity {
	ident := OutboundIdentity{Name: ev.SenderName}
	if ident.Name == "" {
		ident.Name = string(ev.Platform) + "-user"
	}

	if ev.AvatarFetch != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, avatarTimeout)
		avatar, err := ev.AvatarFetch(fetchCtx)
		cancel()
		if err != nil {
			logger.DebugCF("relay", "Avatar resolution degraded", map[string]any{
				"platform": string(ev.Platform),
				"sender":   ev.SenderID,
				"error":    err.Error(),
			})
		} else {
			ident.Avatar = avatar
		}
	}

	return ident
}
