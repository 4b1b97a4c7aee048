package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/config"
	"github.com/tinyland-inc/crosswire/pkg/logger"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

// Manager constructs the enabled channels and runs their lifecycle.
type Manager struct {
	channels map[bus.Platform]Channel
	pair     [2]bus.Platform
}

// NewManager builds channels for every enabled platform and verifies that
// both sides of the configured bridge pair are among them.
func NewManager(cfg *config.Config, eb *bus.EventBus, guard *relay.LoopGuard) (*Manager, error) {
	m := &Manager{
		channels: make(map[bus.Platform]Channel),
		pair:     [2]bus.Platform{bus.Platform(cfg.Bridge.Left), bus.Platform(cfg.Bridge.Right)},
	}

	if cfg.Channels.Discord.Enabled {
		m.channels[bus.PlatformDiscord] = NewDiscordChannel(cfg.Channels.Discord, eb, guard)
	}
	if cfg.Channels.Telegram.Enabled {
		m.channels[bus.PlatformTelegram] = NewTelegramChannel(cfg.Channels.Telegram, eb, guard)
	}
	if cfg.Channels.Slack.Enabled {
		m.channels[bus.PlatformSlack] = NewSlackChannel(cfg.Channels.Slack, eb, guard)
	}

	for _, side := range m.pair {
		if _, ok := m.channels[side]; !ok {
			return nil, fmt.Errorf("bridge side %q is not an enabled channel", side)
		}
	}

	return m, nil
}

// Pair returns the two bound platforms in config order (left, right).
func (m *Manager) Pair() (bus.Platform, bus.Platform) {
	return m.pair[0], m.pair[1]
}

// GetChannel returns the channel bound to a platform.
func (m *Manager) GetChannel(p bus.Platform) (Channel, bool) {
	ch, ok := m.channels[p]
	return ch, ok
}

// EnabledChannels lists enabled channel names for startup output.
func (m *Manager) EnabledChannels() string {
	names := make([]string, 0, len(m.channels))
	for p := range m.channels {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// StartAll starts every enabled channel. A channel that fails to start takes
// the bridge down: half a bridge relays nothing useful.
func (m *Manager) StartAll(ctx context.Context) error {
	for p, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("starting %s channel: %w", p, err)
		}
		logger.InfoC("channels", string(p)+" channel started")
	}
	return nil
}

// StopAll stops every running channel.
func (m *Manager) StopAll(ctx context.Context) {
	for p, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Error stopping channel", map[string]any{
				"channel": string(p),
				"error":   err.Error(),
			})
		}
	}
}
