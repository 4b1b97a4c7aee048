package channels

import (
	"strings"
	"testing"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/config"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

func managerFixture(t *testing.T, mutate func(*config.Config)) (*Manager, error) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Channels.Discord.Enabled = true
	cfg.Channels.Telegram.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}
	eb := bus.NewEventBus(bus.Platform(cfg.Bridge.Left), bus.Platform(cfg.Bridge.Right))
	return NewManager(cfg, eb, relay.NewLoopGuard(true))
}

func TestNewManager(t *testing.T) {
	m, err := managerFixture(t, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	left, right := m.Pair()
	if left != bus.PlatformDiscord || right != bus.PlatformTelegram {
		t.Errorf("pair: got %s/%s", left, right)
	}
	if _, ok := m.GetChannel(bus.PlatformDiscord); !ok {
		t.Error("discord channel missing")
	}
	if _, ok := m.GetChannel(bus.PlatformSlack); ok {
		t.Error("slack channel should not exist when disabled")
	}
	enabled := m.EnabledChannels()
	if !strings.Contains(enabled, "discord") || !strings.Contains(enabled, "telegram") {
		t.Errorf("enabled: got %q", enabled)
	}
}

func TestNewManager_BridgeSideDisabled(t *testing.T) {
	_, err := managerFixture(t, func(cfg *config.Config) {
		cfg.Channels.Telegram.Enabled = false
	})
	if err == nil {
		t.Fatal("expected an error when a bridge side has no channel")
	}
	if !strings.Contains(err.Error(), "telegram") {
		t.Errorf("error should name the missing side: %v", err)
	}
}

func TestNewManager_SlackPair(t *testing.T) {
	m, err := managerFixture(t, func(cfg *config.Config) {
		cfg.Bridge.Right = "slack"
		cfg.Channels.Telegram.Enabled = false
		cfg.Channels.Slack.Enabled = true
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, ok := m.GetChannel(bus.PlatformSlack); !ok {
		t.Error("slack channel missing")
	}
}
