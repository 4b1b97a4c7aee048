package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tinyland-inc/crosswire/pkg/relay"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Bridge   BridgeConfig   `json:"bridge"`
	Channels ChannelsConfig `json:"channels"`
	Relay    RelayConfig    `json:"relay"`
	Gateway  GatewayConfig  `json:"gateway"`
}

// BridgeConfig names the bound platform pair. Exactly two distinct, enabled
// platforms form the bridge; events from each are relayed to the other.
type BridgeConfig struct {
	Left  string `env:"CROSSWIRE_BRIDGE_LEFT"  json:"left"`
	Right string `env:"CROSSWIRE_BRIDGE_RIGHT" json:"right"`
}

type ChannelsConfig struct {
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
}

type DiscordConfig struct {
	Enabled   bool   `env:"CROSSWIRE_CHANNELS_DISCORD_ENABLED"    json:"enabled"`
	Token     string `env:"CROSSWIRE_CHANNELS_DISCORD_TOKEN"      json:"token"`
	ChannelID string `env:"CROSSWIRE_CHANNELS_DISCORD_CHANNEL_ID" json:"channel_id"`
	// Optional webhook for outbound sends; preserves sender name and avatar
	// per relayed message instead of prefixing the bot's own messages.
	WebhookID    string              `env:"CROSSWIRE_CHANNELS_DISCORD_WEBHOOK_ID"    json:"webhook_id"`
	WebhookToken string              `env:"CROSSWIRE_CHANNELS_DISCORD_WEBHOOK_TOKEN" json:"webhook_token"`
	AllowFrom    FlexibleStringSlice `env:"CROSSWIRE_CHANNELS_DISCORD_ALLOW_FROM"    json:"allow_from"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"CROSSWIRE_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"`
	Token     string              `env:"CROSSWIRE_CHANNELS_TELEGRAM_TOKEN"      json:"token"`
	ChatID    int64               `env:"CROSSWIRE_CHANNELS_TELEGRAM_CHAT_ID"    json:"chat_id"`
	AllowFrom FlexibleStringSlice `env:"CROSSWIRE_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from"`
}

type SlackConfig struct {
	Enabled   bool                `env:"CROSSWIRE_CHANNELS_SLACK_ENABLED"    json:"enabled"`
	BotToken  string              `env:"CROSSWIRE_CHANNELS_SLACK_BOT_TOKEN"  json:"bot_token"`
	AppToken  string              `env:"CROSSWIRE_CHANNELS_SLACK_APP_TOKEN"  json:"app_token"`
	ChannelID string              `env:"CROSSWIRE_CHANNELS_SLACK_CHANNEL_ID" json:"channel_id"`
	AllowFrom FlexibleStringSlice `env:"CROSSWIRE_CHANNELS_SLACK_ALLOW_FROM" json:"allow_from"`
}

// RelayConfig bounds the engine. Zero values fall back to engine defaults.
type RelayConfig struct {
	LedgerCapacity       int  `env:"CROSSWIRE_RELAY_LEDGER_CAPACITY"        json:"ledger_capacity"`
	SendAttempts         int  `env:"CROSSWIRE_RELAY_SEND_ATTEMPTS"          json:"send_attempts"`
	SendTimeoutSeconds   int  `env:"CROSSWIRE_RELAY_SEND_TIMEOUT_SECONDS"   json:"send_timeout_seconds"`
	FetchTimeoutSeconds  int  `env:"CROSSWIRE_RELAY_FETCH_TIMEOUT_SECONDS"  json:"fetch_timeout_seconds"`
	AvatarTimeoutSeconds int  `env:"CROSSWIRE_RELAY_AVATAR_TIMEOUT_SECONDS" json:"avatar_timeout_seconds"`
	SuppressBots         bool `env:"CROSSWIRE_RELAY_SUPPRESS_BOTS"          json:"suppress_bots"`
}

type GatewayConfig struct {
	Host string `env:"CROSSWIRE_GATEWAY_HOST" json:"host"`
	Port int    `env:"CROSSWIRE_GATEWAY_PORT" json:"port"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{Left: "discord", Right: "telegram"},
		Relay: RelayConfig{
			LedgerCapacity: relay.DefaultLedgerCapacity,
			SendAttempts:   3,
			SuppressBots:   true,
		},
		Gateway: GatewayConfig{Host: "127.0.0.1", Port: 18790},
	}
}

// EngineOptions converts the relay section into engine options, filling gaps
// with the engine defaults.
func (c *Config) EngineOptions() relay.Options {
	opts := relay.DefaultOptions()
	if c.Relay.LedgerCapacity > 0 {
		opts.LedgerCapacity = c.Relay.LedgerCapacity
	}
	if c.Relay.SendAttempts > 0 {
		opts.SendAttempts = c.Relay.SendAttempts
	}
	if c.Relay.SendTimeoutSeconds > 0 {
		opts.SendTimeout = time.Duration(c.Relay.SendTimeoutSeconds) * time.Second
	}
	if c.Relay.FetchTimeoutSeconds > 0 {
		opts.FetchTimeout = time.Duration(c.Relay.FetchTimeoutSeconds) * time.Second
	}
	if c.Relay.AvatarTimeoutSeconds > 0 {
		opts.AvatarTimeout = time.Duration(c.Relay.AvatarTimeoutSeconds) * time.Second
	}
	opts.SuppressBots = c.Relay.SuppressBots
	return opts
}

// Validate checks the bridge pair. Credential formats are the platforms'
// concern; only structural problems are rejected here.
func (c *Config) Validate() error {
	if c.Bridge.Left == "" || c.Bridge.Right == "" {
		return errors.New("bridge requires both left and right platforms")
	}
	if c.Bridge.Left == c.Bridge.Right {
		return fmt.Errorf("bridge pair must be two distinct platforms, got %q twice", c.Bridge.Left)
	}
	for _, p := range []string{c.Bridge.Left, c.Bridge.Right} {
		switch p {
		case "discord", "telegram", "slack":
		default:
			return fmt.Errorf("unknown bridge platform %q", p)
		}
	}
	return nil
}

// LoadConfig reads the JSON config at path (missing file means defaults) and
// applies environment variable overrides on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
