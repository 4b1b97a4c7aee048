package channels

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/config"
	"github.com/tinyland-inc/crosswire/pkg/logger"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

const discordMaxMsgLen = 2000

// DiscordChannel binds one Discord channel as a bridge side.
//
// Outbound sends go through a webhook when one is configured, which lets
// Discord render the original sender's name and avatar per message. Messages
// the relay posts that way come back on the gateway with our webhook id set,
// which is the self-origin marker inbound handling keys on.
type DiscordChannel struct {
	*BaseChannel
	cfg     config.DiscordConfig
	session *discordgo.Session
	http    *http.Client
}

func NewDiscordChannel(cfg config.DiscordConfig, eb *bus.EventBus, guard *relay.LoopGuard) *DiscordChannel {
	return &DiscordChannel{
		BaseChannel: NewBaseChannel(bus.PlatformDiscord, eb, guard, cfg.AllowFrom),
		cfg:         cfg,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
}

// Start opens the gateway session and begins publishing inbound events.
func (d *DiscordChannel) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(ctx, s, m)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.session = session
	d.RegisterSelf(session.State.User.ID)
	d.SetRunning(true)

	logger.InfoCF("discord", "Connected", map[string]any{
		"user":    session.State.User.Username,
		"channel": d.cfg.ChannelID,
	})
	return nil
}

func (d *DiscordChannel) Stop(ctx context.Context) error {
	d.SetRunning(false)
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *DiscordChannel) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.ChannelID != d.cfg.ChannelID || m.Author == nil {
		return
	}
	if m.Content == "" && len(m.Attachments) == 0 {
		return
	}

	author := m.Author
	ev := bus.InboundEvent{
		Platform:   bus.PlatformDiscord,
		EventID:    m.ID,
		SenderID:   author.ID,
		SenderName: displayName(author),
		Text:       m.Content,
		SelfOrigin: author.ID == s.State.User.ID ||
			(d.cfg.WebhookID != "" && m.WebhookID == d.cfg.WebhookID),
		FromBot: author.Bot || m.WebhookID != "",
		AvatarFetch: func(context.Context) (string, error) {
			return author.AvatarURL("128"), nil
		},
	}

	for _, att := range m.Attachments {
		url := att.URL
		ev.Attachments = append(ev.Attachments, bus.AttachmentRef{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Fetch: func(fctx context.Context) ([]byte, error) {
				return d.fetchURL(fctx, url)
			},
		})
	}

	d.HandleEvent(ctx, ev)
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (d *DiscordChannel) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment fetch: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Send delivers one outbound unit to the bound Discord channel.
func (d *DiscordChannel) Send(ctx context.Context, out bus.OutboundContext) error {
	if d.cfg.WebhookID != "" && d.cfg.WebhookToken != "" {
		return d.sendWebhook(ctx, out)
	}
	return d.sendPlain(ctx, out)
}

// sendWebhook posts through the configured webhook so the message shows the
// original sender's identity.
func (d *DiscordChannel) sendWebhook(ctx context.Context, out bus.OutboundContext) error {
	params := &discordgo.WebhookParams{
		Username:  out.DisplayName,
		AvatarURL: out.AvatarRef,
	}
	if out.Attachment != nil {
		params.Files = []*discordgo.File{{
			Name:   out.Attachment.Filename,
			Reader: bytes.NewReader(out.Attachment.Data),
		}}
	} else {
		params.Content = out.Text
	}

	_, err := d.session.WebhookExecute(d.cfg.WebhookID, d.cfg.WebhookToken, true, params, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDiscordErr(err)
	}
	return nil
}

// sendPlain falls back to bot-authored messages with a name prefix.
func (d *DiscordChannel) sendPlain(ctx context.Context, out bus.OutboundContext) error {
	if out.Attachment != nil {
		msg := &discordgo.MessageSend{
			Content: fmt.Sprintf("**%s**:", out.DisplayName),
			Files: []*discordgo.File{{
				Name:   out.Attachment.Filename,
				Reader: bytes.NewReader(out.Attachment.Data),
			}},
		}
		if _, err := d.session.ChannelMessageSendComplex(d.cfg.ChannelID, msg, discordgo.WithContext(ctx)); err != nil {
			return classifyDiscordErr(err)
		}
		return nil
	}

	text := fmt.Sprintf("**%s**: %s", out.DisplayName, out.Text)
	for _, chunk := range splitMessage(text, discordMaxMsgLen) {
		if _, err := d.session.ChannelMessageSend(d.cfg.ChannelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return classifyDiscordErr(err)
		}
	}
	return nil
}

// classifyDiscordErr maps a discordgo error onto the relay failure taxonomy.
func classifyDiscordErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*discordgo.RateLimitError); ok {
		return relay.NewSendError(relay.ReasonRateLimited, err)
	}
	if rest, ok := err.(*discordgo.RESTError); ok && rest.Response != nil {
		switch {
		case rest.Response.StatusCode == http.StatusTooManyRequests:
			return relay.NewSendError(relay.ReasonRateLimited, err)
		case rest.Response.StatusCode >= 500:
			return relay.NewSendError(relay.ReasonNetwork, err)
		case rest.Response.StatusCode >= 400:
			return relay.NewSendError(relay.ReasonRejected, err)
		}
	}
	return relay.NewSendError(relay.ReasonNetwork, err)
}
