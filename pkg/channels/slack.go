package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/config"
	"github.com/tinyland-inc/crosswire/pkg/logger"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

// SlackChannel binds one Slack channel as a bridge side, consuming events
// over Socket Mode. Outbound identity uses chat.postMessage username and
// icon_url overrides, which Slack attributes to our bot id; that bot id is
// the self-origin marker inbound handling keys on.
type SlackChannel struct {
	*BaseChannel
	cfg  config.SlackConfig
	api  *slack.Client
	sock *socketmode.Client
	auth *slack.AuthTestResponse
	http *http.Client

	// profiles memoizes users.info lookups, one call per sender.
	profilesMu sync.Mutex
	profiles   map[string]*slack.User
}

func NewSlackChannel(cfg config.SlackConfig, eb *bus.EventBus, guard *relay.LoopGuard) *SlackChannel {
	return &SlackChannel{
		BaseChannel: NewBaseChannel(bus.PlatformSlack, eb, guard, cfg.AllowFrom),
		cfg:         cfg,
		http:        &http.Client{Timeout: 60 * time.Second},
		profiles:    make(map[string]*slack.User),
	}
}

// Start authenticates, opens the Socket Mode connection, and begins
// publishing inbound events from background goroutines.
func (s *SlackChannel) Start(ctx context.Context) error {
	s.api = slack.New(s.cfg.BotToken, slack.OptionAppLevelToken(s.cfg.AppToken))

	auth, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	s.auth = auth
	s.RegisterSelf(auth.UserID)

	s.sock = socketmode.New(s.api)
	go func() {
		if err := s.sock.RunContext(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode terminated", map[string]any{"error": err.Error()})
		}
		s.SetRunning(false)
	}()
	go s.consumeEvents(ctx)
	s.SetRunning(true)

	logger.InfoCF("slack", "Connected", map[string]any{
		"user":    auth.User,
		"channel": s.cfg.ChannelID,
	})
	return nil
}

// Stop is a no-op: the socket closes when Start's context is canceled.
func (s *SlackChannel) Stop(ctx context.Context) error {
	s.SetRunning(false)
	return nil
}

func (s *SlackChannel) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.sock.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				s.sock.Ack(*evt.Request)
			}
			if apiEvent.Type != slackevents.CallbackEvent {
				continue
			}
			if msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				s.handleMessage(ctx, msg, slackEventFiles(evt.Request))
			}
		}
	}
}

// slackEventFiles extracts the shared files of a message event. The decoded
// MessageEvent struct carries no file list, so file_share payloads are
// re-parsed from the raw request envelope.
func slackEventFiles(req *socketmode.Request) []slackevents.File {
	if req == nil {
		return nil
	}
	var payload struct {
		Event struct {
			Files []slackevents.File `json:"files"`
		} `json:"event"`
	}
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil
	}
	return payload.Event.Files
}

func (s *SlackChannel) handleMessage(ctx context.Context, msg *slackevents.MessageEvent, files []slackevents.File) {
	if msg.Channel != s.cfg.ChannelID {
		return
	}
	// Edits, deletions and joins arrive as subtyped messages; only plain
	// messages and file shares are relayable.
	if msg.SubType != "" && msg.SubType != "file_share" && msg.SubType != "bot_message" {
		return
	}

	senderID := msg.User
	if senderID == "" {
		senderID = msg.BotID
	}

	ev := bus.InboundEvent{
		Platform: bus.PlatformSlack,
		EventID:  msg.TimeStamp,
		SenderID: senderID,
		Text:     msg.Text,
		SelfOrigin: (msg.User != "" && msg.User == s.auth.UserID) ||
			(msg.BotID != "" && msg.BotID == s.auth.BotID),
		FromBot: msg.BotID != "" || msg.SubType == "bot_message",
	}

	if user, err := s.profile(ctx, msg.User); err == nil && user != nil {
		ev.SenderName = slackDisplayName(user)
		avatar := user.Profile.Image192
		ev.AvatarFetch = func(context.Context) (string, error) { return avatar, nil }
	}

	for _, f := range files {
		url := f.URLPrivateDownload
		if url == "" {
			url = f.URLPrivate
		}
		ev.Attachments = append(ev.Attachments, bus.AttachmentRef{
			Filename:    f.Name,
			ContentType: f.Mimetype,
			Fetch:       s.fileFetcher(url),
		})
	}

	if ev.Text == "" && len(ev.Attachments) == 0 {
		return
	}

	s.HandleEvent(ctx, ev)
}

func slackDisplayName(u *slack.User) string {
	if u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	if u.Profile.RealName != "" {
		return u.Profile.RealName
	}
	return u.Name
}

func (s *SlackChannel) profile(ctx context.Context, userID string) (*slack.User, error) {
	if userID == "" {
		return nil, errors.New("no user id")
	}

	s.profilesMu.Lock()
	cached, ok := s.profiles[userID]
	s.profilesMu.Unlock()
	if ok {
		return cached, nil
	}

	user, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.profilesMu.Lock()
	s.profiles[userID] = user
	s.profilesMu.Unlock()
	return user, nil
}

// fileFetcher downloads a private Slack file with the bot token.
func (s *SlackChannel) fileFetcher(url string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.BotToken)
		resp, err := s.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("slack file download: HTTP %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
}

// Send delivers one outbound unit to the bound Slack channel.
func (s *SlackChannel) Send(ctx context.Context, out bus.OutboundContext) error {
	if out.Attachment != nil {
		att := out.Attachment
		_, err := s.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Channel:        s.cfg.ChannelID,
			Filename:       att.Filename,
			FileSize:       len(att.Data),
			Reader:         bytes.NewReader(att.Data),
			InitialComment: out.DisplayName + ":",
		})
		if err != nil {
			return classifySlackErr(err)
		}
		return nil
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(out.Text, false),
		slack.MsgOptionUsername(out.DisplayName),
	}
	if out.AvatarRef != "" {
		opts = append(opts, slack.MsgOptionIconURL(out.AvatarRef))
	}
	if _, _, err := s.api.PostMessageContext(ctx, s.cfg.ChannelID, opts...); err != nil {
		return classifySlackErr(err)
	}
	return nil
}

// classifySlackErr maps a Slack API error onto the relay failure taxonomy.
func classifySlackErr(err error) error {
	if err == nil {
		return nil
	}
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		return relay.NewSendError(relay.ReasonRateLimited, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "channel_not_found") ||
		strings.Contains(msg, "not_in_channel") ||
		strings.Contains(msg, "invalid_auth") ||
		strings.Contains(msg, "msg_too_long"):
		return relay.NewSendError(relay.ReasonRejected, err)
	default:
		return relay.NewSendError(relay.ReasonNetwork, err)
	}
}
