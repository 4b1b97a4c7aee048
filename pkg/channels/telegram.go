package channels

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/config"
	"github.com/tinyland-inc/crosswire/pkg/logger"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

const telegramMaxMsgLen = 4000

// TelegramChannel binds one Telegram chat as a bridge side. Telegram has no
// per-message identity override, so outbound text and captions carry a
// "name: " prefix instead.
type TelegramChannel struct {
	*BaseChannel
	cfg  config.TelegramConfig
	bot  *telego.Bot
	self *telego.User
	http *http.Client
}

func NewTelegramChannel(cfg config.TelegramConfig, eb *bus.EventBus, guard *relay.LoopGuard) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: NewBaseChannel(bus.PlatformTelegram, eb, guard, cfg.AllowFrom),
		cfg:         cfg,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
}

// Start connects the bot and begins long polling in a background goroutine.
func (t *TelegramChannel) Start(ctx context.Context) error {
	bot, err := telego.NewBot(t.cfg.Token, telego.WithDiscardLogger())
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	t.self = me
	t.RegisterSelf(strconv.FormatInt(me.ID, 10))

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("telegram long polling: %w", err)
	}
	t.SetRunning(true)

	logger.InfoCF("telegram", "Connected", map[string]any{
		"username": me.Username,
		"chat_id":  t.cfg.ChatID,
	})

	go func() {
		for update := range updates {
			t.handleUpdate(ctx, update)
		}
		t.SetRunning(false)
	}()

	return nil
}

// Stop is a no-op: long polling stops when Start's context is canceled.
func (t *TelegramChannel) Stop(ctx context.Context) error {
	t.SetRunning(false)
	return nil
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat.ID != t.cfg.ChatID {
		return
	}

	from := msg.From
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	senderID := strconv.FormatInt(from.ID, 10)
	ev := bus.InboundEvent{
		Platform:    bus.PlatformTelegram,
		EventID:     fmt.Sprintf("%d:%d", msg.Chat.ID, msg.MessageID),
		SenderID:    senderID,
		SenderName:  telegramDisplayName(from),
		Text:        text,
		SelfOrigin:  from.ID == t.self.ID,
		FromBot:     from.IsBot,
		AvatarFetch: t.avatarFetcher(from.ID),
		Attachments: t.collectAttachments(msg),
	}

	if text == "" && len(ev.Attachments) == 0 {
		return
	}

	t.HandleEvent(ctx, ev)
}

func telegramDisplayName(u *telego.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}

func (t *TelegramChannel) collectAttachments(msg *telego.Message) []bus.AttachmentRef {
	var refs []bus.AttachmentRef

	if len(msg.Photo) > 0 {
		// Telegram delivers several sizes; the last is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		refs = append(refs, bus.AttachmentRef{
			Filename:    "photo.jpg",
			ContentType: "image/jpeg",
			Fetch:       t.fileFetcher(photo.FileID),
		})
	}
	if msg.Video != nil {
		name := msg.Video.FileName
		if name == "" {
			name = "video.mp4"
		}
		refs = append(refs, bus.AttachmentRef{
			Filename:    name,
			ContentType: msg.Video.MimeType,
			Fetch:       t.fileFetcher(msg.Video.FileID),
		})
	}
	if msg.Document != nil {
		refs = append(refs, bus.AttachmentRef{
			Filename:    msg.Document.FileName,
			ContentType: msg.Document.MimeType,
			Fetch:       t.fileFetcher(msg.Document.FileID),
		})
	}

	return refs
}

// fileFetcher returns a lazy capability downloading one Telegram file. The
// file path is only resolved when the event actually gets relayed.
func (t *TelegramChannel) fileFetcher(fileID string) func(ctx context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		file, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
		if err != nil {
			return nil, fmt.Errorf("telegram getFile: %w", err)
		}
		return t.download(ctx, t.bot.FileDownloadURL(file.FilePath))
	}
}

func (t *TelegramChannel) avatarFetcher(userID int64) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		photos, err := t.bot.GetUserProfilePhotos(ctx, &telego.GetUserProfilePhotosParams{
			UserID: userID,
			Limit:  1,
		})
		if err != nil {
			return "", err
		}
		if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
			return "", nil
		}
		sizes := photos.Photos[0]
		file, err := t.bot.GetFile(ctx, &telego.GetFileParams{FileID: sizes[len(sizes)-1].FileID})
		if err != nil {
			return "", err
		}
		return t.bot.FileDownloadURL(file.FilePath), nil
	}
}

func (t *TelegramChannel) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Send delivers one outbound unit to the bound chat, choosing the Telegram
// method by attachment kind.
func (t *TelegramChannel) Send(ctx context.Context, out bus.OutboundContext) error {
	chatID := tu.ID(t.cfg.ChatID)

	if out.Attachment == nil {
		text := out.DisplayName + ": " + out.Text
		for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
			_, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
				ChatID: chatID,
				Text:   chunk,
			})
			if err != nil {
				return classifyTelegramErr(err)
			}
		}
		return nil
	}

	att := out.Attachment
	caption := out.DisplayName + ":"
	input := tu.File(tu.NameReader(bytes.NewReader(att.Data), att.Filename))

	var err error
	switch att.Kind {
	case bus.KindImage:
		_, err = t.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID:  chatID,
			Photo:   input,
			Caption: caption,
		})
	case bus.KindVideo:
		_, err = t.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID:  chatID,
			Video:   input,
			Caption: caption,
		})
	default:
		_, err = t.bot.SendDocument(ctx, &telego.SendDocumentParams{
			ChatID:   chatID,
			Document: input,
			Caption:  caption,
		})
	}
	if err != nil {
		return classifyTelegramErr(err)
	}
	return nil
}

// classifyTelegramErr maps a Bot API error onto the relay failure taxonomy.
// The Bot API surfaces failures as described strings, so this matches on the
// well-known descriptions.
func classifyTelegramErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Too Many Requests") || strings.Contains(msg, "retry after"):
		return relay.NewSendError(relay.ReasonRateLimited, err)
	case strings.Contains(msg, "Bad Request") ||
		strings.Contains(msg, "Forbidden") ||
		strings.Contains(msg, "Unauthorized"):
		return relay.NewSendError(relay.ReasonRejected, err)
	default:
		return relay.NewSendError(relay.ReasonNetwork, err)
	}
}
