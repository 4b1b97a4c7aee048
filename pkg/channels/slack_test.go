package channels

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/config"
	"github.com/tinyland-inc/crosswire/pkg/relay"
)

func TestClassifySlackErr(t *testing.T) {
	if classifySlackErr(nil) != nil {
		t.Error("nil should pass through")
	}

	rle := &slack.RateLimitedError{RetryAfter: time.Second}
	if got := reasonOf(t, classifySlackErr(rle)); got != relay.ReasonRateLimited {
		t.Errorf("rate limited: got %s", got)
	}

	cases := []struct {
		msg  string
		want relay.FailureReason
	}{
		{"channel_not_found", relay.ReasonRejected},
		{"not_in_channel", relay.ReasonRejected},
		{"invalid_auth", relay.ReasonRejected},
		{"msg_too_long", relay.ReasonRejected},
		{"connection reset by peer", relay.ReasonNetwork},
	}
	for _, tc := range cases {
		if got := reasonOf(t, classifySlackErr(errors.New(tc.msg))); got != tc.want {
			t.Errorf("%q: got %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestSlackEventFiles(t *testing.T) {
	raw := `{
		"token": "x",
		"type": "event_callback",
		"event": {
			"type": "message",
			"subtype": "file_share",
			"files": [
				{"name": "report.pdf", "mimetype": "application/pdf", "url_private_download": "https://files.slack.com/report.pdf"},
				{"name": "cat.png", "mimetype": "image/png", "url_private": "https://files.slack.com/cat.png"}
			]
		}
	}`
	files := slackEventFiles(&socketmode.Request{Payload: json.RawMessage(raw)})
	if len(files) != 2 {
		t.Fatalf("files: got %d, want 2", len(files))
	}
	if files[0].Name != "report.pdf" || files[0].URLPrivateDownload == "" {
		t.Errorf("first file: %+v", files[0])
	}
	if files[1].Mimetype != "image/png" {
		t.Errorf("second file: %+v", files[1])
	}

	if got := slackEventFiles(nil); got != nil {
		t.Errorf("nil request: got %v", got)
	}
	if got := slackEventFiles(&socketmode.Request{Payload: json.RawMessage("{")}); got != nil {
		t.Errorf("bad payload: got %v", got)
	}
}

func TestSlackHandleMessage_FileShare(t *testing.T) {
	eb := bus.NewEventBus(bus.PlatformSlack)
	cfg := config.SlackConfig{ChannelID: "C1"}
	ch := NewSlackChannel(cfg, eb, relay.NewLoopGuard(false))
	ch.auth = &slack.AuthTestResponse{UserID: "U-self", BotID: "B-self"}

	msg := &slackevents.MessageEvent{
		Channel:   "C1",
		SubType:   "file_share",
		BotID:     "B-other",
		TimeStamp: "111.222",
		Text:      "here you go",
	}
	files := []slackevents.File{
		{Name: "cat.png", Mimetype: "image/png", URLPrivateDownload: "https://files.slack.com/cat.png"},
	}
	ch.handleMessage(context.Background(), msg, files)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := eb.ConsumeInbound(ctx, bus.PlatformSlack)
	if !ok {
		t.Fatal("expected a published event")
	}
	if len(ev.Attachments) != 1 {
		t.Fatalf("attachments: got %d, want 1", len(ev.Attachments))
	}
	att := ev.Attachments[0]
	if att.Filename != "cat.png" || att.ContentType != "image/png" || att.Fetch == nil {
		t.Errorf("attachment: %+v", att)
	}
	if ev.EventID != "111.222" || ev.Text != "here you go" {
		t.Errorf("event: %+v", ev)
	}
}

func TestSlackDisplayName(t *testing.T) {
	u := &slack.User{Name: "asmith"}
	u.Profile.RealName = "Alice Smith"
	u.Profile.DisplayName = "alice"
	if got := slackDisplayName(u); got != "alice" {
		t.Errorf("got %q, want display name", got)
	}
	u.Profile.DisplayName = ""
	if got := slackDisplayName(u); got != "Alice Smith" {
		t.Errorf("got %q, want real name", got)
	}
	u.Profile.RealName = ""
	if got := slackDisplayName(u); got != "asmith" {
		t.Errorf("got %q, want account name fallback", got)
	}
}
