package channels

import (
	"errors"
	"testing"

	"github.com/mymmrac/telego"

	"github.com/tinyland-inc/crosswire/pkg/relay"
)

func TestClassifyTelegramErr(t *testing.T) {
	if classifyTelegramErr(nil) != nil {
		t.Error("nil should pass through")
	}

	cases := []struct {
		msg  string
		want relay.FailureReason
	}{
		{"telego: sendMessage: api: 429 Too Many Requests: retry after 5", relay.ReasonRateLimited},
		{"telego: sendMessage: api: 400 Bad Request: chat not found", relay.ReasonRejected},
		{"telego: sendMessage: api: 403 Forbidden: bot was kicked", relay.ReasonRejected},
		{"telego: sendMessage: api: 401 Unauthorized", relay.ReasonRejected},
		{"dial tcp: i/o timeout", relay.ReasonNetwork},
	}
	for _, tc := range cases {
		if got := reasonOf(t, classifyTelegramErr(errors.New(tc.msg))); got != tc.want {
			t.Errorf("%q: got %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestTelegramDisplayName(t *testing.T) {
	u := &telego.User{FirstName: "Alice", LastName: "Smith", Username: "asmith"}
	if got := telegramDisplayName(u); got != "Alice Smith" {
		t.Errorf("got %q", got)
	}
	if got := telegramDisplayName(&telego.User{FirstName: "Alice"}); got != "Alice" {
		t.Errorf("got %q", got)
	}
	if got := telegramDisplayName(&telego.User{Username: "asmith"}); got != "asmith" {
		t.Errorf("got %q, want username fallback", got)
	}
}
