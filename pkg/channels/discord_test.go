package channels

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/crosswire/pkg/relay"
)

func reasonOf(t *testing.T, err error) relay.FailureReason {
	t.Helper()
	var se *relay.SendError
	if !errors.As(err, &se) {
		t.Fatalf("expected a classified send error, got %v", err)
	}
	return se.Reason
}

func TestClassifyDiscordErr(t *testing.T) {
	if classifyDiscordErr(nil) != nil {
		t.Error("nil should pass through")
	}

	if got := reasonOf(t, classifyDiscordErr(&discordgo.RateLimitError{})); got != relay.ReasonRateLimited {
		t.Errorf("rate limit error: got %s", got)
	}

	restCases := []struct {
		status int
		want   relay.FailureReason
	}{
		{http.StatusTooManyRequests, relay.ReasonRateLimited},
		{http.StatusBadGateway, relay.ReasonNetwork},
		{http.StatusForbidden, relay.ReasonRejected},
		{http.StatusBadRequest, relay.ReasonRejected},
	}
	for _, tc := range restCases {
		err := classifyDiscordErr(&discordgo.RESTError{Response: &http.Response{StatusCode: tc.status}})
		if got := reasonOf(t, err); got != tc.want {
			t.Errorf("HTTP %d: got %s, want %s", tc.status, got, tc.want)
		}
	}

	if got := reasonOf(t, classifyDiscordErr(errors.New("dial tcp: timeout"))); got != relay.ReasonNetwork {
		t.Errorf("plain error: got %s", got)
	}
}

func TestDiscordDisplayName(t *testing.T) {
	u := &discordgo.User{Username: "alice123", GlobalName: "Alice"}
	if got := displayName(u); got != "Alice" {
		t.Errorf("got %q, want global name", got)
	}
	u.GlobalName = ""
	if got := displayName(u); got != "alice123" {
		t.Errorf("got %q, want username fallback", got)
	}
}
