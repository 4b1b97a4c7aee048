package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	fn()
	return buf.String()
}

func TestLevelFiltering(t *testing.T) {
	SetLevel(WARN)
	defer SetLevel(INFO)

	got := capture(t, func() {
		DebugC("test", "debug line")
		InfoC("test", "info line")
		WarnC("test", "warn line")
		ErrorC("test", "error line")
	})

	if strings.Contains(got, "debug line") || strings.Contains(got, "info line") {
		t.Errorf("lines below WARN leaked: %q", got)
	}
	if !strings.Contains(got, "warn line") || !strings.Contains(got, "error line") {
		t.Errorf("expected WARN and ERROR lines: %q", got)
	}
}

func TestComponentTag(t *testing.T) {
	SetLevel(INFO)
	got := capture(t, func() {
		InfoC("relay", "started")
	})
	if !strings.Contains(got, "[INFO] [relay] started") {
		t.Errorf("got %q", got)
	}
}

func TestFieldsSorted(t *testing.T) {
	SetLevel(INFO)
	got := capture(t, func() {
		InfoCF("relay", "event", map[string]any{"zeta": 1, "alpha": 2})
	})
	if !strings.Contains(got, "alpha=2 zeta=1") {
		t.Errorf("fields should be in key order: %q", got)
	}
}
