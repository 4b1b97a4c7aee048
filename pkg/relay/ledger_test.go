package relay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tinyland-inc/crosswire/pkg/bus"
)

func TestRelayKey_PrefersEventID(t *testing.T) {
	ev := bus.InboundEvent{EventID: "42", SenderID: "alice", Text: "hi"}
	if got := RelayKey(ev); got != "id:42" {
		t.Errorf("got %q, want %q", got, "id:42")
	}
}

func TestRelayKey_TextFallback(t *testing.T) {
	ev := bus.InboundEvent{SenderID: "alice", Text: "  Hello World  "}
	k1 := RelayKey(ev)
	k2 := RelayKey(bus.InboundEvent{SenderID: "alice", Text: "hello world"})
	if k1 != k2 {
		t.Errorf("normalized text should collapse: %q vs %q", k1, k2)
	}
	k3 := RelayKey(bus.InboundEvent{SenderID: "bob", Text: "hello world"})
	if k1 == k3 {
		t.Error("different senders should not collide")
	}
}

func TestDedupLedger_FirstSightOnly(t *testing.T) {
	l := NewDedupLedger(16)

	if !l.CheckAndRecord("alpha", "k1") {
		t.Error("first sighting should pass")
	}
	if l.CheckAndRecord("alpha", "k1") {
		t.Error("repeat should be suppressed")
	}
	if !l.CheckAndRecord("alpha", "k2") {
		t.Error("distinct key should pass")
	}
}

func TestDedupLedger_PerPlatformScope(t *testing.T) {
	l := NewDedupLedger(16)

	l.CheckAndRecord("alpha", "k1")
	if !l.CheckAndRecord("beta", "k1") {
		t.Error("same key on another platform is a distinct message")
	}
}

func TestDedupLedger_EvictsOldest(t *testing.T) {
	l := NewDedupLedger(3)

	for i := 1; i <= 4; i++ {
		l.CheckAndRecord("alpha", fmt.Sprintf("k%d", i))
	}
	if got := l.Len("alpha"); got != 3 {
		t.Errorf("Len: got %d, want 3", got)
	}
	// k1 was evicted, so a genuine repeat relays again.
	if !l.CheckAndRecord("alpha", "k1") {
		t.Error("evicted key should pass again")
	}
	if l.CheckAndRecord("alpha", "k4") {
		t.Error("retained key should still be suppressed")
	}
}

func TestDedupLedger_ZeroCapacityFallsBack(t *testing.T) {
	l := NewDedupLedger(0)
	for i := 0; i < DefaultLedgerCapacity; i++ {
		l.CheckAndRecord("alpha", fmt.Sprintf("k%d", i))
	}
	if got := l.Len("alpha"); got != DefaultLedgerCapacity {
		t.Errorf("Len: got %d, want %d", got, DefaultLedgerCapacity)
	}
}

func TestDedupLedger_ConcurrentCheckAndRecord(t *testing.T) {
	l := NewDedupLedger(16)

	var passed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecord("alpha", "contested") {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := passed.Load(); got != 1 {
		t.Errorf("exactly one concurrent caller should pass, got %d", got)
	}
}
