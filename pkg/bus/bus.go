package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed EventBus.
var ErrBusClosed = errors.New("event bus closed")

// EventBus carries inbound events from platform channels to the relay engine.
// Each platform gets its own buffered queue so a slow consumer on one side of
// the bridge never blocks intake on the other.
type EventBus struct {
	queues map[Platform]chan InboundEvent
	done   chan struct{}
	closed atomic.Bool
}

// NewEventBus creates a bus with one queue per given platform.
func NewEventBus(platforms ...Platform) *EventBus {
	queues := make(map[Platform]chan InboundEvent, len(platforms))
	for _, p := range platforms {
		queues[p] = make(chan InboundEvent, 100)
	}
	return &EventBus{
		queues: queues,
		done:   make(chan struct{}),
	}
}

// PublishInbound enqueues an event on its source platform's queue.
func (b *EventBus) PublishInbound(ctx context.Context, ev InboundEvent) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	q, ok := b.queues[ev.Platform]
	if !ok {
		return fmt.Errorf("no queue for platform %q", ev.Platform)
	}
	select {
	case q <- ev:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound blocks until an event from the given platform is available.
// The second return value is false when the bus is closed or ctx is done.
func (b *EventBus) ConsumeInbound(ctx context.Context, p Platform) (InboundEvent, bool) {
	q, ok := b.queues[p]
	if !ok {
		return InboundEvent{}, false
	}
	select {
	case ev, ok := <-q:
		return ev, ok
	case <-b.done:
		return InboundEvent{}, false
	case <-ctx.Done():
		return InboundEvent{}, false
	}
}

// Platforms returns the platforms this bus carries queues for.
func (b *EventBus) Platforms() []Platform {
	out := make([]Platform, 0, len(b.queues))
	for p := range b.queues {
		out = append(out, p)
	}
	return out
}

func (b *EventBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}
