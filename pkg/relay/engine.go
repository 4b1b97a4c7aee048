// Package relay implements the bridging core: loop-guard and dedup filtering,
// identity and attachment translation, and retried delivery to the opposite
// platform. Platform connectivity lives in pkg/channels; the engine only sees
// bus events and Sender capabilities.
package relay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/crosswire/pkg/bus"
	"github.com/tinyland-inc/crosswire/pkg/logger"
)

// Sender is the outbound send capability of one platform.
type Sender interface {
	Send(ctx context.Context, out bus.OutboundContext) error
}

// Options bound the engine's retry, timeout and retention behavior.
type Options struct {
	LedgerCapacity int
	SendAttempts   int           // total attempts per outbound unit
	SendTimeout    time.Duration // per attempt
	FetchTimeout   time.Duration // per attachment fetch
	AvatarTimeout  time.Duration
	SuppressBots   bool
	ShutdownGrace  time.Duration
}

// DefaultOptions returns the bounds used unless config overrides them.
func DefaultOptions() Options {
	return Options{
		LedgerCapacity: DefaultLedgerCapacity,
		SendAttempts:   3,
		SendTimeout:    15 * time.Second,
		FetchTimeout:   30 * time.Second,
		AvatarTimeout:  5 * time.Second,
		SuppressBots:   true,
		ShutdownGrace:  10 * time.Second,
	}
}

// Engine consumes events from both platform queues and relays each one to the
// opposite platform. It owns the only cross-stream shared state, the
// DedupLedger; each direction runs as its own consumer goroutine so a slow
// send on one side never stalls intake from the other.
type Engine struct {
	bus     *bus.EventBus
	guard   *LoopGuard
	ledger  *DedupLedger
	routes  map[bus.Platform]bus.Platform
	senders map[bus.Platform]Sender
	opts    Options
	wg      sync.WaitGroup
}

// NewEngine creates an engine reading from eb. Directions are added with Bind.
func NewEngine(eb *bus.EventBus, opts Options) *Engine {
	if opts.SendAttempts <= 0 {
		opts.SendAttempts = 1
	}
	return &Engine{
		bus:     eb,
		guard:   NewLoopGuard(opts.SuppressBots),
		ledger:  NewDedupLedger(opts.LedgerCapacity),
		routes:  make(map[bus.Platform]bus.Platform),
		senders: make(map[bus.Platform]Sender),
		opts:    opts,
	}
}

// Guard exposes the loop guard so channels can register their bot identity.
func (e *Engine) Guard() *LoopGuard { return e.guard }

// Ledger exposes the dedup ledger for introspection.
func (e *Engine) Ledger() *DedupLedger { return e.ledger }

// Bind routes events arriving from one platform to the target's sender.
// Call once per direction.
func (e *Engine) Bind(from, to bus.Platform, target Sender) {
	e.routes[from] = to
	e.senders[to] = target
}

// Run consumes both queues until ctx is canceled. It blocks; run it in a
// goroutine and pair it with Stop.
func (e *Engine) Run(ctx context.Context) {
	for from := range e.routes {
		e.wg.Add(1)
		go func(p bus.Platform) {
			defer e.wg.Done()
			e.consume(ctx, p)
		}(from)
	}
	e.wg.Wait()
}

// Stop waits for in-flight relay operations to finish, up to the shutdown
// grace period.
func (e *Engine) Stop() {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.opts.ShutdownGrace):
		logger.WarnC("relay", "Shutdown grace period expired, abandoning in-flight operations")
	}
}

func (e *Engine) consume(ctx context.Context, from bus.Platform) {
	for {
		ev, ok := e.bus.ConsumeInbound(ctx, from)
		if !ok {
			return
		}
		e.handleEvent(ctx, ev)
	}
}

// handleEvent drives one event through the relay states: loop-guard filter,
// dedup, translate, send. Events are processed to completion in intake order,
// which preserves relative send order within a direction.
func (e *Engine) handleEvent(ctx context.Context, ev bus.InboundEvent) {
	if e.guard.IsSelfOriginated(ev) {
		logger.DebugCF("relay", "Suppressed self-originated event", map[string]any{
			"platform": string(ev.Platform),
			"event_id": ev.EventID,
		})
		return
	}

	key := RelayKey(ev)
	if !e.ledger.CheckAndRecord(ev.Platform, key) {
		logger.DebugCF("relay", "Suppressed duplicate event", map[string]any{
			"platform": string(ev.Platform),
			"key":      key,
		})
		return
	}

	target, ok := e.routes[ev.Platform]
	if !ok {
		logger.WarnCF("relay", "No route for platform", map[string]any{
			"platform": string(ev.Platform),
		})
		return
	}
	sender := e.senders[target]

	opID := uuid.New().String()[:8]
	ident := ResolveIdentity(ctx, ev, e.opts.AvatarTimeout)

	if ev.Text != "" {
		out := bus.OutboundContext{
			DisplayName: ident.Name,
			AvatarRef:   ident.Avatar,
			Text:        ev.Text,
		}
		if err := e.sendWithRetry(ctx, sender, out); err != nil {
			logger.ErrorCF("relay", "Text delivery dropped", map[string]any{
				"op":     opID,
				"target": string(target),
				"error":  err.Error(),
			})
		}
	}

	for _, att := range ev.Attachments {
		out, err := e.buildAttachment(ctx, ident, att)
		if err != nil {
			// One bad attachment degrades to a notice; the rest still go out.
			logger.WarnCF("relay", "Attachment fetch degraded to notice", map[string]any{
				"op":       opID,
				"filename": att.Filename,
				"error":    err.Error(),
			})
			out = bus.OutboundContext{
				DisplayName: ident.Name,
				AvatarRef:   ident.Avatar,
				Text:        fmt.Sprintf("[attachment unavailable: %s]", att.Filename),
			}
		}
		if err := e.sendWithRetry(ctx, sender, out); err != nil {
			logger.ErrorCF("relay", "Attachment delivery dropped", map[string]any{
				"op":       opID,
				"filename": att.Filename,
				"target":   string(target),
				"error":    err.Error(),
			})
		}
	}
}

func (e *Engine) buildAttachment(ctx context.Context, ident OutboundIdentity, att bus.AttachmentRef) (bus.OutboundContext, error) {
	if att.Fetch == nil {
		return bus.OutboundContext{}, fmt.Errorf("attachment %q has no fetch capability", att.Filename)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	data, err := att.Fetch(fetchCtx)
	cancel()
	if err != nil {
		return bus.OutboundContext{}, fmt.Errorf("fetch %q: %w", att.Filename, err)
	}
	return bus.OutboundContext{
		DisplayName: ident.Name,
		AvatarRef:   ident.Avatar,
		Attachment: &bus.AttachmentPayload{
			Data:     data,
			Filename: att.Filename,
			Kind:     Classify(att.Filename, att.ContentType),
		},
	}, nil
}

// sendWithRetry delivers one outbound unit with exponential backoff and
// jitter on transient failures. Permanent rejections are returned
// immediately; exhausted retries return the last error. Either way the
// caller logs and drops, so a failed unit never blocks the event stream.
func (e *Engine) sendWithRetry(ctx context.Context, sender Sender, out bus.OutboundContext) error {
	var lastErr error
	for attempt := 0; attempt < e.opts.SendAttempts; attempt++ {
		if attempt > 0 {
			base := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			backoff := base + time.Duration(rand.Int64N(int64(base/2+1)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, e.opts.SendTimeout)
		err := sender.Send(sendCtx, out)
		cancel()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
		logger.WarnCF("relay", "Transient send failure, will retry", map[string]any{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return fmt.Errorf("after %d attempts: %w", e.opts.SendAttempts, lastErr)
}
