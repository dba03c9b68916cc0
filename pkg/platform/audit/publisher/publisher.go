// Package publisher emits audit events either synchronously (fail-closed,
// the caller sees persistence errors) or through a bounded async buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "grc/pkg/platform/audit"
	"grc/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	queue chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for dropped or failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to async mode with the given
// buffer size. Events are dropped (and logged) when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.Event, size)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit enriches the event from the request context and stores it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = Enrich(ctx, event)
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
	return nil
}

// Append makes the publisher usable wherever an audit.Store is expected.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	return p.Emit(ctx, event)
}

// ListRecent returns recent events from the backing store.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close drains buffered events. Safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.queue != nil {
			close(p.queue)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"error", err,
			)
		}
	}
}

// Enrich fills timestamp, actor, category and correlation fields from ctx
// when the caller left them empty.
func Enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.ActorID == 0 {
		event.ActorID = requestcontext.PersonID(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientAgent == "" {
		event.ClientAgent = requestcontext.ClientAgent(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	return event
}
