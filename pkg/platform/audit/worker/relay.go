// Package worker relays audit events from the transactional outbox to Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"grc/pkg/platform/audit/store/postgres"
)

// Outbox is the slice of the postgres audit store the relay needs.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Producer publishes a keyed message to a topic.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and publishes unpublished entries in creation order.
type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// Option configures the Relay.
type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(outbox Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns the number of entries relayed.
// Entries are published in order and stop at the first failure so that
// ordering per aggregate is preserved.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	published := make([]string, 0, len(entries))
	var publishErr error
	for _, e := range entries {
		key := []byte(e.AggregateType + ":" + e.AggregateID)
		if err := r.producer.Publish(ctx, r.topic, key, e.Payload); err != nil {
			publishErr = err
			break
		}
		published = append(published, e.ID)
	}
	if err := r.outbox.MarkPublished(ctx, published, time.Now().UTC()); err != nil {
		return 0, err
	}
	return len(published), publishErr
}
