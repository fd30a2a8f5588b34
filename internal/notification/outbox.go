package notification

import (
	"context"
	"log/slog"

	"auditflow/internal/syncstore"
)

// Sink receives a copy of every persisted notification, for external
// consumers (e.g. the Kafka event stream). Sinks are best effort.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// Outbox decouples notification persistence from the transitions that
// produce notifications. Enqueue never blocks and never fails the caller;
// the worker persists entries and forwards them to the sink, logging and
// swallowing every failure. A full outbox drops (and counts) entries
// rather than back-pressuring a workflow transition.
type Outbox struct {
	inbox  chan Notification
	logger *slog.Logger
}

// NewOutbox creates an outbox with the given buffer capacity.
func NewOutbox(capacity int, logger *slog.Logger) *Outbox {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Outbox{
		inbox:  make(chan Notification, capacity),
		logger: logger,
	}
}

// Enqueue hands a notification to the worker without blocking.
func (o *Outbox) Enqueue(n Notification) {
	select {
	case o.inbox <- n:
	default:
		o.logger.Warn("notification outbox full, dropping entry",
			"recipient_id", n.RecipientID.String(),
			"type", string(n.Type),
		)
	}
}

// Worker drains the outbox into the sync layer and the optional sink.
type Worker struct {
	outbox *Outbox
	sync   *syncstore.Layer
	sink   Sink // nil when no event stream is configured
	logger *slog.Logger
}

// NewWorker wires an outbox drainer. sink may be nil.
func NewWorker(outbox *Outbox, sync *syncstore.Layer, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{outbox: outbox, sync: sync, sink: sink, logger: logger}
}

// Run processes entries until ctx ends. Persistence and sink failures are
// logged and dropped: they must never surface to the triggering transition.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-w.outbox.inbox:
			w.deliver(ctx, n)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, n Notification) {
	if _, err := w.sync.Put(ctx, syncstore.CollectionNotifications, n.ID.String(), n); err != nil {
		w.logger.WarnContext(ctx, "notification persistence failed",
			"notification_id", n.ID.String(), "error", err)
		return
	}
	if w.sink == nil {
		return
	}
	if err := w.sink.Publish(ctx, n); err != nil {
		w.logger.WarnContext(ctx, "notification sink publish failed",
			"notification_id", n.ID.String(), "error", err)
	}
}

// DrainOnce processes a single entry synchronously; tests use it to make
// delivery deterministic.
func (w *Worker) DrainOnce(ctx context.Context) bool {
	select {
	case n := <-w.outbox.inbox:
		w.deliver(ctx, n)
		return true
	default:
		return false
	}
}
