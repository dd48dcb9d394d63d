package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"onboardingportal/internal/platform/metrics"
)

// Publisher routes events by category. Compliance events are written
// synchronously with fail-closed semantics: if the append fails, the
// calling operation MUST fail. Security and operations events go through
// the async inbox and are fire-and-forget.
type Publisher struct {
	store   Store
	inbox   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher feeding the given store. The inbox is
// drained by a Worker; its capacity bounds how far async emission can run
// ahead of persistence.
func NewPublisher(store Store, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		store:   store,
		inbox:   make(chan Event, 1024),
		logger:  logger,
		metrics: m,
	}
}

// Inbox exposes the async channel for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// Emit records an event. Compliance events block until persisted and
// propagate the error; other categories never fail the caller.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires an action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if event.Action.Category() == CategoryCompliance {
		if err := p.store.Append(ctx, event); err != nil {
			p.metrics.AuditFailures.Inc()
			p.logger.ErrorContext(ctx, "compliance audit append failed",
				"action", event.Action,
				"user_id", event.UserID,
				"error", err,
			)
			return fmt.Errorf("compliance audit: %w", err)
		}
		return nil
	}

	select {
	case p.inbox <- event:
	default:
		// A full inbox means the worker is down or badly behind. Dropping
		// a non-compliance event is preferable to blocking request paths.
		p.metrics.AuditFailures.Inc()
		p.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", event.Action,
		)
	}
	return nil
}

// Worker consumes async audit events from the publisher inbox and persists
// them.
type Worker struct {
	store   Store
	inbox   <-chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger, m *metrics.Metrics) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger, metrics: m}
}

// Run blocks until ctx is cancelled, appending events as they arrive.
// Append errors are logged, not fatal: losing one operations event must not
// stop the trail.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.metrics.AuditFailures.Inc()
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
