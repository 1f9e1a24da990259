// Package audit captures structured audit events emitted by domain services.
// Events flow to a Store (local persistence, tests) and optionally to Kafka
// for downstream compliance and security consumers.
package audit

import (
	"context"
	"log/slog"

	id "pehchan/pkg/domain"
	"pehchan/pkg/requestcontext"
)

// Store is an append-only event sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Publisher enriches and forwards audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records an event, filling category, timestamp, and request metadata
// from context when absent. Emit failures are reported to the caller but must
// never roll back a committed state transition; services log and continue.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, event.Action,
			"log_type", "audit",
			"category", string(event.Category),
			"subject", event.Subject,
			"decision", event.Decision,
			"reason", event.Reason,
			"request_id", event.RequestID,
		)
	}
	return p.store.Append(ctx, event)
}

// ListBySubject returns events recorded for one verification.
func (p *Publisher) ListBySubject(ctx context.Context, verificationID id.VerificationID) ([]Event, error) {
	return p.store.ListBySubject(ctx, verificationID.String())
}
