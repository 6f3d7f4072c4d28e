// Package compliance writes registry-mutation audit events synchronously.
// A write that fails is returned to the caller.
package compliance

import (
	"context"
	"log/slog"
	"time"

	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New returns a publisher writing to store. Pair it with an outbox-backed
// store when events must leave the process.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists event before returning. Only actions classified as
// compliance (issue, revoke, register) are accepted.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := validate(event); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	start := time.Now()
	err := p.store.Append(ctx, event.ToEvent())
	p.metrics.observe(event.Action, err, time.Since(start))
	if err != nil {
		p.logger.ErrorContext(ctx, "compliance audit write failed",
			"action", event.Action,
			"student", event.Student,
			"subject", event.Subject,
			"request_id", event.RequestID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "audit record for "+event.Action+" not persisted")
	}
	return nil
}

func validate(event audit.ComplianceEvent) error {
	switch {
	case event.Student.IsZero():
		return dErrors.New(dErrors.CodeValidation, "compliance event has no student")
	case event.Action == "":
		return dErrors.New(dErrors.CodeValidation, "compliance event has no action")
	case audit.AuditEvent(event.Action).Category() != audit.CategoryCompliance:
		return dErrors.New(dErrors.CodeInvalidInput, event.Action+" is not a compliance action")
	}
	return nil
}
