// Package ops provides a fire-and-forget audit tracker for routine events.
//
// Tracking never fails the caller: events may be sampled away, dropped while
// the store's circuit is open, or lost on a failed write.
//
// Use for: certificate_verified
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/platform/circuit"
)

type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		t.sampler = s
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(t *Tracker) {
		t.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1),
		breaker: circuit.New("audit-ops", circuit.WithCooldown(time.Minute)),
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track records event if it survives sampling and the store breaker.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if !t.sampler.ShouldSample(event.Action) {
		t.metrics.observe(event.Action, outcomeSampledOut)
		return
	}
	if !t.breaker.Allow() {
		t.metrics.observe(event.Action, outcomeShed)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}

	err := t.store.Append(ctx, event.ToEvent())
	if err == nil {
		if _, change := t.breaker.RecordSuccess(); change.Closed {
			t.metrics.breaker(false)
		}
		t.metrics.observe(event.Action, outcomeStored)
		return
	}

	if _, change := t.breaker.RecordFailure(); change.Opened {
		t.metrics.breaker(true)
		t.logger.WarnContext(ctx, "ops audit store unhealthy, shedding events", "breaker", t.breaker.Name())
	}
	t.metrics.observe(event.Action, outcomeFailed)
	t.logger.DebugContext(ctx, "ops audit dropped",
		"action", event.Action,
		"student", event.Student,
		"request_id", event.RequestID,
		"error", err,
	)
}
