// Package service orchestrates the certificate lifecycle over the remote
// registry: issuance with one-shot registration repair, index-resolved
// revocation, verification and listing. Methods are plain context-taking
// functions; presentation state lives in the adapters.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"eduverify/internal/certificate/lock"
	"eduverify/internal/certificate/models"
	"eduverify/internal/platform/metrics"
	"eduverify/pkg/domain"
	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/requestcontext"
)

// Registry is the subset of the registry client the service drives.
type Registry interface {
	ListCertificates(ctx context.Context, student domain.Address) ([]models.Certificate, error)
	UploadDocument(ctx context.Context, doc models.Document) (domain.ContentHash, error)
	RegisterStudent(ctx context.Context, student domain.Address) error
	IssueCertificate(ctx context.Context, student domain.Address, hash domain.ContentHash, expiresAt int64) error
	RevokeCertificate(ctx context.Context, student domain.Address, index int) error
	VerifyCertificate(ctx context.Context, q models.VerificationQuery) (bool, error)
}

// AuditPublisher records registry mutations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// OpsTracker records routine lookups; it never fails the caller.
type OpsTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

type Service struct {
	registry Registry
	locker   lock.Locker
	auditor  AuditPublisher
	tracker  OpsTracker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) {
		s.tracker = t
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(registry Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		locker:   lock.NewMemoryLocker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// lockStudent takes the per-student mutation lock. New actions for the same
// student queue behind the one in flight.
func (s *Service) lockStudent(ctx context.Context, student domain.Address) (lock.Unlock, error) {
	start := time.Now()
	unlock, err := s.locker.Lock(ctx, student)
	if s.metrics != nil {
		s.metrics.ObserveLockWait(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, translateLockError(err)
	}
	return unlock, nil
}

// refresh re-reads the student's list after a mutation. A failed refresh is
// logged and reported as false; the mutation already happened.
func (s *Service) refresh(ctx context.Context, student domain.Address) ([]models.Certificate, bool) {
	certs, err := s.List(ctx, student)
	if err != nil {
		s.logger.WarnContext(ctx, "certificate list refresh failed",
			"request_id", requestcontext.RequestID(ctx),
			"student", student,
			"error", err,
		)
		return nil, false
	}
	return certs, true
}

// emit writes a compliance event. The registry mutation it describes cannot
// be undone, so a failed write is logged and not returned.
func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "certificate audit failed",
			"request_id", event.RequestID,
			"action", event.Action,
			"student", event.Student,
			"error", err,
		)
	}
}

func (s *Service) track(ctx context.Context, event audit.OpsEvent) {
	if s.tracker == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	s.tracker.Track(ctx, event)
}
