package service

import (
	"context"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	"eduverify/pkg/domain"
	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/requestcontext"
)

const (
	issuePathDirect     = "direct"
	issuePathRegistered = "registered"
)

// Issue uploads doc and issues a certificate for student referencing its hash.
//
// An unregistered student is registered (an already-registered answer counts
// as success) and issuance is retried exactly once. Any other failure, or a
// failure of the repair path, ends the action. The returned result carries a
// fresh list read after issuance when that read succeeded.
func (s *Service) Issue(ctx context.Context, student domain.Address, doc models.Document) (*models.IssueResult, error) {
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a certificate document is required")
	}

	unlock, err := s.lockStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	defer unlock()

	hash, err := s.registry.UploadDocument(ctx, doc)
	if err != nil {
		s.recordIssuance(issuePathDirect, err)
		s.logger.WarnContext(ctx, "certificate upload failed",
			"request_id", requestcontext.RequestID(ctx),
			"student", student,
			"error", err,
		)
		return nil, translate(err, MsgIssueFailed)
	}

	path := issuePathDirect
	err = s.registry.IssueCertificate(ctx, student, hash, models.NeverExpires)
	if registry.IsKind(err, registry.KindUnregisteredStudent) {
		path = issuePathRegistered
		s.logger.InfoContext(ctx, "student not registered, registering before retry",
			"request_id", requestcontext.RequestID(ctx),
			"student", student,
			"ipfs_hash", hash,
		)
		if rerr := s.register(ctx, student); rerr != nil {
			s.recordIssuance(path, rerr)
			return nil, translate(rerr, MsgRegistrationFailed)
		}
		err = s.registry.IssueCertificate(ctx, student, hash, models.NeverExpires)
	}
	s.recordIssuance(path, err)
	if err != nil {
		s.logger.WarnContext(ctx, "certificate issuance failed",
			"request_id", requestcontext.RequestID(ctx),
			"student", student,
			"ipfs_hash", hash,
			"error", err,
		)
		return nil, translate(err, MsgIssueFailed)
	}

	s.emit(ctx, audit.ComplianceEvent{
		Student:  student,
		Subject:  hash.String(),
		Action:   string(audit.EventCertificateIssued),
		Decision: path,
	})

	result := &models.IssueResult{
		Student:     student,
		ContentHash: hash,
		Registered:  path == issuePathRegistered,
	}
	result.Certificates, result.Refreshed = s.refresh(ctx, student)
	return result, nil
}

// register creates the student's registry entry; already_registered is success.
func (s *Service) register(ctx context.Context, student domain.Address) error {
	err := s.registry.RegisterStudent(ctx, student)
	if registry.IsKind(err, registry.KindAlreadyRegistered) {
		return nil
	}
	if err != nil {
		return err
	}
	s.emit(ctx, audit.ComplianceEvent{
		Student:  student,
		Action:   string(audit.EventStudentRegistered),
		Decision: "registered",
	})
	return nil
}

func (s *Service) recordIssuance(path string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(registry.KindOf(err))
	}
	s.metrics.IncIssuance(path, result)
}
