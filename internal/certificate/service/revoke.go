package service

import (
	"context"
	"strconv"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	"eduverify/pkg/domain"
	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/requestcontext"
)

// ResolveIndex finds cert's position in list: the first entry matching both
// hash and issuance time, else the first entry matching the hash.
func ResolveIndex(list []models.Certificate, cert models.Certificate) (int, error) {
	first := -1
	for i, c := range list {
		if c.IPFSHash != cert.IPFSHash {
			continue
		}
		if c.IssuedAt == cert.IssuedAt {
			return i, nil
		}
		if first < 0 {
			first = i
		}
	}
	if first >= 0 {
		return first, nil
	}
	return -1, dErrors.New(dErrors.CodeNotFound, "certificate not found for student")
}

// Revoke revokes the registry entry matching cert. The index is resolved
// against a list read under the student's lock immediately before the revoke
// call, never against a list the caller held. An entry that is already revoked
// is still sent; the registry's conflict is returned.
func (s *Service) Revoke(ctx context.Context, student domain.Address, cert models.Certificate) (*models.RevokeResult, error) {
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	if err := validateHash(cert.IPFSHash); err != nil {
		return nil, err
	}

	unlock, err := s.lockStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.List(ctx, student)
	if err != nil {
		s.recordRevocation(err)
		return nil, err
	}
	index, err := ResolveIndex(current, cert)
	if err != nil {
		s.recordRevocation(err)
		return nil, err
	}
	return s.revokeLocked(ctx, student, index)
}

// RevokeAt revokes the entry at an explicit index.
func (s *Service) RevokeAt(ctx context.Context, student domain.Address, index int) (*models.RevokeResult, error) {
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "index must not be negative")
	}

	unlock, err := s.lockStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.revokeLocked(ctx, student, index)
}

func (s *Service) revokeLocked(ctx context.Context, student domain.Address, index int) (*models.RevokeResult, error) {
	err := s.registry.RevokeCertificate(ctx, student, index)
	s.recordRevocation(err)
	if err != nil {
		s.logger.WarnContext(ctx, "certificate revocation failed",
			"request_id", requestcontext.RequestID(ctx),
			"student", student,
			"index", index,
			"error", err,
		)
		return nil, translate(err, MsgRevokeFailed)
	}

	s.emit(ctx, audit.ComplianceEvent{
		Student:  student,
		Subject:  "index:" + strconv.Itoa(index),
		Action:   string(audit.EventCertificateRevoked),
		Decision: "revoked",
	})

	result := &models.RevokeResult{Student: student, Index: index}
	result.Certificates, result.Refreshed = s.refresh(ctx, student)
	return result, nil
}

func (s *Service) recordRevocation(err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case dErrors.HasCode(err, dErrors.CodeNotFound) && !registry.IsKind(err, registry.KindIndexOutOfRange):
		result = "unresolved"
	default:
		result = string(registry.KindOf(err))
	}
	s.metrics.IncRevocation(result)
}
