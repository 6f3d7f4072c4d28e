package service

import (
	"context"
	"strconv"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/requestcontext"
)

// Verify asks the registry whether the entry at q.Index matches q.Hash and
// is not revoked. A failed lookup is CheckFailed with the cause attached and
// is never reported as Invalid. Only malformed queries return an error.
func (s *Service) Verify(ctx context.Context, q models.VerificationQuery) (models.VerificationResult, error) {
	if err := validateStudent(q.Student); err != nil {
		return models.VerificationResult{}, err
	}
	if err := validateHash(q.Hash); err != nil {
		return models.VerificationResult{}, err
	}
	if q.Index < 0 {
		return models.VerificationResult{}, dErrors.New(dErrors.CodeValidation, "index must not be negative")
	}

	result := models.VerificationResult{Query: q}
	valid, err := s.registry.VerifyCertificate(ctx, q)
	switch {
	case err != nil:
		result.Outcome = models.OutcomeCheckFailed
		result.Err = translate(err, MsgVerifyFailed)
		s.logger.WarnContext(ctx, "certificate verification check failed",
			"request_id", requestcontext.RequestID(ctx),
			"student", q.Student,
			"index", q.Index,
			"ipfs_hash", q.Hash,
			"error", err,
		)
	case valid:
		result.Outcome = models.OutcomeValid
	default:
		result.Outcome = models.OutcomeInvalid
	}

	if s.metrics != nil {
		s.metrics.IncVerification(string(result.Outcome))
	}
	event := audit.OpsEvent{
		Student:  q.Student,
		Subject:  q.Hash.String() + "@" + strconv.Itoa(q.Index),
		Action:   string(audit.EventCertificateVerified),
		Decision: string(result.Outcome),
	}
	if err != nil {
		event.Reason = string(registry.KindOf(err))
	}
	s.track(ctx, event)
	return result, nil
}
