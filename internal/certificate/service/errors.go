package service

import (
	"errors"

	"eduverify/internal/certificate/registry"
	"eduverify/pkg/domain"
	dErrors "eduverify/pkg/domain-errors"
	"eduverify/pkg/platform/sentinel"
)

// User-facing fallbacks when the registry gave no message.
const (
	MsgListFailed         = "Error fetching certificates"
	MsgIssueFailed        = "Issuance failed"
	MsgRevokeFailed       = "Revocation failed"
	MsgVerifyFailed       = "Verification failed"
	MsgRegistrationFailed = "Student registration failed"
)

var kindCodes = map[registry.Kind]dErrors.Code{
	registry.KindTransport:           dErrors.CodeUnavailable,
	registry.KindServer:              dErrors.CodeInternal,
	registry.KindNotFound:            dErrors.CodeNotFound,
	registry.KindUnregisteredStudent: dErrors.CodePrecondition,
	registry.KindAlreadyRegistered:   dErrors.CodeConflict,
	registry.KindAlreadyRevoked:      dErrors.CodeConflict,
	registry.KindIndexOutOfRange:     dErrors.CodeNotFound,
	registry.KindInvalidPayload:      dErrors.CodeValidation,
}

// translate maps a registry failure onto a domain code. The message is the
// registry's own when it sent one, otherwise fallback.
func translate(err error, fallback string) error {
	var re *registry.Error
	if !errors.As(err, &re) {
		return dErrors.Wrap(err, dErrors.CodeInternal, fallback)
	}
	code, ok := kindCodes[re.Kind]
	if !ok {
		code = dErrors.CodeInternal
	}
	msg := re.Message
	if msg == "" || re.Kind == registry.KindTransport {
		msg = fallback
	}
	return dErrors.Wrap(err, code, msg)
}

func translateLockError(err error) error {
	if errors.Is(err, sentinel.ErrLockTimeout) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "another action for this student is still in progress")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "student lock unavailable")
}

func validateStudent(student domain.Address) error {
	if _, err := domain.ParseAddress(student.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, dErrors.Message(err))
	}
	return nil
}

func validateHash(hash domain.ContentHash) error {
	if _, err := domain.ParseContentHash(hash.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, dErrors.Message(err))
	}
	return nil
}
