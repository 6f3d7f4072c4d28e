package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the normalized failure taxonomy of registry calls. Callers branch on
// Kind only; message text is classified once, in decodeError.
type Kind string

const (
	// KindTransport covers network failures, timeouts and an open circuit.
	KindTransport Kind = "transport"

	// KindNotFound means the addressed student or record does not exist.
	KindNotFound Kind = "not_found"

	// KindUnregisteredStudent is the issuance precondition failure.
	KindUnregisteredStudent Kind = "unregistered_student"

	// KindAlreadyRegistered is returned when registering a known student.
	KindAlreadyRegistered Kind = "already_registered"

	// KindAlreadyRevoked is returned when revoking a revoked certificate.
	KindAlreadyRevoked Kind = "already_revoked"

	// KindIndexOutOfRange means the certificate index does not exist.
	KindIndexOutOfRange Kind = "index_out_of_range"

	// KindInvalidPayload covers rejected or oversized requests.
	KindInvalidPayload Kind = "invalid_payload"

	// KindServer is any other registry-side failure.
	KindServer Kind = "server"
)

// Op names a registry operation.
type Op string

const (
	OpList     Op = "list"
	OpUpload   Op = "upload"
	OpRegister Op = "register_student"
	OpIssue    Op = "issue"
	OpRevoke   Op = "revoke"
	OpVerify   Op = "verify"
)

// Error is returned by every Client method.
type Error struct {
	Kind       Kind
	Op         Op
	Status     int    // HTTP status, 0 when no response was received
	Message    string // registry-provided message when present
	Underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("registry %s [%s]: %s: %v", e.Op, e.Kind, msg, e.Underlying)
	}
	return fmt.Sprintf("registry %s [%s]: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// KindOf extracts the Kind of a registry error; non-registry errors are KindServer.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindServer
}

// IsKind reports whether err is a registry error of kind k.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

// IsRetryable reports whether the failure is worth retrying for idempotent reads.
func IsRetryable(err error) bool {
	return IsKind(err, KindTransport)
}

// countsAsOutage reports whether err says something about registry health.
// Business rejections prove the registry is up and answering.
func countsAsOutage(err error) bool {
	k := KindOf(err)
	return k == KindTransport || k == KindServer
}

// errorBody is the registry's error envelope. Code is optional; registries
// that predate it send only Error.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var codeKinds = map[string]Kind{
	"not_found":            KindNotFound,
	"student_not_found":    KindNotFound,
	"unregistered_student": KindUnregisteredStudent,
	"not_registered":       KindUnregisteredStudent,
	"already_registered":   KindAlreadyRegistered,
	"already_revoked":      KindAlreadyRevoked,
	"index_out_of_range":   KindIndexOutOfRange,
	"invalid_index":        KindIndexOutOfRange,
	"invalid_payload":      KindInvalidPayload,
}

// messageKinds classifies registries that only send human-readable errors.
// Keep this table the single place that reads message text.
var messageKinds = []struct {
	fragment string
	kind     Kind
}{
	{"not a registered student", KindUnregisteredStudent},
	{"student not registered", KindUnregisteredStudent},
	{"already registered", KindAlreadyRegistered},
	{"already revoked", KindAlreadyRevoked},
	{"invalid index", KindIndexOutOfRange},
	{"invalid certificate index", KindIndexOutOfRange},
	{"index out of", KindIndexOutOfRange},
	{"student not found", KindNotFound},
}

// decodeError turns a non-2xx response into an Error.
func decodeError(op Op, status int, body errorBody) *Error {
	e := &Error{Op: op, Status: status, Message: strings.TrimSpace(body.Error)}

	if k, ok := codeKinds[strings.ToLower(strings.TrimSpace(body.Code))]; ok {
		e.Kind = k
		return e
	}

	lower := strings.ToLower(e.Message)
	for _, mk := range messageKinds {
		if strings.Contains(lower, mk.fragment) {
			e.Kind = mk.kind
			return e
		}
	}

	e.Kind = kindForStatus(op, status)
	return e
}

func kindForStatus(op Op, status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		switch op {
		case OpRegister:
			return KindAlreadyRegistered
		case OpRevoke:
			return KindAlreadyRevoked
		}
		return KindServer
	case http.StatusPreconditionFailed:
		if op == OpIssue {
			return KindUnregisteredStudent
		}
		return KindServer
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return KindInvalidPayload
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindTransport
	}
	return KindServer
}
