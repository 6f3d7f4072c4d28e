package domain

import (
	"strconv"
	"strings"
	"unicode"

	dErrors "eduverify/pkg/domain-errors"
)

const maxContentHashLen = 128

// ContentHash is the file-store key of a certificate document.
type ContentHash string

// ParseContentHash validates a content hash. The hash travels as a URL path
// segment, so whitespace and slashes are rejected.
func ParseContentHash(s string) (ContentHash, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content hash is required")
	}
	if len(s) > maxContentHashLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content hash is too long")
	}
	for _, r := range s {
		if r == '/' || r == '?' || r == '#' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "content hash contains invalid characters")
		}
	}
	return ContentHash(s), nil
}

func (h ContentHash) String() string { return string(h) }

func (h ContentHash) IsZero() bool { return h == "" }

// Short renders the first 16 characters followed by "...".
func (h ContentHash) Short() string {
	if len(h) <= 16 {
		return string(h)
	}
	return string(h[:16]) + "..."
}

// ParseIndex parses a certificate position within a student's sequence.
func ParseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "index is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "index must be an integer")
	}
	if n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "index must not be negative")
	}
	return n, nil
}
