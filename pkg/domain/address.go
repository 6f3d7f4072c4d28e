// Package domain holds the identity and hash value types shared by every
// layer. Parsing happens once at trust boundaries; past that point the types
// are assumed valid.
package domain

import (
	"strings"

	dErrors "eduverify/pkg/domain-errors"
)

const (
	addressPrefix   = "0x"
	addressHexChars = 40
)

// Address identifies a registry participant (student or institution).
// Case is preserved because the registry compares addresses verbatim.
type Address string

// ParseAddress validates a participant address: "0x" followed by 1 to 40 hex digits.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if !strings.HasPrefix(s, addressPrefix) && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	digits := s[len(addressPrefix):]
	if digits == "" || len(digits) > addressHexChars {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must have between 1 and 40 hex digits")
	}
	for _, r := range digits {
		if !isHex(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
		}
	}
	return Address(s), nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

// IsCanonical reports whether the address has the full 40-digit form.
func (a Address) IsCanonical() bool {
	return len(a) == len(addressPrefix)+addressHexChars
}

// Key is the lowercase form used for lock and cache keys. Display keeps the
// original casing.
func (a Address) Key() string { return strings.ToLower(string(a)) }

// Short renders the address as "0x1234...abcd" for display. Addresses too
// short to abbreviate are returned unchanged.
func (a Address) Short() string {
	s := string(a)
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
