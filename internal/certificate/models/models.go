// Package models defines the certificate registry value types shared by the
// registry client, the lifecycle service and the presentation adapters.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"eduverify/pkg/domain"
)

// NeverExpires is the expiresAt value the registry reads as "no expiry".
const NeverExpires int64 = 0

// Timestamp is seconds since the Unix epoch. The registry serialises chain
// integers either as JSON numbers or as decimal strings; both are accepted.
type Timestamp int64

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*t = Timestamp(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(n)
	return nil
}

// Time converts to time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Certificate is one issued credential as held by the registry.
// Index is the position in the student's sequence; the registry does not
// send it, the client assigns it from list order.
type Certificate struct {
	IssuedTo  domain.Address     `json:"issuedTo"`
	IssuedBy  domain.Address     `json:"issuedBy"`
	IPFSHash  domain.ContentHash `json:"ipfsHash"`
	IssuedAt  Timestamp          `json:"issuedAt"`
	IsRevoked bool               `json:"isRevoked"`
	Index     int                `json:"-"`
}

// IssuedTime returns the issuance time.
func (c Certificate) IssuedTime() time.Time {
	return c.IssuedAt.Time()
}

// Document is a certificate file selected for upload.
type Document struct {
	Name    string
	Content []byte
}

// VerificationQuery addresses one registry entry for a point lookup.
type VerificationQuery struct {
	Student domain.Address
	Index   int
	Hash    domain.ContentHash
}

// Outcome is the normalized verification result.
type Outcome string

const (
	OutcomeValid       Outcome = "Valid"
	OutcomeInvalid     Outcome = "Invalid"
	OutcomeCheckFailed Outcome = "CheckFailed"
)

// VerificationResult carries the outcome and, for CheckFailed, the cause.
type VerificationResult struct {
	Query   VerificationQuery
	Outcome Outcome
	Err     error
}

// IsValid reports whether the registry confirmed the certificate.
func (r VerificationResult) IsValid() bool {
	return r.Outcome == OutcomeValid
}

// IssueResult describes a completed issuance.
type IssueResult struct {
	Student     domain.Address
	ContentHash domain.ContentHash
	// Registered is true when the student had to be registered first.
	Registered bool
	// Certificates is the fresh list read after issuance; nil when Refreshed is false.
	Certificates []Certificate
	Refreshed    bool
}

// RevokeResult describes a completed revocation.
type RevokeResult struct {
	Student      domain.Address
	Index        int
	Certificates []Certificate
	Refreshed    bool
}
