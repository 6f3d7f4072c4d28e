package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"eduverify/internal/certificate/models"
	"eduverify/pkg/domain"
	dErrors "eduverify/pkg/domain-errors"
)

// Multipart field names used by the browser client.
const (
	fieldStudent = "student"
	fieldPDF     = "pdf"
)

// RevokeRequest identifies the certificate to revoke either by the entry the
// client last saw (hash and optional issuedAt) or by explicit index.
type RevokeRequest struct {
	Student  string `json:"student"`
	IPFSHash string `json:"ipfsHash,omitempty"`
	IssuedAt *int64 `json:"issuedAt,omitempty"`
	Index    *int   `json:"index,omitempty"`

	student domain.Address
	hash    domain.ContentHash
}

func (r *RevokeRequest) Validate() error {
	student, err := domain.ParseAddress(r.Student)
	if err != nil {
		return err
	}
	r.student = student

	switch {
	case r.Index != nil && r.IPFSHash != "":
		return dErrors.New(dErrors.CodeValidation, "provide either index or ipfsHash, not both")
	case r.Index != nil:
		if *r.Index < 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "index must be a non-negative integer")
		}
		return nil
	case r.IPFSHash == "":
		return dErrors.New(dErrors.CodeValidation, "index or ipfsHash is required")
	}

	hash, err := domain.ParseContentHash(r.IPFSHash)
	if err != nil {
		return err
	}
	r.hash = hash
	return nil
}

func (r *RevokeRequest) certificate() models.Certificate {
	c := models.Certificate{IssuedTo: r.student, IPFSHash: r.hash}
	if r.IssuedAt != nil {
		c.IssuedAt = models.Timestamp(*r.IssuedAt)
	}
	return c
}

type issueRequest struct {
	student  domain.Address
	document models.Document
}

func parseIssueRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (*issueRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("document exceeds %d bytes", maxBytes))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart form")
	}

	student, err := domain.ParseAddress(r.FormValue(fieldStudent))
	if err != nil {
		return nil, err
	}

	file, header, err := r.FormFile(fieldPDF)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "pdf file is required")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "read uploaded file")
	}
	if len(content) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "pdf file is empty")
	}
	return &issueRequest{
		student:  student,
		document: models.Document{Name: header.Filename, Content: content},
	}, nil
}

func parseVerifyParams(rawStudent, rawIndex, rawHash string) (models.VerificationQuery, error) {
	student, err := domain.ParseAddress(rawStudent)
	if err != nil {
		return models.VerificationQuery{}, err
	}
	index, err := domain.ParseIndex(rawIndex)
	if err != nil {
		return models.VerificationQuery{}, err
	}
	hash, err := domain.ParseContentHash(strings.TrimSpace(rawHash))
	if err != nil {
		return models.VerificationQuery{}, err
	}
	return models.VerificationQuery{Student: student, Index: index, Hash: hash}, nil
}
