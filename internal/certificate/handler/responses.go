package handler

import "eduverify/internal/certificate/models"

// CertificateResponse mirrors the registry wire format plus the list position.
type CertificateResponse struct {
	IssuedTo  string `json:"issuedTo"`
	IssuedBy  string `json:"issuedBy"`
	IPFSHash  string `json:"ipfsHash"`
	IssuedAt  int64  `json:"issuedAt"`
	IsRevoked bool   `json:"isRevoked"`
	Index     int    `json:"index"`
}

type IssueResponse struct {
	Student      string                `json:"student"`
	IPFSHash     string                `json:"ipfsHash"`
	Registered   bool                  `json:"registered"`
	Refreshed    bool                  `json:"refreshed"`
	Certificates []CertificateResponse `json:"certificates"`
}

type RevokeResponse struct {
	Student      string                `json:"student"`
	Index        int                   `json:"index"`
	Refreshed    bool                  `json:"refreshed"`
	Certificates []CertificateResponse `json:"certificates"`
}

// VerifyResponse carries the outcome. A failed check is reported here with
// isValid false, never as an invalid certificate.
type VerifyResponse struct {
	Status  models.Outcome `json:"status"`
	IsValid bool           `json:"isValid"`
}

func toCertificates(certs []models.Certificate) []CertificateResponse {
	out := make([]CertificateResponse, 0, len(certs))
	for _, c := range certs {
		out = append(out, CertificateResponse{
			IssuedTo:  c.IssuedTo.String(),
			IssuedBy:  c.IssuedBy.String(),
			IPFSHash:  c.IPFSHash.String(),
			IssuedAt:  int64(c.IssuedAt),
			IsRevoked: c.IsRevoked,
			Index:     c.Index,
		})
	}
	return out
}

func toIssueResponse(res *models.IssueResult) IssueResponse {
	return IssueResponse{
		Student:      res.Student.String(),
		IPFSHash:     res.ContentHash.String(),
		Registered:   res.Registered,
		Refreshed:    res.Refreshed,
		Certificates: toCertificates(res.Certificates),
	}
}

func toRevokeResponse(res *models.RevokeResult) RevokeResponse {
	return RevokeResponse{
		Student:      res.Student.String(),
		Index:        res.Index,
		Refreshed:    res.Refreshed,
		Certificates: toCertificates(res.Certificates),
	}
}

func toVerifyResponse(res models.VerificationResult) VerifyResponse {
	return VerifyResponse{Status: res.Outcome, IsValid: res.IsValid()}
}
