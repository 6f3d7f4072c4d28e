package service

import (
	"context"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	"eduverify/pkg/domain"
)

// List reads the student's certificates fresh from the registry. A student
// the registry does not know has no certificates: the result is empty, not
// an error.
func (s *Service) List(ctx context.Context, student domain.Address) ([]models.Certificate, error) {
	if err := validateStudent(student); err != nil {
		return nil, err
	}
	certs, err := s.registry.ListCertificates(ctx, student)
	if registry.IsKind(err, registry.KindNotFound) {
		return []models.Certificate{}, nil
	}
	if err != nil {
		return nil, translate(err, MsgListFailed)
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	for i := range certs {
		certs[i].Index = i
	}
	return certs, nil
}
