package service

import (
	"context"

	"go.uber.org/mock/gomock"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	dErrors "eduverify/pkg/domain-errors"
)

func (s *ServiceSuite) TestList() {
	ctx := context.Background()

	s.Run("unknown student is an empty list", func() {
		s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).
			Return(nil, regErr(registry.OpList, registry.KindNotFound, "Student not found"))

		certs, err := s.service.List(ctx, student)
		s.Require().NoError(err)
		s.NotNil(certs)
		s.Empty(certs)
	})

	s.Run("indices follow registry order", func() {
		s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).
			Return([]models.Certificate{cert("QmA", 1, false), cert("QmB", 2, true)}, nil)

		certs, err := s.service.List(ctx, student)
		s.Require().NoError(err)
		s.Equal(0, certs[0].Index)
		s.Equal(1, certs[1].Index)
	})

	s.Run("transport failure surfaces with the list message", func() {
		s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).
			Return(nil, regErr(registry.OpList, registry.KindTransport, ""))

		_, err := s.service.List(ctx, student)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(MsgListFailed, dErrors.Message(err))
	})

	s.Run("invalid student never reaches the registry", func() {
		_, err := s.service.List(ctx, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
