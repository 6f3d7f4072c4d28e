package service

import (
	"context"

	"go.uber.org/mock/gomock"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
)

func (s *ServiceSuite) TestVerify_Outcomes() {
	ctx := context.Background()
	q := models.VerificationQuery{Student: student, Index: 0, Hash: hash}

	s.Run("valid", func() {
		s.mockRegistry.EXPECT().VerifyCertificate(gomock.Any(), q).Return(true, nil)
		s.mockTracker.EXPECT().Track(gomock.Any(), gomock.Any()).Do(
			func(_ context.Context, e audit.OpsEvent) {
				s.Equal(string(audit.EventCertificateVerified), e.Action)
				s.Equal("Valid", e.Decision)
			})

		res, err := s.service.Verify(ctx, q)
		s.Require().NoError(err)
		s.Equal(models.OutcomeValid, res.Outcome)
		s.True(res.IsValid())
	})

	s.Run("invalid", func() {
		s.mockRegistry.EXPECT().VerifyCertificate(gomock.Any(), q).Return(false, nil)
		s.mockTracker.EXPECT().Track(gomock.Any(), gomock.Any())

		res, err := s.service.Verify(ctx, q)
		s.Require().NoError(err)
		s.Equal(models.OutcomeInvalid, res.Outcome)
		s.NoError(res.Err)
	})

	s.Run("transport failure is CheckFailed, never Invalid", func() {
		s.mockRegistry.EXPECT().VerifyCertificate(gomock.Any(), q).
			Return(false, regErr(registry.OpVerify, registry.KindTransport, "registry unreachable"))
		s.mockTracker.EXPECT().Track(gomock.Any(), gomock.Any()).Do(
			func(_ context.Context, e audit.OpsEvent) {
				s.Equal("transport", e.Reason)
			})

		res, err := s.service.Verify(ctx, q)
		s.Require().NoError(err)
		s.Equal(models.OutcomeCheckFailed, res.Outcome)
		s.Require().Error(res.Err)
		s.True(dErrors.HasCode(res.Err, dErrors.CodeUnavailable))
		s.Equal(MsgVerifyFailed, dErrors.Message(res.Err))
	})
}

func (s *ServiceSuite) TestVerify_ValidationBeforeNetwork() {
	ctx := context.Background()
	s.mockRegistry.EXPECT().VerifyCertificate(gomock.Any(), gomock.Any()).Times(0)

	cases := []models.VerificationQuery{
		{Student: "nope", Index: 0, Hash: hash},
		{Student: student, Index: 0, Hash: ""},
		{Student: student, Index: 0, Hash: "Qm/123"},
		{Student: student, Index: -1, Hash: hash},
	}
	for _, q := range cases {
		_, err := s.service.Verify(ctx, q)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	}
}
