package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
)

func (s *ServiceSuite) TestIssue_RegisteredStudent() {
	ctx := context.Background()
	listed := []models.Certificate{cert(hash, 100, false)}

	gomock.InOrder(
		s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil),
		s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).Return(nil).Times(1),
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.ComplianceEvent) error {
				s.Equal(string(audit.EventCertificateIssued), e.Action)
				s.Equal(hash.String(), e.Subject)
				return nil
			}),
		s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).Return(listed, nil),
	)
	s.mockRegistry.EXPECT().RegisterStudent(gomock.Any(), gomock.Any()).Times(0)

	result, err := s.service.Issue(ctx, student, pdf)
	s.Require().NoError(err)
	s.Equal(hash, result.ContentHash)
	s.False(result.Registered)
	s.True(result.Refreshed)
	s.Len(result.Certificates, 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Issuances.WithLabelValues("direct", "ok")))
}

func (s *ServiceSuite) TestIssue_UnregisteredStudentIsRegisteredThenRetriedOnce() {
	ctx := context.Background()

	gomock.InOrder(
		s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil),
		s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).
			Return(regErr(registry.OpIssue, registry.KindUnregisteredStudent, "Student is not a registered student")),
		s.mockRegistry.EXPECT().RegisterStudent(gomock.Any(), student).Return(nil),
		s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).Return(nil),
		s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).Return([]models.Certificate{cert(hash, 1, false)}, nil),
	)
	var actions []string
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.ComplianceEvent) error {
			actions = append(actions, e.Action)
			return nil
		}).Times(2)

	result, err := s.service.Issue(ctx, student, pdf)
	s.Require().NoError(err)
	s.True(result.Registered)
	s.Equal([]string{string(audit.EventStudentRegistered), string(audit.EventCertificateIssued)}, actions)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Issuances.WithLabelValues("registered", "ok")))
}

func (s *ServiceSuite) TestIssue_AlreadyRegisteredCountsAsSuccess() {
	ctx := context.Background()

	gomock.InOrder(
		s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil),
		s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).
			Return(regErr(registry.OpIssue, registry.KindUnregisteredStudent, "")),
		s.mockRegistry.EXPECT().RegisterStudent(gomock.Any(), student).
			Return(regErr(registry.OpRegister, registry.KindAlreadyRegistered, "Student already registered")),
		s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).Return(nil),
		s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).Return(nil, nil),
	)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	result, err := s.service.Issue(ctx, student, pdf)
	s.Require().NoError(err)
	s.True(result.Registered)
	s.NotNil(result.Certificates)
}

func (s *ServiceSuite) TestIssue_FailedRetryIsTerminal() {
	ctx := context.Background()
	unregistered := regErr(registry.OpIssue, registry.KindUnregisteredStudent, "Student is not a registered student")

	s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil)
	s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).Return(unregistered).Times(2)
	s.mockRegistry.EXPECT().RegisterStudent(gomock.Any(), student).Return(nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := s.service.Issue(ctx, student, pdf)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePrecondition))
	s.Equal("Student is not a registered student", dErrors.Message(err))
}

func (s *ServiceSuite) TestIssue_RegisterFailureStopsBeforeRetry() {
	ctx := context.Background()

	s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil)
	s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).
		Return(regErr(registry.OpIssue, registry.KindUnregisteredStudent, "")).Times(1)
	s.mockRegistry.EXPECT().RegisterStudent(gomock.Any(), student).
		Return(regErr(registry.OpRegister, registry.KindTransport, "registry unreachable"))

	_, err := s.service.Issue(ctx, student, pdf)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(MsgRegistrationFailed, dErrors.Message(err))
}

func (s *ServiceSuite) TestIssue_OtherIssueFailureSurfacesWithoutRegistering() {
	ctx := context.Background()

	s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil)
	s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).
		Return(regErr(registry.OpIssue, registry.KindServer, "Only institution can issue"))
	s.mockRegistry.EXPECT().RegisterStudent(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.Issue(ctx, student, pdf)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal("Only institution can issue", dErrors.Message(err))
}

func (s *ServiceSuite) TestIssue_UploadFailureAbortsEverything() {
	ctx := context.Background()

	s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).
		Return(domainHashZero, regErr(registry.OpUpload, registry.KindTransport, "registry unreachable"))

	_, err := s.service.Issue(ctx, student, pdf)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(MsgIssueFailed, dErrors.Message(err))
}

func (s *ServiceSuite) TestIssue_RefreshFailureKeepsSuccess() {
	ctx := context.Background()

	s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil)
	s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).Return(nil)
	s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).
		Return(nil, regErr(registry.OpList, registry.KindTransport, ""))
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.Issue(ctx, student, pdf)
	s.Require().NoError(err)
	s.False(result.Refreshed)
	s.Nil(result.Certificates)
}

func (s *ServiceSuite) TestIssue_AuditFailureDoesNotFailIssuance() {
	ctx := context.Background()

	s.mockRegistry.EXPECT().UploadDocument(gomock.Any(), pdf).Return(hash, nil)
	s.mockRegistry.EXPECT().IssueCertificate(gomock.Any(), student, hash, models.NeverExpires).Return(nil)
	s.mockRegistry.EXPECT().ListCertificates(gomock.Any(), student).Return(nil, nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(dErrors.New(dErrors.CodeInternal, "outbox down"))

	_, err := s.service.Issue(ctx, student, pdf)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestIssue_Validation() {
	ctx := context.Background()

	s.Run("bad student address", func() {
		_, err := s.service.Issue(ctx, "student-1", pdf)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty document", func() {
		_, err := s.service.Issue(ctx, student, models.Document{Name: "empty.pdf"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
