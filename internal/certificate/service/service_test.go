package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Registry,AuditPublisher,OpsTracker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"eduverify/internal/certificate/models"
	"eduverify/internal/certificate/registry"
	"eduverify/internal/certificate/service/mocks"
	"eduverify/internal/platform/metrics"
	"eduverify/pkg/domain"
)

const (
	student = domain.Address("0xAA")
	hash    = domain.ContentHash("Qm123")
)

var pdf = models.Document{Name: "degree.pdf", Content: []byte("%PDF-1.7 degree")}

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockRegistry *mocks.MockRegistry
	mockAudit    *mocks.MockAuditPublisher
	mockTracker  *mocks.MockOpsTracker
	metrics      *metrics.Metrics
	service      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockRegistry = mocks.NewMockRegistry(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.mockTracker = mocks.NewMockOpsTracker(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = New(s.mockRegistry,
		WithAuditPublisher(s.mockAudit),
		WithOpsTracker(s.mockTracker),
		WithMetrics(s.metrics),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func regErr(op registry.Op, kind registry.Kind, msg string) error {
	return &registry.Error{Op: op, Kind: kind, Message: msg}
}

func cert(h domain.ContentHash, issuedAt int64, revoked bool) models.Certificate {
	return models.Certificate{
		IssuedTo:  student,
		IssuedBy:  "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4",
		IPFSHash:  h,
		IssuedAt:  models.Timestamp(issuedAt),
		IsRevoked: revoked,
	}
}

const domainHashZero = domain.ContentHash("")
