package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduverify/pkg/domain"
	dErrors "eduverify/pkg/domain-errors"
	audit "eduverify/pkg/platform/audit"
	"eduverify/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func (failingStore) ListByStudent(context.Context, domain.Address) ([]audit.Event, error) {
	return nil, nil
}

func TestPublisher_Emit(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	m := NewMetrics(prometheus.NewRegistry())
	pub := New(store, WithMetrics(m), WithClock(func() time.Time { return now }))

	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		Student:  "0xAA",
		Subject:  "Qm123",
		Action:   string(audit.EventCertificateIssued),
		Decision: "issued",
	})
	require.NoError(t, err)

	events, err := store.ListByStudent(context.Background(), "0xAA")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.writes.WithLabelValues("certificate_issued", "ok")))
}

func TestPublisher_RequiresStudentAndAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())
	require.Error(t, pub.Emit(context.Background(), audit.ComplianceEvent{Action: "certificate_issued"}))
	require.Error(t, pub.Emit(context.Background(), audit.ComplianceEvent{Student: "0xAA"}))
}

func TestPublisher_RejectsOperationalActions(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		Student: "0xAA",
		Action:  string(audit.EventCertificateVerified),
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	events, err := store.ListByStudent(context.Background(), "0xAA")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPublisher_FailClosed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(m))

	err := pub.Emit(context.Background(), audit.ComplianceEvent{Student: "0xAA", Action: "certificate_revoked"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.writes.WithLabelValues("certificate_revoked", "error")))
}
