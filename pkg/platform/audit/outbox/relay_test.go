package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"eduverify/pkg/platform/audit/store/postgres"
	txcontext "eduverify/pkg/platform/tx"
)

type fakeSource struct {
	entries   []postgres.Entry
	published []uuid.UUID
	sawTx     bool
}

func (s *fakeSource) ClaimUnpublished(ctx context.Context, limit int) ([]postgres.Entry, error) {
	_, s.sawTx = txcontext.From(ctx)
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func (s *fakeSource) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.published = append(s.published, ids...)
	return nil
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, len(rs))
	for i, r := range rs {
		results[i] = kgo.ProduceResult{Record: r, Err: p.err}
	}
	return results
}

func entries(n int) []postgres.Entry {
	out := make([]postgres.Entry, n)
	for i := range out {
		out[i] = postgres.Entry{
			ID:          uuid.New(),
			AggregateID: "0xabc",
			EventType:   "certificate_issued",
			Payload:     []byte(`{"action":"certificate_issued"}`),
			CreatedAt:   time.Now(),
		}
	}
	return out
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	src := &fakeSource{entries: entries(2)}
	prod := &fakeProducer{}
	r := NewRelay(db, src, prod, "audit.certificates")

	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, src.sawTx)
	require.Len(t, prod.records, 2)
	assert.Equal(t, "audit.certificates", prod.records[0].Topic)
	assert.Equal(t, []byte("0xabc"), prod.records[0].Key)
	assert.Equal(t, "event_type", prod.records[0].Headers[0].Key)
	assert.Equal(t, []uuid.UUID{src.entries[0].ID, src.entries[1].ID}, src.published)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayOnce_ProduceFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	src := &fakeSource{entries: entries(1)}
	r := NewRelay(db, src, &fakeProducer{err: errors.New("broker not available")}, "audit")

	n, err := r.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.published)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayOnce_EmptyOutbox(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	prod := &fakeProducer{}
	n, err := NewRelay(db, &fakeSource{}, prod, "audit").RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, prod.records)
}

func TestRelayOnce_HonoursBatchSize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	src := &fakeSource{entries: entries(5)}
	prod := &fakeProducer{}
	n, err := NewRelay(db, src, prod, "audit", WithBatchSize(3)).RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 50; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r := NewRelay(db, &fakeSource{}, &fakeProducer{}, "audit", WithInterval(10*time.Millisecond))
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
