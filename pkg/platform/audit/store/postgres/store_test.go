package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "eduverify/pkg/platform/audit"
	txcontext "eduverify/pkg/platform/tx"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := New(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

// payloadMatcher checks the JSON payload written to the outbox.
type payloadMatcher struct {
	action string
	cat    audit.EventCategory
}

func (m payloadMatcher) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	return p.Action == m.action && p.Category == string(m.cat) && p.Student == "0xAbC"
}

func TestStore_Append(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), "student", "0xabc", "certificate_issued",
			payloadMatcher{action: "certificate_issued", cat: audit.CategoryCompliance}, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Append(context.Background(), audit.Event{
		Timestamp: fixedNow,
		Student:   "0xAbC",
		Subject:   "Qm123",
		Action:    string(audit.EventCertificateIssued),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendUsesContextTransaction(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := s.db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)
	require.NoError(t, s.Append(ctx, audit.Event{Student: "0xAbC", Action: string(audit.EventCertificateVerified)}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendError(t *testing.T) {
	s, mock := newStore(t)
	mock.ExpectExec("INSERT INTO outbox").WillReturnError(errors.New("connection reset"))

	err := s.Append(context.Background(), audit.Event{Student: "0xAbC", Action: "certificate_issued"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert outbox entry")
}

func TestStore_ListByStudent(t *testing.T) {
	s, mock := newStore(t)

	payload, err := json.Marshal(Payload{
		ID:        uuid.NewString(),
		Category:  "compliance",
		Timestamp: fixedNow.Format(time.RFC3339Nano),
		Student:   "0xAbC",
		Subject:   "index:0",
		Action:    "certificate_revoked",
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM outbox").
		WithArgs("student", "0xabc").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	events, err := s.ListByStudent(context.Background(), "0xABC")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "certificate_revoked", events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.True(t, fixedNow.Equal(events[0].Timestamp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ClaimAndMarkPublished(t *testing.T) {
	s, mock := newStore(t)
	id1, id2 := uuid.New(), uuid.New()

	t.Run("claim requires a transaction", func(t *testing.T) {
		_, err := s.ClaimUnpublished(context.Background(), 10)
		require.Error(t, err)
	})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow(id1.String(), "0xabc", "certificate_issued", []byte(`{}`), fixedNow).
			AddRow(id2.String(), "0xabc", "certificate_revoked", []byte(`{}`), fixedNow))
	mock.ExpectExec("UPDATE outbox SET published_at").
		WithArgs(fixedNow, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := txcontext.Run(context.Background(), s.db, func(ctx context.Context) error {
		entries, err := s.ClaimUnpublished(ctx, 10)
		if err != nil {
			return err
		}
		require.Len(t, entries, 2)
		assert.Equal(t, id1, entries[0].ID)
		return s.MarkPublished(ctx, []uuid.UUID{entries[0].ID, entries[1].ID})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
